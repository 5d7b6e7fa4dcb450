package jobs

import (
	"context"
	"log"
	"time"

	"mnemo/internal/services"
	"mnemo/internal/store"
)

// StaleLockSweepJob reclaims embedding jobs whose worker died mid-claim: any
// job still processing past the liveness timeout goes back to pending so a
// different worker can pick it up. This is the only cancellation mechanism
// for claimed jobs.
type StaleLockSweepJob struct {
	store       *store.Store
	metrics     *services.Metrics
	interval    time.Duration
	lockTimeout time.Duration
}

// NewStaleLockSweepJob creates the sweep. Defaults: run every minute, reclaim
// locks older than 5 minutes. The timeout must comfortably exceed the longest
// legitimate provider call.
func NewStaleLockSweepJob(st *store.Store, metrics *services.Metrics, interval, lockTimeout time.Duration) *StaleLockSweepJob {
	if interval <= 0 {
		interval = time.Minute
	}
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Minute
	}
	return &StaleLockSweepJob{store: st, metrics: metrics, interval: interval, lockTimeout: lockTimeout}
}

func (j *StaleLockSweepJob) Name() string            { return "stale-lock-sweep" }
func (j *StaleLockSweepJob) Interval() time.Duration { return j.interval }

// Run resets stale claims back to pending
func (j *StaleLockSweepJob) Run(ctx context.Context) error {
	count, err := j.store.ResetStaleJobs(ctx, time.Now().UTC().Add(-j.lockTimeout))
	if err != nil {
		return err
	}
	if count > 0 {
		j.metrics.RecordStaleJobsReset(count)
		log.Printf("♻️ [STALE-SWEEP] Reclaimed %d stale jobs", count)
	}
	return nil
}
