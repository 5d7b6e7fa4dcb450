package jobs

import (
	"context"
	"time"

	"mnemo/internal/services"
)

// SessionCleanupJob removes expired sessions on the same cadence as the
// memory cleanup pass.
type SessionCleanupJob struct {
	sessions *services.SessionService
	interval time.Duration
}

// NewSessionCleanupJob creates the expiry sweep. Default interval is hourly.
func NewSessionCleanupJob(sessions *services.SessionService, interval time.Duration) *SessionCleanupJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionCleanupJob{sessions: sessions, interval: interval}
}

func (j *SessionCleanupJob) Name() string            { return "session-cleanup" }
func (j *SessionCleanupJob) Interval() time.Duration { return j.interval }

// Run deletes all sessions past their expiry
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	_, err := j.sessions.CleanupExpired(ctx)
	return err
}
