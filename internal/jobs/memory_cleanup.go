package jobs

import (
	"context"
	"log"
	"time"

	"mnemo/internal/services"
	"mnemo/internal/store"
)

// MemoryCleanupJob runs the expire/decay/delete pass over every tenant's
// memories on a fixed cadence.
type MemoryCleanupJob struct {
	store    *store.Store
	memories *services.MemoryService
	interval time.Duration
}

// NewMemoryCleanupJob creates the cleanup job. Default interval is hourly.
func NewMemoryCleanupJob(st *store.Store, memories *services.MemoryService, interval time.Duration) *MemoryCleanupJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &MemoryCleanupJob{store: st, memories: memories, interval: interval}
}

func (j *MemoryCleanupJob) Name() string            { return "memory-cleanup" }
func (j *MemoryCleanupJob) Interval() time.Duration { return j.interval }

// Run executes the cleanup pass for all tenants. A failing tenant is logged
// and skipped so one bad tenant can't starve the rest.
func (j *MemoryCleanupJob) Run(ctx context.Context) error {
	startTime := time.Now()

	tenants, err := j.store.ListMemoryTenants(ctx)
	if err != nil {
		return err
	}

	totalInvalidated, totalDecayed, totalDeleted := 0, 0, 0
	for _, tenantID := range tenants {
		result, err := j.memories.Cleanup(ctx, tenantID)
		if err != nil {
			log.Printf("⚠️ [MEMORY-CLEANUP] Failed for tenant %s: %v", tenantID, err)
			continue
		}
		totalInvalidated += result.Invalidated
		totalDecayed += result.Decayed
		totalDeleted += result.Deleted
	}

	log.Printf("✅ [MEMORY-CLEANUP] %d tenants: %d invalidated, %d decayed, %d deleted (%v)",
		len(tenants), totalInvalidated, totalDecayed, totalDeleted, time.Since(startTime))
	return nil
}
