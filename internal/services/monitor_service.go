package services

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"mnemo/internal/models"
	"mnemo/internal/store"
)

// MonitorService exposes queue health: job counts by status, the age of the
// oldest pending job, and the dead-letter list. Stats are cached briefly so
// dashboards polling the endpoint don't hammer the database with aggregate
// queries.
type MonitorService struct {
	store   *store.Store
	metrics *Metrics
	cache   *gocache.Cache
}

// statsCacheTTL is how long one QueueStats snapshot is served before recomputing
const statsCacheTTL = 10 * time.Second

// NewMonitorService creates a new monitor service
func NewMonitorService(st *store.Store, metrics *Metrics) *MonitorService {
	return &MonitorService{
		store:   st,
		metrics: metrics,
		cache:   gocache.New(statsCacheTTL, time.Minute),
	}
}

// QueueStats returns the job queue snapshot for a tenant (empty tenantID for
// the cross-tenant view), cached for statsCacheTTL.
func (s *MonitorService) QueueStats(ctx context.Context, tenantID string) (*models.QueueStats, error) {
	cacheKey := "queue-stats:" + tenantID
	if cached, found := s.cache.Get(cacheKey); found {
		return cached.(*models.QueueStats), nil
	}

	stats, err := s.store.QueueStats(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect queue stats: %w", err)
	}

	s.cache.Set(cacheKey, stats, gocache.DefaultExpiration)
	s.publishGauges(stats, tenantID)
	return stats, nil
}

// publishGauges mirrors the cross-tenant snapshot into Prometheus
func (s *MonitorService) publishGauges(stats *models.QueueStats, tenantID string) {
	if s.metrics == nil || tenantID != "" {
		return
	}

	totals := map[string]int{
		models.JobStatusPending:    0,
		models.JobStatusProcessing: 0,
		models.JobStatusCompleted:  0,
		models.JobStatusFailed:     0,
		models.JobStatusDead:       0,
	}
	for _, byStatus := range stats.Counts {
		for status, count := range byStatus {
			totals[status] += count
		}
	}
	for status, count := range totals {
		s.metrics.QueueDepth.WithLabelValues(status).Set(float64(count))
	}

	age := 0.0
	if stats.OldestPendingAge != nil {
		age = *stats.OldestPendingAge
	}
	s.metrics.OldestPendingAge.Set(age)
}

// DeadJobs lists the tenant's dead-lettered jobs for manual handling
func (s *MonitorService) DeadJobs(ctx context.Context, tenantID string, limit int) ([]*models.EmbeddingJob, error) {
	return s.store.ListJobs(ctx, tenantID, models.JobStatusDead, limit)
}

// RequeueDeadJob puts a dead job back in the queue with a fresh retry budget
func (s *MonitorService) RequeueDeadJob(ctx context.Context, tenantID string, jobID int64) error {
	if err := s.store.RequeueDeadJob(ctx, tenantID, jobID); err != nil {
		return err
	}
	// Drop cached snapshots so the status change shows up immediately
	s.cache.Flush()
	return nil
}
