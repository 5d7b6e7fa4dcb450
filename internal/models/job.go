package models

import "time"

// Embedding job statuses
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusDead       = "dead"
)

// Job target tables
const (
	TargetMessages = "messages"
	TargetMemories = "memories"
)

// EmbeddingJob is one unit of deferred embedding work. At most one row exists
// per (target_table, target_id); re-enqueueing a live job is a no-op.
type EmbeddingJob struct {
	ID           int64      `json:"id"`
	TenantID     string     `json:"tenant_id"`
	TargetTable  string     `json:"target_table"`
	TargetID     string     `json:"target_id"`
	Status       string     `json:"status"`
	Retries      int        `json:"retries"`
	MaxRetries   int        `json:"max_retries"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	LockedBy     string     `json:"locked_by,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// QueueStats is the monitoring view of the job queue for one tenant (or all
// tenants when unscoped): counts by target table and status, plus the age of
// the oldest pending job.
type QueueStats struct {
	TenantID         string                    `json:"tenant_id,omitempty"`
	Counts           map[string]map[string]int `json:"counts"` // target_table -> status -> count
	OldestPendingAge *float64                  `json:"oldest_pending_age_seconds,omitempty"`
	CollectedAt      time.Time                 `json:"collected_at"`
}
