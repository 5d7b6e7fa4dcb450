package models

import (
	"encoding/json"
	"time"
)

// Audit entry statuses
const (
	AuditStatusPending   = "pending"
	AuditStatusCompleted = "completed"
	AuditStatusFailed    = "failed"
	AuditStatusConflict  = "conflict"
)

// AuditLogEntry records one externally-triggered write action, keyed by an
// idempotency key unique per tenant. A reused key never re-executes the
// underlying action; the stored result is surfaced instead.
type AuditLogEntry struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	UserID         string          `json:"user_id"`
	Action         string          `json:"action"`
	ResourceType   string          `json:"resource_type"`
	ResourceID     string          `json:"resource_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotency_key"`
	Status         string          `json:"status"`
	Result         json.RawMessage `json:"result,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}
