package models

import (
	"encoding/json"
	"time"
)

// Session types
const (
	SessionTypeConfirmation = "confirmation"
	SessionTypeContext      = "context"
	SessionTypeCache        = "cache"
)

// Session is short-lived keyed state addressed by (tenant, user, type, key).
// Writes are upserts; expired rows are removed by the cleanup sweep. Nothing
// else depends on session data surviving restarts.
type Session struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	UserID      string          `json:"user_id"`
	SessionType string          `json:"session_type"`
	SessionKey  string          `json:"session_key"`
	Data        json.RawMessage `json:"data"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"` // nil = no expiry
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
