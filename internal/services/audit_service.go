package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"mnemo/internal/models"
	"mnemo/internal/store"
)

// AuditService records externally-triggered write actions with retry safety.
// A reused idempotency key never re-executes the underlying action; the
// stored outcome is surfaced instead.
type AuditService struct {
	store *store.Store
}

// NewAuditService creates a new audit service
func NewAuditService(st *store.Store) *AuditService {
	return &AuditService{store: st}
}

// Record opens a pending audit entry for the action. Returns isNew=false and
// the original entry when the idempotency key was already used; if that
// original is still pending the error is store.ErrActionInFlight and the
// caller must retry later rather than execute the action again.
func (s *AuditService) Record(ctx context.Context, tenantID, userID, action, resourceType, resourceID string, payload json.RawMessage, idempotencyKey string) (*models.AuditLogEntry, bool, error) {
	if idempotencyKey == "" {
		return nil, false, fmt.Errorf("idempotency key is required")
	}

	entry, isNew, err := s.store.RecordAuditEntry(ctx, tenantID, userID, action, resourceType, resourceID, payload, idempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if !isNew && entry.Status == models.AuditStatusPending {
		return entry, false, store.ErrActionInFlight
	}
	return entry, isNew, nil
}

// Complete marks a pending entry as completed with its result
func (s *AuditService) Complete(ctx context.Context, tenantID, entryID string, result json.RawMessage) error {
	return s.store.CompleteAuditEntry(ctx, tenantID, entryID, result)
}

// Fail marks a pending entry as failed
func (s *AuditService) Fail(ctx context.Context, tenantID, entryID, errMsg string) error {
	return s.store.FailAuditEntry(ctx, tenantID, entryID, errMsg)
}

// Execute runs action at most once for the given idempotency key. A repeat
// call with the same key returns the stored entry (with its original result)
// without invoking action again; a repeat while the first call is still in
// flight returns store.ErrActionInFlight.
func (s *AuditService) Execute(ctx context.Context, tenantID, userID, actionName, resourceType, resourceID string, payload json.RawMessage, idempotencyKey string, action func(ctx context.Context) (json.RawMessage, error)) (*models.AuditLogEntry, error) {
	entry, isNew, err := s.Record(ctx, tenantID, userID, actionName, resourceType, resourceID, payload, idempotencyKey)
	if err != nil {
		return entry, err
	}
	if !isNew {
		log.Printf("🔁 [AUDIT] Reused idempotency key %s for tenant %s (status %s)", idempotencyKey, tenantID, entry.Status)
		return entry, nil
	}

	result, actionErr := action(ctx)
	if actionErr != nil {
		if failErr := s.Fail(ctx, tenantID, entry.ID, actionErr.Error()); failErr != nil {
			log.Printf("⚠️ [AUDIT] Failed to mark entry %s failed: %v", entry.ID, failErr)
		}
		return entry, actionErr
	}

	if err := s.Complete(ctx, tenantID, entry.ID, result); err != nil {
		return entry, err
	}
	return s.store.GetAuditEntry(ctx, tenantID, entry.ID)
}

// Get fetches one audit entry
func (s *AuditService) Get(ctx context.Context, tenantID, entryID string) (*models.AuditLogEntry, error) {
	return s.store.GetAuditEntry(ctx, tenantID, entryID)
}

// List returns a tenant/user's audit trail, newest first
func (s *AuditService) List(ctx context.Context, tenantID, userID string, limit int) ([]*models.AuditLogEntry, error) {
	return s.store.ListAuditEntries(ctx, tenantID, userID, limit)
}
