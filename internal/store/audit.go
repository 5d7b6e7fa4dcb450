package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"mnemo/internal/models"
)

// RecordAuditEntry inserts a pending audit entry keyed by
// (tenant, idempotency key). If the key is already used the existing entry is
// returned with isNew=false and no second row is ever created; the caller
// must not re-execute the underlying action.
func (s *Store) RecordAuditEntry(ctx context.Context, tenantID, userID, action, resourceType, resourceID string, payload json.RawMessage, idempotencyKey string) (*models.AuditLogEntry, bool, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	entry := &models.AuditLogEntry{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		UserID:         userID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Payload:        payload,
		IdempotencyKey: idempotencyKey,
		Status:         models.AuditStatusPending,
		CreatedAt:      now(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, tenant_id, user_id, action, resource_type, resource_id,
		                        payload, idempotency_key, status, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?)`,
		entry.ID, entry.TenantID, entry.UserID, entry.Action, entry.ResourceType,
		entry.ResourceID, string(entry.Payload), entry.IdempotencyKey, entry.Status,
		entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.GetAuditEntryByKey(ctx, tenantID, idempotencyKey)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to record audit entry: %w", err)
	}

	return entry, true, nil
}

// CompleteAuditEntry transitions a pending entry to completed with its result
func (s *Store) CompleteAuditEntry(ctx context.Context, tenantID, entryID string, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage("{}")
	}
	return s.finishAuditEntry(ctx, tenantID, entryID, models.AuditStatusCompleted, string(result), "")
}

// FailAuditEntry transitions a pending entry to failed with the error message
func (s *Store) FailAuditEntry(ctx context.Context, tenantID, entryID, errMsg string) error {
	if len(errMsg) > 512 {
		errMsg = errMsg[:512]
	}
	return s.finishAuditEntry(ctx, tenantID, entryID, models.AuditStatusFailed, "", errMsg)
}

func (s *Store) finishAuditEntry(ctx context.Context, tenantID, entryID, status, result, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_log SET status = ?, result = ?, error_message = ?, completed_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = ?`,
		status, result, errMsg, now(), tenantID, entryID, models.AuditStatusPending)
	if err != nil {
		return fmt.Errorf("failed to finish audit entry: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAuditEntry fetches one audit entry by ID
func (s *Store) GetAuditEntry(ctx context.Context, tenantID, entryID string) (*models.AuditLogEntry, error) {
	return scanAuditEntry(s.db.QueryRowContext(ctx,
		auditSelect+` WHERE tenant_id = ? AND id = ?`, tenantID, entryID))
}

// GetAuditEntryByKey fetches an audit entry by its idempotency key
func (s *Store) GetAuditEntryByKey(ctx context.Context, tenantID, idempotencyKey string) (*models.AuditLogEntry, error) {
	return scanAuditEntry(s.db.QueryRowContext(ctx,
		auditSelect+` WHERE tenant_id = ? AND idempotency_key = ?`, tenantID, idempotencyKey))
}

// ListAuditEntries returns a tenant/user's audit trail, newest first
func (s *Store) ListAuditEntries(ctx context.Context, tenantID, userID string, limit int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		auditSelect+` WHERE tenant_id = ? AND user_id = ? ORDER BY created_at DESC LIMIT ?`,
		tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

const auditSelect = `SELECT id, tenant_id, user_id, action, resource_type, resource_id,
       payload, idempotency_key, status, result, error_message, created_at, completed_at
FROM audit_log`

func scanAuditEntry(row rowScanner) (*models.AuditLogEntry, error) {
	entry := &models.AuditLogEntry{}
	var payload, result string
	var completedAt sql.NullTime
	err := row.Scan(&entry.ID, &entry.TenantID, &entry.UserID, &entry.Action,
		&entry.ResourceType, &entry.ResourceID, &payload, &entry.IdempotencyKey,
		&entry.Status, &result, &entry.ErrorMessage, &entry.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entry: %w", err)
	}
	entry.Payload = json.RawMessage(payload)
	if result != "" {
		entry.Result = json.RawMessage(result)
	}
	entry.CompletedAt = timePtr(completedAt)
	return entry, nil
}
