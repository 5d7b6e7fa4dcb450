package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mnemo/internal/database"
	"mnemo/internal/models"
)

// UpsertSession inserts or overwrites the session addressed by
// (tenant, user, type, key). A nil expiresAt means the session never expires
// on its own.
func (s *Store) UpsertSession(ctx context.Context, tenantID, userID, sessionType, sessionKey string, data json.RawMessage, expiresAt *time.Time) (*models.Session, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	sess := &models.Session{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		UserID:      userID,
		SessionType: sessionType,
		SessionKey:  sessionKey,
		Data:        data,
		ExpiresAt:   expiresAt,
		CreatedAt:   now(),
		UpdatedAt:   now(),
	}

	var expiresArg any
	if expiresAt != nil {
		e := expiresAt.UTC()
		expiresArg = e
	}

	var query string
	if s.db.Dialect == database.DialectMySQL {
		query = `INSERT INTO sessions (id, tenant_id, user_id, session_type, session_key, data, expires_at, created_at, updated_at)
		         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		         ON DUPLICATE KEY UPDATE data = VALUES(data), expires_at = VALUES(expires_at), updated_at = VALUES(updated_at)`
	} else {
		query = `INSERT INTO sessions (id, tenant_id, user_id, session_type, session_key, data, expires_at, created_at, updated_at)
		         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		         ON CONFLICT (tenant_id, user_id, session_type, session_key)
		         DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at, updated_at = excluded.updated_at`
	}

	_, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.TenantID, sess.UserID, sess.SessionType, sess.SessionKey,
		string(sess.Data), expiresArg, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	// On overwrite the stored row keeps its original id/created_at; read back
	// so callers see the persisted state.
	return s.GetSession(ctx, tenantID, userID, sessionType, sessionKey)
}

// GetSession fetches a session by its composite key. An expired row is
// reported as not found even before the cleanup sweep removes it.
func (s *Store) GetSession(ctx context.Context, tenantID, userID, sessionType, sessionKey string) (*models.Session, error) {
	sess := &models.Session{}
	var data string
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, user_id, session_type, session_key, data, expires_at, created_at, updated_at
		 FROM sessions WHERE tenant_id = ? AND user_id = ? AND session_type = ? AND session_key = ?`,
		tenantID, userID, sessionType, sessionKey).
		Scan(&sess.ID, &sess.TenantID, &sess.UserID, &sess.SessionType, &sess.SessionKey,
			&data, &expiresAt, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess.Data = json.RawMessage(data)
	sess.ExpiresAt = timePtr(expiresAt)
	if sess.ExpiresAt != nil && sess.ExpiresAt.Before(now()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// DeleteSession removes one session by its composite key
func (s *Store) DeleteSession(ctx context.Context, tenantID, userID, sessionType, sessionKey string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE tenant_id = ? AND user_id = ? AND session_type = ? AND session_key = ?`,
		tenantID, userID, sessionType, sessionKey)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredSessions removes every session whose expires_at has passed,
// across all tenants. Run on the maintenance cadence.
func (s *Store) DeleteExpiredSessions(ctx context.Context, asOf time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < ?`,
		asOf.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
