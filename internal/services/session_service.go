package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"mnemo/internal/models"
	"mnemo/internal/store"
)

// SessionService manages short-lived keyed state: pending confirmations,
// working context, caches. Everything here may be pruned once expired without
// affecting correctness elsewhere.
type SessionService struct {
	store   *store.Store
	metrics *Metrics
}

// NewSessionService creates a new session service
func NewSessionService(st *store.Store, metrics *Metrics) *SessionService {
	return &SessionService{store: st, metrics: metrics}
}

// Put upserts the session addressed by (tenant, user, type, key). A zero ttl
// stores the session without expiry.
func (s *SessionService) Put(ctx context.Context, tenantID, userID, sessionType, sessionKey string, data json.RawMessage, ttl time.Duration) (*models.Session, error) {
	var expiresAt *time.Time
	if ttl > 0 {
		e := time.Now().UTC().Add(ttl)
		expiresAt = &e
	}
	return s.store.UpsertSession(ctx, tenantID, userID, sessionType, sessionKey, data, expiresAt)
}

// Get fetches a session; expired sessions read as not found
func (s *SessionService) Get(ctx context.Context, tenantID, userID, sessionType, sessionKey string) (*models.Session, error) {
	return s.store.GetSession(ctx, tenantID, userID, sessionType, sessionKey)
}

// Delete removes one session
func (s *SessionService) Delete(ctx context.Context, tenantID, userID, sessionType, sessionKey string) error {
	return s.store.DeleteSession(ctx, tenantID, userID, sessionType, sessionKey)
}

// CleanupExpired removes all sessions past their expiry, across tenants.
// Runs on the same cadence as memory cleanup.
func (s *SessionService) CleanupExpired(ctx context.Context) (int, error) {
	count, err := s.store.DeleteExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	s.metrics.RecordSessionsExpired(count)
	if count > 0 {
		log.Printf("🧹 [SESSIONS] Removed %d expired sessions", count)
	}
	return count, nil
}
