package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mnemo/internal/models"
)

// RecordMemory inserts a memory unless a live one with the same content hash
// already exists for (tenant, user), in which case the existing row is
// returned unchanged with isNew=false. New memories start at confidence 1.0
// with a first "current" revision and an embedding job, all in one
// transaction.
func (s *Store) RecordMemory(ctx context.Context, tenantID, userID, memoryType, content, contentHash string, validUntil *time.Time) (*models.Memory, bool, error) {
	var existing *models.Memory
	mem := &models.Memory{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		UserID:          userID,
		MemoryType:      memoryType,
		Content:         content,
		ContentHash:     contentHash,
		EmbeddingStatus: models.EmbeddingStatusPending,
		Confidence:      1.0,
		ValidUntil:      validUntil,
		CreatedAt:       now(),
		UpdatedAt:       now(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// Dedup check inside the transaction so two racing writes of the
		// same content cannot both insert.
		row := tx.QueryRowContext(ctx,
			`SELECT id FROM memories
			 WHERE tenant_id = ? AND user_id = ? AND content_hash = ? AND is_invalidated = FALSE
			 ORDER BY created_at ASC LIMIT 1`,
			tenantID, userID, contentHash)
		var existingID string
		err := row.Scan(&existingID)
		if err == nil {
			existing, err = getMemory(ctx, tx, tenantID, existingID)
			return err
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check memory dedup: %w", err)
		}

		var validUntilArg any
		if mem.ValidUntil != nil {
			validUntilArg = mem.ValidUntil.UTC()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memories (id, tenant_id, user_id, memory_type, content, content_hash,
			                       embedding_status, confidence, valid_until, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			mem.ID, mem.TenantID, mem.UserID, mem.MemoryType, mem.Content, mem.ContentHash,
			mem.EmbeddingStatus, mem.Confidence, validUntilArg, mem.CreatedAt, mem.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert memory: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO memory_revisions (id, memory_id, version, state, content, reason, changed_by, created_at)
			 VALUES (?, ?, 1, ?, ?, '', '', ?)`,
			uuid.New().String(), mem.ID, models.RevisionStateCurrent, mem.Content, now())
		if err != nil {
			return fmt.Errorf("failed to insert first revision: %w", err)
		}

		return enqueueJob(ctx, tx, tenantID, models.TargetMemories, mem.ID)
	})
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	return mem, true, nil
}

// GetMemory fetches a memory owned by the tenant
func (s *Store) GetMemory(ctx context.Context, tenantID, memoryID string) (*models.Memory, error) {
	return getMemory(ctx, s.db, tenantID, memoryID)
}

func getMemory(ctx context.Context, q querier, tenantID, memoryID string) (*models.Memory, error) {
	return scanMemory(q.QueryRowContext(ctx,
		`SELECT id, tenant_id, user_id, memory_type, content, content_hash,
		        embedding, embedding_model, embedding_dim, embedding_status,
		        access_count, last_accessed_at, confidence, valid_from, valid_until,
		        is_invalidated, invalidated_at, last_decayed_at, created_at, updated_at
		 FROM memories WHERE tenant_id = ? AND id = ?`,
		tenantID, memoryID))
}

// ListMemories returns a tenant/user's live memories, most recently updated first
func (s *Store) ListMemories(ctx context.Context, tenantID, userID string, includeInvalidated bool, limit int) ([]*models.Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, tenant_id, user_id, memory_type, content, content_hash,
	                 embedding, embedding_model, embedding_dim, embedding_status,
	                 access_count, last_accessed_at, confidence, valid_from, valid_until,
	                 is_invalidated, invalidated_at, last_decayed_at, created_at, updated_at
	          FROM memories WHERE tenant_id = ? AND user_id = ?`
	args := []any{tenantID, userID}
	if !includeInvalidated {
		query += ` AND is_invalidated = FALSE`
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var mems []*models.Memory
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		mems = append(mems, mem)
	}
	return mems, rows.Err()
}

// TouchMemory records a use of a memory, which implicitly protects it from
// decay: access_count goes up and last_accessed_at moves to now.
func (s *Store) TouchMemory(ctx context.Context, tenantID, memoryID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		now(), now(), tenantID, memoryID)
	if err != nil {
		return fmt.Errorf("failed to touch memory: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CorrectMemory replaces a memory's content, keeping full history: the
// current revision flips to superseded and a new current revision with the
// next version number is inserted in the same transaction, so exactly one
// current revision exists at every point. The memory's embedding is reset and
// re-queued.
func (s *Store) CorrectMemory(ctx context.Context, tenantID, memoryID, newContent, newContentHash, reason, changedBy string) (*models.Memory, error) {
	var mem *models.Memory

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var ownerID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM memories WHERE tenant_id = ? AND id = ?`,
			tenantID, memoryID).Scan(&ownerID)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load memory: %w", err)
		}

		var maxVersion int
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM memory_revisions WHERE memory_id = ?`,
			memoryID).Scan(&maxVersion)
		if err != nil {
			return fmt.Errorf("failed to read revision version: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE memory_revisions SET state = ? WHERE memory_id = ? AND state = ?`,
			models.RevisionStateSuperseded, memoryID, models.RevisionStateCurrent)
		if err != nil {
			return fmt.Errorf("failed to supersede revision: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO memory_revisions (id, memory_id, version, state, content, reason, changed_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), memoryID, maxVersion+1, models.RevisionStateCurrent,
			newContent, reason, changedBy, now())
		if err != nil {
			return fmt.Errorf("failed to insert revision: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE memories
			 SET content = ?, content_hash = ?, embedding = NULL, embedding_model = '',
			     embedding_dim = 0, embedding_status = ?, updated_at = ?
			 WHERE id = ?`,
			newContent, newContentHash, models.EmbeddingStatusPending, now(), memoryID)
		if err != nil {
			return fmt.Errorf("failed to update memory content: %w", err)
		}

		if err := enqueueJob(ctx, tx, tenantID, models.TargetMemories, memoryID); err != nil {
			return err
		}

		mem, err = getMemory(ctx, tx, tenantID, memoryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mem, nil
}

// ListRevisions returns a memory's full version history, oldest first
func (s *Store) ListRevisions(ctx context.Context, tenantID, memoryID string) ([]*models.MemoryRevision, error) {
	if _, err := s.GetMemory(ctx, tenantID, memoryID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, memory_id, version, state, content, reason, changed_by, created_at
		 FROM memory_revisions WHERE memory_id = ? ORDER BY version ASC`,
		memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer rows.Close()

	var revs []*models.MemoryRevision
	for rows.Next() {
		rev := &models.MemoryRevision{}
		if err := rows.Scan(&rev.ID, &rev.MemoryID, &rev.Version, &rev.State, &rev.Content,
			&rev.Reason, &rev.ChangedBy, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

// InvalidateExpiredMemories marks memories whose valid_until has passed.
// Already-invalidated rows are untouched, so re-running is a no-op.
func (s *Store) InvalidateExpiredMemories(ctx context.Context, tenantID string, asOf time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET is_invalidated = TRUE, invalidated_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND is_invalidated = FALSE AND valid_until IS NOT NULL AND valid_until < ?`,
		asOf.UTC(), asOf.UTC(), tenantID, asOf.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate expired memories: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DecayStaleMemories multiplies confidence by the decay factor for live
// memories not used since the cutoff. Decay is multiplicative so relative
// ranking between memories stays stable. last_decayed_at gates the update so
// an immediate re-run decays nothing twice.
func (s *Store) DecayStaleMemories(ctx context.Context, tenantID string, unusedSince time.Time, factor float64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET confidence = confidence * ?, last_decayed_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND is_invalidated = FALSE
		   AND COALESCE(last_accessed_at, created_at) < ?
		   AND (last_decayed_at IS NULL OR last_decayed_at < ?)`,
		factor, now(), now(), tenantID, unusedSince.UTC(), unusedSince.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to decay memories: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PurgeInvalidatedMemories permanently deletes memories invalidated before
// the cutoff, along with their revisions (cascade) and any leftover jobs.
func (s *Store) PurgeInvalidatedMemories(ctx context.Context, tenantID string, invalidatedBefore time.Time) (int, error) {
	var deleted int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM embedding_jobs WHERE target_table = ? AND target_id IN
			 (SELECT id FROM memories WHERE tenant_id = ? AND is_invalidated = TRUE AND invalidated_at IS NOT NULL AND invalidated_at < ?)`,
			models.TargetMemories, tenantID, invalidatedBefore.UTC())
		if err != nil {
			return fmt.Errorf("failed to delete memory jobs: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM memories
			 WHERE tenant_id = ? AND is_invalidated = TRUE AND invalidated_at IS NOT NULL AND invalidated_at < ?`,
			tenantID, invalidatedBefore.UTC())
		if err != nil {
			return fmt.Errorf("failed to purge memories: %w", err)
		}
		n, _ := res.RowsAffected()
		deleted = int(n)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListMemoryTenants returns every tenant that has memories, for iterating
// the cleanup pass.
func (s *Store) ListMemoryTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		tenants = append(tenants, id)
	}
	return tenants, rows.Err()
}

func scanMemory(row rowScanner) (*models.Memory, error) {
	mem := &models.Memory{}
	var embedding sql.NullString
	var lastAccessed, validFrom, validUntil, invalidatedAt, lastDecayed sql.NullTime
	err := row.Scan(&mem.ID, &mem.TenantID, &mem.UserID, &mem.MemoryType, &mem.Content,
		&mem.ContentHash, &embedding, &mem.EmbeddingModel, &mem.EmbeddingDim,
		&mem.EmbeddingStatus, &mem.AccessCount, &lastAccessed, &mem.Confidence,
		&validFrom, &validUntil, &mem.IsInvalidated, &invalidatedAt, &lastDecayed,
		&mem.CreatedAt, &mem.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan memory: %w", err)
	}

	mem.Embedding, err = decodeVector(embedding)
	if err != nil {
		return nil, err
	}
	mem.LastAccessedAt = timePtr(lastAccessed)
	mem.ValidFrom = timePtr(validFrom)
	mem.ValidUntil = timePtr(validUntil)
	mem.InvalidatedAt = timePtr(invalidatedAt)
	mem.LastDecayedAt = timePtr(lastDecayed)
	return mem, nil
}
