package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"mnemo/internal/models"
)

// RecordPattern stores a trigger -> response association for the tenant,
// deduplicated on the trigger hash. Recording an existing trigger updates the
// response text instead of creating a second row.
func (s *Store) RecordPattern(ctx context.Context, tenantID, triggerText, triggerHash, responseText string) (*models.Pattern, bool, error) {
	var existing *models.Pattern
	pat := &models.Pattern{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		TriggerText:  triggerText,
		TriggerHash:  triggerHash,
		ResponseText: responseText,
		CreatedAt:    now(),
		UpdatedAt:    now(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existingID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM patterns WHERE tenant_id = ? AND trigger_hash = ?`,
			tenantID, triggerHash).Scan(&existingID)
		if err == nil {
			_, err = tx.ExecContext(ctx,
				`UPDATE patterns SET response_text = ?, updated_at = ? WHERE id = ?`,
				responseText, now(), existingID)
			if err != nil {
				return fmt.Errorf("failed to update pattern: %w", err)
			}
			existing, err = getPattern(ctx, tx, tenantID, existingID)
			return err
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check pattern: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO patterns (id, tenant_id, trigger_text, trigger_hash, response_text, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			pat.ID, pat.TenantID, pat.TriggerText, pat.TriggerHash, pat.ResponseText,
			pat.CreatedAt, pat.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("failed to insert pattern: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	return pat, true, nil
}

// GetPattern fetches one pattern owned by the tenant
func (s *Store) GetPattern(ctx context.Context, tenantID, patternID string) (*models.Pattern, error) {
	return getPattern(ctx, s.db, tenantID, patternID)
}

// GetPatternByTrigger looks a pattern up by its trigger hash
func (s *Store) GetPatternByTrigger(ctx context.Context, tenantID, triggerHash string) (*models.Pattern, error) {
	return scanPattern(s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, trigger_text, trigger_hash, response_text,
		        success_count, failure_count, last_used_at, created_at, updated_at
		 FROM patterns WHERE tenant_id = ? AND trigger_hash = ?`,
		tenantID, triggerHash))
}

// MarkPatternOutcome records one use of a pattern as a success or failure,
// which shifts its derived confidence.
func (s *Store) MarkPatternOutcome(ctx context.Context, tenantID, patternID string, success bool) error {
	column := "failure_count"
	if success {
		column = "success_count"
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE patterns SET `+column+` = `+column+` + 1, last_used_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		now(), now(), tenantID, patternID)
	if err != nil {
		return fmt.Errorf("failed to mark pattern outcome: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPatterns returns the tenant's patterns, most successful first
func (s *Store) ListPatterns(ctx context.Context, tenantID string, limit int) ([]*models.Pattern, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, trigger_text, trigger_hash, response_text,
		        success_count, failure_count, last_used_at, created_at, updated_at
		 FROM patterns WHERE tenant_id = ?
		 ORDER BY success_count DESC, updated_at DESC LIMIT ?`,
		tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var pats []*models.Pattern
	for rows.Next() {
		pat, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		pats = append(pats, pat)
	}
	return pats, rows.Err()
}

func getPattern(ctx context.Context, q querier, tenantID, patternID string) (*models.Pattern, error) {
	return scanPattern(q.QueryRowContext(ctx,
		`SELECT id, tenant_id, trigger_text, trigger_hash, response_text,
		        success_count, failure_count, last_used_at, created_at, updated_at
		 FROM patterns WHERE tenant_id = ? AND id = ?`,
		tenantID, patternID))
}

func scanPattern(row rowScanner) (*models.Pattern, error) {
	pat := &models.Pattern{}
	var lastUsed sql.NullTime
	err := row.Scan(&pat.ID, &pat.TenantID, &pat.TriggerText, &pat.TriggerHash,
		&pat.ResponseText, &pat.SuccessCount, &pat.FailureCount, &lastUsed,
		&pat.CreatedAt, &pat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pattern: %w", err)
	}
	pat.LastUsedAt = timePtr(lastUsed)
	return pat, nil
}
