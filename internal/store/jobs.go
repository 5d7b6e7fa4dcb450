package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mnemo/internal/models"
)

// claimBatchSize bounds how many pending candidates one claim attempt scans
const claimBatchSize = 5

// targetUpdateQuery builds the embedding write-back statement for a job
// target. The table name is interpolated, so it must be one of the known
// target tables.
func targetUpdateQuery(targetTable string) (string, error) {
	switch targetTable {
	case models.TargetMessages, models.TargetMemories:
		return `UPDATE ` + targetTable + ` SET embedding = ?, embedding_model = ?, embedding_dim = ?, embedding_status = ? WHERE id = ?`, nil
	default:
		return "", fmt.Errorf("unknown job target table %q", targetTable)
	}
}

// enqueueJob inserts a pending embedding job for the target unless a live
// (pending or processing) job already exists. A finished job row for the same
// target is recycled back to pending with a fresh retry budget. Runs inside
// the caller's transaction so enqueue is atomic with the target write.
func enqueueJob(ctx context.Context, q querier, tenantID, targetTable, targetID string) error {
	var id int64
	var status string
	err := q.QueryRowContext(ctx,
		`SELECT id, status FROM embedding_jobs WHERE target_table = ? AND target_id = ?`,
		targetTable, targetID).Scan(&id, &status)

	switch {
	case err == sql.ErrNoRows:
		_, err = q.ExecContext(ctx,
			`INSERT INTO embedding_jobs (tenant_id, target_table, target_id, status, error_message, created_at, updated_at)
			 VALUES (?, ?, ?, ?, '', ?, ?)`,
			tenantID, targetTable, targetID, models.JobStatusPending, now(), now())
		if err != nil {
			if isUniqueViolation(err) {
				// Lost a race with a concurrent enqueue; the live job wins.
				return nil
			}
			return fmt.Errorf("failed to enqueue embedding job: %w", err)
		}
		return nil

	case err != nil:
		return fmt.Errorf("failed to check embedding job: %w", err)

	case status == models.JobStatusPending || status == models.JobStatusProcessing:
		// Live job already covers this target
		return nil

	default:
		_, err = q.ExecContext(ctx,
			`UPDATE embedding_jobs
			 SET status = ?, retries = 0, error_message = '', locked_at = NULL, locked_by = '', created_at = ?, updated_at = ?
			 WHERE id = ?`,
			models.JobStatusPending, now(), now(), id)
		if err != nil {
			return fmt.Errorf("failed to re-enqueue embedding job: %w", err)
		}
		return nil
	}
}

// EnqueueEmbeddingJob queues (or re-queues) embedding work for a target row
func (s *Store) EnqueueEmbeddingJob(ctx context.Context, tenantID, targetTable, targetID string) error {
	return enqueueJob(ctx, s.db, tenantID, targetTable, targetID)
}

// ClaimNextJob atomically hands the oldest pending job to one worker, moving
// it to processing with the worker's lock stamp. Returns (nil, nil) when the
// queue is empty. The claim is a compare-and-set UPDATE guarded on the
// pending status, so under concurrent claimers exactly one wins each job
// regardless of backend locking features.
func (s *Store) ClaimNextJob(ctx context.Context, workerID string) (*models.EmbeddingJob, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM embedding_jobs WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		models.JobStatusPending, claimBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}
	var candidates []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending jobs: %w", err)
	}

	for _, id := range candidates {
		res, err := s.db.ExecContext(ctx,
			`UPDATE embedding_jobs SET status = ?, locked_at = ?, locked_by = ?, updated_at = ?
			 WHERE id = ? AND status = ?`,
			models.JobStatusProcessing, now(), workerID, now(), id, models.JobStatusPending)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			// Another worker got there first; try the next candidate
			continue
		}
		return s.GetJob(ctx, id)
	}

	return nil, nil
}

// GetJob fetches one job by ID
func (s *Store) GetJob(ctx context.Context, jobID int64) (*models.EmbeddingJob, error) {
	return scanJob(s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, target_table, target_id, status, retries, max_retries,
		        locked_at, locked_by, error_message, created_at, updated_at
		 FROM embedding_jobs WHERE id = ?`, jobID))
}

// CompleteJob marks a claimed job completed and writes the embedding back to
// the target row in the same transaction, so the target can never be seen as
// completed without its vector or the other way around.
func (s *Store) CompleteJob(ctx context.Context, jobID int64, workerID string, vector []float32, modelID string, dim int) error {
	encoded, err := encodeVector(vector)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var targetTable, targetID string
		err := tx.QueryRowContext(ctx,
			`SELECT target_table, target_id FROM embedding_jobs WHERE id = ?`,
			jobID).Scan(&targetTable, &targetID)
		if err == sql.ErrNoRows {
			return ErrStaleClaim
		}
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE embedding_jobs SET status = ?, locked_at = NULL, locked_by = '', updated_at = ?
			 WHERE id = ? AND status = ? AND locked_by = ?`,
			models.JobStatusCompleted, now(), jobID, models.JobStatusProcessing, workerID)
		if err != nil {
			return fmt.Errorf("failed to complete job: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ErrStaleClaim
		}

		update, err := targetUpdateQuery(targetTable)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, update,
			encoded, modelID, dim, models.EmbeddingStatusCompleted, targetID)
		if err != nil {
			return fmt.Errorf("failed to write embedding: %w", err)
		}
		return nil
	})
}

// FailJob records a failed attempt on a claimed job. Retryable failures go
// back to pending with the retry counter bumped; exhausted or permanent
// failures dead-letter the job and mark the target's embedding status failed.
func (s *Store) FailJob(ctx context.Context, jobID int64, workerID, errMsg string, permanent bool) error {
	if len(errMsg) > 512 {
		errMsg = errMsg[:512]
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var status, lockedBy, targetTable, targetID string
		var retries, maxRetries int
		err := tx.QueryRowContext(ctx,
			`SELECT status, locked_by, retries, max_retries, target_table, target_id
			 FROM embedding_jobs WHERE id = ?`, jobID).
			Scan(&status, &lockedBy, &retries, &maxRetries, &targetTable, &targetID)
		if err == sql.ErrNoRows {
			return ErrStaleClaim
		}
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		if status != models.JobStatusProcessing || lockedBy != workerID {
			return ErrStaleClaim
		}

		next := models.JobStatusPending
		if permanent || retries+1 >= maxRetries {
			next = models.JobStatusDead
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE embedding_jobs
			 SET status = ?, retries = retries + 1, error_message = ?, locked_at = NULL, locked_by = '', updated_at = ?
			 WHERE id = ? AND status = ? AND locked_by = ?`,
			next, errMsg, now(), jobID, models.JobStatusProcessing, workerID)
		if err != nil {
			return fmt.Errorf("failed to fail job: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ErrStaleClaim
		}

		if next == models.JobStatusDead {
			switch targetTable {
			case models.TargetMessages, models.TargetMemories:
			default:
				return fmt.Errorf("unknown job target table %q", targetTable)
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE `+targetTable+` SET embedding_status = ? WHERE id = ?`,
				models.EmbeddingStatusFailed, targetID)
			if err != nil {
				return fmt.Errorf("failed to mark target failed: %w", err)
			}
		}
		return nil
	})
}

// ResetStaleJobs returns processing jobs whose lock is older than the cutoff
// back to pending so another worker can claim them. This is the only recovery
// path for a worker that died mid-job.
func (s *Store) ResetStaleJobs(ctx context.Context, lockedBefore time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE embedding_jobs SET status = ?, locked_at = NULL, locked_by = '', updated_at = ?
		 WHERE status = ? AND locked_at IS NOT NULL AND locked_at < ?`,
		models.JobStatusPending, now(), models.JobStatusProcessing, lockedBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RequeueDeadJob puts a dead job back in the queue with a fresh retry budget.
// Manual intervention path; dead jobs are never retried automatically.
func (s *Store) RequeueDeadJob(ctx context.Context, tenantID string, jobID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE embedding_jobs SET status = ?, retries = 0, error_message = '', updated_at = ?
		 WHERE tenant_id = ? AND id = ? AND status = ?`,
		models.JobStatusPending, now(), tenantID, jobID, models.JobStatusDead)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListJobs returns a tenant's jobs filtered by status (empty = all), newest first
func (s *Store) ListJobs(ctx context.Context, tenantID, status string, limit int) ([]*models.EmbeddingJob, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, tenant_id, target_table, target_id, status, retries, max_retries,
	                 locked_at, locked_by, error_message, created_at, updated_at
	          FROM embedding_jobs WHERE tenant_id = ?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.EmbeddingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// QueueStats aggregates job counts by target table and status, plus the age
// of the oldest pending job. Pass an empty tenantID for a cross-tenant view.
func (s *Store) QueueStats(ctx context.Context, tenantID string) (*models.QueueStats, error) {
	stats := &models.QueueStats{
		TenantID:    tenantID,
		Counts:      make(map[string]map[string]int),
		CollectedAt: now(),
	}

	query := `SELECT target_table, status, COUNT(*) FROM embedding_jobs`
	args := []any{}
	if tenantID != "" {
		query += ` WHERE tenant_id = ?`
		args = append(args, tenantID)
	}
	query += ` GROUP BY target_table, status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table, status string
		var count int
		if err := rows.Scan(&table, &status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job counts: %w", err)
		}
		if stats.Counts[table] == nil {
			stats.Counts[table] = make(map[string]int)
		}
		stats.Counts[table][status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job counts: %w", err)
	}

	oldestQuery := `SELECT MIN(created_at) FROM embedding_jobs WHERE status = ?`
	oldestArgs := []any{models.JobStatusPending}
	if tenantID != "" {
		oldestQuery += ` AND tenant_id = ?`
		oldestArgs = append(oldestArgs, tenantID)
	}
	var oldest sql.NullTime
	if err := s.db.QueryRowContext(ctx, oldestQuery, oldestArgs...).Scan(&oldest); err != nil {
		return nil, fmt.Errorf("failed to find oldest pending job: %w", err)
	}
	if oldest.Valid {
		age := now().Sub(oldest.Time.UTC()).Seconds()
		if age < 0 {
			age = 0
		}
		stats.OldestPendingAge = &age
	}

	return stats, nil
}

func scanJob(row rowScanner) (*models.EmbeddingJob, error) {
	job := &models.EmbeddingJob{}
	var lockedAt sql.NullTime
	err := row.Scan(&job.ID, &job.TenantID, &job.TargetTable, &job.TargetID, &job.Status,
		&job.Retries, &job.MaxRetries, &lockedAt, &job.LockedBy, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	job.LockedAt = timePtr(lockedAt)
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return job, nil
}
