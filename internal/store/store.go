package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mnemo/internal/database"
)

// Store provides tenant-scoped, transactional access to all persistent
// entities. Every method takes the tenant explicitly; there is no ambient
// "current tenant" state anywhere in the layer.
type Store struct {
	db *database.DB
}

// New creates a Store on top of an initialized database connection
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for health checks
func (s *Store) DB() *database.DB {
	return s.db
}

// querier is satisfied by both *sql.DB and *sql.Tx so enqueue and other
// helpers can run inside an outer transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// now returns the current time in UTC truncated to the schema's DATETIME
// resolution, so round-tripped values compare equal.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// encodeVector serializes an embedding vector for the embedding TEXT column
func encodeVector(v []float32) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode embedding vector: %w", err)
	}
	return string(b), nil
}

// decodeVector parses an embedding column value; empty/NULL means no vector
func decodeVector(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return nil, fmt.Errorf("failed to decode embedding vector: %w", err)
	}
	return v, nil
}

// timePtr converts a nullable column into *time.Time
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
