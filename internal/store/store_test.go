package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"mnemo/internal/database"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	return New(db)
}

func TestEncodeDecodeVector(t *testing.T) {
	encoded, err := encodeVector([]float32{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatalf("Failed to encode vector: %v", err)
	}

	decoded, err := decodeVector(nullString(encoded))
	if err != nil {
		t.Fatalf("Failed to decode vector: %v", err)
	}
	if len(decoded) != 3 {
		t.Errorf("Expected 3 elements, got %d", len(decoded))
	}
	if decoded[1] != 0.2 {
		t.Errorf("Expected 0.2 at index 1, got %v", decoded[1])
	}
}

func TestDecodeVector_Empty(t *testing.T) {
	decoded, err := decodeVector(nullString(""))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if decoded != nil {
		t.Errorf("Expected nil vector for empty column, got %v", decoded)
	}
}

func TestTenantIsolation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, err := st.CreateConversation(ctx, "tenant-a", "user-1", "Hello")
	if err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}

	// Another tenant must not see the row
	if _, err := st.GetConversation(ctx, "tenant-b", conv.ID); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for wrong tenant, got %v", err)
	}

	// The owner still can
	if _, err := st.GetConversation(ctx, "tenant-a", conv.ID); err != nil {
		t.Errorf("Owner read failed: %v", err)
	}
}
