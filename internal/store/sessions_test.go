package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestUpsertSession_Overwrite(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.UpsertSession(ctx, "tenant-a", "user-1", "scratch", "draft", json.RawMessage(`{"v":1}`), nil)
	if err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	second, err := st.UpsertSession(ctx, "tenant-a", "user-1", "scratch", "draft", json.RawMessage(`{"v":2}`), nil)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	// Overwrite keeps the original row identity
	if second.ID != first.ID {
		t.Errorf("Expected same session ID after overwrite, got %s and %s", first.ID, second.ID)
	}
	if string(second.Data) != `{"v":2}` {
		t.Errorf("Expected overwritten data, got %s", second.Data)
	}
}

func TestGetSession_Expired(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	if _, err := st.UpsertSession(ctx, "tenant-a", "user-1", "scratch", "stale", json.RawMessage(`{}`), &past); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Expired rows read as absent even before the sweep removes them
	if _, err := st.GetSession(ctx, "tenant-a", "user-1", "scratch", "stale"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for expired session, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	st.UpsertSession(ctx, "tenant-a", "user-1", "scratch", "k", json.RawMessage(`{}`), nil)

	if err := st.DeleteSession(ctx, "tenant-a", "user-1", "scratch", "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := st.DeleteSession(ctx, "tenant-a", "user-1", "scratch", "k"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)
	st.UpsertSession(ctx, "tenant-a", "user-1", "scratch", "old", json.RawMessage(`{}`), &past)
	st.UpsertSession(ctx, "tenant-a", "user-1", "scratch", "live", json.RawMessage(`{}`), &future)
	st.UpsertSession(ctx, "tenant-a", "user-1", "scratch", "forever", json.RawMessage(`{}`), nil)

	count, err := st.DeleteExpiredSessions(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 expired session deleted, got %d", count)
	}

	if _, err := st.GetSession(ctx, "tenant-a", "user-1", "scratch", "live"); err != nil {
		t.Errorf("Live session should survive the sweep: %v", err)
	}
	if _, err := st.GetSession(ctx, "tenant-a", "user-1", "scratch", "forever"); err != nil {
		t.Errorf("Non-expiring session should survive the sweep: %v", err)
	}

	// Idempotent re-run
	count, _ = st.DeleteExpiredSessions(ctx, time.Now().UTC())
	if count != 0 {
		t.Errorf("Expected nothing left to sweep, got %d", count)
	}
}
