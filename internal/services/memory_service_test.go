package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mnemo/internal/database"
	"mnemo/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	return store.New(db)
}

func TestHashContent_Normalization(t *testing.T) {
	base := HashContent("User prefers dark mode")

	variants := []string{
		"user prefers dark mode",
		"  User   prefers\tdark mode  ",
		"USER PREFERS DARK MODE",
	}
	for _, v := range variants {
		if HashContent(v) != base {
			t.Errorf("Expected %q to hash like the base form", v)
		}
	}

	if HashContent("user prefers light mode") == base {
		t.Error("Different content must hash differently")
	}
}

func TestRecord_DuplicateReturnsSameMemory(t *testing.T) {
	svc := NewMemoryService(newTestStore(t), DefaultCleanupConfig(), nil)
	ctx := context.Background()

	first, err := svc.Record(ctx, "tenant-a", "user-1", "User prefers dark mode", "", nil)
	if err != nil {
		t.Fatalf("First record failed: %v", err)
	}

	// Reworded whitespace/case still lands on the same memory
	second, err := svc.Record(ctx, "tenant-a", "user-1", "  user PREFERS dark   mode ", "", nil)
	if err != nil {
		t.Fatalf("Second record failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected duplicate to return the same memory, got %s and %s", first.ID, second.ID)
	}
}

func TestRecord_EmptyContent(t *testing.T) {
	svc := NewMemoryService(newTestStore(t), DefaultCleanupConfig(), nil)

	if _, err := svc.Record(context.Background(), "tenant-a", "user-1", "   ", "", nil); err == nil {
		t.Error("Expected error for empty content")
	}
}

func TestCorrect_KeepsSingleCurrentRevision(t *testing.T) {
	st := newTestStore(t)
	svc := NewMemoryService(st, DefaultCleanupConfig(), nil)
	ctx := context.Background()

	mem, _ := svc.Record(ctx, "tenant-a", "user-1", "lives in Paris", "", nil)

	if _, err := svc.Correct(ctx, "tenant-a", mem.ID, "lives in Lyon", "moved", "user-1"); err != nil {
		t.Fatalf("First correction failed: %v", err)
	}
	if _, err := svc.Correct(ctx, "tenant-a", mem.ID, "lives in Nice", "moved again", "user-1"); err != nil {
		t.Fatalf("Second correction failed: %v", err)
	}

	revs, err := svc.History(ctx, "tenant-a", mem.ID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(revs) != 3 {
		t.Fatalf("Expected 3 revisions, got %d", len(revs))
	}

	currentCount := 0
	for _, rev := range revs {
		if rev.State == "current" {
			currentCount++
		}
	}
	if currentCount != 1 {
		t.Errorf("Expected exactly one current revision, got %d", currentCount)
	}
	if revs[len(revs)-1].Content != "lives in Nice" {
		t.Errorf("Latest revision should carry the newest content, got %q", revs[len(revs)-1].Content)
	}
}

func TestCleanup_ExpiresPastValidUntil(t *testing.T) {
	st := newTestStore(t)
	svc := NewMemoryService(st, DefaultCleanupConfig(), nil)
	ctx := context.Background()

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	mem, _ := svc.Record(ctx, "tenant-a", "user-1", "trial ends tomorrow", "", &yesterday)

	result, err := svc.Cleanup(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if result.Invalidated != 1 {
		t.Errorf("Expected 1 invalidated, got %d", result.Invalidated)
	}

	reloaded, _ := svc.Get(ctx, "tenant-a", mem.ID)
	if !reloaded.IsInvalidated {
		t.Error("Expected memory invalidated after its valid_until passed")
	}
}

func TestCleanup_Idempotent(t *testing.T) {
	st := newTestStore(t)
	svc := NewMemoryService(st, DefaultCleanupConfig(), nil)
	ctx := context.Background()

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	svc.Record(ctx, "tenant-a", "user-1", "expiring fact", "", &yesterday)
	svc.Record(ctx, "tenant-a", "user-1", "durable fact", "", nil)

	first, err := svc.Cleanup(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("First cleanup failed: %v", err)
	}
	if first.Invalidated != 1 {
		t.Fatalf("Expected 1 invalidated on first pass, got %d", first.Invalidated)
	}

	// Immediate re-run changes nothing
	second, err := svc.Cleanup(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Second cleanup failed: %v", err)
	}
	if second.Invalidated != 0 || second.Decayed != 0 || second.Deleted != 0 {
		t.Errorf("Expected no-op second pass, got %+v", second)
	}
}

func TestCleanup_DeletesLongInvalidated(t *testing.T) {
	st := newTestStore(t)
	svc := NewMemoryService(st, DefaultCleanupConfig(), nil)
	ctx := context.Background()

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	mem, _ := svc.Record(ctx, "tenant-a", "user-1", "ancient fact", "", &yesterday)

	if _, err := svc.Cleanup(ctx, "tenant-a"); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	// Backdate the invalidation past the 90-day retention window
	if _, err := st.DB().ExecContext(ctx,
		`UPDATE memories SET invalidated_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-91*24*time.Hour), mem.ID); err != nil {
		t.Fatalf("Failed to backdate invalidation: %v", err)
	}

	result, err := svc.Cleanup(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if result.Deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", result.Deleted)
	}

	if _, err := svc.Get(ctx, "tenant-a", mem.ID); err != store.ErrNotFound {
		t.Errorf("Expected memory gone, got %v", err)
	}
}

func TestCleanup_DecayNeverIncreasesConfidence(t *testing.T) {
	st := newTestStore(t)
	svc := NewMemoryService(st, DefaultCleanupConfig(), nil)
	ctx := context.Background()

	mem, _ := svc.Record(ctx, "tenant-a", "user-1", "rarely used fact", "", nil)

	// Make the memory count as unused for over 30 days
	if _, err := st.DB().ExecContext(ctx,
		`UPDATE memories SET created_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-40*24*time.Hour), mem.ID); err != nil {
		t.Fatalf("Failed to backdate memory: %v", err)
	}

	result, err := svc.Cleanup(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if result.Decayed != 1 {
		t.Fatalf("Expected 1 decayed, got %d", result.Decayed)
	}

	reloaded, _ := svc.Get(ctx, "tenant-a", mem.ID)
	if reloaded.Confidence >= 1.0 {
		t.Errorf("Expected confidence below 1.0 after decay, got %f", reloaded.Confidence)
	}
	if reloaded.Confidence < 0.89 || reloaded.Confidence > 0.91 {
		t.Errorf("Expected confidence ~0.9, got %f", reloaded.Confidence)
	}
	if reloaded.Confidence < 0 {
		t.Error("Confidence must never go negative")
	}
}

func TestTouch_ProtectsFromDecay(t *testing.T) {
	st := newTestStore(t)
	svc := NewMemoryService(st, DefaultCleanupConfig(), nil)
	ctx := context.Background()

	mem, _ := svc.Record(ctx, "tenant-a", "user-1", "frequently used fact", "", nil)

	// Old row, but touched just now
	if _, err := st.DB().ExecContext(ctx,
		`UPDATE memories SET created_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-40*24*time.Hour), mem.ID); err != nil {
		t.Fatalf("Failed to backdate memory: %v", err)
	}
	if err := svc.Touch(ctx, "tenant-a", mem.ID); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	result, err := svc.Cleanup(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if result.Decayed != 0 {
		t.Errorf("Expected touched memory to escape decay, got %d decayed", result.Decayed)
	}

	reloaded, _ := svc.Get(ctx, "tenant-a", mem.ID)
	if reloaded.Confidence != 1.0 {
		t.Errorf("Expected confidence unchanged at 1.0, got %f", reloaded.Confidence)
	}
}
