package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"mnemo/internal/models"
	"mnemo/internal/store"
)

func TestAuditExecute_AtMostOnce(t *testing.T) {
	svc := NewAuditService(newTestStore(t))
	ctx := context.Background()

	calls := 0
	action := func(ctx context.Context) (json.RawMessage, error) {
		calls++
		return json.RawMessage(`{"sent":true}`), nil
	}

	first, err := svc.Execute(ctx, "tenant-a", "user-1", "send_email", "email", "e-1",
		json.RawMessage(`{}`), "key-1", action)
	if err != nil {
		t.Fatalf("First execute failed: %v", err)
	}
	if first.Status != models.AuditStatusCompleted {
		t.Errorf("Expected completed entry, got %s", first.Status)
	}
	if calls != 1 {
		t.Fatalf("Expected 1 action call, got %d", calls)
	}

	// Retry with the same key returns the stored outcome without re-executing
	second, err := svc.Execute(ctx, "tenant-a", "user-1", "send_email", "email", "e-1",
		json.RawMessage(`{}`), "key-1", action)
	if err != nil {
		t.Fatalf("Second execute failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Action must not run again, got %d calls", calls)
	}
	if second.ID != first.ID {
		t.Errorf("Expected same entry, got %s and %s", first.ID, second.ID)
	}
	if string(second.Result) != `{"sent":true}` {
		t.Errorf("Expected original result, got %s", second.Result)
	}
}

func TestAuditExecute_FailureRecorded(t *testing.T) {
	svc := NewAuditService(newTestStore(t))
	ctx := context.Background()

	boom := errors.New("smtp unreachable")
	entry, err := svc.Execute(ctx, "tenant-a", "user-1", "send_email", "email", "e-2",
		json.RawMessage(`{}`), "key-2", func(ctx context.Context) (json.RawMessage, error) {
			return nil, boom
		})
	if err != boom {
		t.Fatalf("Expected the action error back, got %v", err)
	}

	reloaded, _ := svc.Get(ctx, "tenant-a", entry.ID)
	if reloaded.Status != models.AuditStatusFailed {
		t.Errorf("Expected failed status, got %s", reloaded.Status)
	}
	if reloaded.ErrorMessage != "smtp unreachable" {
		t.Errorf("Expected error message recorded, got %q", reloaded.ErrorMessage)
	}
}

func TestAuditRecord_PendingDuplicate(t *testing.T) {
	svc := NewAuditService(newTestStore(t))
	ctx := context.Background()

	if _, _, err := svc.Record(ctx, "tenant-a", "user-1", "charge", "invoice", "i-1",
		json.RawMessage(`{}`), "key-p"); err != nil {
		t.Fatalf("First record failed: %v", err)
	}

	// The original is still pending: the caller must back off, not re-execute
	entry, isNew, err := svc.Record(ctx, "tenant-a", "user-1", "charge", "invoice", "i-1",
		json.RawMessage(`{}`), "key-p")
	if !errors.Is(err, store.ErrActionInFlight) {
		t.Fatalf("Expected ErrActionInFlight, got %v", err)
	}
	if isNew {
		t.Error("Duplicate must not be reported as new")
	}
	if entry == nil || entry.Status != models.AuditStatusPending {
		t.Errorf("Expected the pending original back, got %+v", entry)
	}
}

func TestAuditRecord_RequiresKey(t *testing.T) {
	svc := NewAuditService(newTestStore(t))

	if _, _, err := svc.Record(context.Background(), "tenant-a", "user-1", "charge", "invoice", "i-1",
		nil, ""); err == nil {
		t.Error("Expected error for missing idempotency key")
	}
}

func TestAuditExecute_ConcurrentSameKey(t *testing.T) {
	svc := NewAuditService(newTestStore(t))
	ctx := context.Background()

	const attempts = 5
	results := make(chan error, attempts)
	calls := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		go func() {
			_, err := svc.Execute(ctx, "tenant-a", "user-1", "charge", "invoice", "i-9",
				json.RawMessage(`{}`), "key-race", func(ctx context.Context) (json.RawMessage, error) {
					calls <- struct{}{}
					return json.RawMessage(`{"ok":true}`), nil
				})
			results <- err
		}()
	}

	inFlight := 0
	for i := 0; i < attempts; i++ {
		err := <-results
		if errors.Is(err, store.ErrActionInFlight) {
			inFlight++
		} else if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	close(calls)

	executed := len(calls)
	if executed != 1 {
		t.Errorf("Expected the action to run exactly once, ran %d times", executed)
	}
	// Losers either saw the in-flight error or the finished entry
	if executed+inFlight > attempts {
		t.Errorf("Inconsistent outcomes: %d executed, %d in-flight of %d", executed, inFlight, attempts)
	}
}
