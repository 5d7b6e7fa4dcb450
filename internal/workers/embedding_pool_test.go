package workers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mnemo/internal/database"
	"mnemo/internal/embedding"
	"mnemo/internal/models"
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

func appendTestMessage(t *testing.T, st *store.Store, content string) *models.Message {
	t.Helper()
	ctx := context.Background()

	conv, err := st.CreateConversation(ctx, "tenant-a", "user-1", "Test")
	if err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}
	msg, err := st.AppendMessage(ctx, "tenant-a", conv.ID, models.RoleUser, content, "", nil)
	if err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}
	return msg
}

// waitForJob polls until the job leaves the live statuses or the deadline hits
func waitForJob(t *testing.T, st *store.Store, jobID int64, want string, timeout time.Duration) *models.EmbeddingJob {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		jobs, err := st.ListJobs(ctx, "tenant-a", want, 10)
		if err != nil {
			t.Fatalf("Failed to list jobs: %v", err)
		}
		for _, job := range jobs {
			if job.ID == jobID {
				return job
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("Job %d never reached status %s", jobID, want)
	return nil
}

func pendingJob(t *testing.T, st *store.Store) *models.EmbeddingJob {
	t.Helper()
	jobs, err := st.ListJobs(context.Background(), "tenant-a", models.JobStatusPending, 10)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("Expected 1 pending job, got %d (err %v)", len(jobs), err)
	}
	return jobs[0]
}

func TestPool_ProcessesMessageJob(t *testing.T) {
	st := newTestStore(t)
	provider := embedding.NewMockProvider(8)
	msg := appendTestMessage(t, st, "embed this text")
	job := pendingJob(t, st)

	pool := NewPool(st, provider, nil, PoolConfig{Workers: 2, PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Stop()
	}()

	done := waitForJob(t, st, job.ID, models.JobStatusCompleted, 5*time.Second)
	if done.LockedBy != "" {
		t.Errorf("Expected lock cleared on completion, got %q", done.LockedBy)
	}

	// The embedding landed on the message in the same transaction
	reloaded, err := st.GetMessage(context.Background(), "tenant-a", msg.ID)
	if err != nil {
		t.Fatalf("Failed to reload message: %v", err)
	}
	if reloaded.EmbeddingStatus != models.EmbeddingStatusCompleted {
		t.Errorf("Expected completed embedding status, got %s", reloaded.EmbeddingStatus)
	}
	if len(reloaded.Embedding) != 8 {
		t.Errorf("Expected 8-dim vector, got %d", len(reloaded.Embedding))
	}
	if reloaded.EmbeddingModel != "mock-embedding" {
		t.Errorf("Expected mock model recorded, got %q", reloaded.EmbeddingModel)
	}
}

func TestPool_TransientFailureRetries(t *testing.T) {
	st := newTestStore(t)
	provider := embedding.NewMockProvider(8)
	provider.FailNext(&embedding.Error{Category: embedding.ErrorCategoryTransient, Message: "rate limited"})

	msg := appendTestMessage(t, st, "retry me")
	job := pendingJob(t, st)

	pool := NewPool(st, provider, nil, PoolConfig{Workers: 1, PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Stop()
	}()

	// First attempt fails transiently, the retry succeeds
	done := waitForJob(t, st, job.ID, models.JobStatusCompleted, 5*time.Second)
	if done.Retries != 1 {
		t.Errorf("Expected 1 recorded retry, got %d", done.Retries)
	}
	if provider.Calls() < 2 {
		t.Errorf("Expected at least 2 provider calls, got %d", provider.Calls())
	}

	reloaded, _ := st.GetMessage(context.Background(), "tenant-a", msg.ID)
	if reloaded.EmbeddingStatus != models.EmbeddingStatusCompleted {
		t.Errorf("Expected completed after retry, got %s", reloaded.EmbeddingStatus)
	}
}

func TestPool_PermanentFailureDeadLetters(t *testing.T) {
	st := newTestStore(t)
	provider := embedding.NewMockProvider(8)
	provider.FailNext(&embedding.Error{Category: embedding.ErrorCategoryPermanent, Message: "invalid input"})

	msg := appendTestMessage(t, st, "doomed text")
	job := pendingJob(t, st)

	pool := NewPool(st, provider, nil, PoolConfig{Workers: 1, PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Stop()
	}()

	// One permanent error goes straight to the dead letter queue
	done := waitForJob(t, st, job.ID, models.JobStatusDead, 5*time.Second)
	if done.ErrorMessage != "invalid input" {
		t.Errorf("Expected last error recorded, got %q", done.ErrorMessage)
	}

	reloaded, _ := st.GetMessage(context.Background(), "tenant-a", msg.ID)
	if reloaded.EmbeddingStatus != models.EmbeddingStatusFailed {
		t.Errorf("Expected failed embedding status on target, got %s", reloaded.EmbeddingStatus)
	}

	// Exactly one attempt was made
	if provider.Calls() != 1 {
		t.Errorf("Expected exactly 1 provider call, got %d", provider.Calls())
	}
}

func TestPool_MissingTargetDeadLetters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	provider := embedding.NewMockProvider(8)

	msg := appendTestMessage(t, st, "orphan")
	job := pendingJob(t, st)

	// Delete the target row out from under the job
	if _, err := st.DB().ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, msg.ID); err != nil {
		t.Fatalf("Failed to delete message: %v", err)
	}

	pool := NewPool(st, provider, nil, PoolConfig{Workers: 1, PollInterval: 10 * time.Millisecond})
	poolCtx, cancel := context.WithCancel(context.Background())
	pool.Start(poolCtx)
	defer func() {
		cancel()
		pool.Stop()
	}()

	waitForJob(t, st, job.ID, models.JobStatusDead, 5*time.Second)
	if provider.Calls() != 0 {
		t.Errorf("Provider must not be called for a missing target, got %d calls", provider.Calls())
	}
}
