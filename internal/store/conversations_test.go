package store

import (
	"context"
	"testing"

	"mnemo/internal/models"
)

func TestAppendMessage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, err := st.CreateConversation(ctx, "tenant-a", "user-1", "Test")
	if err != nil {
		t.Fatalf("Failed to create conversation: %v", err)
	}

	msg, err := st.AppendMessage(ctx, "tenant-a", conv.ID, models.RoleUser, "hello there", "", nil)
	if err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}
	if msg.EmbeddingStatus != models.EmbeddingStatusPending {
		t.Errorf("Expected pending embedding status, got %s", msg.EmbeddingStatus)
	}

	// Counter is maintained transactionally with the insert
	updated, err := st.GetConversation(ctx, "tenant-a", conv.ID)
	if err != nil {
		t.Fatalf("Failed to reload conversation: %v", err)
	}
	if updated.MessageCount != 1 {
		t.Errorf("Expected message_count 1, got %d", updated.MessageCount)
	}

	// The insert enqueued exactly one embedding job for the message
	jobs, err := st.ListJobs(ctx, "tenant-a", models.JobStatusPending, 10)
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 pending job, got %d", len(jobs))
	}
	if jobs[0].TargetTable != models.TargetMessages || jobs[0].TargetID != msg.ID {
		t.Errorf("Job targets %s/%s, expected messages/%s", jobs[0].TargetTable, jobs[0].TargetID, msg.ID)
	}
}

func TestAppendMessage_MissingConversation(t *testing.T) {
	st := newTestStore(t)

	_, err := st.AppendMessage(context.Background(), "tenant-a", "no-such-conv", models.RoleUser, "hi", "", nil)
	if err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAppendMessage_ToolCalls(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, _ := st.CreateConversation(ctx, "tenant-a", "user-1", "Tools")
	calls := []models.ToolCall{{CallID: "call-1", Name: "search", Arguments: `{"q":"weather"}`, Result: "sunny"}}

	msg, err := st.AppendMessage(ctx, "tenant-a", conv.ID, models.RoleAssistant, "done", "", calls)
	if err != nil {
		t.Fatalf("Failed to append message: %v", err)
	}

	loaded, err := st.GetMessage(ctx, "tenant-a", msg.ID)
	if err != nil {
		t.Fatalf("Failed to load message: %v", err)
	}
	if len(loaded.ToolCalls) != 1 || loaded.ToolCalls[0].CallID != "call-1" {
		t.Errorf("Tool calls did not round-trip: %+v", loaded.ToolCalls)
	}
}

func TestListMessages_Order(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, _ := st.CreateConversation(ctx, "tenant-a", "user-1", "Order")
	for _, content := range []string{"first", "second", "third"} {
		if _, err := st.AppendMessage(ctx, "tenant-a", conv.ID, models.RoleUser, content, "", nil); err != nil {
			t.Fatalf("Failed to append %q: %v", content, err)
		}
	}

	msgs, err := st.ListMessages(ctx, "tenant-a", conv.ID, 0)
	if err != nil {
		t.Fatalf("Failed to list messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[2].Content != "third" {
		t.Errorf("Messages out of order: %q, %q, %q", msgs[0].Content, msgs[1].Content, msgs[2].Content)
	}
}

func TestDeleteConversation_Cascade(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, _ := st.CreateConversation(ctx, "tenant-a", "user-1", "Doomed")
	msg, _ := st.AppendMessage(ctx, "tenant-a", conv.ID, models.RoleUser, "bye", "", nil)

	if err := st.DeleteConversation(ctx, "tenant-a", conv.ID); err != nil {
		t.Fatalf("Failed to delete conversation: %v", err)
	}

	if _, err := st.GetMessage(ctx, "tenant-a", msg.ID); err != ErrNotFound {
		t.Errorf("Expected message gone after cascade, got %v", err)
	}

	// The queued embedding job must not outlive its target
	jobs, err := st.ListJobs(ctx, "tenant-a", "", 10)
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("Expected no jobs after delete, got %d", len(jobs))
	}
}
