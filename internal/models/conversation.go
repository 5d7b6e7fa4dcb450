package models

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Embedding statuses for messages and memories
const (
	EmbeddingStatusPending    = "pending"
	EmbeddingStatusProcessing = "processing"
	EmbeddingStatusCompleted  = "completed"
	EmbeddingStatusFailed     = "failed"
)

// Conversation owns an ordered sequence of messages for one tenant/user
type Conversation struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"` // Maintained transactionally, never recomputed by scanning
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single turn in a conversation. Embedding fields are filled in
// asynchronously by the worker pool; messages are never deleted individually,
// only via conversation cascade.
type Message struct {
	ID              string     `json:"id"`
	ConversationID  string     `json:"conversation_id"`
	TenantID        string     `json:"tenant_id"`
	Role            string     `json:"role"`
	Content         string     `json:"content"`
	ThinkingSummary string     `json:"thinking_summary,omitempty"` // Sanitized summary only; raw reasoning is never persisted
	ToolCalls       []ToolCall `json:"tool_calls,omitempty"`
	Embedding       []float32  `json:"-"`
	EmbeddingModel  string     `json:"embedding_model,omitempty"`
	EmbeddingDim    int        `json:"embedding_dim,omitempty"`
	EmbeddingStatus string     `json:"embedding_status"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ToolCall records one tool invocation attached to a message
type ToolCall struct {
	CallID    string `json:"call_id"` // Correlation ID linking the call to its result
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result,omitempty"`
}
