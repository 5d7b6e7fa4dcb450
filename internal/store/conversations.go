package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"mnemo/internal/models"
)

// CreateConversation inserts an empty conversation for the tenant/user
func (s *Store) CreateConversation(ctx context.Context, tenantID, userID, title string) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		UserID:    userID,
		Title:     title,
		CreatedAt: now(),
		UpdatedAt: now(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, tenant_id, user_id, title, message_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		conv.ID, conv.TenantID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// GetConversation fetches a conversation owned by the tenant
func (s *Store) GetConversation(ctx context.Context, tenantID, conversationID string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, user_id, title, message_count, created_at, updated_at
		 FROM conversations WHERE tenant_id = ? AND id = ?`,
		tenantID, conversationID).
		Scan(&conv.ID, &conv.TenantID, &conv.UserID, &conv.Title, &conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the tenant/user's conversations, newest first
func (s *Store) ListConversations(ctx context.Context, tenantID, userID string, limit int) ([]*models.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, user_id, title, message_count, created_at, updated_at
		 FROM conversations WHERE tenant_id = ? AND user_id = ?
		 ORDER BY updated_at DESC LIMIT ?`,
		tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		if err := rows.Scan(&conv.ID, &conv.TenantID, &conv.UserID, &conv.Title, &conv.MessageCount, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation, its messages (via cascade) and
// any embedding jobs still queued for those messages.
func (s *Store) DeleteConversation(ctx context.Context, tenantID, conversationID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM embedding_jobs WHERE target_table = ? AND target_id IN
			 (SELECT id FROM messages WHERE conversation_id = ? AND tenant_id = ?)`,
			models.TargetMessages, conversationID, tenantID)
		if err != nil {
			return fmt.Errorf("failed to delete embedding jobs: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM conversations WHERE tenant_id = ? AND id = ?`,
			tenantID, conversationID)
		if err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AppendMessage adds a message to a conversation. The message insert, the
// conversation's message_count bump and the embedding-job enqueue happen in
// one transaction so the counter never drifts and the write path never blocks
// on embedding generation.
func (s *Store) AppendMessage(ctx context.Context, tenantID, conversationID, role, content, thinkingSummary string, toolCalls []models.ToolCall) (*models.Message, error) {
	msg := &models.Message{
		ID:              uuid.New().String(),
		ConversationID:  conversationID,
		TenantID:        tenantID,
		Role:            role,
		Content:         content,
		ThinkingSummary: thinkingSummary,
		ToolCalls:       toolCalls,
		EmbeddingStatus: models.EmbeddingStatusPending,
		CreatedAt:       now(),
	}

	toolCallsJSON := "[]"
	if len(toolCalls) > 0 {
		b, err := json.Marshal(toolCalls)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tool calls: %w", err)
		}
		toolCallsJSON = string(b)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var ownerID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM conversations WHERE tenant_id = ? AND id = ?`,
			tenantID, conversationID).Scan(&ownerID)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check conversation: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, tenant_id, role, content, thinking_summary, tool_calls, embedding_status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.ConversationID, msg.TenantID, msg.Role, msg.Content, msg.ThinkingSummary, toolCallsJSON, msg.EmbeddingStatus, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET message_count = message_count + 1, updated_at = ? WHERE id = ?`,
			now(), conversationID)
		if err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}

		if content != "" {
			if err := enqueueJob(ctx, tx, tenantID, models.TargetMessages, msg.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return msg, nil
}

// GetMessage fetches a single message owned by the tenant
func (s *Store) GetMessage(ctx context.Context, tenantID, messageID string) (*models.Message, error) {
	return scanMessage(s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, tenant_id, role, content, thinking_summary, tool_calls,
		        embedding, embedding_model, embedding_dim, embedding_status, created_at
		 FROM messages WHERE tenant_id = ? AND id = ?`,
		tenantID, messageID))
}

// ListMessages returns a conversation's messages in creation order
func (s *Store) ListMessages(ctx context.Context, tenantID, conversationID string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, tenant_id, role, content, thinking_summary, tool_calls,
		        embedding, embedding_model, embedding_dim, embedding_status, created_at
		 FROM messages WHERE tenant_id = ? AND conversation_id = ?
		 ORDER BY created_at ASC, id ASC LIMIT ?`,
		tenantID, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	msg := &models.Message{}
	var toolCallsJSON string
	var embedding sql.NullString
	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.TenantID, &msg.Role, &msg.Content,
		&msg.ThinkingSummary, &toolCallsJSON, &embedding, &msg.EmbeddingModel,
		&msg.EmbeddingDim, &msg.EmbeddingStatus, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	if toolCallsJSON != "" && toolCallsJSON != "[]" {
		if err := json.Unmarshal([]byte(toolCallsJSON), &msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to decode tool calls: %w", err)
		}
	}
	msg.Embedding, err = decodeVector(embedding)
	if err != nil {
		return nil, err
	}
	return msg, nil
}
