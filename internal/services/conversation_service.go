package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"mnemo/internal/models"
	"mnemo/internal/store"
)

// ConversationService handles the conversation/message write path. Message
// inserts return immediately; embedding generation happens through the job
// queue, never inline.
type ConversationService struct {
	store *store.Store
}

// NewConversationService creates a new conversation service
func NewConversationService(st *store.Store) *ConversationService {
	return &ConversationService{store: st}
}

var thinkingTagRe = regexp.MustCompile(`(?s)<think(?:ing)?>(.*?)</think(?:ing)?>`)

// maxThinkingSummary caps how much model reasoning is kept per message
const maxThinkingSummary = 500

// SanitizeThinking extracts reasoning blocks from raw assistant output and
// returns (visibleContent, thinkingSummary). Only a truncated summary of the
// reasoning is ever persisted; the raw blocks are stripped from the content.
func SanitizeThinking(raw string) (string, string) {
	matches := thinkingTagRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw, ""
	}

	var parts []string
	for _, m := range matches {
		if trimmed := strings.TrimSpace(m[1]); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	summary := strings.Join(parts, " ")
	if len(summary) > maxThinkingSummary {
		summary = summary[:maxThinkingSummary] + "..."
	}

	content := strings.TrimSpace(thinkingTagRe.ReplaceAllString(raw, ""))
	return content, summary
}

// Create starts a new conversation for the tenant/user
func (s *ConversationService) Create(ctx context.Context, tenantID, userID, title string) (*models.Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	return s.store.CreateConversation(ctx, tenantID, userID, title)
}

// Get fetches one conversation
func (s *ConversationService) Get(ctx context.Context, tenantID, conversationID string) (*models.Conversation, error) {
	return s.store.GetConversation(ctx, tenantID, conversationID)
}

// List returns the tenant/user's conversations
func (s *ConversationService) List(ctx context.Context, tenantID, userID string, limit int) ([]*models.Conversation, error) {
	return s.store.ListConversations(ctx, tenantID, userID, limit)
}

// Delete removes a conversation with its messages and queued jobs
func (s *ConversationService) Delete(ctx context.Context, tenantID, conversationID string) error {
	return s.store.DeleteConversation(ctx, tenantID, conversationID)
}

// AddMessage appends a message to a conversation. Assistant output is
// sanitized so raw reasoning blocks never reach storage.
func (s *ConversationService) AddMessage(ctx context.Context, tenantID, conversationID, role, content string, toolCalls []models.ToolCall) (*models.Message, error) {
	switch role {
	case models.RoleUser, models.RoleAssistant, models.RoleSystem, models.RoleTool:
	default:
		return nil, fmt.Errorf("invalid message role %q", role)
	}

	thinkingSummary := ""
	if role == models.RoleAssistant {
		content, thinkingSummary = SanitizeThinking(content)
	}

	return s.store.AppendMessage(ctx, tenantID, conversationID, role, content, thinkingSummary, toolCalls)
}

// Messages returns a conversation's messages in order
func (s *ConversationService) Messages(ctx context.Context, tenantID, conversationID string, limit int) ([]*models.Message, error) {
	return s.store.ListMessages(ctx, tenantID, conversationID, limit)
}
