package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"mnemo/internal/middleware"
	"mnemo/internal/models"
	"mnemo/internal/services"
)

// ConversationHandler handles conversation-related HTTP requests
type ConversationHandler struct {
	conversations *services.ConversationService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// Create starts a new conversation
// POST /api/v1/conversations
func (h *ConversationHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	conv, err := h.conversations.Create(c.Context(), middleware.TenantID(c), middleware.UserID(c), req.Title)
	if err != nil {
		log.Printf("❌ Failed to create conversation: %v", err)
		return respondError(c, err, "Failed to create conversation")
	}

	return c.Status(fiber.StatusCreated).JSON(conv)
}

// List returns the caller's conversations
// GET /api/v1/conversations
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	convs, err := h.conversations.List(c.Context(), middleware.TenantID(c), middleware.UserID(c), c.QueryInt("limit", 50))
	if err != nil {
		log.Printf("❌ Failed to list conversations: %v", err)
		return respondError(c, err, "Failed to list conversations")
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

// Get returns one conversation
// GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	conv, err := h.conversations.Get(c.Context(), middleware.TenantID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Failed to get conversation")
	}
	return c.JSON(conv)
}

// Delete removes a conversation with its messages
// DELETE /api/v1/conversations/:id
func (h *ConversationHandler) Delete(c *fiber.Ctx) error {
	if err := h.conversations.Delete(c.Context(), middleware.TenantID(c), c.Params("id")); err != nil {
		return respondError(c, err, "Failed to delete conversation")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddMessage appends a message; embedding happens asynchronously
// POST /api/v1/conversations/:id/messages
func (h *ConversationHandler) AddMessage(c *fiber.Ctx) error {
	var req struct {
		Role      string            `json:"role"`
		Content   string            `json:"content"`
		ToolCalls []models.ToolCall `json:"tool_calls"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Role == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "role and content are required",
		})
	}

	msg, err := h.conversations.AddMessage(c.Context(), middleware.TenantID(c), c.Params("id"), req.Role, req.Content, req.ToolCalls)
	if err != nil {
		return respondError(c, err, "Failed to add message")
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}

// Messages returns a conversation's messages in order
// GET /api/v1/conversations/:id/messages
func (h *ConversationHandler) Messages(c *fiber.Ctx) error {
	msgs, err := h.conversations.Messages(c.Context(), middleware.TenantID(c), c.Params("id"), c.QueryInt("limit", 200))
	if err != nil {
		return respondError(c, err, "Failed to list messages")
	}
	return c.JSON(fiber.Map{"messages": msgs})
}
