package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"mnemo/internal/middleware"
	"mnemo/internal/services"
)

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	sessions *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Put upserts a session
// PUT /api/v1/sessions/:type/:key
func (h *SessionHandler) Put(c *fiber.Ctx) error {
	var req struct {
		Data       json.RawMessage `json:"data"`
		TTLSeconds int             `json:"ttl_seconds"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sess, err := h.sessions.Put(c.Context(), middleware.TenantID(c), middleware.UserID(c),
		c.Params("type"), c.Params("key"), req.Data, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		return respondError(c, err, "Failed to store session")
	}
	return c.JSON(sess)
}

// Get fetches a session; expired reads as 404
// GET /api/v1/sessions/:type/:key
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c.Context(), middleware.TenantID(c), middleware.UserID(c),
		c.Params("type"), c.Params("key"))
	if err != nil {
		return respondError(c, err, "Failed to get session")
	}
	return c.JSON(sess)
}

// Delete removes a session
// DELETE /api/v1/sessions/:type/:key
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	err := h.sessions.Delete(c.Context(), middleware.TenantID(c), middleware.UserID(c),
		c.Params("type"), c.Params("key"))
	if err != nil {
		return respondError(c, err, "Failed to delete session")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
