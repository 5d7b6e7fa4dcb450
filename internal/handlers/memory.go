package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"mnemo/internal/middleware"
	"mnemo/internal/services"
)

// MemoryHandler handles memory-related HTTP requests
type MemoryHandler struct {
	memories *services.MemoryService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memories *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{memories: memories}
}

// Record stores a memory; duplicate content returns the existing memory
// POST /api/v1/memories
func (h *MemoryHandler) Record(c *fiber.Ctx) error {
	var req struct {
		Content    string     `json:"content"`
		MemoryType string     `json:"memory_type"`
		ValidUntil *time.Time `json:"valid_until"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required",
		})
	}

	mem, err := h.memories.Record(c.Context(), middleware.TenantID(c), middleware.UserID(c), req.Content, req.MemoryType, req.ValidUntil)
	if err != nil {
		log.Printf("❌ Failed to record memory: %v", err)
		return respondError(c, err, "Failed to record memory")
	}

	return c.Status(fiber.StatusCreated).JSON(mem)
}

// List returns the caller's live memories
// GET /api/v1/memories
func (h *MemoryHandler) List(c *fiber.Ctx) error {
	mems, err := h.memories.List(c.Context(), middleware.TenantID(c), middleware.UserID(c), c.QueryInt("limit", 100))
	if err != nil {
		return respondError(c, err, "Failed to list memories")
	}
	return c.JSON(fiber.Map{"memories": mems})
}

// Get returns one memory
// GET /api/v1/memories/:id
func (h *MemoryHandler) Get(c *fiber.Ctx) error {
	mem, err := h.memories.Get(c.Context(), middleware.TenantID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Failed to get memory")
	}
	return c.JSON(mem)
}

// Touch marks a memory as used, protecting it from decay
// POST /api/v1/memories/:id/touch
func (h *MemoryHandler) Touch(c *fiber.Ctx) error {
	if err := h.memories.Touch(c.Context(), middleware.TenantID(c), c.Params("id")); err != nil {
		return respondError(c, err, "Failed to touch memory")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Correct replaces a memory's content, keeping version history
// POST /api/v1/memories/:id/correct
func (h *MemoryHandler) Correct(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
		Reason  string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content is required",
		})
	}

	mem, err := h.memories.Correct(c.Context(), middleware.TenantID(c), c.Params("id"), req.Content, req.Reason, middleware.UserID(c))
	if err != nil {
		return respondError(c, err, "Failed to correct memory")
	}
	return c.JSON(mem)
}

// History returns a memory's revision trail
// GET /api/v1/memories/:id/history
func (h *MemoryHandler) History(c *fiber.Ctx) error {
	revs, err := h.memories.History(c.Context(), middleware.TenantID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Failed to get memory history")
	}
	return c.JSON(fiber.Map{"revisions": revs})
}

// Cleanup runs the maintenance pass for the caller's tenant on demand
// POST /api/v1/memories/cleanup
func (h *MemoryHandler) Cleanup(c *fiber.Ctx) error {
	result, err := h.memories.Cleanup(c.Context(), middleware.TenantID(c))
	if err != nil {
		log.Printf("❌ Cleanup failed: %v", err)
		return respondError(c, err, "Cleanup failed")
	}
	return c.JSON(result)
}
