package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"mnemo/internal/middleware"
	"mnemo/internal/services"
)

// AuditHandler exposes the idempotent action log
type AuditHandler struct {
	audit *services.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Record opens an audit entry for an external action. A reused idempotency
// key returns the original entry; a reused key whose action is still running
// returns 409.
// POST /api/v1/audit
func (h *AuditHandler) Record(c *fiber.Ctx) error {
	var req struct {
		Action         string          `json:"action"`
		ResourceType   string          `json:"resource_type"`
		ResourceID     string          `json:"resource_id"`
		Payload        json.RawMessage `json:"payload"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Action == "" || req.IdempotencyKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "action and idempotency_key are required",
		})
	}

	entry, isNew, err := h.audit.Record(c.Context(), middleware.TenantID(c), middleware.UserID(c),
		req.Action, req.ResourceType, req.ResourceID, req.Payload, req.IdempotencyKey)
	if err != nil {
		return respondError(c, err, "Failed to record audit entry")
	}

	status := fiber.StatusOK
	if isNew {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(entry)
}

// Complete marks a pending entry completed
// POST /api/v1/audit/:id/complete
func (h *AuditHandler) Complete(c *fiber.Ctx) error {
	var req struct {
		Result json.RawMessage `json:"result"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.audit.Complete(c.Context(), middleware.TenantID(c), c.Params("id"), req.Result); err != nil {
		return respondError(c, err, "Failed to complete audit entry")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Fail marks a pending entry failed
// POST /api/v1/audit/:id/fail
func (h *AuditHandler) Fail(c *fiber.Ctx) error {
	var req struct {
		Error string `json:"error"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.audit.Fail(c.Context(), middleware.TenantID(c), c.Params("id"), req.Error); err != nil {
		return respondError(c, err, "Failed to fail audit entry")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// List returns the caller's audit trail
// GET /api/v1/audit
func (h *AuditHandler) List(c *fiber.Ctx) error {
	entries, err := h.audit.List(c.Context(), middleware.TenantID(c), middleware.UserID(c), c.QueryInt("limit", 100))
	if err != nil {
		return respondError(c, err, "Failed to list audit entries")
	}
	return c.JSON(fiber.Map{"entries": entries})
}
