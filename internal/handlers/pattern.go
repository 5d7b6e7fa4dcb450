package handlers

import (
	"github.com/gofiber/fiber/v2"

	"mnemo/internal/middleware"
	"mnemo/internal/models"
	"mnemo/internal/services"
)

// PatternHandler handles learned-pattern HTTP requests
type PatternHandler struct {
	patterns *services.PatternService
}

// NewPatternHandler creates a new pattern handler
func NewPatternHandler(patterns *services.PatternService) *PatternHandler {
	return &PatternHandler{patterns: patterns}
}

// patternView adds the derived confidence to the JSON shape
type patternView struct {
	*models.Pattern
	Confidence float64 `json:"confidence"`
}

func toView(p *models.Pattern) patternView {
	return patternView{Pattern: p, Confidence: p.Confidence()}
}

// Record stores a trigger -> response pattern
// POST /api/v1/patterns
func (h *PatternHandler) Record(c *fiber.Ctx) error {
	var req struct {
		Trigger  string `json:"trigger"`
		Response string `json:"response"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Trigger == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "trigger is required",
		})
	}

	pat, err := h.patterns.Record(c.Context(), middleware.TenantID(c), req.Trigger, req.Response)
	if err != nil {
		return respondError(c, err, "Failed to record pattern")
	}
	return c.Status(fiber.StatusCreated).JSON(toView(pat))
}

// Lookup finds the pattern for a trigger text
// GET /api/v1/patterns/lookup?trigger=...
func (h *PatternHandler) Lookup(c *fiber.Ctx) error {
	trigger := c.Query("trigger")
	if trigger == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "trigger query parameter is required",
		})
	}

	pat, err := h.patterns.Lookup(c.Context(), middleware.TenantID(c), trigger)
	if err != nil {
		return respondError(c, err, "Failed to look up pattern")
	}
	return c.JSON(toView(pat))
}

// ReportOutcome records a success or failure for a pattern
// POST /api/v1/patterns/:id/outcome
func (h *PatternHandler) ReportOutcome(c *fiber.Ctx) error {
	var req struct {
		Success bool `json:"success"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.patterns.ReportOutcome(c.Context(), middleware.TenantID(c), c.Params("id"), req.Success); err != nil {
		return respondError(c, err, "Failed to report outcome")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// List returns the tenant's patterns with derived confidence
// GET /api/v1/patterns
func (h *PatternHandler) List(c *fiber.Ctx) error {
	pats, err := h.patterns.List(c.Context(), middleware.TenantID(c), c.QueryInt("limit", 100))
	if err != nil {
		return respondError(c, err, "Failed to list patterns")
	}

	views := make([]patternView, 0, len(pats))
	for _, p := range pats {
		views = append(views, toView(p))
	}
	return c.JSON(fiber.Map{"patterns": views})
}
