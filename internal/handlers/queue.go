package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"mnemo/internal/middleware"
	"mnemo/internal/services"
)

// QueueHandler exposes embedding queue monitoring and the dead-letter list
type QueueHandler struct {
	monitor *services.MonitorService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(monitor *services.MonitorService) *QueueHandler {
	return &QueueHandler{monitor: monitor}
}

// Status returns job counts by status and the oldest pending age
// GET /api/v1/queue/status
func (h *QueueHandler) Status(c *fiber.Ctx) error {
	stats, err := h.monitor.QueueStats(c.Context(), middleware.TenantID(c))
	if err != nil {
		return respondError(c, err, "Failed to collect queue stats")
	}
	return c.JSON(stats)
}

// Dead lists the tenant's dead-lettered jobs
// GET /api/v1/queue/dead
func (h *QueueHandler) Dead(c *fiber.Ctx) error {
	jobs, err := h.monitor.DeadJobs(c.Context(), middleware.TenantID(c), c.QueryInt("limit", 100))
	if err != nil {
		return respondError(c, err, "Failed to list dead jobs")
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

// Requeue puts a dead job back in the queue (manual intervention)
// POST /api/v1/queue/dead/:id/requeue
func (h *QueueHandler) Requeue(c *fiber.Ctx) error {
	jobID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job ID",
		})
	}

	if err := h.monitor.RequeueDeadJob(c.Context(), middleware.TenantID(c), jobID); err != nil {
		return respondError(c, err, "Failed to requeue job")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
