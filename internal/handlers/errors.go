package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"mnemo/internal/store"
)

// respondError maps store sentinel errors to HTTP status codes. Raw driver
// and provider errors never reach clients.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	case errors.Is(err, store.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Already exists",
		})
	case errors.Is(err, store.ErrActionInFlight):
		// Original request still executing; the client must retry later
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Action with this idempotency key is still in flight, retry later",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fallback,
		})
	}
}
