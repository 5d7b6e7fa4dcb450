package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// TenantMiddleware resolves the caller's tenant/user identity from request
// headers and stores it in locals for handlers. Every data-plane route
// requires an explicit tenant; there is no ambient default.
func TenantMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID := c.Get("X-Tenant-ID")
		if tenantID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "X-Tenant-ID header is required",
			})
		}

		userID := c.Get("X-User-ID")
		if userID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "X-User-ID header is required",
			})
		}

		c.Locals("tenant_id", tenantID)
		c.Locals("user_id", userID)
		return c.Next()
	}
}

// TenantID reads the tenant set by TenantMiddleware
func TenantID(c *fiber.Ctx) string {
	id, _ := c.Locals("tenant_id").(string)
	return id
}

// UserID reads the user set by TenantMiddleware
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
