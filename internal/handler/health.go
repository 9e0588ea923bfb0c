package handler

import (
	"github.com/gofiber/fiber/v2"
)

// HandleHealth 存储可用时返回 ok
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	if h.health != nil {
		if err := h.health(c.UserContext()); err != nil {
			h.log.Error().Err(err).Msg("health check failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
			})
		}
	}
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}
