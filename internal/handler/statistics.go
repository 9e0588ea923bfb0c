package handler

import (
	"github.com/gofiber/fiber/v2"
)

// HandleLicenseStatistics 处理许可证统计信息请求
func (h *Handler) HandleLicenseStatistics(c *fiber.Ctx) error {
	stats, err := h.svc.Statistics(c.UserContext())
	if err != nil {
		h.log.Error().Err(err).Msg("load statistics failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"code":    500,
			"message": "failed to load statistics",
		})
	}

	return c.JSON(fiber.Map{
		"code":    200,
		"message": "success",
		"data":    stats,
		"rates": fiber.Map{
			"activation_success": stats.GetSuccessRate(),
			"redemption":         stats.GetRedemptionRate(),
		},
	})
}
