package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) HandleGetLogs(c *fiber.Ctx) error {
	// 获取分页参数
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "10"))

	logs, total, err := h.svc.OperationLogs(c.UserContext(), page, pageSize)
	if err != nil {
		return h.fail(c, err)
	}

	if page < 1 {
		page = 1
	}
	return c.JSON(fiber.Map{
		"logs":  logs,
		"total": total,
		"page":  page,
	})
}
