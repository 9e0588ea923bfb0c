package middleware

import (
	"strings"

	"license-token-service/internal/util"

	"github.com/gofiber/fiber/v2"
)

// LocalAdmin 认证通过后保存在上下文中的管理员名
const LocalAdmin = "admin"

// Auth 校验 Bearer 管理员令牌
func Auth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization token",
			})
		}

		// 获取 Bearer token
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authorization format",
			})
		}

		// 验证令牌
		admin, err := util.ValidateToken(secret, tokenParts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authorization token",
			})
		}

		c.Locals(LocalAdmin, admin)
		return c.Next()
	}
}

// AdminName 取出当前请求的管理员名
func AdminName(c *fiber.Ctx) string {
	if name, ok := c.Locals(LocalAdmin).(string); ok {
		return name
	}
	return ""
}
