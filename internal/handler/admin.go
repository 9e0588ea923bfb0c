package handler

import (
	"crypto/subtle"

	"license-token-service/internal/util"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleAdminLogin 校验管理员密码（bcrypt）并签发会话令牌
func (h *Handler) HandleAdminLogin(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := c.BodyParser(input); err != nil {
		return badRequest(c, "invalid request body")
	}

	admin := h.cfg.Admin
	if admin.PasswordHash == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "login_disabled",
			"message": "admin login is not configured",
		})
	}

	// 用户名与密码都校验完再统一返回，避免区分哪一项错误
	userOK := subtle.ConstantTimeCompare([]byte(input.Username), []byte(admin.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(input.Password))
	if !userOK || passErr != nil {
		h.log.Warn().Str("ip", c.IP()).Msg("admin login failed")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "invalid_credentials",
			"message": "invalid username or password",
		})
	}

	tok, err := util.GenerateToken([]byte(admin.JWTSecret), admin.Username, admin.JWTTTL)
	if err != nil {
		h.log.Error().Err(err).Msg("generate admin token failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal",
			"message": "internal error",
		})
	}

	h.svc.LogOperation(c.UserContext(), admin.Username, "login", "admin", admin.Username, fiber.Map{
		"ip":         c.IP(),
		"user_agent": c.Get(fiber.HeaderUserAgent),
	})
	return c.JSON(fiber.Map{
		"token":      tok,
		"expires_in": int64(admin.JWTTTL.Seconds()),
	})
}
