package handler

import (
	"errors"

	"license-token-service/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewApp 创建 Fiber 应用并注册全部路由
func (h *Handler) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           h.cfg.Server.ReadTimeout,
		WriteTimeout:          h.cfg.Server.WriteTimeout,
		DisableStartupMessage: true,
		JSONDecoder:           decodeJSON,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "internal error"
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
				message = fe.Message
			} else {
				h.log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   "internal",
				"message": message,
			})
		},
	})

	// 中间件
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: h.access}))
	if !h.cfg.Server.DisableCORS {
		app.Use(cors.New())
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// 路由组
	api := app.Group("/api/v1", middleware.RequestTimeout(h.cfg.Server.RequestTimeout))
	api.Get("/health", h.HandleHealth)

	// 支付通知
	api.Post("/webhooks/payment", middleware.WebhookSignature(h.cfg.Webhook.Secret), h.HandlePaymentWebhook)

	// 客户端路由
	licenses := api.Group("/licenses")
	licenses.Post("/activate", h.HandleLicenseActivate)
	licenses.Post("/verify", h.HandleLicenseVerify)
	licenses.Get("/verify", h.HandleLicenseVerify)

	// 管理员路由
	admin := api.Group("/admin")
	admin.Post("/login", h.HandleAdminLogin)

	auth := middleware.Auth([]byte(h.cfg.Admin.JWTSecret))
	admin.Get("/logs", auth, h.HandleGetLogs)

	adminLicenses := admin.Group("/licenses", auth)
	adminLicenses.Get("/", h.HandleGetAllLicenses)
	adminLicenses.Get("/statistics", h.HandleLicenseStatistics)
	adminLicenses.Post("/issue", h.HandleLicenseIssue)
	adminLicenses.Post("/revoke", h.HandleLicenseRevoke)
	adminLicenses.Post("/sync", h.HandleLicenseSync)
	adminLicenses.Get("/:fingerprint", h.HandleGetLicense)
	adminLicenses.Get("/:fingerprint/usage", h.HandleLicenseUsage)

	return app
}
