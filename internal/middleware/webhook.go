package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// HeaderWebhookSignature 请求体 HMAC-SHA256 的十六进制值，可带 "sha256=" 前缀
const HeaderWebhookSignature = "X-Webhook-Signature"

// WebhookSignature 校验支付通知的共享密钥签名；未配置密钥时拒绝所有请求
func WebhookSignature(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "webhook secret is not configured",
			})
		}

		got := strings.TrimPrefix(strings.TrimSpace(c.Get(HeaderWebhookSignature)), "sha256=")
		sig, err := hex.DecodeString(got)
		if err != nil || len(sig) == 0 || !hmac.Equal(sig, SignWebhook(secret, c.Body())) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid webhook signature",
			})
		}
		return c.Next()
	}
}

// SignWebhook 计算请求体签名，发送方与测试共用
func SignWebhook(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
