package handler

import (
	"errors"
	"strings"

	"license-token-service/internal/logging"
	"license-token-service/internal/metrics"
	"license-token-service/internal/service"

	"github.com/gofiber/fiber/v2"
)

// PaymentWebhookInput 已由上游验签的支付通知
type PaymentWebhookInput struct {
	PaymentReference string `json:"payment_reference"`
	Subject          string `json:"subject"`
	DurationHours    int    `json:"duration_hours"`
	Provider         string `json:"provider"`
}

// HandlePaymentWebhook 支付完成后签发待激活许可证。同一支付流水重放只返回已有记录
func (h *Handler) HandlePaymentWebhook(c *fiber.Ctx) error {
	input := new(PaymentWebhookInput)
	if err := c.BodyParser(input); err != nil {
		metrics.IncWebhook("rejected")
		return badRequest(c, "invalid request body")
	}
	input.PaymentReference = strings.TrimSpace(input.PaymentReference)
	if input.PaymentReference == "" {
		metrics.IncWebhook("rejected")
		return badRequest(c, "payment_reference is required")
	}

	var extra map[string]any
	if input.Provider != "" {
		extra = map[string]any{"source": input.Provider}
	}

	result, err := h.svc.Issue(c.UserContext(), service.IssueRequest{
		Subject:          input.Subject,
		DurationHours:    input.DurationHours,
		PaymentReference: input.PaymentReference,
		Extra:            extra,
		Actor:            "webhook",
	})
	if errors.Is(err, service.ErrDuplicatePayment) {
		existing, ferr := h.svc.FindByPayment(c.UserContext(), input.PaymentReference)
		if ferr != nil {
			metrics.IncWebhook("failed")
			return h.fail(c, ferr)
		}
		metrics.IncWebhook("duplicate")
		h.log.Info().Str("payment_reference", input.PaymentReference).Msg("duplicate payment webhook")
		return c.JSON(fiber.Map{
			"status":      "duplicate",
			"license_id":  existing.LicenseID,
			"fingerprint": existing.Fingerprint,
		})
	}
	if err != nil {
		if service.KindOf(err).Retryable() {
			metrics.IncWebhook("failed")
		} else {
			metrics.IncWebhook("rejected")
		}
		return h.fail(c, err)
	}

	metrics.IncWebhook("issued")
	h.log.Info().
		Str("payment_reference", input.PaymentReference).
		Str("subject", logging.Redact(service.NormalizeSubject(input.Subject))).
		Str("license_id", result.LicenseID).
		Msg("license issued from payment")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":      "issued",
		"token":       result.Token,
		"license_id":  result.LicenseID,
		"fingerprint": result.Fingerprint,
		"issued_at":   result.IssuedAt,
		"expires_at":  result.ExpiresAt,
	})
}
