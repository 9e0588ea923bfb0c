package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"license-token-service/internal/config"
	"license-token-service/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// Deps 处理器依赖，由 main 组装
type Deps struct {
	Service   *service.LicenseService
	Sheet     *service.SheetSyncService // 可为 nil
	Config    *config.Config
	Logger    zerolog.Logger
	Health    func(ctx context.Context) error
	AccessLog io.Writer
}

type Handler struct {
	svc    *service.LicenseService
	sheet  *service.SheetSyncService
	cfg    *config.Config
	log    zerolog.Logger
	health func(ctx context.Context) error
	access io.Writer
}

func New(d Deps) *Handler {
	h := &Handler{
		svc:    d.Service,
		sheet:  d.Sheet,
		cfg:    d.Config,
		log:    d.Logger.With().Str("component", "http").Logger(),
		health: d.Health,
		access: d.AccessLog,
	}
	if h.access == nil {
		h.access = os.Stdout
	}
	return h
}

// fail 按错误类别输出稳定的错误码和提示语，内部错误文本只进日志
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	kind := service.KindOf(err)
	if kind == "" || kind.Retryable() || kind == service.KindKeyUnavailable {
		h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(kind.HTTPStatus()).JSON(fiber.Map{
		"error":   errorCode(kind),
		"message": kind.Message(),
	})
}

// decodeJSON 请求体解码；数字保留为 json.Number，extra 中的大整数不经过 float64
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after json body")
	}
	return nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "invalid_request",
		"message": message,
	})
}

func errorCode(kind service.Kind) string {
	if kind == "" {
		return "internal"
	}
	return string(kind)
}
