package handler

import (
	"context"
	"strconv"
	"time"

	"license-token-service/internal/middleware"
	"license-token-service/internal/model"
	"license-token-service/internal/service"
	"license-token-service/internal/token"

	"github.com/gofiber/fiber/v2"
)

type tokenInput struct {
	Token string `json:"token"`
}

// HandleLicenseActivate 首次激活许可证，使用窗口从此刻开始
func (h *Handler) HandleLicenseActivate(c *fiber.Ctx) error {
	input := new(service.ActivateRequest)
	if err := c.BodyParser(input); err != nil {
		return badRequest(c, "invalid request body")
	}
	if input.Token == "" {
		return badRequest(c, "token is required")
	}
	input.IP = c.IP()
	input.UserAgent = c.Get(fiber.HeaderUserAgent)

	result := h.svc.Activate(c.UserContext(), *input)
	if result.Status != service.StatusActivated {
		return c.Status(result.Error.HTTPStatus()).JSON(result)
	}

	if h.sheet != nil {
		go h.syncOne(token.Fingerprint(input.Token))
	}
	return c.JSON(result)
}

// HandleLicenseVerify 校验许可证；结果总是 200，失败原因在 code / message 中
func (h *Handler) HandleLicenseVerify(c *fiber.Ctx) error {
	input := new(tokenInput)
	if c.Method() == fiber.MethodPost {
		if err := c.BodyParser(input); err != nil {
			return badRequest(c, "invalid request body")
		}
	} else {
		input.Token = c.Query("token")
	}

	result := h.svc.Verify(c.UserContext(), service.VerifyRequest{
		Token:     input.Token,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
	return c.JSON(result)
}

// HandleLicenseIssue 管理员手工签发
func (h *Handler) HandleLicenseIssue(c *fiber.Ctx) error {
	input := new(service.IssueRequest)
	if err := c.BodyParser(input); err != nil {
		return badRequest(c, "invalid request body")
	}
	input.Actor = middleware.AdminName(c)

	result, err := h.svc.Issue(c.UserContext(), *input)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleLicenseRevoke 吊销许可证，按指纹或令牌
func (h *Handler) HandleLicenseRevoke(c *fiber.Ctx) error {
	input := new(service.RevokeRequest)
	if err := c.BodyParser(input); err != nil {
		return badRequest(c, "invalid request body")
	}
	input.Actor = middleware.AdminName(c)

	record, err := h.svc.Revoke(c.UserContext(), *input)
	if err != nil {
		return h.fail(c, err)
	}

	if h.sheet != nil {
		go h.syncOne(record.Fingerprint)
	}
	return c.JSON(fiber.Map{
		"message": "license revoked",
		"license": record,
	})
}

// HandleGetAllLicenses 管理员分页查询许可证
func (h *Handler) HandleGetAllLicenses(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	status := model.RecordStatus(c.Query("status"))
	switch status {
	case "", model.StatusPending, model.StatusActive, model.StatusExpired, model.StatusRevoked:
	default:
		return badRequest(c, "status must be one of pending, active, expired, revoked")
	}

	records, total, err := h.svc.ListLicenses(c.UserContext(), model.RecordFilter{
		Status:  status,
		Subject: c.Query("subject"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"licenses": records,
		"total":    total,
	})
}

// HandleGetLicense 获取单个许可证详情
func (h *Handler) HandleGetLicense(c *fiber.Ctx) error {
	record, err := h.svc.Record(c.UserContext(), c.Params("fingerprint"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(record)
}

// HandleLicenseUsage 查询许可证使用记录
func (h *Handler) HandleLicenseUsage(c *fiber.Ctx) error {
	fp := c.Params("fingerprint")
	if fp == "" {
		return badRequest(c, "fingerprint is required")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	usages, err := h.svc.Usage(c.UserContext(), fp, limit)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"usages": usages,
	})
}

// HandleLicenseSync 全量导出到 Google Sheet
func (h *Handler) HandleLicenseSync(c *fiber.Ctx) error {
	if h.sheet == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "sheet_sync_disabled",
			"message": "sheet sync is not enabled",
		})
	}

	const pageSize = 200
	synced, appended := 0, 0
	for offset := 0; ; offset += pageSize {
		records, total, err := h.svc.ListLicenses(c.UserContext(), model.RecordFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return h.fail(c, err)
		}
		n, err := h.sheet.SyncRecords(c.UserContext(), records)
		if err != nil {
			h.log.Error().Err(err).Msg("sheet sync failed")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":   "sheet_sync_failed",
				"message": "sheet sync failed",
			})
		}
		synced += len(records)
		appended += n
		if len(records) < pageSize || int64(offset+pageSize) >= total {
			break
		}
	}

	actor := middleware.AdminName(c)
	h.svc.LogOperation(c.UserContext(), actor, "sync", "sheet", "", fiber.Map{
		"synced":   synced,
		"appended": appended,
	})
	return c.JSON(fiber.Map{
		"synced":   synced,
		"appended": appended,
	})
}

// syncOne 激活 / 吊销后在后台同步单条记录，请求结束后 ctx 已失效，单独设置超时
func (h *Handler) syncOne(fingerprint string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	record, err := h.svc.Record(ctx, fingerprint)
	if err != nil {
		h.log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("load record for sheet sync failed")
		return
	}
	if err := h.sheet.SyncRecord(ctx, record); err != nil {
		h.log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("sheet sync failed")
	}
}
