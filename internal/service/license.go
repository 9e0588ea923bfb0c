package service

import (
	"context"
	"strings"
	"time"

	"license-token-service/internal/logging"
	"license-token-service/internal/metrics"
	"license-token-service/internal/model"
	"license-token-service/internal/token"

	"github.com/rs/zerolog"
)

// 使用记录中的动作
const (
	ActionVerify   = "verify"
	ActionActivate = "activate"
	OutcomeOK      = "ok"
)

// AuditStore 使用记录与操作日志
type AuditStore interface {
	RecordUsage(ctx context.Context, usage *model.LicenseUsage) error
	ListUsage(ctx context.Context, fingerprint string, limit int) ([]model.LicenseUsage, error)
	CountUsage(ctx context.Context, action, outcome string) (int64, error)
	CreateOperation(ctx context.Context, op *model.OperationLog) error
	ListOperations(ctx context.Context, page, pageSize int) ([]model.OperationLog, int64, error)
}

// RecordQuerier 管理后台的列表与统计查询
type RecordQuerier interface {
	List(ctx context.Context, filter model.RecordFilter) ([]model.ActivationRecord, int64, error)
	CountByStatus(ctx context.Context, now int64) (map[model.RecordStatus]int64, error)
}

// Store LicenseService 需要的全部存储能力
type Store interface {
	TokenStore
	RecordQuerier
	AuditStore
}

type IssueRequest struct {
	Subject          string         `json:"subject"`
	DurationHours    int            `json:"duration_hours,omitempty"`
	PaymentReference string         `json:"payment_reference,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
	Actor            string         `json:"-"`
}

type IssueResult struct {
	Token       string `json:"token"`
	LicenseID   string `json:"license_id"`
	Fingerprint string `json:"fingerprint"`
	IssuedAt    int64  `json:"issued_at"`
	ExpiresAt   *int64 `json:"expires_at"` // 延迟激活，签发时恒为 null
}

type VerifyRequest struct {
	Token     string
	IP        string
	UserAgent string
}

// VerificationResult 校验边界的返回值，所有失败都编码在结果里
type VerificationResult struct {
	Valid   bool                  `json:"valid"`
	Code    Kind                  `json:"code,omitempty"`
	Message string                `json:"message"`
	Data    *model.LicensePayload `json:"data"`
}

type ActivateRequest struct {
	Token     string `json:"token"`
	Subject   string `json:"subject,omitempty"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ActivationResult 激活边界的返回值
type ActivationResult struct {
	Status      string `json:"status"` // activated / error
	ActivatedAt *int64 `json:"activated_at,omitempty"`
	ExpiresAt   *int64 `json:"expires_at,omitempty"`
	Error       Kind   `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
}

const (
	StatusActivated = "activated"
	StatusError     = "error"
)

type RevokeRequest struct {
	Fingerprint string `json:"fingerprint"`
	Token       string `json:"token"`
	Reason      string `json:"reason"`
	Actor       string `json:"-"`
}

// LicenseService 对外的签发、校验、激活边界，负责审计与指标
type LicenseService struct {
	store           Store
	issuer          *Issuer
	engine          *Engine
	log             zerolog.Logger
	now             Clock
	defaultDuration int
}

type Option func(*LicenseService)

func WithClock(now Clock) Option {
	return func(s *LicenseService) { s.now = now }
}

// WithDefaultDuration 请求未指定时长时使用的小时数
func WithDefaultDuration(hours int) Option {
	return func(s *LicenseService) { s.defaultDuration = hours }
}

func NewLicenseService(store Store, signer Signer, log zerolog.Logger, opts ...Option) *LicenseService {
	s := &LicenseService{
		store:           store,
		log:             log.With().Str("component", "license").Logger(),
		now:             time.Now,
		defaultDuration: 36,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.issuer = NewIssuer(signer, s.now)
	s.engine = NewEngine(store, signer, s.now)
	return s
}

// Engine 暴露状态机，供离线工具和测试直接使用
func (s *LicenseService) Engine() *Engine {
	return s.engine
}

// Issue 签发并登记一张 pending 许可证。调用方必须已确认请求来源可信（已验签的支付通知或管理员）
func (s *LicenseService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	duration := req.DurationHours
	if duration == 0 {
		duration = s.defaultDuration
	}

	tok, payload, err := s.issuer.Issue(req.Subject, duration, req.Extra)
	if err != nil {
		return nil, err
	}
	record, err := s.engine.Register(ctx, tok, payload, req.PaymentReference)
	if err != nil {
		return nil, err
	}

	metrics.IncIssued(req.Actor)
	s.log.Info().
		Str("fingerprint", record.Fingerprint).
		Str("license_id", payload.LicenseID).
		Str("subject", logging.Redact(payload.Subject)).
		Int("duration_hours", duration).
		Str("actor", req.Actor).
		Msg("license issued")

	s.LogOperation(ctx, req.Actor, "issue", "license", record.Fingerprint, map[string]any{
		"license_id":        payload.LicenseID,
		"subject":           payload.Subject,
		"duration_hours":    duration,
		"payment_reference": req.PaymentReference,
	})

	return &IssueResult{
		Token:       tok,
		LicenseID:   payload.LicenseID,
		Fingerprint: record.Fingerprint,
		IssuedAt:    payload.IssuedAt,
	}, nil
}

// Verify 校验边界，从不返回错误
func (s *LicenseService) Verify(ctx context.Context, req VerifyRequest) VerificationResult {
	payload, meta, err := s.engine.Check(ctx, req.Token)
	fp := fingerprintOf(meta, req.Token)
	if err != nil {
		kind := s.outcome(err)
		metrics.IncCheck(string(kind))
		s.recordUsage(ctx, fp, ActionVerify, string(kind), req.IP, req.UserAgent)
		s.log.Debug().Str("fingerprint", fp).Str("outcome", string(kind)).Err(err).Msg("license check rejected")
		return VerificationResult{Valid: false, Code: kind, Message: kind.Message()}
	}

	metrics.IncCheck(OutcomeOK)
	s.recordUsage(ctx, fp, ActionVerify, OutcomeOK, req.IP, req.UserAgent)

	data := *payload
	data.ActivatedAt = &meta.ActivatedAt
	data.ExpiresAt = &meta.ExpiresAt
	return VerificationResult{Valid: true, Message: "license is valid", Data: &data}
}

// Activate 激活边界，失败编码在结果里
func (s *LicenseService) Activate(ctx context.Context, req ActivateRequest) ActivationResult {
	meta, err := s.engine.Activate(ctx, ActivateInput{
		Token:     req.Token,
		Subject:   req.Subject,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	})
	fp := fingerprintOf(meta, req.Token)
	if err != nil {
		kind := s.outcome(err)
		metrics.IncActivation(string(kind))
		s.recordUsage(ctx, fp, ActionActivate, string(kind), req.IP, req.UserAgent)
		s.log.Info().Str("fingerprint", fp).Str("outcome", string(kind)).Err(err).Msg("license activation rejected")
		return ActivationResult{Status: StatusError, Error: kind, Message: kind.Message()}
	}

	metrics.IncActivation(OutcomeOK)
	s.recordUsage(ctx, fp, ActionActivate, OutcomeOK, req.IP, req.UserAgent)
	s.log.Info().
		Str("fingerprint", fp).
		Str("subject", logging.Redact(meta.Subject)).
		Int64("expires_at", meta.ExpiresAt).
		Msg("license activated")

	return ActivationResult{
		Status:      StatusActivated,
		ActivatedAt: &meta.ActivatedAt,
		ExpiresAt:   &meta.ExpiresAt,
	}
}

// Revoke 按指纹或令牌吊销
func (s *LicenseService) Revoke(ctx context.Context, req RevokeRequest) (*model.ActivationRecord, error) {
	fp := req.Fingerprint
	if fp == "" {
		if req.Token == "" {
			return nil, errorf(KindMalformedToken, "fingerprint or token required")
		}
		_, parsed, err := s.engine.Parse(req.Token)
		if err != nil {
			return nil, err
		}
		fp = parsed
	}

	record, err := s.engine.Revoke(ctx, fp)
	if err != nil {
		return nil, err
	}

	metrics.IncRevocation()
	s.log.Info().Str("fingerprint", fp).Str("actor", req.Actor).Msg("license revoked")
	s.LogOperation(ctx, req.Actor, "revoke", "license", fp, map[string]any{
		"license_id": record.LicenseID,
		"reason":     req.Reason,
	})
	return record, nil
}

// FindByPayment 支付通知重放时查询已签发的记录
func (s *LicenseService) FindByPayment(ctx context.Context, paymentReference string) (*model.ActivationRecord, error) {
	record, err := s.store.FindByPayment(ctx, paymentReference)
	if err != nil {
		return nil, classify(err)
	}
	return record, nil
}

// Record 按指纹读取单条记录，状态为读取时投影
func (s *LicenseService) Record(ctx context.Context, fingerprint string) (*model.ActivationRecord, error) {
	record, err := s.store.Get(ctx, fingerprint)
	if err != nil {
		return nil, classify(err)
	}
	record.Status = record.EffectiveStatus(s.now().Unix())
	return record, nil
}

// ListLicenses 列表中的状态为读取时投影
func (s *LicenseService) ListLicenses(ctx context.Context, filter model.RecordFilter) ([]model.ActivationRecord, int64, error) {
	now := s.now().Unix()
	filter.Now = now
	records, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, newError(KindStoreUnavailable, "list records", err)
	}
	for i := range records {
		records[i].Status = records[i].EffectiveStatus(now)
	}
	return records, total, nil
}

// Usage 某个指纹最近的校验 / 激活记录
func (s *LicenseService) Usage(ctx context.Context, fingerprint string, limit int) ([]model.LicenseUsage, error) {
	usages, err := s.store.ListUsage(ctx, fingerprint, limit)
	if err != nil {
		return nil, newError(KindStoreUnavailable, "list usage", err)
	}
	return usages, nil
}

func (s *LicenseService) outcome(err error) Kind {
	kind := KindOf(err)
	if kind == "" {
		kind = KindStoreUnavailable
	}
	if kind.Retryable() || kind == KindKeyUnavailable {
		s.log.Error().Err(err).Str("kind", string(kind)).Msg("license operation failed")
	}
	return kind
}

func (s *LicenseService) recordUsage(ctx context.Context, fp, action, outcome, ip, userAgent string) {
	usage := &model.LicenseUsage{
		Fingerprint: fp,
		Action:      action,
		Outcome:     outcome,
		IPAddress:   ip,
		UserAgent:   userAgent,
		Timestamp:   s.now(),
	}
	if err := s.store.RecordUsage(ctx, usage); err != nil {
		s.log.Warn().Err(err).Str("fingerprint", fp).Str("action", action).Msg("record usage failed")
	}
}

func fingerprintOf(meta *Metadata, tokenString string) string {
	if meta != nil {
		return meta.Fingerprint
	}
	if strings.TrimSpace(tokenString) == "" {
		return ""
	}
	return token.Fingerprint(tokenString)
}
