package service

import (
	"context"
	"errors"
	"time"

	"license-token-service/internal/model"
	"license-token-service/internal/token"
)

// TokenStore 激活记录的持久化，由 database.RecordStore 实现。
// MarkActive 必须是按指纹的比较并交换，状态不是 pending 时返回 model.ErrStateConflict
type TokenStore interface {
	Create(ctx context.Context, record *model.ActivationRecord) error
	Get(ctx context.Context, fingerprint string) (*model.ActivationRecord, error)
	FindByPayment(ctx context.Context, paymentReference string) (*model.ActivationRecord, error)
	MarkActive(ctx context.Context, fingerprint string, a model.Activation) error
	MarkRevoked(ctx context.Context, fingerprint string, at int64) error
}

// Metadata 激活 / 校验成功后返回的许可证信息
type Metadata struct {
	Fingerprint string `json:"fingerprint"`
	LicenseID   string `json:"license_id"`
	Subject     string `json:"subject"`
	IssuedAt    int64  `json:"issued_at"`
	ActivatedAt int64  `json:"activated_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

type ActivateInput struct {
	Token     string
	Subject   string // 可选，重新声明的持有人
	IP        string
	UserAgent string
}

// Engine 许可证状态机：pending -> active -> expired，pending / active -> revoked。
// 每次调用都从存储读取记录，不跨调用缓存
type Engine struct {
	store  TokenStore
	signer Signer
	now    Clock
}

func NewEngine(store TokenStore, signer Signer, now Clock) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, signer: signer, now: now}
}

// Parse 校验签名并解出载荷，返回载荷与令牌指纹。不访问存储
func (e *Engine) Parse(tokenString string) (*model.LicensePayload, string, error) {
	body, sig, err := token.Unpack(tokenString, e.signer.Alg())
	if err != nil {
		return nil, "", classify(err)
	}
	if err := e.signer.Verify(body, sig); err != nil {
		return nil, "", classify(err)
	}
	payload, err := token.DecodePayload(body)
	if err != nil {
		return nil, "", classify(err)
	}
	return payload, token.Fingerprint(tokenString), nil
}

// Register 签发后写入 pending 记录；同一支付流水重复登记返回 duplicate_payment
func (e *Engine) Register(ctx context.Context, tokenString string, payload *model.LicensePayload, paymentReference string) (*model.ActivationRecord, error) {
	record := &model.ActivationRecord{
		Fingerprint:   token.Fingerprint(tokenString),
		LicenseID:     payload.LicenseID,
		Subject:       payload.Subject,
		IssuedAt:      payload.IssuedAt,
		DurationHours: payload.DurationHours,
		Status:        model.StatusPending,
	}
	if paymentReference != "" {
		ref := paymentReference
		record.PaymentReference = &ref
	}

	if err := e.store.Create(ctx, record); err != nil {
		if errors.Is(err, model.ErrDuplicatePayment) {
			return nil, newError(KindDuplicatePayment, paymentReference, err)
		}
		return nil, newError(KindStoreUnavailable, "create record", err)
	}
	return record, nil
}

// Activate 首次激活：窗口从现在开始计算。已激活的令牌再次提交不会延长或重置窗口
func (e *Engine) Activate(ctx context.Context, in ActivateInput) (*Metadata, error) {
	payload, fp, err := e.Parse(in.Token)
	if err != nil {
		return nil, err
	}
	if in.Subject != "" && NormalizeSubject(in.Subject) != payload.Subject {
		return nil, newError(KindSubjectMismatch, "", nil)
	}

	record, err := e.lookup(ctx, fp)
	if err != nil {
		return nil, err
	}
	if err := pendingOnly(record); err != nil {
		return nil, err
	}

	activatedAt := e.now().Unix()
	expiresAt := activatedAt + payload.DurationSeconds()
	err = e.store.MarkActive(ctx, fp, model.Activation{
		ActivatedAt: activatedAt,
		ExpiresAt:   expiresAt,
		IP:          in.IP,
		UserAgent:   in.UserAgent,
	})
	if errors.Is(err, model.ErrStateConflict) {
		// 并发激活中落败的一方，重新读取以区分已激活与已吊销
		current, gerr := e.lookup(ctx, fp)
		if gerr != nil {
			return nil, gerr
		}
		if perr := pendingOnly(current); perr != nil {
			return nil, perr
		}
		return nil, newError(KindAlreadyActivated, "", err)
	}
	if err != nil {
		return nil, newError(KindStoreUnavailable, "mark active", err)
	}

	return &Metadata{
		Fingerprint: fp,
		LicenseID:   payload.LicenseID,
		Subject:     payload.Subject,
		IssuedAt:    payload.IssuedAt,
		ActivatedAt: activatedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// Check 校验令牌当前是否可用。激活状态只以存储为准，载荷里的时间字段不参与判断
func (e *Engine) Check(ctx context.Context, tokenString string) (*model.LicensePayload, *Metadata, error) {
	payload, fp, err := e.Parse(tokenString)
	if err != nil {
		return nil, nil, err
	}
	record, err := e.lookup(ctx, fp)
	if err != nil {
		return payload, nil, err
	}

	switch record.Status {
	case model.StatusRevoked:
		return payload, nil, newError(KindRevoked, "", nil)
	case model.StatusPending:
		return payload, nil, newError(KindNotActivated, "", nil)
	case model.StatusExpired:
		return payload, nil, newError(KindExpired, "", nil)
	}
	if record.ActivatedAt == nil || record.ExpiresAt == nil {
		return payload, nil, newError(KindNotActivated, "active record without window", nil)
	}

	// 边界时刻算作过期
	if e.now().Unix() >= *record.ExpiresAt {
		return payload, nil, newError(KindExpired, "", nil)
	}
	return payload, &Metadata{
		Fingerprint: fp,
		LicenseID:   payload.LicenseID,
		Subject:     payload.Subject,
		IssuedAt:    payload.IssuedAt,
		ActivatedAt: *record.ActivatedAt,
		ExpiresAt:   *record.ExpiresAt,
	}, nil
}

// Revoke 管理员吊销，只允许 pending 或仍在窗口内的 active 记录
func (e *Engine) Revoke(ctx context.Context, fingerprint string) (*model.ActivationRecord, error) {
	record, err := e.lookup(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	now := e.now().Unix()
	switch record.EffectiveStatus(now) {
	case model.StatusRevoked:
		return nil, newError(KindRevoked, "already revoked", nil)
	case model.StatusExpired:
		return nil, newError(KindExpired, "", nil)
	}

	err = e.store.MarkRevoked(ctx, fingerprint, now)
	if errors.Is(err, model.ErrStateConflict) {
		return nil, newError(KindRevoked, "already revoked", err)
	}
	if err != nil {
		return nil, newError(KindStoreUnavailable, "mark revoked", err)
	}

	record.Status = model.StatusRevoked
	record.RevokedAt = &now
	return record, nil
}

func (e *Engine) lookup(ctx context.Context, fp string) (*model.ActivationRecord, error) {
	record, err := e.store.Get(ctx, fp)
	if errors.Is(err, model.ErrRecordNotFound) {
		return nil, newError(KindUnknownToken, "", nil)
	}
	if err != nil {
		return nil, newError(KindStoreUnavailable, "get record", err)
	}
	return record, nil
}

func pendingOnly(record *model.ActivationRecord) error {
	switch record.Status {
	case model.StatusPending:
		return nil
	case model.StatusRevoked:
		return newError(KindRevoked, "", nil)
	default:
		return newError(KindAlreadyActivated, "", nil)
	}
}
