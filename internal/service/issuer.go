package service

import (
	"errors"
	"strings"
	"time"

	"license-token-service/internal/model"
	"license-token-service/internal/token"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MaxDurationHours 单张许可证的最长使用窗口（10 年）
const MaxDurationHours = 24 * 365 * 10

// Clock 可注入的时间源，测试里固定
type Clock func() time.Time

// Signer 签名与校验，由 keys.Signer 实现
type Signer interface {
	Alg() string
	Sign(data []byte) ([]byte, error)
	Verify(data, sig []byte) error
}

type issueInput struct {
	Subject       string `validate:"required,email,max=254"`
	DurationHours int    `validate:"gt=0"`
}

// Issuer 构造载荷并签名，不负责持久化
type Issuer struct {
	signer   Signer
	now      Clock
	validate *validator.Validate
}

func NewIssuer(signer Signer, now Clock) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{signer: signer, now: now, validate: validator.New()}
}

// NormalizeSubject 去掉首尾空白并转小写，签发和激活时的比较都基于它
func NormalizeSubject(subject string) string {
	return strings.ToLower(strings.TrimSpace(subject))
}

// Issue 签发一张新的待激活许可证。同一 subject 多次签发得到互不相关的令牌
func (i *Issuer) Issue(subject string, durationHours int, extra map[string]any) (string, *model.LicensePayload, error) {
	in := issueInput{Subject: NormalizeSubject(subject), DurationHours: durationHours}
	if err := i.validate.Struct(in); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 && verrs[0].Field() == "DurationHours" {
			return "", nil, newError(KindInvalidDuration, "", err)
		}
		return "", nil, newError(KindInvalidSubject, "", err)
	}
	if durationHours > MaxDurationHours {
		return "", nil, errorf(KindInvalidDuration, "duration %d exceeds %d hours", durationHours, MaxDurationHours)
	}
	if len(extra) == 0 {
		extra = nil
	}

	payload := &model.LicensePayload{
		Subject:       in.Subject,
		IssuedAt:      i.now().Unix(),
		DurationHours: durationHours,
		Version:       model.CurrentPayloadVersion,
		LicenseID:     uuid.NewString(),
		Extra:         extra,
	}

	tok, err := i.sign(payload)
	if err != nil {
		return "", nil, err
	}
	return tok, payload, nil
}

func (i *Issuer) sign(payload *model.LicensePayload) (string, error) {
	body, err := token.EncodePayload(payload)
	if errors.Is(err, token.ErrNonInteger) {
		return "", newError(KindInvalidExtra, "", err)
	}
	if err != nil {
		return "", newError(KindMalformedPayload, "encode", err)
	}
	sig, err := i.signer.Sign(body)
	if err != nil {
		return "", classify(err)
	}
	tok, err := token.Pack(i.signer.Alg(), body, sig)
	if err != nil {
		return "", classify(err)
	}
	return tok, nil
}
