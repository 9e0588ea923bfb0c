package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"license-token-service/internal/model"
)

var ErrMalformedPayload = errors.New("malformed payload")

// EncodePayload 载荷的规范化字节，签名即作用于此
func EncodePayload(p *model.LicensePayload) ([]byte, error) {
	return Canonical(p)
}

// 解码时用指针区分“缺失”和“零值”
type wirePayload struct {
	Subject       *string        `json:"subject"`
	IssuedAt      *int64         `json:"issued_at"`
	ActivatedAt   *int64         `json:"activated_at"`
	DurationHours *int           `json:"duration_hours"`
	ExpiresAt     *int64         `json:"expires_at"`
	Version       *int           `json:"version"`
	LicenseID     *string        `json:"license_id"`
	Extra         map[string]any `json:"extra"`
}

// DecodePayload EncodePayload 的逆过程，结构无效或缺少必填字段时返回 ErrMalformedPayload
func DecodePayload(b []byte) (*model.LicensePayload, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var w wirePayload
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedPayload)
	}

	switch {
	case w.Subject == nil || strings.TrimSpace(*w.Subject) == "":
		return nil, fmt.Errorf("%w: subject is required", ErrMalformedPayload)
	case w.IssuedAt == nil || *w.IssuedAt <= 0:
		return nil, fmt.Errorf("%w: issued_at is required", ErrMalformedPayload)
	case w.DurationHours == nil || *w.DurationHours <= 0:
		return nil, fmt.Errorf("%w: duration_hours must be positive", ErrMalformedPayload)
	case w.Version == nil:
		return nil, fmt.Errorf("%w: version is required", ErrMalformedPayload)
	case *w.Version < 1 || *w.Version > model.CurrentPayloadVersion:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedPayload, *w.Version)
	case w.LicenseID == nil || *w.LicenseID == "":
		return nil, fmt.Errorf("%w: license_id is required", ErrMalformedPayload)
	}

	p := &model.LicensePayload{
		Subject:       *w.Subject,
		IssuedAt:      *w.IssuedAt,
		ActivatedAt:   w.ActivatedAt,
		DurationHours: *w.DurationHours,
		ExpiresAt:     w.ExpiresAt,
		Version:       *w.Version,
		LicenseID:     *w.LicenseID,
	}
	if len(w.Extra) > 0 {
		p.Extra = w.Extra
	}
	return p, nil
}
