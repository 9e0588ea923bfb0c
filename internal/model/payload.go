package model

// CurrentPayloadVersion 当前签发使用的载荷版本
const CurrentPayloadVersion = 1

// LicensePayload 被签名的许可证内容。
// 采用延迟激活模型：签发时 ActivatedAt 与 ExpiresAt 始终为空，实际使用窗口记录在 ActivationRecord 中。
type LicensePayload struct {
	Subject       string         `json:"subject"`
	IssuedAt      int64          `json:"issued_at"`
	ActivatedAt   *int64         `json:"activated_at"`
	DurationHours int            `json:"duration_hours"`
	ExpiresAt     *int64         `json:"expires_at"`
	Version       int            `json:"version"`
	LicenseID     string         `json:"license_id"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// DurationSeconds 使用窗口长度（秒）
func (p *LicensePayload) DurationSeconds() int64 {
	return int64(p.DurationHours) * 3600
}
