package model

import "time"

type RecordStatus string

const (
	StatusPending RecordStatus = "pending"
	StatusActive  RecordStatus = "active"
	StatusExpired RecordStatus = "expired"
	StatusRevoked RecordStatus = "revoked"
)

// ActivationRecord 以令牌指纹为主键的单次激活记录，不保存原始令牌
type ActivationRecord struct {
	Fingerprint         string       `json:"fingerprint" gorm:"primaryKey;size:64"`
	LicenseID           string       `json:"license_id" gorm:"index;not null"`
	Subject             string       `json:"subject" gorm:"index;not null"`
	IssuedAt            int64        `json:"issued_at" gorm:"not null"`
	DurationHours       int          `json:"duration_hours" gorm:"not null"`
	Status              RecordStatus `json:"status" gorm:"size:16;index;not null"`
	ActivatedAt         *int64       `json:"activated_at"`
	ExpiresAt           *int64       `json:"expires_at"`
	RevokedAt           *int64       `json:"revoked_at,omitempty"`
	PaymentReference    *string      `json:"payment_reference" gorm:"uniqueIndex"`
	ActivationIP        string       `json:"activation_ip,omitempty"`
	ActivationUserAgent string       `json:"activation_user_agent,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// EffectiveStatus 读取时的状态投影：已激活且 now >= expires_at 视为过期
func (r *ActivationRecord) EffectiveStatus(now int64) RecordStatus {
	if r.Status == StatusActive && r.ExpiresAt != nil && now >= *r.ExpiresAt {
		return StatusExpired
	}
	return r.Status
}

// Activation 激活时写入的字段
type Activation struct {
	ActivatedAt int64
	ExpiresAt   int64
	IP          string
	UserAgent   string
}

// RecordFilter 列表查询条件。Status 按读取时投影过滤，active / expired 依赖 Now 区分
type RecordFilter struct {
	Status  RecordStatus
	Subject string
	Now     int64
	Limit   int
	Offset  int
}
