package model

import (
	"time"
)

// LicenseUsage 每次校验 / 激活的审计记录
type LicenseUsage struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Fingerprint string    `json:"fingerprint" gorm:"index;size:64"`
	Action      string    `json:"action"` // "verify", "activate"
	Outcome     string    `json:"outcome"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
	Timestamp   time.Time `json:"timestamp" gorm:"index"`
}
