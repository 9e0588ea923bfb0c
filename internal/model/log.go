package model

import "time"

// OperationLog 管理操作与 webhook 签发的审计日志，Details 为 JSON 文本
type OperationLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Actor     string    `json:"actor" gorm:"index;size:64"` // 管理员名或 "webhook"
	Action    string    `json:"action" gorm:"size:32"`      // issue / revoke / login / sync
	Target    string    `json:"target" gorm:"size:32"`
	TargetID  string    `json:"target_id" gorm:"index;size:64"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
