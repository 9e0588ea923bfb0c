package service

import (
	"context"
	"encoding/json"

	"license-token-service/internal/model"
)

// LogOperation 写入操作日志；失败只记录告警，不影响主流程
func (s *LicenseService) LogOperation(ctx context.Context, actor, action, target, targetID string, details any) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("marshal operation details failed")
		detailsJSON = []byte("{}")
	}

	op := &model.OperationLog{
		Actor:     actor,
		Action:    action,
		Target:    target,
		TargetID:  targetID,
		Details:   string(detailsJSON),
		CreatedAt: s.now(),
	}
	if err := s.store.CreateOperation(ctx, op); err != nil {
		s.log.Warn().Err(err).Str("action", action).Str("target_id", targetID).Msg("write operation log failed")
	}
}

// OperationLogs 获取操作日志列表
func (s *LicenseService) OperationLogs(ctx context.Context, page, pageSize int) ([]model.OperationLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	// 限制页面大小
	if pageSize > 100 {
		pageSize = 100
	}

	logs, total, err := s.store.ListOperations(ctx, page, pageSize)
	if err != nil {
		return nil, 0, newError(KindStoreUnavailable, "list operations", err)
	}
	return logs, total, nil
}
