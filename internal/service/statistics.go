package service

import (
	"context"

	"license-token-service/internal/model"
)

// Statistics 各状态数量与激活 / 校验次数
func (s *LicenseService) Statistics(ctx context.Context) (*model.LicenseStatistics, error) {
	counts, err := s.store.CountByStatus(ctx, s.now().Unix())
	if err != nil {
		return nil, newError(KindStoreUnavailable, "count by status", err)
	}

	stats := &model.LicenseStatistics{
		PendingLicenses: counts[model.StatusPending],
		ActiveLicenses:  counts[model.StatusActive],
		ExpiredLicenses: counts[model.StatusExpired],
		RevokedLicenses: counts[model.StatusRevoked],
	}
	for _, n := range counts {
		stats.TotalLicenses += n
	}

	// 统计激活次数
	if stats.TotalActivations, err = s.store.CountUsage(ctx, ActionActivate, ""); err != nil {
		return nil, newError(KindStoreUnavailable, "count activations", err)
	}
	ok, err := s.store.CountUsage(ctx, ActionActivate, OutcomeOK)
	if err != nil {
		return nil, newError(KindStoreUnavailable, "count activations", err)
	}
	stats.FailedActivations = stats.TotalActivations - ok

	// 统计校验次数
	if stats.TotalChecks, err = s.store.CountUsage(ctx, ActionVerify, ""); err != nil {
		return nil, newError(KindStoreUnavailable, "count checks", err)
	}
	ok, err = s.store.CountUsage(ctx, ActionVerify, OutcomeOK)
	if err != nil {
		return nil, newError(KindStoreUnavailable, "count checks", err)
	}
	stats.FailedChecks = stats.TotalChecks - ok

	return stats, nil
}
