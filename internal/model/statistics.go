package model

// LicenseStatistics 许可证统计信息
type LicenseStatistics struct {
	TotalLicenses     int64 `json:"total_licenses"`
	PendingLicenses   int64 `json:"pending_licenses"`
	ActiveLicenses    int64 `json:"active_licenses"`
	ExpiredLicenses   int64 `json:"expired_licenses"`
	RevokedLicenses   int64 `json:"revoked_licenses"`
	TotalActivations  int64 `json:"total_activations"`
	FailedActivations int64 `json:"failed_activations"`
	TotalChecks       int64 `json:"total_checks"`
	FailedChecks      int64 `json:"failed_checks"`
}

// GetSuccessRate 计算激活成功率
func (ls *LicenseStatistics) GetSuccessRate() float64 {
	if ls.TotalActivations == 0 {
		return 0
	}
	return float64(ls.TotalActivations-ls.FailedActivations) / float64(ls.TotalActivations)
}

// GetRedemptionRate 已签发的许可证中被激活过的比例（吊销的不计入）
func (ls *LicenseStatistics) GetRedemptionRate() float64 {
	issued := ls.TotalLicenses - ls.RevokedLicenses
	if issued <= 0 {
		return 0
	}
	return float64(ls.ActiveLicenses+ls.ExpiredLicenses) / float64(issued)
}
