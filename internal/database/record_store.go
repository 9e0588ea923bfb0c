package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"license-token-service/internal/model"

	"gorm.io/gorm"
)

// RecordStore 基于 GORM 的令牌存储，ActivationRecord 的唯一持久化所有者
type RecordStore struct {
	db *gorm.DB
}

func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

// Create 签发时写入 pending 记录
func (s *RecordStore) Create(ctx context.Context, record *model.ActivationRecord) error {
	err := s.db.WithContext(ctx).Create(record).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return err
	}

	// 区分是支付流水重复还是指纹重复
	if record.PaymentReference != nil {
		var count int64
		if cerr := s.db.WithContext(ctx).Model(&model.ActivationRecord{}).
			Where("payment_reference = ?", *record.PaymentReference).
			Count(&count).Error; cerr == nil && count > 0 {
			return model.ErrDuplicatePayment
		}
	}
	return model.ErrRecordExists
}

func (s *RecordStore) Get(ctx context.Context, fingerprint string) (*model.ActivationRecord, error) {
	var record model.ActivationRecord
	err := s.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByPayment 按支付流水查找，webhook 重放时使用
func (s *RecordStore) FindByPayment(ctx context.Context, paymentReference string) (*model.ActivationRecord, error) {
	var record model.ActivationRecord
	err := s.db.WithContext(ctx).Where("payment_reference = ?", paymentReference).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkActive pending -> active 的比较并交换：单条带状态条件的 UPDATE，
// 并发激活同一指纹时只有一个能命中行，其余返回 ErrStateConflict
func (s *RecordStore) MarkActive(ctx context.Context, fingerprint string, a model.Activation) error {
	res := s.db.WithContext(ctx).Model(&model.ActivationRecord{}).
		Where("fingerprint = ? AND status = ?", fingerprint, model.StatusPending).
		Updates(map[string]any{
			"status":                model.StatusActive,
			"activated_at":          a.ActivatedAt,
			"expires_at":            a.ExpiresAt,
			"activation_ip":         a.IP,
			"activation_user_agent": a.UserAgent,
			"updated_at":            time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return model.ErrStateConflict
	}
	return nil
}

// MarkRevoked pending / active -> revoked
func (s *RecordStore) MarkRevoked(ctx context.Context, fingerprint string, at int64) error {
	res := s.db.WithContext(ctx).Model(&model.ActivationRecord{}).
		Where("fingerprint = ? AND status IN ?", fingerprint, []model.RecordStatus{model.StatusPending, model.StatusActive}).
		Updates(map[string]any{
			"status":     model.StatusRevoked,
			"revoked_at": at,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return model.ErrStateConflict
	}
	return nil
}

// List 分页查询记录，按签发时间倒序
func (s *RecordStore) List(ctx context.Context, filter model.RecordFilter) ([]model.ActivationRecord, int64, error) {
	db := s.db.WithContext(ctx).Model(&model.ActivationRecord{})
	switch filter.Status {
	case "":
	case model.StatusExpired:
		db = db.Where("status = ? AND expires_at <= ?", model.StatusActive, filter.Now)
	case model.StatusActive:
		db = db.Where("status = ? AND (expires_at IS NULL OR expires_at > ?)", model.StatusActive, filter.Now)
	default:
		db = db.Where("status = ?", filter.Status)
	}
	if filter.Subject != "" {
		db = db.Where("subject LIKE ?", "%"+filter.Subject+"%")
	}

	// 获取总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	var records []model.ActivationRecord
	if err := db.Order("issued_at DESC").Offset(filter.Offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// CountByStatus 各状态数量，expired 为读取时投影（active 且 expires_at <= now）
func (s *RecordStore) CountByStatus(ctx context.Context, now int64) (map[model.RecordStatus]int64, error) {
	type row struct {
		Status model.RecordStatus
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&model.ActivationRecord{}).
		Select("CASE WHEN status = ? AND expires_at <= ? THEN ? ELSE status END AS status, COUNT(*) AS count",
			model.StatusActive, now, model.StatusExpired).
		Group("1").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[model.RecordStatus]int64{
		model.StatusPending: 0,
		model.StatusActive:  0,
		model.StatusExpired: 0,
		model.StatusRevoked: 0,
	}
	for _, r := range rows {
		counts[r.Status] += r.Count
	}
	return counts, nil
}

// RecordUsage 写入一次校验 / 激活审计
func (s *RecordStore) RecordUsage(ctx context.Context, usage *model.LicenseUsage) error {
	return s.db.WithContext(ctx).Create(usage).Error
}

// ListUsage 查询某个指纹最近的使用记录
func (s *RecordStore) ListUsage(ctx context.Context, fingerprint string, limit int) ([]model.LicenseUsage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var usages []model.LicenseUsage
	err := s.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).
		Order("timestamp desc").Limit(limit).Find(&usages).Error
	return usages, err
}

// CountUsage 按动作与结果统计
func (s *RecordStore) CountUsage(ctx context.Context, action, outcome string) (int64, error) {
	var count int64
	db := s.db.WithContext(ctx).Model(&model.LicenseUsage{}).Where("action = ?", action)
	if outcome != "" {
		db = db.Where("outcome = ?", outcome)
	}
	err := db.Count(&count).Error
	return count, err
}

func (s *RecordStore) CreateOperation(ctx context.Context, op *model.OperationLog) error {
	return s.db.WithContext(ctx).Create(op).Error
}

// ListOperations 获取操作日志列表
func (s *RecordStore) ListOperations(ctx context.Context, page, pageSize int) ([]model.OperationLog, int64, error) {
	var logs []model.OperationLog
	var total int64

	db := s.db.WithContext(ctx)

	// 获取总数
	if err := db.Model(&model.OperationLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 获取分页数据
	offset := (page - 1) * pageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
