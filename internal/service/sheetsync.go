package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"license-token-service/internal/config"
	"license-token-service/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// sheetColumns 导出表的列顺序，A 列指纹作为行的唯一键
var sheetColumns = []string{
	"fingerprint", "license_id", "subject", "status", "issued_at",
	"duration_hours", "activated_at", "expires_at", "revoked_at", "payment_reference",
}

// SheetSyncService 把激活记录单向导出到 Google Sheet，表格不会回写数据库
type SheetSyncService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	log           zerolog.Logger
	now           Clock
}

// NewSheetSyncService 未启用时返回 nil，nil 接收者上的方法都是空操作
func NewSheetSyncService(ctx context.Context, cfg config.SheetConfig, log zerolog.Logger) (*SheetSyncService, error) {
	if !cfg.Enable {
		return nil, nil
	}

	// 读取凭证文件
	b, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read sheet credentials: %w", err)
	}

	// 使用服务账号授权
	creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("load sheet credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, err
	}

	return &SheetSyncService{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		log:           log.With().Str("component", "sheetsync").Logger(),
		now:           time.Now,
	}, nil
}

// SyncRecord 同步单条记录，已存在则覆盖该行
func (s *SheetSyncService) SyncRecord(ctx context.Context, record *model.ActivationRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.SyncRecords(ctx, []model.ActivationRecord{*record})
	return err
}

// SyncRecords 批量同步，返回新追加的行数
func (s *SheetSyncService) SyncRecords(ctx context.Context, records []model.ActivationRecord) (int, error) {
	if s == nil || len(records) == 0 {
		return 0, nil
	}

	lastCol := columnLetter(len(sheetColumns))
	if err := s.ensureHeader(ctx, lastCol); err != nil {
		return 0, err
	}

	// 先检查 Sheet 中已有的指纹
	keyResp, err := s.service.Spreadsheets.Values.
		Get(s.spreadsheetID, fmt.Sprintf("'%s'!A2:A", s.sheetName)).
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read sheet fingerprints: %w", err)
	}
	index := rowIndexByFingerprint(keyResp.Values)

	now := s.now().Unix()
	var updates []*sheets.ValueRange
	var appends [][]interface{}
	for i := range records {
		row := recordToRow(&records[i], now)
		if rowNum, ok := index[records[i].Fingerprint]; ok {
			updates = append(updates, &sheets.ValueRange{
				Range:  fmt.Sprintf("'%s'!A%d:%s%d", s.sheetName, rowNum, lastCol, rowNum),
				Values: [][]interface{}{row},
			})
			continue
		}
		appends = append(appends, row)
	}

	if len(updates) > 0 {
		_, err = s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             updates,
		}).Context(ctx).Do()
		if err != nil {
			return 0, fmt.Errorf("update sheet rows: %w", err)
		}
	}

	if len(appends) > 0 {
		_, err = s.service.Spreadsheets.Values.Append(
			s.spreadsheetID,
			fmt.Sprintf("'%s'!A2:%s", s.sheetName, lastCol),
			&sheets.ValueRange{Values: appends},
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return 0, fmt.Errorf("append sheet rows: %w", err)
		}
	}

	s.log.Info().Int("updated", len(updates)).Int("appended", len(appends)).Msg("synced records to sheet")
	return len(appends), nil
}

// ensureHeader 第一行为空时写入列名
func (s *SheetSyncService) ensureHeader(ctx context.Context, lastCol string) error {
	headerRange := fmt.Sprintf("'%s'!A1:%s1", s.sheetName, lastCol)
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read sheet header: %w", err)
	}
	if len(resp.Values) > 0 {
		return nil
	}

	header := make([]interface{}, len(sheetColumns))
	for i, col := range sheetColumns {
		header[i] = col
	}
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, headerRange, &sheets.ValueRange{
		Values: [][]interface{}{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet header: %w", err)
	}
	return nil
}

// recordToRow 记录转为一行，状态取读取时投影，时间统一为 UTC RFC3339
func recordToRow(r *model.ActivationRecord, now int64) []interface{} {
	payment := ""
	if r.PaymentReference != nil {
		payment = *r.PaymentReference
	}
	return []interface{}{
		r.Fingerprint,
		r.LicenseID,
		r.Subject,
		string(r.EffectiveStatus(now)),
		formatUnix(&r.IssuedAt),
		strconv.Itoa(r.DurationHours),
		formatUnix(r.ActivatedAt),
		formatUnix(r.ExpiresAt),
		formatUnix(r.RevokedAt),
		payment,
	}
}

// rowIndexByFingerprint 指纹到表格行号的映射，数据从第 2 行开始
func rowIndexByFingerprint(values [][]interface{}) map[string]int {
	index := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if fp, ok := row[0].(string); ok && fp != "" {
			index[fp] = i + 2
		}
	}
	return index
}

func formatUnix(ts *int64) string {
	if ts == nil {
		return ""
	}
	return time.Unix(*ts, 0).UTC().Format(time.RFC3339)
}

// columnLetter 1 -> A，只需支持单字母列
func columnLetter(n int) string {
	return string(rune('A' + n - 1))
}
