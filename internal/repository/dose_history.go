package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/olayemidamola/medsync/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DoseHistoryRepository 剂量历史仓库（追加写，审计用途）
type DoseHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDoseHistoryRepository 创建剂量历史仓库
func NewDoseHistoryRepository(db *sql.DB, logger *zap.Logger) *DoseHistoryRepository {
	return &DoseHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// DoseHistoryFilters 剂量历史过滤条件
type DoseHistoryFilters struct {
	// 时间段过滤
	StartTime *time.Time // 开始时间（occurred_at >= StartTime）
	EndTime   *time.Time // 结束时间（occurred_at <= EndTime）

	// 药物过滤
	MedicationID *string // 药物ID（直接过滤）

	// 状态过滤
	ToStatus   *string  // 目标状态
	ToStatuses []string // 目标状态列表（IN 查询）
}

// ============================================
// 基础 CRUD 操作
// ============================================

// Create 写入一条历史记录（RecordID 为空时自动生成）
func (r *DoseHistoryRepository) Create(ctx context.Context, record *models.DoseHistoryRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.MedicationID == "" {
		return fmt.Errorf("medication_id is required")
	}
	if record.RecordID == "" {
		record.RecordID = uuid.New().String()
	}
	if len(record.NotifiedCaregivers) == 0 {
		record.NotifiedCaregivers = json.RawMessage("[]")
	}
	if len(record.Details) == 0 {
		record.Details = json.RawMessage("{}")
	}

	query := `
		INSERT INTO dose_history (
			record_id,
			medication_id,
			medication_name,
			dosage,
			dose_index,
			scheduled_time,
			from_status,
			to_status,
			occurred_at,
			notified_caregivers,
			details,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, CURRENT_TIMESTAMP
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		record.RecordID,
		record.MedicationID,
		record.MedicationName,
		record.Dosage,
		record.DoseIndex,
		record.ScheduledTime,
		record.FromStatus,
		record.ToStatus,
		record.OccurredAt,
		[]byte(record.NotifiedCaregivers),
		[]byte(record.Details),
	)

	if err != nil {
		return fmt.Errorf("failed to create dose history record: %w", err)
	}

	return nil
}

// GetRecentTransition 获取某剂量最近一次状态转移（无记录返回 nil）
func (r *DoseHistoryRepository) GetRecentTransition(ctx context.Context, medicationID string, doseIndex int) (*models.DoseHistoryRecord, error) {
	if medicationID == "" {
		return nil, fmt.Errorf("medication_id is required")
	}

	query := `
		SELECT
			record_id,
			medication_id,
			medication_name,
			dosage,
			dose_index,
			scheduled_time,
			from_status,
			to_status,
			occurred_at,
			notified_caregivers,
			details,
			created_at
		FROM dose_history
		WHERE medication_id = $1
		  AND dose_index = $2
		ORDER BY occurred_at DESC
		LIMIT 1
	`

	record, err := r.scanRecord(r.db.QueryRowContext(ctx, query, medicationID, doseIndex))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recent transition: %w", err)
	}

	return record, nil
}

// ============================================
// 查询操作
// ============================================

// buildWhereClause 构建 WHERE 子句（用于 ListDoseHistory 等查询方法）
func (r *DoseHistoryRepository) buildWhereClause(filters DoseHistoryFilters, args *[]interface{}, argN *int) []string {
	where := []string{}

	// 时间段过滤
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("occurred_at >= $%d", *argN))
		*args = append(*args, *filters.StartTime)
		*argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("occurred_at <= $%d", *argN))
		*args = append(*args, *filters.EndTime)
		*argN++
	}

	// 药物过滤
	if filters.MedicationID != nil {
		where = append(where, fmt.Sprintf("medication_id = $%d", *argN))
		*args = append(*args, *filters.MedicationID)
		*argN++
	}

	// 状态过滤
	if filters.ToStatus != nil {
		where = append(where, fmt.Sprintf("to_status = $%d", *argN))
		*args = append(*args, *filters.ToStatus)
		*argN++
	}
	if len(filters.ToStatuses) > 0 {
		placeholders := make([]string, len(filters.ToStatuses))
		for i := range filters.ToStatuses {
			placeholders[i] = fmt.Sprintf("$%d", *argN)
			*args = append(*args, filters.ToStatuses[i])
			*argN++
		}
		where = append(where, fmt.Sprintf("to_status IN (%s)", strings.Join(placeholders, ", ")))
	}

	return where
}

// ListDoseHistory 列表查询（支持多条件过滤、分页，按发生时间倒序）
func (r *DoseHistoryRepository) ListDoseHistory(ctx context.Context, filters DoseHistoryFilters, page, size int) ([]*models.DoseHistoryRecord, int, error) {
	args := []interface{}{}
	argN := 1
	where := r.buildWhereClause(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	// 计算总数
	queryCount := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM dose_history
		%s
	`, whereClause)

	var total int
	err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count dose history: %w", err)
	}

	// 分页处理
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`
		SELECT
			record_id,
			medication_id,
			medication_name,
			dosage,
			dose_index,
			scheduled_time,
			from_status,
			to_status,
			occurred_at,
			notified_caregivers,
			details,
			created_at
		FROM dose_history
		%s
		ORDER BY occurred_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argN, argN+1)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list dose history: %w", err)
	}
	defer rows.Close()

	records := []*models.DoseHistoryRecord{}
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan dose history record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate dose history rows: %w", err)
	}

	return records, total, nil
}

// CountDoseHistory 按目标状态统计区间内的转移次数
func (r *DoseHistoryRepository) CountDoseHistory(ctx context.Context, filters DoseHistoryFilters) (map[string]int, error) {
	args := []interface{}{}
	argN := 1
	where := r.buildWhereClause(filters, &args, &argN)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT to_status, COUNT(*)
		FROM dose_history
		%s
		GROUP BY to_status
	`, whereClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count dose history by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}

	return counts, nil
}

// scanner 兼容 *sql.Row 与 *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *DoseHistoryRepository) scanRecord(row scanner) (*models.DoseHistoryRecord, error) {
	var record models.DoseHistoryRecord
	var notifiedCaregivers, details []byte

	err := row.Scan(
		&record.RecordID,
		&record.MedicationID,
		&record.MedicationName,
		&record.Dosage,
		&record.DoseIndex,
		&record.ScheduledTime,
		&record.FromStatus,
		&record.ToStatus,
		&record.OccurredAt,
		&notifiedCaregivers,
		&details,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	// 处理 JSONB 字段
	if len(notifiedCaregivers) > 0 {
		record.NotifiedCaregivers = notifiedCaregivers
	} else {
		record.NotifiedCaregivers = json.RawMessage("[]")
	}
	if len(details) > 0 {
		record.Details = details
	} else {
		record.Details = json.RawMessage("{}")
	}

	return &record, nil
}
