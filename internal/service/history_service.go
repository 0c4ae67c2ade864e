package service

import (
	"context"
	"fmt"

	"github.com/olayemidamola/medsync/internal/models"
	"github.com/olayemidamola/medsync/internal/repository"

	"go.uber.org/zap"
)

// HistoryService 剂量历史服务层
// 职责：
// 1. 业务规则验证（分页上限、过滤条件）
// 2. 依从性统计编排
type HistoryService struct {
	historyRepo *repository.DoseHistoryRepository
	logger      *zap.Logger
}

// NewHistoryService 创建剂量历史服务
func NewHistoryService(
	historyRepo *repository.DoseHistoryRepository,
	logger *zap.Logger,
) *HistoryService {
	return &HistoryService{
		historyRepo: historyRepo,
		logger:      logger,
	}
}

// 分页与导出上限
const (
	defaultPageSize = 20
	maxPageSize     = 100
	exportMaxRows   = 1000
)

// ListDoseHistory 查询剂量历史列表（支持多条件过滤和分页）
// 业务规则：
// - page 和 size 必须 > 0，size 上限 100
// - 按发生时间倒序
func (s *HistoryService) ListDoseHistory(
	ctx context.Context,
	filters repository.DoseHistoryFilters,
	page, size int,
) ([]*models.DoseHistoryRecord, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	records, total, err := s.historyRepo.ListDoseHistory(ctx, filters, page, size)
	if err != nil {
		s.logger.Error("Failed to list dose history",
			zap.Error(err),
		)
		return nil, 0, fmt.Errorf("failed to list dose history: %w", err)
	}

	return records, total, nil
}

// ExportDoseHistory 导出用查询（不分页，单次上限 1000 条）
// 不走 ListDoseHistory 的分页上限，避免导出被截断到 100 条
func (s *HistoryService) ExportDoseHistory(
	ctx context.Context,
	filters repository.DoseHistoryFilters,
) ([]*models.DoseHistoryRecord, error) {
	records, _, err := s.historyRepo.ListDoseHistory(ctx, filters, 1, exportMaxRows)
	if err != nil {
		s.logger.Error("Failed to load dose history for export",
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to load dose history for export: %w", err)
	}
	return records, nil
}

// AdherenceSummary 依从性统计
type AdherenceSummary struct {
	Taken  int `json:"taken"`
	Missed int `json:"missed"`
	Total  int `json:"total"`
}

// GetAdherenceSummary 统计区间内的服药依从性
// 只统计终态转移（taken/missed），中间状态不计入
func (s *HistoryService) GetAdherenceSummary(
	ctx context.Context,
	filters repository.DoseHistoryFilters,
) (*AdherenceSummary, error) {
	filters.ToStatuses = []string{
		string(models.DoseStatusTaken),
		string(models.DoseStatusMissed),
	}
	filters.ToStatus = nil

	counts, err := s.historyRepo.CountDoseHistory(ctx, filters)
	if err != nil {
		s.logger.Error("Failed to compute adherence summary",
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to compute adherence summary: %w", err)
	}

	summary := &AdherenceSummary{
		Taken:  counts[string(models.DoseStatusTaken)],
		Missed: counts[string(models.DoseStatusMissed)],
	}
	summary.Total = summary.Taken + summary.Missed
	return summary, nil
}
