package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/olayemidamola/medsync/internal/repository"
	"github.com/olayemidamola/medsync/internal/service"

	"go.uber.org/zap"
)

// HistoryHandler 剂量历史 Handler
type HistoryHandler struct {
	historyService *service.HistoryService
	logger         *zap.Logger
}

// NewHistoryHandler 创建剂量历史 Handler
func NewHistoryHandler(historyService *service.HistoryService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
		logger:         logger,
	}
}

// parseHistoryFilters 解析查询参数为过滤条件
// 时间参数为 RFC3339；非法时间返回错误
func parseHistoryFilters(r *http.Request) (repository.DoseHistoryFilters, error) {
	filters := repository.DoseHistoryFilters{}
	query := r.URL.Query()

	if raw := query.Get("start_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, fmt.Errorf("invalid start_time: expected RFC3339")
		}
		filters.StartTime = &t
	}
	if raw := query.Get("end_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, fmt.Errorf("invalid end_time: expected RFC3339")
		}
		filters.EndTime = &t
	}
	if raw := query.Get("medication_id"); raw != "" {
		filters.MedicationID = &raw
	}
	if raw := query.Get("status"); raw != "" {
		filters.ToStatus = &raw
	}

	return filters, nil
}

// ListHistory 查询剂量历史列表
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters, err := parseHistoryFilters(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	page := parseInt(r.URL.Query().Get("page"), 1)
	size := parseInt(r.URL.Query().Get("size"), 20)

	records, total, err := h.historyService.ListDoseHistory(ctx, filters, page, size)
	if err != nil {
		h.logger.Error("ListHistory failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": records,
		"total": total,
		"page":  page,
		"size":  size,
	}))
}

// GetAdherence 查询依从性统计
func (h *HistoryHandler) GetAdherence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters, err := parseHistoryFilters(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	summary, err := h.historyService.GetAdherenceSummary(ctx, filters)
	if err != nil {
		h.logger.Error("GetAdherence failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(summary))
}

// ExportHistory 导出剂量历史 Excel 文件
func (h *HistoryHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters, err := parseHistoryFilters(r)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	records, err := h.historyService.ExportDoseHistory(ctx, filters)
	if err != nil {
		h.logger.Error("ExportHistory failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	fileBytes, err := GenerateDoseHistoryExport(records)
	if err != nil {
		h.logger.Error("Failed to generate history export",
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail("failed to generate export file"))
		return
	}

	filename := fmt.Sprintf("dose_history_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(fileBytes)
}
