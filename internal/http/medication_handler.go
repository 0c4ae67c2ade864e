package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/olayemidamola/medsync/internal/evaluator"
	"github.com/olayemidamola/medsync/internal/service"

	"go.uber.org/zap"
)

// MedicationHandler 药物与剂量动作 Handler
type MedicationHandler struct {
	medicationService *service.MedicationService
	logger            *zap.Logger
}

// NewMedicationHandler 创建药物 Handler
func NewMedicationHandler(medicationService *service.MedicationService, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{
		medicationService: medicationService,
		logger:            logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *MedicationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 路由分发
	path := r.URL.Path
	switch {
	// ListMedications
	case path == "/api/v1/medications" && r.Method == http.MethodGet:
		h.ListMedications(w, r)
	// AddMedication
	case path == "/api/v1/medications" && r.Method == http.MethodPost:
		h.AddMedication(w, r)
	// ConfirmDose
	case strings.HasSuffix(path, "/confirm") && r.Method == http.MethodPost:
		medicationID, doseIndex, ok := parseDosePath(path, "/confirm")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.ConfirmDose(w, r, medicationID, doseIndex)
	// SnoozeDose
	case strings.HasSuffix(path, "/snooze") && r.Method == http.MethodPost:
		medicationID, doseIndex, ok := parseDosePath(path, "/snooze")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.SnoozeDose(w, r, medicationID, doseIndex)
	// DeleteMedication
	case strings.HasPrefix(path, "/api/v1/medications/") && r.Method == http.MethodDelete:
		medicationID := strings.TrimPrefix(path, "/api/v1/medications/")
		if medicationID != "" && !strings.Contains(medicationID, "/") {
			h.DeleteMedication(w, r, medicationID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// parseDosePath 解析 /api/v1/medications/{id}/doses/{index}/confirm 形式的路径
func parseDosePath(path, suffix string) (medicationID string, doseIndex int, ok bool) {
	trimmed := strings.TrimSuffix(path, suffix)
	trimmed = strings.TrimPrefix(trimmed, "/api/v1/medications/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] != "doses" {
		return "", 0, false
	}
	idx := parseInt(parts[2], -1)
	if idx < 0 {
		return "", 0, false
	}
	return parts[0], idx, true
}

// ============================================
// 药物 CRUD
// ============================================

// ListMedications 查询药物列表及当前剂量状态
func (h *MedicationHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	meds, err := h.medicationService.ListMedications(ctx)
	if err != nil {
		h.logger.Error("ListMedications failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": meds,
		"total": len(meds),
	}))
}

// AddMedicationRequest 添加药物请求体
type AddMedicationRequest struct {
	Name   string   `json:"name"`
	Dosage string   `json:"dosage"`
	Times  []string `json:"times"` // "HH:MM" 列表
}

// AddMedication 添加药物
func (h *MedicationHandler) AddMedication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AddMedicationRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	med, err := h.medicationService.AddMedication(ctx, req.Name, req.Dosage, req.Times)
	if err != nil {
		h.logger.Error("AddMedication failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(med))
}

// DeleteMedication 删除药物
func (h *MedicationHandler) DeleteMedication(w http.ResponseWriter, r *http.Request, medicationID string) {
	ctx := r.Context()

	if err := h.medicationService.DeleteMedication(ctx, medicationID); err != nil {
		if errors.Is(err, service.ErrMedicationNotFound) {
			writeJSON(w, http.StatusOK, Fail("medication not found"))
			return
		}
		h.logger.Error("DeleteMedication failed",
			zap.String("medication_id", medicationID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"deleted": medicationID,
	}))
}

// ============================================
// 剂量动作
// ============================================

// ConfirmDose 确认服药
func (h *MedicationHandler) ConfirmDose(w http.ResponseWriter, r *http.Request, medicationID string, doseIndex int) {
	ctx := r.Context()

	med, err := h.medicationService.ConfirmDose(ctx, medicationID, doseIndex)
	if err != nil {
		h.writeDoseActionError(w, "ConfirmDose", medicationID, doseIndex, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(med))
}

// SnoozeDose 延后提醒
func (h *MedicationHandler) SnoozeDose(w http.ResponseWriter, r *http.Request, medicationID string, doseIndex int) {
	ctx := r.Context()

	med, err := h.medicationService.SnoozeDose(ctx, medicationID, doseIndex)
	if err != nil {
		h.writeDoseActionError(w, "SnoozeDose", medicationID, doseIndex, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(med))
}

func (h *MedicationHandler) writeDoseActionError(w http.ResponseWriter, op, medicationID string, doseIndex int, err error) {
	switch {
	case errors.Is(err, service.ErrMedicationNotFound):
		writeJSON(w, http.StatusOK, Fail("medication not found"))
	case errors.Is(err, service.ErrDoseIndexOutOfRange):
		writeJSON(w, http.StatusOK, Fail("dose index out of range"))
	case errors.Is(err, evaluator.ErrInvalidTransition):
		writeJSON(w, http.StatusOK, Fail("dose status does not allow this action"))
	default:
		h.logger.Error(op+" failed",
			zap.String("medication_id", medicationID),
			zap.Int("dose_index", doseIndex),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	}
}
