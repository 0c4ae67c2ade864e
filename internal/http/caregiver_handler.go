package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/olayemidamola/medsync/internal/service"

	"go.uber.org/zap"
)

// CaregiverHandler 监护人管理 Handler
type CaregiverHandler struct {
	medicationService *service.MedicationService
	logger            *zap.Logger
}

// NewCaregiverHandler 创建监护人 Handler
func NewCaregiverHandler(medicationService *service.MedicationService, logger *zap.Logger) *CaregiverHandler {
	return &CaregiverHandler{
		medicationService: medicationService,
		logger:            logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *CaregiverHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/caregivers" && r.Method == http.MethodGet:
		h.ListCaregivers(w, r)
	case path == "/api/v1/caregivers" && r.Method == http.MethodPost:
		h.AddCaregiver(w, r)
	case strings.HasPrefix(path, "/api/v1/caregivers/") && r.Method == http.MethodDelete:
		caregiverID := strings.TrimPrefix(path, "/api/v1/caregivers/")
		if caregiverID != "" && !strings.Contains(caregiverID, "/") {
			h.DeleteCaregiver(w, r, caregiverID)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListCaregivers 查询监护人列表
func (h *CaregiverHandler) ListCaregivers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caregivers, err := h.medicationService.ListCaregivers(ctx)
	if err != nil {
		h.logger.Error("ListCaregivers failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": caregivers,
		"total": len(caregivers),
	}))
}

// AddCaregiverRequest 添加监护人请求体
type AddCaregiverRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AddCaregiver 添加监护人
func (h *CaregiverHandler) AddCaregiver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AddCaregiverRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid request body"))
		return
	}

	caregiver, err := h.medicationService.AddCaregiver(ctx, req.Name, req.Email)
	if err != nil {
		h.logger.Error("AddCaregiver failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(caregiver))
}

// DeleteCaregiver 删除监护人
func (h *CaregiverHandler) DeleteCaregiver(w http.ResponseWriter, r *http.Request, caregiverID string) {
	ctx := r.Context()

	if err := h.medicationService.DeleteCaregiver(ctx, caregiverID); err != nil {
		if errors.Is(err, service.ErrCaregiverNotFound) {
			writeJSON(w, http.StatusOK, Fail("caregiver not found"))
			return
		}
		h.logger.Error("DeleteCaregiver failed",
			zap.String("caregiver_id", caregiverID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"deleted": caregiverID,
	}))
}
