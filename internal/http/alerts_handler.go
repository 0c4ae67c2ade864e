package httpapi

import (
	"net/http"

	"github.com/olayemidamola/medsync/internal/notify"

	"go.uber.org/zap"
)

// AlertsHandler 通知开关 Handler
type AlertsHandler struct {
	dispatcher *notify.Dispatcher
	logger     *zap.Logger
}

// NewAlertsHandler 创建通知开关 Handler
func NewAlertsHandler(dispatcher *notify.Dispatcher, logger *zap.Logger) *AlertsHandler {
	return &AlertsHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// EnableAlerts 请求通知授权并启用提醒
func (h *AlertsHandler) EnableAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	granted, err := h.dispatcher.EnableAlerts(ctx)
	if err != nil {
		h.logger.Error("EnableAlerts failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"enabled": granted,
	}))
}

// GetStatus 查询当前通知开关状态
func (h *AlertsHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"enabled": h.dispatcher.Enabled(),
	}))
}
