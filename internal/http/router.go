package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterMedicationRoutes 注册药物与剂量动作路由
func (r *Router) RegisterMedicationRoutes(h *MedicationHandler) {
	r.HandleHandler("/api/v1/medications", h)
	r.HandleHandler("/api/v1/medications/", h)
}

// RegisterCaregiverRoutes 注册监护人路由
func (r *Router) RegisterCaregiverRoutes(h *CaregiverHandler) {
	r.HandleHandler("/api/v1/caregivers", h)
	r.HandleHandler("/api/v1/caregivers/", h)
}

// RegisterHistoryRoutes 注册剂量历史路由
func (r *Router) RegisterHistoryRoutes(h *HistoryHandler) {
	r.Handle("/api/v1/history", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ListHistory(w, req)
	})

	r.Handle("/api/v1/history/export", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ExportHistory(w, req)
	})

	r.Handle("/api/v1/history/adherence", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetAdherence(w, req)
	})
}

// RegisterAlertRoutes 注册通知开关路由
func (r *Router) RegisterAlertRoutes(h *AlertsHandler) {
	r.Handle("/api/v1/alerts/enable", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.EnableAlerts(w, req)
	})

	r.Handle("/api/v1/alerts/status", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetStatus(w, req)
	})
}
