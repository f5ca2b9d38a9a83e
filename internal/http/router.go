package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux
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

// ServeHTTP 记录访问日志
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	r.mux.ServeHTTP(w, req)
	r.logger.Debug("HTTP request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("duration", time.Since(start)),
	)
}

func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != m {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}

// RegisterDashboardRoutes 注册看板相关路由
func (r *Router) RegisterDashboardRoutes(h *DashboardHandler) {
	r.Handle("/api/v1/dashboard", method(http.MethodGet, h.GetDashboard))
	r.Handle("/api/v1/dashboard/refresh", method(http.MethodPost, h.Refresh))
	r.Handle("/api/v1/records", method(http.MethodPost, h.SubmitRecord))
	r.Handle("/api/v1/access/localities", method(http.MethodGet, h.GetLocalities))

	r.Handle("/api/v1/admin/grants", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			h.GrantAccess(w, req)
		case http.MethodDelete:
			h.RevokeAccess(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/api/v1/admin/access-levels", method(http.MethodGet, h.ListAccessLevels))

	r.Handle("/healthz", method(http.MethodGet, h.Health))
}

// RegisterMetricsRoute 暴露默认 registry
func (r *Router) RegisterMetricsRoute() {
	r.mux.Handle("/metrics", promhttp.Handler())
}
