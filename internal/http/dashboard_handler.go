package httpapi

import (
	"context"
	"errors"
	"net/http"

	"vetorial-dashboard/internal/access"
	"vetorial-dashboard/internal/cache"
	"vetorial-dashboard/internal/datasource"
	"vetorial-dashboard/internal/domain"
	"vetorial-dashboard/internal/realtime"
	"vetorial-dashboard/internal/repository"
	"vetorial-dashboard/internal/service"

	"go.uber.org/zap"
)

// DashboardService 由 service.Dashboard 实现
type DashboardService interface {
	Load(ctx context.Context) (datasource.Result, error)
	View(ctx context.Context, userID, year string) (*service.View, error)
	Submit(ctx context.Context, userID string, rec domain.Record) (realtime.MergeResult, error)
	AccessibleLocalities(ctx context.Context, userID string) (*domain.User, access.Scope, error)
	GrantAccess(ctx context.Context, actorID, userID, localityName string) error
	RevokeAccess(ctx context.Context, actorID, userID, localityName string) error
	AccessLevels(ctx context.Context, actorID string) ([]domain.AccessLevel, error)
	Live() bool
	LiveState() realtime.State
}

var _ DashboardService = (*service.Dashboard)(nil)

// DashboardHandler 看板 API
type DashboardHandler struct {
	dashboard DashboardService
	logger    *zap.Logger
}

func NewDashboardHandler(dashboard DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

// requireUser 缺少身份时返回 401
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := userID(r)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, Fail("missing X-User-Id"))
		return "", false
	}
	return id, true
}

// writeError 业务错误统一 HTTP 200 + Fail，权限错误使用 403
func (h *DashboardHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, Fail("forbidden"))
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	case errors.Is(err, service.ErrInvalidRecord):
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(err.Error()))
	}
}

// GET /api/v1/dashboard
// params:
// - year? string（默认 DASHBOARD_YEAR）
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	view, err := h.dashboard.View(r.Context(), uid, r.URL.Query().Get("year"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// POST /api/v1/dashboard/refresh
// 重新解析数据源（手动“刷新”即调用方重试），返回刷新后的视图
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	_, loadErr := h.dashboard.Load(r.Context())
	if loadErr != nil && !errors.Is(loadErr, cache.ErrStorageQuota) {
		h.writeError(w, loadErr)
		return
	}

	view, err := h.dashboard.View(r.Context(), uid, r.URL.Query().Get("year"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if loadErr != nil {
		writeJSON(w, http.StatusOK, Warn("Armazenamento local cheio: dados não foram salvos offline", view))
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// POST /api/v1/records
// body: domain.Record（无 id 新增，有 id 更新）
func (h *DashboardHandler) SubmitRecord(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	var rec domain.Record
	if err := readBodyJSON(r, maxBodyBytes, &rec); err != nil {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return
	}

	res, err := h.dashboard.Submit(r.Context(), uid, rec)
	if err != nil {
		if errors.Is(err, service.ErrStoreUnavailable) {
			// 草稿已保留在本地列表
			writeJSON(w, http.StatusOK, Warn("Servidor indisponível: registro mantido como rascunho", res))
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// GET /api/v1/access/localities
func (h *DashboardHandler) GetLocalities(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, scope, err := h.dashboard.AccessibleLocalities(r.Context(), uid)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		h.logger.Warn("Failed to load user for locality scope", zap.String("user_id", uid), zap.Error(err))
	}

	resp := map[string]any{
		"localities": scope.Names(),
		"all":        scope.All,
		"restricted": scope.Degraded,
	}
	if user != nil {
		resp["user"] = user
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

type grantRequest struct {
	UserID       string `json:"userId"`
	LocalityName string `json:"localityName"`
}

func (h *DashboardHandler) readGrant(w http.ResponseWriter, r *http.Request) (grantRequest, bool) {
	var req grantRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil || req.UserID == "" || req.LocalityName == "" {
		writeJSON(w, http.StatusOK, Fail("invalid body"))
		return req, false
	}
	return req, true
}

// POST /api/v1/admin/grants
// body: {"userId": "...", "localityName": "..."}
func (h *DashboardHandler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, ok := h.readGrant(w, r)
	if !ok {
		return
	}
	if err := h.dashboard.GrantAccess(r.Context(), uid, req.UserID, req.LocalityName); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// DELETE /api/v1/admin/grants
func (h *DashboardHandler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	req, ok := h.readGrant(w, r)
	if !ok {
		return
	}
	if err := h.dashboard.RevokeAccess(r.Context(), uid, req.UserID, req.LocalityName); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"success": true}))
}

// GET /api/v1/admin/access-levels
func (h *DashboardHandler) ListAccessLevels(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	levels, err := h.dashboard.AccessLevels(r.Context(), uid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"items": levels, "total": len(levels)}))
}

// GET /healthz
func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"status":   "ok",
		"live":     h.dashboard.Live(),
		"realtime": h.dashboard.LiveState().String(),
	}))
}
