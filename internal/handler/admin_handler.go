package handler

import (
	"context"
	"net/http"

	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/resource"
)

// AdminUserServiceInterface は管理者ユーザー管理ハンドラーが必要とするサービスインターフェース。
type AdminUserServiceInterface interface {
	List(ctx context.Context, req model.PageRequest, filter resource.UserFilter) (*model.Page[model.User], error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Update(ctx context.Context, id int64, req resource.UpdateUserRequest) (*model.User, error)
	Approve(ctx context.Context, id int64) error
	Reject(ctx context.Context, id int64, reason string) error
	SetStatus(ctx context.Context, id int64, status model.UserStatus) error
	ResetPassword(ctx context.Context, id int64) (string, error)
	BatchApprove(ctx context.Context, ids []int64) error
	Stats(ctx context.Context) (*model.UserStats, error)
}

// AdminUserHandler は管理者向けユーザー管理のHTTPハンドラー。
type AdminUserHandler struct {
	service AdminUserServiceInterface
}

// NewAdminUserHandler はAdminUserHandlerを生成する。
func NewAdminUserHandler(service AdminUserServiceInterface) *AdminUserHandler {
	return &AdminUserHandler{service: service}
}

// List はユーザー一覧を取得する。
// GET /api/admin/users?role=STUDENT&status=PENDING&keyword=xxx
func (h *AdminUserHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := resource.UserFilter{
		Role:   model.Role(r.URL.Query().Get("role")),
		Status: model.UserStatus(r.URL.Query().Get("status")),
	}
	page, err := h.service.List(r.Context(), pageRequest(r), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get はユーザー詳細を取得する。
// GET /api/admin/users/{id}
func (h *AdminUserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Update はユーザー情報を更新する。
// PUT /api/admin/users/{id}
func (h *AdminUserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req resource.UpdateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Approve は承認待ちユーザーを承認する。
// POST /api/admin/users/{id}/approve
func (h *AdminUserHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Approve(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reject は承認待ちユーザーを却下する。
// POST /api/admin/users/{id}/reject
func (h *AdminUserHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req rejectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.service.Reject(r.Context(), id, req.Reason); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusRequest はアカウント状態変更のリクエストボディ。
type statusRequest struct {
	Status model.UserStatus `json:"status"`
}

// SetStatus はアカウント状態を変更する。
// PATCH /api/admin/users/{id}/status
func (h *AdminUserHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("状態を指定してください。"))
		return
	}
	if err := h.service.SetStatus(r.Context(), id, req.Status); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword はユーザーのパスワードをリセットし、仮パスワードを返す。
// POST /api/admin/users/{id}/reset-password
func (h *AdminUserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	tempPassword, err := h.service.ResetPassword(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"temporaryPassword": tempPassword})
}

// BatchApprove はユーザーを一括承認する。
// POST /api/admin/users/batch-approve
func (h *AdminUserHandler) BatchApprove(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("対象のIDを指定してください。"))
		return
	}
	if err := h.service.BatchApprove(r.Context(), req.IDs); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats はユーザーの統計情報を取得する。
// GET /api/admin/users/stats
func (h *AdminUserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
