package handler

import (
	"context"
	"net/http"

	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/resource"
)

// CategoryServiceInterface はカテゴリハンドラーが必要とするサービスインターフェース。
type CategoryServiceInterface interface {
	List(ctx context.Context) ([]model.Category, error)
	Create(ctx context.Context, req resource.CategoryRequest) (*model.Category, error)
	Update(ctx context.Context, id int64, req resource.CategoryRequest) (*model.Category, error)
	Delete(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, status string) error
}

// CategoryHandler は競技カテゴリ管理のHTTPハンドラー。
type CategoryHandler struct {
	service CategoryServiceInterface
}

// NewCategoryHandler はCategoryHandlerを生成する。
func NewCategoryHandler(service CategoryServiceInterface) *CategoryHandler {
	return &CategoryHandler{service: service}
}

// List はカテゴリ一覧を取得する。
// GET /api/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// Create はカテゴリを作成する。
// POST /api/admin/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req resource.CategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("カテゴリ名を入力してください。"))
		return
	}
	category, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

// Update はカテゴリを更新する。
// PUT /api/admin/categories/{id}
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req resource.CategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	category, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// Delete はカテゴリを削除する。
// DELETE /api/admin/categories/{id}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// categoryStatusRequest はカテゴリ状態変更のリクエストボディ。
type categoryStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus はカテゴリの有効・無効を切り替える。
// PATCH /api/admin/categories/{id}/status
func (h *CategoryHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req categoryStatusRequest
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
