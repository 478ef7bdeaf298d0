package handler

import (
	"context"
	"net/http"

	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/resource"
)

// CompetitionServiceInterface は競技会ハンドラーが必要とするサービスインターフェース。
type CompetitionServiceInterface interface {
	List(ctx context.Context, req model.PageRequest, filter resource.CompetitionFilter) (*model.Page[model.Competition], error)
	Get(ctx context.Context, id int64) (*model.Competition, error)
	Create(ctx context.Context, req resource.CreateCompetitionRequest) (*model.Competition, error)
	Update(ctx context.Context, id int64, req resource.CreateCompetitionRequest) (*model.Competition, error)
	Delete(ctx context.Context, id int64) error
	Approve(ctx context.Context, id int64) error
	Reject(ctx context.Context, id int64, reason string) error
	BatchApprove(ctx context.Context, ids []int64) error
	BatchDelete(ctx context.Context, ids []int64) error
	Stats(ctx context.Context) (*model.CompetitionStats, error)
}

// CompetitionHandler は競技会管理のHTTPハンドラー。
type CompetitionHandler struct {
	service CompetitionServiceInterface
}

// NewCompetitionHandler はCompetitionHandlerを生成する。
func NewCompetitionHandler(service CompetitionServiceInterface) *CompetitionHandler {
	return &CompetitionHandler{service: service}
}

// List は競技会一覧を取得する。
// GET /api/competitions?page=1&size=10&status=APPROVED&category=xxx
func (h *CompetitionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := resource.CompetitionFilter{
		Status:   model.CompetitionStatus(r.URL.Query().Get("status")),
		Category: r.URL.Query().Get("category"),
	}
	page, err := h.service.List(r.Context(), pageRequest(r), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get は競技会詳細を取得する。
// GET /api/competitions/{id}
func (h *CompetitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	comp, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// Create は競技会を作成する。
// POST /api/competitions
func (h *CompetitionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req resource.CreateCompetitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("競技会名を入力してください。"))
		return
	}
	comp, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comp)
}

// Update は競技会を更新する。
// PUT /api/competitions/{id}
func (h *CompetitionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req resource.CreateCompetitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	comp, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comp)
}

// Delete は競技会を削除する。
// DELETE /api/competitions/{id}
func (h *CompetitionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Approve は競技会を承認する。
// POST /api/competitions/{id}/approve
func (h *CompetitionHandler) Approve(w http.ResponseWriter, r *http.Request) {
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

// rejectRequest は却下理由を含むリクエストボディ。
type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject は競技会を却下する。
// POST /api/competitions/{id}/reject
func (h *CompetitionHandler) Reject(w http.ResponseWriter, r *http.Request) {
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

// batchRequest はID一括操作のリクエストボディ。
type batchRequest struct {
	IDs []int64 `json:"ids"`
}

// BatchApprove は競技会を一括承認する。
// POST /api/competitions/batch-approve
func (h *CompetitionHandler) BatchApprove(w http.ResponseWriter, r *http.Request) {
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

// BatchDelete は競技会を一括削除する。
// POST /api/competitions/batch-delete
func (h *CompetitionHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("対象のIDを指定してください。"))
		return
	}
	if err := h.service.BatchDelete(r.Context(), req.IDs); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats は競技会の統計情報を取得する。
// GET /api/competitions/stats
func (h *CompetitionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
