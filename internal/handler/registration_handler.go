package handler

import (
	"context"
	"net/http"

	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/model"
)

// RegistrationServiceInterface は参加登録ハンドラーが必要とするサービスインターフェース。
type RegistrationServiceInterface interface {
	RegisterIndividual(ctx context.Context, competitionID int64) (*model.Registration, error)
	RegisterTeam(ctx context.Context, competitionID, teamID int64) (*model.Registration, error)
	MyRegistrations(ctx context.Context, req model.PageRequest) (*model.Page[model.Registration], error)
	ByCompetition(ctx context.Context, competitionID int64, req model.PageRequest) (*model.Page[model.Registration], error)
	Approve(ctx context.Context, id int64) error
	Reject(ctx context.Context, id int64, reason string) error
	Cancel(ctx context.Context, id int64) error
}

// RegistrationHandler は参加登録のHTTPハンドラー。
type RegistrationHandler struct {
	service RegistrationServiceInterface
}

// NewRegistrationHandler はRegistrationHandlerを生成する。
func NewRegistrationHandler(service RegistrationServiceInterface) *RegistrationHandler {
	return &RegistrationHandler{service: service}
}

// registerRequest は参加登録のリクエストボディ。
// チーム戦の場合はTeamIDを指定する。
type registerRequest struct {
	CompetitionID int64 `json:"competitionId"`
	TeamID        int64 `json:"teamId,omitempty"`
}

// Register は競技会への参加登録を処理する。
// POST /api/registrations
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CompetitionID <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("競技会IDを指定してください。"))
		return
	}

	var (
		reg *model.Registration
		err error
	)
	if req.TeamID > 0 {
		reg, err = h.service.RegisterTeam(r.Context(), req.CompetitionID, req.TeamID)
	} else {
		reg, err = h.service.RegisterIndividual(r.Context(), req.CompetitionID)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// My は自分の参加登録一覧を取得する。
// GET /api/registrations/my
func (h *RegistrationHandler) My(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.MyRegistrations(r.Context(), pageRequest(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ByCompetition は指定競技会の参加登録一覧を取得する。
// GET /api/registrations/competition/{competitionId}
func (h *RegistrationHandler) ByCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID, ok := idParam(w, r, "competitionId")
	if !ok {
		return
	}
	page, err := h.service.ByCompetition(r.Context(), competitionID, pageRequest(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Approve は参加登録を承認する。
// POST /api/registrations/{id}/approve
func (h *RegistrationHandler) Approve(w http.ResponseWriter, r *http.Request) {
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

// Reject は参加登録を却下する。
// POST /api/registrations/{id}/reject
func (h *RegistrationHandler) Reject(w http.ResponseWriter, r *http.Request) {
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

// Cancel は自分の参加登録を取り消す。
// DELETE /api/registrations/{id}
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
