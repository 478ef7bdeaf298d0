package handler

import (
	"context"
	"net/http"

	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/resource"
)

// ScoreServiceInterface は成績ハンドラーが必要とするサービスインターフェース。
type ScoreServiceInterface interface {
	MyScores(ctx context.Context, req model.PageRequest) (*model.Page[model.Score], error)
	PendingGrading(ctx context.Context, competitionID int64, req model.PageRequest) (*model.Page[model.Score], error)
	ManualGrade(ctx context.Context, scoreID int64, req resource.GradeRequest) (*model.Score, error)
	Publish(ctx context.Context, competitionID int64) error
	Ranking(ctx context.Context, competitionID int64) ([]model.RankingEntry, error)
}

// ScoreHandler は成績管理のHTTPハンドラー。
type ScoreHandler struct {
	service ScoreServiceInterface
}

// NewScoreHandler はScoreHandlerを生成する。
func NewScoreHandler(service ScoreServiceInterface) *ScoreHandler {
	return &ScoreHandler{service: service}
}

// My は自分の成績一覧を取得する。
// GET /api/scores/my
func (h *ScoreHandler) My(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.MyScores(r.Context(), pageRequest(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Pending は指定競技会の採点待ち一覧を取得する。教員・管理者向け。
// GET /api/scores/competition/{competitionId}/pending
func (h *ScoreHandler) Pending(w http.ResponseWriter, r *http.Request) {
	competitionID, ok := idParam(w, r, "competitionId")
	if !ok {
		return
	}
	page, err := h.service.PendingGrading(r.Context(), competitionID, pageRequest(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Grade は成績を手動採点する。
// POST /api/scores/{id}/grade
func (h *ScoreHandler) Grade(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req resource.GradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	score, err := h.service.ManualGrade(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

// Publish は指定競技会の成績を公開する。
// POST /api/scores/competition/{competitionId}/publish
func (h *ScoreHandler) Publish(w http.ResponseWriter, r *http.Request) {
	competitionID, ok := idParam(w, r, "competitionId")
	if !ok {
		return
	}
	if err := h.service.Publish(r.Context(), competitionID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Ranking は指定競技会のランキングを取得する。
// GET /api/scores/competition/{competitionId}/ranking
func (h *ScoreHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	competitionID, ok := idParam(w, r, "competitionId")
	if !ok {
		return
	}
	ranking, err := h.service.Ranking(r.Context(), competitionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}
