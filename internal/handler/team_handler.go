package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/resource"
)

// TeamServiceInterface はチームハンドラーが必要とするサービスインターフェース。
type TeamServiceInterface interface {
	List(ctx context.Context, req model.PageRequest, competitionID int64) (*model.Page[model.Team], error)
	Get(ctx context.Context, id int64) (*model.Team, error)
	Create(ctx context.Context, req resource.CreateTeamRequest) (*model.Team, error)
	Update(ctx context.Context, id int64, req resource.CreateTeamRequest) (*model.Team, error)
	Delete(ctx context.Context, id int64) error
	Members(ctx context.Context, id int64) ([]model.TeamMember, error)
	Join(ctx context.Context, inviteCode string) (*model.Team, error)
	Leave(ctx context.Context, id int64) error
	RegenerateInviteCode(ctx context.Context, id int64) (string, error)
	TransferLeadership(ctx context.Context, id, newLeaderID int64) error
	RemoveMember(ctx context.Context, id, memberID int64) error
	CheckName(ctx context.Context, competitionID int64, name string) (bool, error)
	CheckUserTeam(ctx context.Context, competitionID int64) (*model.Team, error)
	Stats(ctx context.Context, competitionID int64) (*model.TeamStats, error)
}

// TeamHandler はチーム管理のHTTPハンドラー。
type TeamHandler struct {
	service TeamServiceInterface
}

// NewTeamHandler はTeamHandlerを生成する。
func NewTeamHandler(service TeamServiceInterface) *TeamHandler {
	return &TeamHandler{service: service}
}

// competitionIDQuery はクエリパラメータからcompetitionIdを取り出す。
// 未指定の場合は0を返す。
func competitionIDQuery(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.URL.Query().Get("competitionId"), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// List はチーム一覧を取得する。
// GET /api/teams?competitionId=1&page=1
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), pageRequest(r), competitionIDQuery(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get はチーム詳細を取得する。
// GET /api/teams/{id}
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	team, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// Create はチームを作成する。
// POST /api/teams
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req resource.CreateTeamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.CompetitionID <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("チーム名と競技会IDを指定してください。"))
		return
	}
	team, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// Update はチーム情報を更新する。
// PUT /api/teams/{id}
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req resource.CreateTeamRequest
	if !decodeBody(w, r, &req) {
		return
	}
	team, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// Delete はチームを解散する。
// DELETE /api/teams/{id}
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Members はチームのメンバー一覧を取得する。
// GET /api/teams/{id}/members
func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	members, err := h.service.Members(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// joinRequest は招待コードによるチーム参加のリクエストボディ。
type joinRequest struct {
	InviteCode string `json:"inviteCode"`
}

// Join は招待コードでチームに参加する。
// POST /api/teams/join
func (h *TeamHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.InviteCode == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("招待コードを入力してください。"))
		return
	}
	team, err := h.service.Join(r.Context(), req.InviteCode)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// Leave はチームから脱退する。
// POST /api/teams/{id}/leave
func (h *TeamHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Leave(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegenerateInviteCode は招待コードを再生成する。リーダーのみ実行できる。
// POST /api/teams/{id}/invite-code
func (h *TeamHandler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	code, err := h.service.RegenerateInviteCode(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"inviteCode": code})
}

// transferRequest はリーダー譲渡のリクエストボディ。
type transferRequest struct {
	NewLeaderID int64 `json:"newLeaderId"`
}

// TransferLeadership はリーダーを譲渡する。
// POST /api/teams/{id}/transfer
func (h *TeamHandler) TransferLeadership(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NewLeaderID <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("新しいリーダーのIDを指定してください。"))
		return
	}
	if err := h.service.TransferLeadership(r.Context(), id, req.NewLeaderID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember はメンバーを除名する。リーダーのみ実行できる。
// DELETE /api/teams/{id}/members/{memberId}
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := idParam(w, r, "memberId")
	if !ok {
		return
	}
	if err := h.service.RemoveMember(r.Context(), id, memberID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckName はチーム名の利用可否を確認する。
// GET /api/teams/check-name?competitionId=1&name=xxx
func (h *TeamHandler) CheckName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	competitionID := competitionIDQuery(r)
	if name == "" || competitionID <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("チーム名と競技会IDを指定してください。"))
		return
	}
	available, err := h.service.CheckName(r.Context(), competitionID, name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// myTeamResponse は所属チーム確認のレスポンス。
type myTeamResponse struct {
	HasTeam bool        `json:"hasTeam"`
	Team    *model.Team `json:"team,omitempty"`
}

// MyTeam は指定競技会での所属チームを確認する。
// GET /api/teams/my-team?competitionId=1
func (h *TeamHandler) MyTeam(w http.ResponseWriter, r *http.Request) {
	competitionID := competitionIDQuery(r)
	if competitionID <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("競技会IDを指定してください。"))
		return
	}
	team, err := h.service.CheckUserTeam(r.Context(), competitionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, myTeamResponse{HasTeam: team != nil, Team: team})
}

// Stats は指定競技会のチーム統計を取得する。
// GET /api/teams/stats?competitionId=1
func (h *TeamHandler) Stats(w http.ResponseWriter, r *http.Request) {
	competitionID := competitionIDQuery(r)
	if competitionID <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("競技会IDを指定してください。"))
		return
	}
	stats, err := h.service.Stats(r.Context(), competitionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
