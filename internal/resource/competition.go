package resource

import (
	"context"
	"net/url"

	"github.com/moriyama/contestgate/internal/model"
)

// CompetitionService は競技会APIのラッパー。
type CompetitionService struct {
	gw Gateway
}

// NewCompetitionService はCompetitionServiceを生成する。
func NewCompetitionService(gw Gateway) *CompetitionService {
	return &CompetitionService{gw: gw}
}

// CompetitionFilter はリスト取得の絞り込み条件を表す。
type CompetitionFilter struct {
	Status   model.CompetitionStatus
	Category string
}

// List は競技会のページングリストを取得する。
func (s *CompetitionService) List(ctx context.Context, req model.PageRequest, filter CompetitionFilter) (*model.Page[model.Competition], error) {
	extra := url.Values{}
	if filter.Status != "" {
		extra.Set("status", string(filter.Status))
	}
	if filter.Category != "" {
		extra.Set("category", filter.Category)
	}
	return fetchPage[model.Competition](ctx, s.gw, "/api/competitions", req, extra)
}

// Get は競技会を1件取得する。
func (s *CompetitionService) Get(ctx context.Context, id int64) (*model.Competition, error) {
	return fetchOne[model.Competition](ctx, s.gw, idPath("/api/competitions/%s", id))
}

// CreateCompetitionRequest は競技会作成の要求を表す。
type CreateCompetitionRequest struct {
	Name                 string `json:"name"`
	Description          string `json:"description"`
	CategoryID           int64  `json:"categoryId"`
	IsTeamBased          bool   `json:"isTeamBased"`
	MaxTeamSize          int    `json:"maxTeamSize,omitempty"`
	MaxParticipants      int    `json:"maxParticipants,omitempty"`
	StartTime            string `json:"startTime"`
	EndTime              string `json:"endTime"`
	RegistrationDeadline string `json:"registrationDeadline"`
}

// Create は競技会を作成する。作成後は承認待ちとなる。
func (s *CompetitionService) Create(ctx context.Context, req CreateCompetitionRequest) (*model.Competition, error) {
	return executeInto[model.Competition](ctx, s.gw.Post, "/api/competitions", req)
}

// Update は競技会を更新する。
func (s *CompetitionService) Update(ctx context.Context, id int64, req CreateCompetitionRequest) (*model.Competition, error) {
	return executeInto[model.Competition](ctx, s.gw.Put, idPath("/api/competitions/%s", id), req)
}

// Delete は競技会を削除する。
func (s *CompetitionService) Delete(ctx context.Context, id int64) error {
	_, err := execute(ctx, s.gw.Delete, idPath("/api/competitions/%s", id), nil)
	return err
}

// Approve は競技会を承認する。
func (s *CompetitionService) Approve(ctx context.Context, id int64) error {
	_, err := execute(ctx, s.gw.Post, idPath("/api/competitions/%s/approve", id), nil)
	return err
}

// Reject は競技会を理由付きで差し戻す。
func (s *CompetitionService) Reject(ctx context.Context, id int64, reason string) error {
	_, err := execute(ctx, s.gw.Post, idPath("/api/competitions/%s/reject", id),
		map[string]string{"reason": reason})
	return err
}

// BatchApprove は複数の競技会を一括承認する。
func (s *CompetitionService) BatchApprove(ctx context.Context, ids []int64) error {
	_, err := execute(ctx, s.gw.Post, "/api/competitions/batch-approve",
		map[string][]int64{"ids": ids})
	return err
}

// BatchDelete は複数の競技会を一括削除する。
func (s *CompetitionService) BatchDelete(ctx context.Context, ids []int64) error {
	_, err := execute(ctx, s.gw.Post, "/api/competitions/batch-delete",
		map[string][]int64{"ids": ids})
	return err
}

// Stats は競技会の集計情報を取得する。
func (s *CompetitionService) Stats(ctx context.Context) (*model.CompetitionStats, error) {
	return fetchOne[model.CompetitionStats](ctx, s.gw, "/api/competitions/stats")
}
