package resource

import (
	"context"

	"github.com/moriyama/contestgate/internal/model"
)

// RegistrationService は参加登録APIのラッパー。
type RegistrationService struct {
	gw Gateway
}

// NewRegistrationService はRegistrationServiceを生成する。
func NewRegistrationService(gw Gateway) *RegistrationService {
	return &RegistrationService{gw: gw}
}

// RegisterIndividual は個人として競技会に参加登録する。
func (s *RegistrationService) RegisterIndividual(ctx context.Context, competitionID int64) (*model.Registration, error) {
	return executeInto[model.Registration](ctx, s.gw.Post, "/api/registrations/individual",
		map[string]int64{"competitionId": competitionID})
}

// RegisterTeam はチームとして競技会に参加登録する。リーダーのみ実行できる。
func (s *RegistrationService) RegisterTeam(ctx context.Context, competitionID, teamID int64) (*model.Registration, error) {
	return executeInto[model.Registration](ctx, s.gw.Post, "/api/registrations/team",
		map[string]int64{"competitionId": competitionID, "teamId": teamID})
}

// MyRegistrations は自分の参加登録のページングリストを取得する。
func (s *RegistrationService) MyRegistrations(ctx context.Context, req model.PageRequest) (*model.Page[model.Registration], error) {
	return fetchPage[model.Registration](ctx, s.gw, "/api/registrations/my", req, nil)
}

// ByCompetition は指定競技会の参加登録のページングリストを取得する。
func (s *RegistrationService) ByCompetition(ctx context.Context, competitionID int64, req model.PageRequest) (*model.Page[model.Registration], error) {
	return fetchPage[model.Registration](ctx, s.gw,
		idPath("/api/registrations/competition/%s", competitionID), req, nil)
}

// Approve は参加登録を承認する。
func (s *RegistrationService) Approve(ctx context.Context, id int64) error {
	_, err := execute(ctx, s.gw.Post, idPath("/api/registrations/%s/approve", id), nil)
	return err
}

// Reject は参加登録を理由付きで差し戻す。
func (s *RegistrationService) Reject(ctx context.Context, id int64, reason string) error {
	_, err := execute(ctx, s.gw.Post, idPath("/api/registrations/%s/reject", id),
		map[string]string{"reason": reason})
	return err
}

// Cancel は自分の参加登録を取り消す。
func (s *RegistrationService) Cancel(ctx context.Context, id int64) error {
	_, err := execute(ctx, s.gw.Delete, idPath("/api/registrations/%s", id), nil)
	return err
}
