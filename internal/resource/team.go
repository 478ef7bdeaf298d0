package resource

import (
	"context"
	"net/url"
	"strconv"

	"github.com/moriyama/contestgate/internal/model"
)

// TeamService はチームAPIのラッパー。
type TeamService struct {
	gw Gateway
}

// NewTeamService はTeamServiceを生成する。
func NewTeamService(gw Gateway) *TeamService {
	return &TeamService{gw: gw}
}

// List は指定競技会のチームのページングリストを取得する。
// competitionIDが0の場合は全競技会を対象とする。
func (s *TeamService) List(ctx context.Context, req model.PageRequest, competitionID int64) (*model.Page[model.Team], error) {
	extra := url.Values{}
	if competitionID > 0 {
		extra.Set("competitionId", strconv.FormatInt(competitionID, 10))
	}
	return fetchPage[model.Team](ctx, s.gw, "/api/teams", req, extra)
}

// Get はチームを1件取得する。
func (s *TeamService) Get(ctx context.Context, id int64) (*model.Team, error) {
	return fetchOne[model.Team](ctx, s.gw, idPath("/api/teams/%s", id))
}

// CreateTeamRequest はチーム作成の要求を表す。
type CreateTeamRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	CompetitionID int64  `json:"competitionId"`
	MaxMembers    int    `json:"maxMembers,omitempty"`
}

// Create はチームを作成する。作成者がリーダーになる。
func (s *TeamService) Create(ctx context.Context, req CreateTeamRequest) (*model.Team, error) {
	return executeInto[model.Team](ctx, s.gw.Post, "/api/teams", req)
}

// Update はチーム情報を更新する。リーダーのみ実行できる。
func (s *TeamService) Update(ctx context.Context, id int64, req CreateTeamRequest) (*model.Team, error) {
	return executeInto[model.Team](ctx, s.gw.Put, idPath("/api/teams/%s", id), req)
}

// Delete はチームを解散する。リーダーのみ実行できる。
func (s *TeamService) Delete(ctx context.Context, id int64) error {
	_, err := execute(ctx, s.gw.Delete, idPath("/api/teams/%s", id), nil)
	return err
}

// Members はチームメンバーの一覧を取得する。
func (s *TeamService) Members(ctx context.Context, id int64) ([]model.TeamMember, error) {
	return fetchList[model.TeamMember](ctx, s.gw, idPath("/api/teams/%s/members", id), nil)
}

// Join は招待コードでチームに参加する。
func (s *TeamService) Join(ctx context.Context, inviteCode string) (*model.Team, error) {
	return executeInto[model.Team](ctx, s.gw.Post, "/api/teams/join",
		map[string]string{"inviteCode": inviteCode})
}

// Leave はチームから脱退する。リーダーは脱退前に権限を譲渡する必要がある。
func (s *TeamService) Leave(ctx context.Context, id int64) error {
	_, err := execute(ctx, s.gw.Post, idPath("/api/teams/%s/leave", id), nil)
	return err
}

// RegenerateInviteCode は招待コードを再発行する。リーダーのみ実行できる。
func (s *TeamService) RegenerateInviteCode(ctx context.Context, id int64) (string, error) {
	result, err := executeInto[struct {
		InviteCode string `json:"inviteCode"`
	}](ctx, s.gw.Post, idPath("/api/teams/%s/invite-code", id), nil)
	if err != nil {
		return "", err
	}
	return result.InviteCode, nil
}

// TransferLeadership はリーダー権限を指定メンバーに譲渡する。
func (s *TeamService) TransferLeadership(ctx context.Context, id, newLeaderID int64) error {
	_, err := execute(ctx, s.gw.Post, idPath("/api/teams/%s/transfer-leadership", id),
		map[string]int64{"newLeaderId": newLeaderID})
	return err
}

// RemoveMember はメンバーをチームから除名する。リーダーのみ実行できる。
func (s *TeamService) RemoveMember(ctx context.Context, id, memberID int64) error {
	_, err := execute(ctx, s.gw.Delete,
		idPath("/api/teams/%s/members/", id)+strconv.FormatInt(memberID, 10), nil)
	return err
}

// CheckName はチーム名が使用可能かを確認する。
func (s *TeamService) CheckName(ctx context.Context, competitionID int64, name string) (bool, error) {
	query := url.Values{}
	query.Set("competitionId", strconv.FormatInt(competitionID, 10))
	query.Set("name", name)

	env, err := s.gw.Get(ctx, "/api/teams/check-name", wrapQuery(query))
	if err != nil {
		return false, asAPIError(err)
	}
	payload := struct {
		Available bool `json:"available"`
	}{}
	if err := env.DecodeData(&payload); err != nil {
		return false, asAPIError(err)
	}
	return payload.Available, nil
}

// CheckUserTeam は指定競技会でのユーザーの所属チームを取得する。
// 未所属の場合はnilを返す。
func (s *TeamService) CheckUserTeam(ctx context.Context, competitionID int64) (*model.Team, error) {
	query := url.Values{}
	query.Set("competitionId", strconv.FormatInt(competitionID, 10))

	env, err := s.gw.Get(ctx, "/api/teams/my-team", wrapQuery(query))
	if err != nil {
		return nil, asAPIError(err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, nil
	}
	team := &model.Team{}
	if err := env.DecodeData(team); err != nil {
		return nil, asAPIError(err)
	}
	if team.ID == 0 {
		return nil, nil
	}
	return team, nil
}

// Stats はチームの集計情報を取得する。
func (s *TeamService) Stats(ctx context.Context, competitionID int64) (*model.TeamStats, error) {
	return fetchOne[model.TeamStats](ctx, s.gw, idPath("/api/teams/stats/%s", competitionID))
}
