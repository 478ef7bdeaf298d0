package resource

import (
	"context"

	"github.com/moriyama/contestgate/internal/model"
)

// ScoreService は成績APIのラッパー。
type ScoreService struct {
	gw Gateway
}

// NewScoreService はScoreServiceを生成する。
func NewScoreService(gw Gateway) *ScoreService {
	return &ScoreService{gw: gw}
}

// MyScores は自分の成績のページングリストを取得する。
// 公開済みの成績のみが返る。
func (s *ScoreService) MyScores(ctx context.Context, req model.PageRequest) (*model.Page[model.Score], error) {
	return fetchPage[model.Score](ctx, s.gw, "/api/scores/my", req, nil)
}

// PendingGrading は採点待ちの成績のページングリストを取得する。
// 教員・管理者のみ実行できる。
func (s *ScoreService) PendingGrading(ctx context.Context, competitionID int64, req model.PageRequest) (*model.Page[model.Score], error) {
	return fetchPage[model.Score](ctx, s.gw,
		idPath("/api/scores/competition/%s/pending", competitionID), req, nil)
}

// GradeRequest は採点の要求を表す。
type GradeRequest struct {
	Score   float64 `json:"score"`
	Comment string  `json:"comment,omitempty"`
}

// ManualGrade は成績を手動で採点する。教員・管理者のみ実行できる。
func (s *ScoreService) ManualGrade(ctx context.Context, scoreID int64, req GradeRequest) (*model.Score, error) {
	return executeInto[model.Score](ctx, s.gw.Post, idPath("/api/scores/%s/grade", scoreID), req)
}

// Publish は指定競技会の採点済み成績を公開する。教員・管理者のみ実行できる。
func (s *ScoreService) Publish(ctx context.Context, competitionID int64) error {
	_, err := execute(ctx, s.gw.Post, idPath("/api/scores/competition/%s/publish", competitionID), nil)
	return err
}

// Ranking は指定競技会のランキングを取得する。
func (s *ScoreService) Ranking(ctx context.Context, competitionID int64) ([]model.RankingEntry, error) {
	return fetchList[model.RankingEntry](ctx, s.gw,
		idPath("/api/scores/competition/%s/ranking", competitionID), nil)
}
