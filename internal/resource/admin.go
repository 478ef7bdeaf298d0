package resource

import (
	"context"
	"net/url"

	"github.com/moriyama/contestgate/internal/model"
)

// AdminUserService は管理者向けユーザー管理APIのラッパー。
type AdminUserService struct {
	gw Gateway
}

// NewAdminUserService はAdminUserServiceを生成する。
func NewAdminUserService(gw Gateway) *AdminUserService {
	return &AdminUserService{gw: gw}
}

// UserFilter はユーザーリストの絞り込み条件を表す。
type UserFilter struct {
	Role   model.Role
	Status model.UserStatus
}

// List はユーザーのページングリストを取得する。
// キーワード検索はPageRequest.Keywordで行う。
func (s *AdminUserService) List(ctx context.Context, req model.PageRequest, filter UserFilter) (*model.Page[model.User], error) {
	extra := url.Values{}
	if filter.Role != "" {
		extra.Set("role", string(filter.Role))
	}
	if filter.Status != "" {
		extra.Set("status", string(filter.Status))
	}
	return fetchPage[model.User](ctx, s.gw, "/api/admin/users", req, extra)
}

// Get はユーザーを1件取得する。
func (s *AdminUserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return fetchOne[model.User](ctx, s.gw, idPath("/api/admin/users/%s", id))
}

// UpdateUserRequest はユーザー更新の要求を表す。
type UpdateUserRequest struct {
	Email    string     `json:"email,omitempty"`
	Phone    string     `json:"phone,omitempty"`
	RealName string     `json:"realName,omitempty"`
	Role     model.Role `json:"role,omitempty"`
	College  string     `json:"college,omitempty"`
	Major    string     `json:"major,omitempty"`
	Grade    string     `json:"grade,omitempty"`
}

// Update はユーザー情報を更新する。
func (s *AdminUserService) Update(ctx context.Context, id int64, req UpdateUserRequest) (*model.User, error) {
	return executeInto[model.User](ctx, s.gw.Put, idPath("/api/admin/users/%s", id), req)
}

// Approve は承認待ちユーザーを承認する。
func (s *AdminUserService) Approve(ctx context.Context, id int64) error {
	_, err := execute(ctx, s.gw.Post, idPath("/api/admin/users/%s/approve", id), nil)
	return err
}

// Reject は承認待ちユーザーを理由付きで差し戻す。
func (s *AdminUserService) Reject(ctx context.Context, id int64, reason string) error {
	_, err := execute(ctx, s.gw.Post, idPath("/api/admin/users/%s/reject", id),
		map[string]string{"reason": reason})
	return err
}

// SetStatus はユーザーの状態を変更する（無効化・再有効化）。
func (s *AdminUserService) SetStatus(ctx context.Context, id int64, status model.UserStatus) error {
	_, err := execute(ctx, s.gw.Patch, idPath("/api/admin/users/%s/status", id),
		map[string]string{"status": string(status)})
	return err
}

// ResetPassword はユーザーのパスワードを初期化し、仮パスワードを返す。
func (s *AdminUserService) ResetPassword(ctx context.Context, id int64) (string, error) {
	result, err := executeInto[struct {
		TemporaryPassword string `json:"temporaryPassword"`
	}](ctx, s.gw.Post, idPath("/api/admin/users/%s/reset-password", id), nil)
	if err != nil {
		return "", err
	}
	return result.TemporaryPassword, nil
}

// BatchApprove は複数の承認待ちユーザーを一括承認する。
func (s *AdminUserService) BatchApprove(ctx context.Context, ids []int64) error {
	_, err := execute(ctx, s.gw.Post, "/api/admin/users/batch-approve",
		map[string][]int64{"ids": ids})
	return err
}

// Stats はユーザーの集計情報を取得する。
func (s *AdminUserService) Stats(ctx context.Context) (*model.UserStats, error) {
	return fetchOne[model.UserStats](ctx, s.gw, "/api/admin/users/stats")
}
