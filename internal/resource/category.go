package resource

import (
	"context"

	"github.com/moriyama/contestgate/internal/model"
)

// CategoryService は競技会カテゴリAPIのラッパー。
// 参照は全ロール、変更は管理者のみ。
type CategoryService struct {
	gw Gateway
}

// NewCategoryService はCategoryServiceを生成する。
func NewCategoryService(gw Gateway) *CategoryService {
	return &CategoryService{gw: gw}
}

// List はカテゴリの一覧を取得する。
func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	return fetchList[model.Category](ctx, s.gw, "/api/admin/categories", nil)
}

// CategoryRequest はカテゴリ作成・更新の要求を表す。
type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sortOrder,omitempty"`
}

// Create はカテゴリを作成する。
func (s *CategoryService) Create(ctx context.Context, req CategoryRequest) (*model.Category, error) {
	return executeInto[model.Category](ctx, s.gw.Post, "/api/admin/categories", req)
}

// Update はカテゴリを更新する。
func (s *CategoryService) Update(ctx context.Context, id int64, req CategoryRequest) (*model.Category, error) {
	return executeInto[model.Category](ctx, s.gw.Put, idPath("/api/admin/categories/%s", id), req)
}

// Delete はカテゴリを削除する。使用中のカテゴリはバックエンド側で拒否される。
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	_, err := execute(ctx, s.gw.Delete, idPath("/api/admin/categories/%s", id), nil)
	return err
}

// SetStatus はカテゴリの有効・無効を切り替える。
func (s *CategoryService) SetStatus(ctx context.Context, id int64, status string) error {
	_, err := execute(ctx, s.gw.Patch, idPath("/api/admin/categories/%s/status", id),
		map[string]string{"status": status})
	return err
}
