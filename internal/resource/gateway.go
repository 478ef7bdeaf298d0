// Package resource はバックエンドAPIの型付きラッパーを提供する。
// ページネーションの1始まり⇔0始まり変換と、エンドポイントごとに異なる
// リスト形状の正規化をここで吸収し、ハンドラー層には統一された
// 型付きの結果とAPIErrorのみを見せる。
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/moriyama/contestgate/internal/backend"
	"github.com/moriyama/contestgate/internal/model"
)

// Gateway はリソースラッパーが利用するバックエンド操作のインターフェース。
// backend.Clientが実装する。
type Gateway interface {
	Get(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error)
	Post(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error)
	Put(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error)
	Delete(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error)
	Patch(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error)
}

// asAPIError は任意のエラーをAPIErrorに揃える。
// ラッパーの外にAPIError以外のエラーを漏らさないための最終変換。
func asAPIError(err error) error {
	if err == nil {
		return nil
	}
	apiErr := &model.APIError{}
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewBusinessError(err.Error())
}

// fetchOne は単一リソースを取得してデコードする。
func fetchOne[T any](ctx context.Context, gw Gateway, path string) (*T, error) {
	env, err := gw.Get(ctx, path, nil)
	if err != nil {
		return nil, asAPIError(err)
	}
	out := new(T)
	if err := env.DecodeData(out); err != nil {
		return nil, asAPIError(fmt.Errorf("レスポンスのデコードに失敗しました: %w", err))
	}
	return out, nil
}

// wrapQuery はクエリパラメータをRequestOptionsに包む。空ならnilを返す。
func wrapQuery(query url.Values) *backend.RequestOptions {
	if len(query) == 0 {
		return nil
	}
	return &backend.RequestOptions{Query: query}
}

// fetchList はページングなしのリストを取得してデコードする。
func fetchList[T any](ctx context.Context, gw Gateway, path string, query url.Values) ([]T, error) {
	env, err := gw.Get(ctx, path, wrapQuery(query))
	if err != nil {
		return nil, asAPIError(err)
	}
	items, err := decodeItems[T](env)
	if err != nil {
		return nil, asAPIError(err)
	}
	return items, nil
}

// fetchPage はページングリストを取得して1始まりのPageに正規化する。
func fetchPage[T any](ctx context.Context, gw Gateway, path string, req model.PageRequest, extra url.Values) (*model.Page[T], error) {
	query := toBackendQuery(req)
	for key, values := range extra {
		for _, v := range values {
			query.Add(key, v)
		}
	}
	env, err := gw.Get(ctx, path, &backend.RequestOptions{Query: query})
	if err != nil {
		return nil, asAPIError(err)
	}
	page, err := decodePage[T](env, req)
	if err != nil {
		return nil, asAPIError(err)
	}
	return page, nil
}

// execute はボディ付きの変更系リクエストを発行し、結果メッセージを返す。
type method func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error)

func execute(ctx context.Context, call method, path string, body any) (string, error) {
	var opts *backend.RequestOptions
	if body != nil {
		opts = &backend.RequestOptions{Body: body}
	}
	env, err := call(ctx, path, opts)
	if err != nil {
		return "", asAPIError(err)
	}
	return env.Message, nil
}

// executeInto はボディ付きの変更系リクエストを発行し、レスポンスをデコードする。
func executeInto[T any](ctx context.Context, call method, path string, body any) (*T, error) {
	var opts *backend.RequestOptions
	if body != nil {
		opts = &backend.RequestOptions{Body: body}
	}
	env, err := call(ctx, path, opts)
	if err != nil {
		return nil, asAPIError(err)
	}
	out := new(T)
	if err := env.DecodeData(out); err != nil {
		return nil, asAPIError(fmt.Errorf("レスポンスのデコードに失敗しました: %w", err))
	}
	return out, nil
}

// idPath は数値ID入りのパスを組み立てる。
func idPath(format string, id int64) string {
	return fmt.Sprintf(format, strconv.FormatInt(id, 10))
}
