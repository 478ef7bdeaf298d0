// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/moriyama/contestgate/internal/model"
)

// SessionRepository はゲートウェイセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。
	// 見つからない場合と期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// UpdateToken はセッションのバックエンドJWTを差し替える。
	// トークンのクリア（ログアウト・無効化）は空文字列で行う。
	UpdateToken(ctx context.Context, id, token string) error

	// UpdateProfile はプロフィールキャッシュを全置換する。
	// nilを渡すとキャッシュをクリアする。
	UpdateProfile(ctx context.Context, id string, user *model.User) error

	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
