package session

import (
	"context"

	"github.com/moriyama/contestgate/internal/model"
)

type contextKey struct{}

// WithSession はリクエストコンテキストにセッションを格納する。
// セッションローダーミドルウェアが各リクエストの先頭で呼び出す。
func WithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext はコンテキストからセッションを取り出す。
// 格納されていない場合はnilを返す。
func FromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(contextKey{}).(*model.Session)
	return sess
}
