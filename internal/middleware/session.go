// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/session"
)

// SessionCookieName はゲートウェイセッションIDを保持するCookieの名前。
const SessionCookieName = "cg_session"

// SessionStore はセッションの復元と作成のインターフェース。
// session.Managerが実装する。
type SessionStore interface {
	Load(ctx context.Context, id string) (*model.Session, error)
	Begin(ctx context.Context) (*model.Session, error)
}

// SessionCookieConfig はセッションCookieの属性設定。
type SessionCookieConfig struct {
	Secure bool
	Domain string
	MaxAge int
}

// NewSessionMiddleware はCookieからゲートウェイセッションを復元し、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない場合と復元に失敗した場合は新しい匿名セッションを作成する。
// 認証の強制はここでは行わない（ビュールートはガード、APIはハンドラーが判断する）。
func NewSessionMiddleware(store SessionStore, logger *slog.Logger, cfg SessionCookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var sess *model.Session
			if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
				sess, err = store.Load(ctx, cookie.Value)
				if err != nil {
					logger.Error("セッションの復元に失敗しました",
						slog.String("error", err.Error()),
					)
				}
			}

			if sess == nil {
				created, err := store.Begin(ctx)
				if err != nil {
					logger.Error("セッションの作成に失敗しました",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				sess = created
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    sess.ID,
					Path:     "/",
					Domain:   cfg.Domain,
					MaxAge:   cfg.MaxAge,
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(session.WithSession(ctx, sess)))
		})
	}
}

// SessionIDFromContext はコンテキストからセッションIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionIDFromContext(ctx context.Context) string {
	sess := session.FromContext(ctx)
	if sess == nil {
		return ""
	}
	return sess.ID
}
