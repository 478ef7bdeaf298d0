// Package guard はビュールートのアクセス制御ミドルウェアを提供する。
// ルートメタデータテーブルに基づき、認証要件とロール要件を
// 決められた順序で評価し、満たさないリクエストをリダイレクトする。
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/notify"
	"github.com/moriyama/contestgate/internal/session"
)

const (
	loginPath     = "/login"
	forbiddenPath = "/403"
)

// ProfileSource はガードが利用するプロフィール取得のインターフェース。
// session.Managerが実装する。
type ProfileSource interface {
	FetchCurrentUser(ctx context.Context, force bool) (*model.User, error)
}

// Guard はルートガードミドルウェア。
type Guard struct {
	routes   []Route
	profiles ProfileSource
	notifier notify.Notifier
	logger   *slog.Logger
}

// New はGuardを生成する。routesがnilの場合は既定テーブルを使う。
func New(routes []Route, profiles ProfileSource, notifier notify.Notifier, logger *slog.Logger) *Guard {
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &Guard{
		routes:   routes,
		profiles: profiles,
		notifier: notifier,
		logger:   logger,
	}
}

// LandingPath はロールに応じたダッシュボードのパスを返す。
func LandingPath(role model.Role) string {
	switch role {
	case model.RoleAdmin:
		return "/admin-dashboard"
	case model.RoleTeacher:
		return "/teacher-dashboard"
	default:
		return "/dashboard"
	}
}

// Middleware はリクエストをルートメタデータに基づいて評価する。
// 評価順序:
//  1. 認証済みでログインページへのアクセス → ロール別ダッシュボードへ
//  2. ルートパス → ロール別ダッシュボードまたはログインページへ
//  3. 認証必須ルートで未認証 → redirectクエリ付きでログインページへ
//  4. ロール制限ルート → プロフィールを確保してロールを検査、不足なら/403へ
//  5. それ以外は通過
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := session.FromContext(ctx)
		path := r.URL.Path

		if path == loginPath && sess.IsAuthenticated() {
			user, err := g.ensureProfile(ctx)
			if err != nil {
				// トークンが実質無効な場合はそのままログインページを表示させる
				g.logger.Warn("ログインページ転送時のプロフィール取得に失敗しました",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, LandingPath(user.Role), http.StatusFound)
			return
		}

		if path == "/" {
			if !sess.IsAuthenticated() {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			user, err := g.ensureProfile(ctx)
			if err != nil {
				g.redirectToLogin(w, r, path)
				return
			}
			http.Redirect(w, r, LandingPath(user.Role), http.StatusFound)
			return
		}

		route := match(g.routes, path)
		if route == nil {
			next.ServeHTTP(w, r)
			return
		}

		if route.RequiresAuth && !sess.IsAuthenticated() {
			g.notifier.Publish(ctx, notify.Notice{
				Level:   notify.LevelWarning,
				Message: "このページを表示するにはログインが必要です。",
			})
			g.redirectToLogin(w, r, path)
			return
		}

		if len(route.Roles) > 0 {
			user, err := g.ensureProfile(ctx)
			if err != nil {
				g.logger.Warn("ロール検査のためのプロフィール取得に失敗しました",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				g.redirectToLogin(w, r, path)
				return
			}
			if !route.Allows(user.Role) {
				g.notifier.Publish(ctx, notify.Notice{
					Level:   notify.LevelError,
					Message: g.roleMessage(route, user.Role),
				})
				http.Redirect(w, r, forbiddenPath, http.StatusFound)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// ensureProfile はキャッシュ済みプロフィールを返し、なければ1回だけ取得する。
// 取得自体はsession.Manager側のsingle-flightで重複排除される。
func (g *Guard) ensureProfile(ctx context.Context) (*model.User, error) {
	sess := session.FromContext(ctx)
	if cached := sess.CurrentUser(); cached != nil {
		return cached, nil
	}
	return g.profiles.FetchCurrentUser(ctx, false)
}

// redirectToLogin は遷移先を復元できるようredirectクエリを付けて転送する。
func (g *Guard) redirectToLogin(w http.ResponseWriter, r *http.Request, path string) {
	target := loginPath + "?" + url.Values{"redirect": {path}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

// roleMessage は必要ロールと現在ロールを表示名で示すメッセージを組み立てる。
func (g *Guard) roleMessage(route *Route, actual model.Role) string {
	names := make([]string, 0, len(route.Roles))
	for _, role := range route.Roles {
		names = append(names, role.DisplayName())
	}
	required := names[0]
	for _, name := range names[1:] {
		required += "または" + name
	}
	return fmt.Sprintf("このページには%sの権限が必要です（現在のロール: %s）。", required, actual.DisplayName())
}
