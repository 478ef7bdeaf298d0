package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/moriyama/contestgate/internal/guard"
	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionStore      middleware.SessionStore
	SessionCookie     middleware.SessionCookieConfig
	CSRF              middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Recovery          func(http.Handler) http.Handler

	// ビュールートのガードと配信先
	Guard *guard.Guard
	Pages http.Handler

	// 観測
	Metrics http.Handler

	// サービス
	AuthService         AuthServiceInterface
	CompetitionService  CompetitionServiceInterface
	TeamService         TeamServiceInterface
	RegistrationService RegistrationServiceInterface
	ScoreService        ScoreServiceInterface
	AdminUserService    AdminUserServiceInterface
	CategoryService     CategoryServiceInterface
	ExportService       ExportServiceInterface
	Notices             NoticeSubscriber
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Session → (CSRF → RateLimit)
//
// セッションミドルウェアはAPIルートとビュールートの両方に適用され、
// CSRF検証とレート制限はAPIルートのみに適用される。
// /healthz と /metrics はセッションを生成しないようチェーンの外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	if deps.Recovery != nil {
		r.Use(deps.Recovery)
	}
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- セッション不要のルート ---
	r.Get("/healthz", healthz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	sessionMiddleware := middleware.NewSessionMiddleware(deps.SessionStore, deps.Logger, deps.SessionCookie)

	authHandler := NewAuthHandler(deps.AuthService)
	competitionHandler := NewCompetitionHandler(deps.CompetitionService)
	teamHandler := NewTeamHandler(deps.TeamService)
	registrationHandler := NewRegistrationHandler(deps.RegistrationService)
	scoreHandler := NewScoreHandler(deps.ScoreService)
	adminHandler := NewAdminUserHandler(deps.AdminUserService)
	categoryHandler := NewCategoryHandler(deps.CategoryService)
	exportHandler := NewExportHandler(deps.ExportService)
	noticeHandler := NewNoticeHandler(deps.Notices)

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware)
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))
		r.Get("/api/notices", noticeHandler.Stream)

		// 認証
		r.Route("/api/auth", func(r chi.Router) {
			// ログインと登録には専用レート制限を追加する
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", authHandler.Register)
			r.Post("/logout", authHandler.Logout)
			r.Get("/session", authHandler.Session)
			r.Get("/validate", authHandler.Validate)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", authHandler.Me)
				r.Post("/change-password", authHandler.ChangePassword)
			})
		})

		// カテゴリ一覧は未認証でも参照できる（登録フォームで使用する）
		r.Get("/api/categories", categoryHandler.List)

		// --- 認証必須のリソースAPI ---
		// ロールによる操作制限はバックエンドが最終判定する。
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			// 競技会
			r.Route("/api/competitions", func(r chi.Router) {
				r.Get("/", competitionHandler.List)
				r.Post("/", competitionHandler.Create)
				r.Get("/stats", competitionHandler.Stats)
				r.Post("/batch-approve", competitionHandler.BatchApprove)
				r.Post("/batch-delete", competitionHandler.BatchDelete)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", competitionHandler.Get)
					r.Put("/", competitionHandler.Update)
					r.Delete("/", competitionHandler.Delete)
					r.Post("/approve", competitionHandler.Approve)
					r.Post("/reject", competitionHandler.Reject)
					r.Get("/audit-logs/export", exportHandler.AuditLogs)
				})
			})

			// チーム
			r.Route("/api/teams", func(r chi.Router) {
				r.Get("/", teamHandler.List)
				r.Post("/", teamHandler.Create)
				r.Post("/join", teamHandler.Join)
				r.Get("/check-name", teamHandler.CheckName)
				r.Get("/my-team", teamHandler.MyTeam)
				r.Get("/stats", teamHandler.Stats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", teamHandler.Get)
					r.Put("/", teamHandler.Update)
					r.Delete("/", teamHandler.Delete)
					r.Get("/members", teamHandler.Members)
					r.Post("/leave", teamHandler.Leave)
					r.Post("/invite-code", teamHandler.RegenerateInviteCode)
					r.Post("/transfer", teamHandler.TransferLeadership)
					r.Delete("/members/{memberId}", teamHandler.RemoveMember)
				})
			})

			// 参加登録
			r.Route("/api/registrations", func(r chi.Router) {
				r.Post("/", registrationHandler.Register)
				r.Get("/my", registrationHandler.My)
				r.Get("/competition/{competitionId}", registrationHandler.ByCompetition)
				r.Get("/competition/{competitionId}/export", exportHandler.Registrations)
				r.Post("/{id}/approve", registrationHandler.Approve)
				r.Post("/{id}/reject", registrationHandler.Reject)
				r.Delete("/{id}", registrationHandler.Cancel)
			})

			// 成績
			r.Route("/api/scores", func(r chi.Router) {
				r.Get("/my", scoreHandler.My)
				r.Post("/{id}/grade", scoreHandler.Grade)
				r.Route("/competition/{competitionId}", func(r chi.Router) {
					r.Get("/pending", scoreHandler.Pending)
					r.Post("/publish", scoreHandler.Publish)
					r.Get("/ranking", scoreHandler.Ranking)
					r.Get("/export", exportHandler.Scores)
				})
			})

			// 管理者
			r.Route("/api/admin", func(r chi.Router) {
				r.Route("/users", func(r chi.Router) {
					r.Get("/", adminHandler.List)
					r.Get("/stats", adminHandler.Stats)
					r.Get("/export", exportHandler.Users)
					r.Post("/batch-approve", adminHandler.BatchApprove)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", adminHandler.Get)
						r.Put("/", adminHandler.Update)
						r.Post("/approve", adminHandler.Approve)
						r.Post("/reject", adminHandler.Reject)
						r.Patch("/status", adminHandler.SetStatus)
						r.Post("/reset-password", adminHandler.ResetPassword)
					})
				})

				r.Route("/categories", func(r chi.Router) {
					r.Post("/", categoryHandler.Create)
					r.Put("/{id}", categoryHandler.Update)
					r.Delete("/{id}", categoryHandler.Delete)
					r.Patch("/{id}/status", categoryHandler.SetStatus)
				})
			})
		})
	})

	// --- ビュールート ---
	// ルートガードが認証・ロール要件を評価し、通過したリクエストにページを配信する。
	r.Group(func(r chi.Router) {
		r.Use(sessionMiddleware)
		if deps.Guard != nil {
			r.Use(deps.Guard.Middleware)
		}
		pages := deps.Pages
		if pages == nil {
			pages = http.NotFoundHandler()
		}
		r.Handle("/*", pages)
	})

	return r
}

// requireAuth はバックエンドJWTを保持しないセッションからのAPIアクセスを拒否する。
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if !sess.IsAuthenticated() {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
				Code:     "UNAUTHORIZED",
				Message:  "認証が必要です。",
				Category: "auth",
				Action:   "ログインしてください。",
				Status:   http.StatusUnauthorized,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// healthz は死活監視エンドポイント。
func healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
