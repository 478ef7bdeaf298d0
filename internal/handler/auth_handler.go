package handler

import (
	"context"
	"net/http"

	"github.com/moriyama/contestgate/internal/guard"
	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
// session.Managerが実装する。
type AuthServiceInterface interface {
	Login(ctx context.Context, req model.LoginRequest) (*model.User, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, req model.RegisterRequest) (string, error)
	ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error
	FetchCurrentUser(ctx context.Context, force bool) (*model.User, error)
	ValidateToken(ctx context.Context) bool
	InitAuth(ctx context.Context) (*model.User, error)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// loginResponse はログイン成功時のレスポンス。
// RedirectTo はロールに応じた遷移先ダッシュボード。
type loginResponse struct {
	User       *model.User `json:"user"`
	RedirectTo string      `json:"redirectTo"`
}

// Login はログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("ユーザー名とパスワードを入力してください。"))
		return
	}

	user, err := h.service.Login(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	redirectTo := "/dashboard"
	if user != nil {
		redirectTo = guard.LandingPath(user.Role)
	}
	writeJSON(w, http.StatusOK, loginResponse{User: user, RedirectTo: redirectTo})
}

// Logout はログアウトを処理する。
// バックエンド側の失敗でもローカルの認証状態は破棄されるため、常に204を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Register はユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("ユーザー名とパスワードを入力してください。"))
		return
	}

	message, err := h.service.Register(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": message})
}

// ChangePassword はパスワード変更を処理する。
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req model.ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("現在のパスワードと新しいパスワードを入力してください。"))
		return
	}

	if err := h.service.ChangePassword(r.Context(), req); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のユーザープロフィールを返す。
// force=true の場合はキャッシュを無視してバックエンドから再取得する。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	user, err := h.service.FetchCurrentUser(r.Context(), force)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// sessionResponse はセッション復元のレスポンス。
type sessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user,omitempty"`
}

// Session はページ読み込み時のセッション復元を処理する。
// トークンを保持するセッションではプロフィールを確保して返し、
// 未認証セッションでは authenticated:false を返す。
// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.InitAuth(r.Context())
	if err != nil {
		// 復元失敗は未認証として扱う（ページ表示は継続させる）
		writeJSON(w, http.StatusOK, sessionResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: user != nil,
		User:          user,
	})
}

// Validate はトークンの有効性検証を処理する。
// GET /api/auth/validate
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	valid := h.service.ValidateToken(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}
