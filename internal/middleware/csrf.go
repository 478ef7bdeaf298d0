package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
)

// CSRF対策はDouble Submit Cookie方式で行う。
// セッションCookieはHttpOnlyのためスクリプトから読めないが、
// csrf_token Cookieは読み取り可能にしておき、ブラウザ側が同じ値を
// X-CSRF-Tokenヘッダーに載せて送ることで正規のフロントエンド経由の
// リクエストであることを確認する。
const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"

	// csrfTokenBytes はhex化前のトークンのバイト数。
	csrfTokenBytes = 32

	// csrfCookieMaxAge はCSRFトークンCookieの有効期間（秒）。
	csrfCookieMaxAge = 24 * 60 * 60
)

// CSRFConfig はCSRF検証ミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

func (c CSRFConfig) newCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false, // ブラウザ側が読み取ってヘッダーに載せる
		Secure:   c.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// NewCSRFMiddleware はCSRFトークンの発行・検証ミドルウェアを返す。
// 読み取り系メソッド（GET, HEAD, OPTIONS）は検証せず、Cookie未所持の
// ブラウザへトークンを配布する。状態変更メソッドはCookieとヘッダーの
// トークン一致を必須とし、不一致なら403で遮断する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				if _, err := r.Cookie(csrfCookieName); err != nil {
					issueCSRFCookie(w, config)
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := checkCSRF(r); reason != "" {
				slog.Warn("CSRF検証に失敗しました",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// checkCSRF はCookieとヘッダーのトークン一致を確認する。
// 検証を通過した場合は空文字列、失敗した場合はログ向けの理由を返す。
func checkCSRF(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "cookie_missing"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "header_missing"
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return "token_mismatch"
	}
	return ""
}

// NewCSRFTokenHandler は GET /api/csrf-token のハンドラーを返す。
// Cookieに既存トークンがあればその値を、なければ新規発行した値を
// {"token": ...} のJSONで返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(csrfCookieName); err == nil {
			token = cookie.Value
		}
		if token == "" {
			fresh, err := newCSRFToken()
			if err != nil {
				slog.Error("CSRFトークンの生成に失敗しました", slog.String("error", err.Error()))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			token = fresh
			http.SetCookie(w, config.newCookie(token))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
}

func issueCSRFCookie(w http.ResponseWriter, config CSRFConfig) {
	token, err := newCSRFToken()
	if err != nil {
		slog.Error("CSRFトークンの生成に失敗しました", slog.String("error", err.Error()))
		return
	}
	http.SetCookie(w, config.newCookie(token))
}

func newCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
