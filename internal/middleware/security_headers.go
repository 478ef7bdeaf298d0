package middleware

import "net/http"

// securityHeaders は全レスポンスに付与する固定ヘッダー。
// ゲートウェイはAPIに加えてSPAのHTMLも配信するため、
// フレーム埋め込み拒否とMIMEスニッフィング抑止をここで一括して行う。
var securityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
	"Permissions-Policy":     "camera=(), microphone=(), geolocation=()",
}

// NewSecurityHeadersMiddleware はセキュリティ関連ヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := w.Header()
			for name, value := range securityHeaders {
				header.Set(name, value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
