package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/moriyama/contestgate/internal/notify"
)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぎ、
// 500レスポンスを返すミドルウェアを生成する。
// ガードやハンドラーから漏れたpanicはここで止まり、アプリ全体は停止しない。
// notifierが渡されている場合は汎用の読み込み失敗通知を発行する。
func NewRecoveryMiddleware(notifier notify.Notifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("panic recovered",
						slog.Any("panic", rec),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)
					if notifier != nil {
						notifier.Publish(r.Context(), notify.Notice{
							Level:   notify.LevelError,
							Message: "ページの読み込みに失敗しました。",
						})
					}
					WriteInternalServerError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
