// Package handler はゲートウェイの公開HTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/model"
)

// writeJSON はレスポンスをJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// newValidationError はリクエスト検証エラーを生成する。
func newValidationError(message string) *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  message,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
		Status:   http.StatusBadRequest,
	}
}

// handleServiceError はサービス層から返されたエラーを
// 統一エラーフォーマットのHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, statusFromAPIError(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// statusFromAPIError はAPIErrorからHTTPステータスコードを決定する。
// バックエンドのステータス起因のエラーはそのステータスを引き継ぎ、
// それ以外はエラーコードでマッピングする。
func statusFromAPIError(apiErr *model.APIError) int {
	if apiErr.Status >= 400 {
		return apiErr.Status
	}
	switch apiErr.Code {
	case model.ErrCodeNetworkError:
		return http.StatusBadGateway
	case model.ErrCodeRequestTimeout:
		return http.StatusGatewayTimeout
	case model.ErrCodeBusinessError:
		return http.StatusBadRequest
	case model.ErrCodeSessionNotFound, model.ErrCodeAuthExpired:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody はリクエストボディをJSONデコードする。
// 失敗時はエラーレスポンスを書き込みfalseを返す。
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("リクエストボディの解析に失敗しました。"))
		return false
	}
	return true
}

// idParam はURLパラメータを数値IDとして取り出す。
// 失敗時はエラーレスポンスを書き込みfalseを返す。
func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("IDの形式が正しくありません。"))
		return 0, false
	}
	return id, true
}

// pageRequest はクエリパラメータからページング要求を組み立てる。
// ページ番号は1始まりで受け取る。
func pageRequest(r *http.Request) model.PageRequest {
	q := r.URL.Query()
	req := model.PageRequest{
		SortBy:  q.Get("sortBy"),
		SortDir: q.Get("sortDir"),
		Keyword: q.Get("keyword"),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		req.Page = page
	}
	if size, err := strconv.Atoi(q.Get("size")); err == nil && size > 0 {
		req.Size = size
	}
	return req
}
