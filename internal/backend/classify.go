package backend

import (
	"context"
	"errors"

	"github.com/moriyama/contestgate/internal/model"
)

// ClassifyHTTPStatus はバックエンドのエラーステータスをAPIErrorに分類する。
// 401は認証切れ、403は権限不足、404はリソース未存在、5xxはサーバーエラー、
// それ以外はバックエンドのmessage（あれば）を添えた汎用エラーとする。
func ClassifyHTTPStatus(status int, message string) *model.APIError {
	switch {
	case status == 401:
		return model.NewAuthExpiredError(message)
	case status == 403:
		return model.NewPermissionDeniedError()
	case status == 404:
		return model.NewNotFoundError()
	case status >= 500:
		return model.NewServerError(status)
	default:
		return model.NewRequestFailedError(status, message)
	}
}

// ClassifyTransportError はレスポンスを受信できなかった失敗をAPIErrorに分類する。
// タイムアウト（コンテキスト期限切れ）とそれ以外のネットワーク障害を区別する。
func ClassifyTransportError(err error) *model.APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewRequestTimeoutError()
	}
	return model.NewNetworkError()
}
