// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, permission, network, backend, validation, system
	Action   string // ユーザー向け対処方法
	Status   int    // 対応するHTTPステータス（ステータス起因でない場合は0）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthExpired      = "AUTH_EXPIRED"
	ErrCodeLoginFailed      = "LOGIN_FAILED"
	ErrCodeAccountDisabled  = "ACCOUNT_DISABLED"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeNotFound         = "RESOURCE_NOT_FOUND"
	ErrCodeServerError      = "SERVER_ERROR"
	ErrCodeNetworkError     = "NETWORK_ERROR"
	ErrCodeRequestTimeout   = "REQUEST_TIMEOUT"
	ErrCodeBusinessError    = "BUSINESS_ERROR"
	ErrCodeRequestFailed    = "REQUEST_FAILED"
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
)

// NewAuthExpiredError は認証切れエラーを生成する。
// 401レスポンスの受信時に使用する。
func NewAuthExpiredError(message string) *APIError {
	if message == "" {
		message = "ログイン状態の有効期限が切れました。"
	}
	return &APIError{
		Code:     ErrCodeAuthExpired,
		Message:  message,
		Category: "auth",
		Action:   "再度ログインしてください。",
		Status:   401,
	}
}

// NewLoginFailedError は認証情報不一致によるログイン失敗エラーを生成する。
func NewLoginFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  "ユーザー名またはパスワードが間違っています。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
		Status:   401,
	}
}

// NewAccountDisabledError はアカウント無効化エラーを生成する。
func NewAccountDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountDisabled,
		Message:  "アカウントが無効化されています。",
		Category: "auth",
		Action:   "管理者に連絡してください。",
		Status:   403,
	}
}

// NewUserNotFoundError はユーザー未存在エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが存在しません。",
		Category: "auth",
		Action:   "ユーザー名を確認するか、新規登録してください。",
		Status:   404,
	}
}

// NewPermissionDeniedError は権限不足エラーを生成する。
func NewPermissionDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodePermissionDenied,
		Message:  "権限がないため、このリソースにアクセスできません。",
		Category: "permission",
		Action:   "必要な権限を持つアカウントでログインしてください。",
		Status:   403,
	}
}

// NewNotFoundError はリソース未存在エラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "リクエストされたリソースが存在しません。",
		Category: "backend",
		Action:   "URLまたはリソースIDを確認してください。",
		Status:   404,
	}
}

// NewServerError はバックエンドの5xxエラーを生成する。
func NewServerError(status int) *APIError {
	return &APIError{
		Code:     ErrCodeServerError,
		Message:  "サーバー内部エラーが発生しました。",
		Category: "backend",
		Action:   "しばらく待ってから再度お試しください。",
		Status:   status,
	}
}

// NewNetworkError はレスポンスを受信できなかった場合のエラーを生成する。
func NewNetworkError() *APIError {
	return &APIError{
		Code:     ErrCodeNetworkError,
		Message:  "ネットワーク接続に失敗しました。",
		Category: "network",
		Action:   "ネットワーク設定とバックエンドの稼働状態を確認してください。",
	}
}

// NewRequestTimeoutError はリクエストタイムアウトエラーを生成する。
func NewRequestTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestTimeout,
		Message:  "リクエストがタイムアウトしました。",
		Category: "network",
		Action:   "ネットワーク接続を確認して再度お試しください。",
	}
}

// NewLoginNetworkError はログイン要求がバックエンドに届かなかった場合のエラーを生成する。
// 汎用のネットワークエラーと区別し、ログイン画面向けの文言を返す。
func NewLoginNetworkError() *APIError {
	return &APIError{
		Code:     ErrCodeNetworkError,
		Message:  "ログインサーバーに接続できませんでした。",
		Category: "network",
		Action:   "ネットワーク接続を確認して、しばらく待ってから再度お試しください。",
	}
}

// NewLoginTimeoutError はログイン要求がタイムアウトした場合のエラーを生成する。
func NewLoginTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeRequestTimeout,
		Message:  "ログイン処理がタイムアウトしました。",
		Category: "network",
		Action:   "ネットワーク接続を確認して再度お試しください。",
	}
}

// NewBusinessError はHTTP 200で success:false が返された場合のエラーを生成する。
// messageにはバックエンドのmessageフィールドをそのまま渡す。
func NewBusinessError(message string) *APIError {
	if message == "" {
		message = "リクエストに失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeBusinessError,
		Message:  message,
		Category: "backend",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewRequestFailedError は分類外のHTTPステータスエラーを生成する。
// バックエンドがmessageを返した場合はそれを優先する。
func NewRequestFailedError(status int, message string) *APIError {
	if message == "" {
		message = fmt.Sprintf("リクエストに失敗しました (%d)。", status)
	}
	return &APIError{
		Code:     ErrCodeRequestFailed,
		Message:  message,
		Category: "backend",
		Action:   "しばらく待ってから再度お試しください。",
		Status:   status,
	}
}

// NewSessionNotFoundError はゲートウェイセッション未存在エラーを生成する。
func NewSessionNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionNotFound,
		Message:  "セッションが見つかりません。",
		Category: "auth",
		Action:   "再度ログインしてください。",
		Status:   401,
	}
}
