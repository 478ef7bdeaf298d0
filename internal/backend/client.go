// Package backend は競技会管理バックエンドへの認証付きHTTPクライアントを提供する。
// JWTの事前リフレッシュ、レスポンスエンベロープの正規化、
// エラーステータスの分類と通知を一手に引き受け、
// 呼び出し側には正規化済みEnvelopeまたはエラーのみを見せる。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/notify"
)

const (
	// defaultRefreshThreshold は事前リフレッシュを行う残り有効期間の閾値。
	defaultRefreshThreshold = 5 * time.Minute
	// RefreshTokenPath はトークンリフレッシュのエンドポイント。
	// このパスへのリクエストでは事前リフレッシュを行わない（再帰防止）。
	RefreshTokenPath = "/api/users/refresh-token"
	// ValidateTokenPath はトークン検証のエンドポイント。
	// 検証失敗は受動的な確認のため通知を出さない。
	ValidateTokenPath = "/api/users/validate-token"
)

// TokenSource は現在のバックエンドJWTの取得とリフレッシュのインターフェース。
// セッション層が実装し、リクエストコンテキストからセッションを解決する。
type TokenSource interface {
	// Token は現在のトークンを返す。未認証の場合は空文字列を返す。
	Token(ctx context.Context) string
	// Refresh はトークンリフレッシュを実行または進行中のものに合流し、
	// 完了後に現在のトークンを返す（失敗時は旧トークンのまま）。
	Refresh(ctx context.Context) string
}

// UnauthorizedHandler は401受信時のセッション無効化シーケンスのインターフェース。
// 同時多発する401に対して確認プロンプトを1回に抑える責務を持つ。
type UnauthorizedHandler interface {
	HandleUnauthorized(ctx context.Context, message string)
}

// MetricsRecorder はトランスポートメトリクスの記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordBackendStatus(statusCode int)
	RecordBackendLatency(duration time.Duration)
}

// RequestOptions はリクエスト単位の追加設定を表す。
type RequestOptions struct {
	// Query はクエリパラメータ。
	Query url.Values
	// Body はJSONとして送信するリクエストボディ。
	Body any
	// Header は追加のリクエストヘッダー。
	Header http.Header
	// Timeout はリクエスト単位のタイムアウト。0の場合はクライアント既定値を使う。
	Timeout time.Duration
}

// Blob はバイナリレスポンス（ファイルダウンロード）を表す。
// エンベロープ正規化を経由せず、そのまま呼び出し側に渡される。
type Blob struct {
	Data        []byte
	ContentType string
}

// ClientConfig はClientの設定。
type ClientConfig struct {
	BaseURL          string
	RefreshThreshold time.Duration
}

// Client はバックエンドAPIの認証付きクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	tokens     TokenSource
	authFail   UnauthorizedHandler
	notifier   notify.Notifier
	metrics    MetricsRecorder
	baseURL    string
	threshold  time.Duration
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(
	httpClient *http.Client,
	logger *slog.Logger,
	tokens TokenSource,
	authFail UnauthorizedHandler,
	notifier notify.Notifier,
	metrics MetricsRecorder,
	cfg ClientConfig,
) *Client {
	threshold := cfg.RefreshThreshold
	if threshold <= 0 {
		threshold = defaultRefreshThreshold
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		tokens:     tokens,
		authFail:   authFail,
		notifier:   notifier,
		metrics:    metrics,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		threshold:  threshold,
	}
}

// Get はGETリクエストを発行する。
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*model.Envelope, error) {
	return c.do(ctx, http.MethodGet, path, opts)
}

// Post はPOSTリクエストを発行する。
func (c *Client) Post(ctx context.Context, path string, opts *RequestOptions) (*model.Envelope, error) {
	return c.do(ctx, http.MethodPost, path, opts)
}

// Put はPUTリクエストを発行する。
func (c *Client) Put(ctx context.Context, path string, opts *RequestOptions) (*model.Envelope, error) {
	return c.do(ctx, http.MethodPut, path, opts)
}

// Delete はDELETEリクエストを発行する。
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (*model.Envelope, error) {
	return c.do(ctx, http.MethodDelete, path, opts)
}

// Patch はPATCHリクエストを発行する。
func (c *Client) Patch(ctx context.Context, path string, opts *RequestOptions) (*model.Envelope, error) {
	return c.do(ctx, http.MethodPatch, path, opts)
}

// Download はバイナリエンドポイント（ファイルエクスポート等）からBlobを取得する。
// レスポンスボディはエンベロープ正規化を経由せずそのまま返す。
func (c *Client) Download(ctx context.Context, path string, opts *RequestOptions) (*Blob, error) {
	resp, err := c.execute(ctx, http.MethodGet, path, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, c.handleStatusError(ctx, path, resp.StatusCode, body)
	}

	return &Blob{
		Data:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// do はリクエストを発行し、レスポンスを正規化済みEnvelopeに変換する。
func (c *Client) do(ctx context.Context, method, path string, opts *RequestOptions) (*model.Envelope, error) {
	resp, err := c.execute(ctx, method, path, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, c.handleStatusError(ctx, path, resp.StatusCode, body)
	}

	return c.normalize(ctx, path, body)
}

// execute はトークン付与と事前リフレッシュを行った上でHTTPリクエストを実行する。
func (c *Client) execute(ctx context.Context, method, path string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	reqURL, err := c.buildURL(path, opts.Query)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		data, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range opts.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	c.attachToken(ctx, req, path)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordBackendLatency(time.Since(start))
	}
	if err != nil {
		apiErr := ClassifyTransportError(err)
		c.logger.Error("バックエンドへのリクエストに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		c.notifier.Publish(ctx, notify.Notice{Level: notify.LevelError, Message: apiErr.Message})
		return nil, apiErr
	}

	if c.metrics != nil {
		c.metrics.RecordBackendStatus(resp.StatusCode)
	}
	return resp, nil
}

// attachToken はAuthorizationヘッダーを付与する。
// 残り有効期間が閾値内（0より大きく閾値以下）の場合は事前リフレッシュを行い、
// リフレッシュ完了後の現在のトークンを使用する（失敗時は旧トークン）。
// 期限切れのトークンはそのまま送信し、401の判断はバックエンドに委ねる。
func (c *Client) attachToken(ctx context.Context, req *http.Request, path string) {
	token := c.tokens.Token(ctx)
	if token == "" {
		return
	}

	remaining, ok := TokenRemaining(token, time.Now())
	if ok && path != RefreshTokenPath {
		if remaining > 0 && remaining <= c.threshold {
			c.logger.Info("トークンの有効期限が近いためリフレッシュします",
				slog.Int64("remaining_seconds", int64(remaining.Seconds())),
			)
			token = c.tokens.Refresh(ctx)
		} else if remaining <= 0 {
			// ローカルではブロックしない。バックエンドが401を返せば
			// セッション無効化シーケンスが走る。
			c.logger.Warn("期限切れトークンのままリクエストを送信します",
				slog.String("path", path),
			)
		}
	}

	req.Header.Set("Authorization", "Bearer "+token)
}

// handleStatusError はエラーステータスを分類し、通知を発行する。
// 401はセッション無効化シーケンス（バーストにつき1回の確認）を起動する。
func (c *Client) handleStatusError(ctx context.Context, path string, status int, body []byte) error {
	message := extractMessage(body)
	apiErr := ClassifyHTTPStatus(status, message)

	c.logger.Warn("バックエンドがエラーステータスを返しました",
		slog.String("path", path),
		slog.Int("http_status", status),
		slog.String("message", message),
	)

	if status == 401 {
		c.authFail.HandleUnauthorized(ctx, apiErr.Message)
		return apiErr
	}

	if path != ValidateTokenPath {
		c.notifier.Publish(ctx, notify.Notice{Level: notify.LevelError, Message: apiErr.Message})
	}
	return apiErr
}

// normalize は2xxレスポンスボディを正規化済みEnvelopeに変換する。
// 形状判定は順序付きで行う:
//  1. 空ボディ → 成功エンベロープ
//  2. successフィールドを持つオブジェクト → そのままエンベロープとして解釈
//     （success:falseはビジネスエラーとして通知・エラー化する）
//  3. それ以外のJSON（オブジェクト・配列・スカラー） → dataとしてラップ
func (c *Client) normalize(ctx context.Context, path string, body []byte) (*model.Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &model.Envelope{Success: true, Message: "success"}, nil
	}

	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %s", truncateForLog(trimmed))
	}

	if hasSuccessField(trimmed) {
		envelope := &model.Envelope{}
		if err := json.Unmarshal(trimmed, envelope); err != nil {
			return nil, fmt.Errorf("レスポンスエンベロープのパースに失敗しました: %w", err)
		}
		envelope.Raw = json.RawMessage(trimmed)

		if !envelope.Success {
			apiErr := model.NewBusinessError(envelope.Message)
			if path != ValidateTokenPath {
				c.notifier.Publish(ctx, notify.Notice{Level: notify.LevelError, Message: apiErr.Message})
			}
			return nil, apiErr
		}
		return envelope, nil
	}

	return &model.Envelope{
		Success: true,
		Data:    json.RawMessage(trimmed),
		Message: "success",
		Raw:     json.RawMessage(trimmed),
	}, nil
}

// hasSuccessField はトップレベルオブジェクトがsuccessブール値を持つかを判定する。
func hasSuccessField(body []byte) bool {
	if len(body) == 0 || body[0] != '{' {
		return false
	}
	probe := struct {
		Success *bool `json:"success"`
	}{}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Success != nil
}

// extractMessage はエラーレスポンスボディからmessageフィールドを取り出す。
// JSONでない場合や未設定の場合は空文字列を返す。
func extractMessage(body []byte) string {
	probe := struct {
		Message string `json:"message"`
	}{}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Message
}

// buildURL はベースURLとパス、クエリパラメータからリクエストURLを構築する。
func (c *Client) buildURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("リクエストURLの構築に失敗しました: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// truncateForLog はログ出力用にボディを切り詰める。
func truncateForLog(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
