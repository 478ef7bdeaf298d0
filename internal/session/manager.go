// Package session はゲートウェイセッションとバックエンドJWTのライフサイクルを管理する。
// ログイン・ログアウト・トークンリフレッシュ・プロフィール取得を担い、
// リフレッシュとプロフィール取得はセッション単位のsingle-flightで合流させる。
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/moriyama/contestgate/internal/backend"
	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/notify"
	"github.com/moriyama/contestgate/internal/repository"
)

// BackendGateway はManagerが利用するバックエンド操作のインターフェース。
// backend.Clientが実装する。
type BackendGateway interface {
	Get(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error)
	Post(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error)
}

// MetricsRecorder はセッション層が記録するメトリクスのインターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordTokenRefresh(success bool)
	RecordReauthPrompt()
}

// Manager はセッション状態機械の実装。
// backend.TokenSourceとbackend.UnauthorizedHandlerを実装し、
// トランスポート層からのトークン要求と401通知を受け取る。
type Manager struct {
	repo     repository.SessionRepository
	notifier notify.Notifier
	logger   *slog.Logger
	client   BackendGateway
	metrics  MetricsRecorder
	maxAge   time.Duration

	refreshGroup singleflight.Group
	profileGroup singleflight.Group
}

// NewManager はManagerを生成する。
// backend.ClientはManagerをTokenSourceとして参照するため、
// 相互参照はSetClientで後から解決する。
func NewManager(
	repo repository.SessionRepository,
	notifier notify.Notifier,
	logger *slog.Logger,
	maxAge time.Duration,
) *Manager {
	return &Manager{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		maxAge:   maxAge,
	}
}

// SetClient はバックエンドクライアントを設定する。
func (m *Manager) SetClient(client BackendGateway) {
	m.client = client
}

// SetMetrics はメトリクスレコーダーを設定する。未設定の場合は記録しない。
func (m *Manager) SetMetrics(metrics MetricsRecorder) {
	m.metrics = metrics
}

// Begin は新しい匿名セッションを作成して永続化する。
func (m *Manager) Begin(ctx context.Context) (*model.Session, error) {
	now := time.Now()
	sess := &model.Session{
		ID:        uuid.NewString(),
		ExpiresAt: now.Add(m.maxAge),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load は指定IDのセッションを復元する。
// 見つからない場合と期限切れの場合はnilを返す。
func (m *Manager) Load(ctx context.Context, id string) (*model.Session, error) {
	return m.repo.FindByID(ctx, id)
}

// Token は現在のセッションのバックエンドJWTを返す。backend.TokenSourceの実装。
func (m *Manager) Token(ctx context.Context) string {
	return FromContext(ctx).BackendToken()
}

// Refresh はトークンリフレッシュを実行する。backend.TokenSourceの実装。
func (m *Manager) Refresh(ctx context.Context) string {
	return m.RefreshToken(ctx)
}

// RefreshToken はバックエンドにトークンリフレッシュを要求する。
// 同一セッションの並行リクエストは進行中のリフレッシュに合流し、
// 全員が同じ結果トークンを受け取る。失敗時は旧トークンを返す。
func (m *Manager) RefreshToken(ctx context.Context) string {
	sess := FromContext(ctx)
	if !sess.IsAuthenticated() {
		return ""
	}

	result, _, _ := m.refreshGroup.Do(sess.ID, func() (any, error) {
		env, err := m.client.Post(ctx, backend.RefreshTokenPath, nil)
		if err != nil {
			m.logger.Warn("トークンリフレッシュに失敗しました",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
			m.recordRefresh(false)
			return sess.BackendToken(), nil
		}

		token := extractToken(env)
		if token == "" {
			m.logger.Warn("リフレッシュレスポンスにトークンが含まれていません",
				slog.String("session_id", sess.ID),
			)
			m.recordRefresh(false)
			return sess.BackendToken(), nil
		}

		if err := m.repo.UpdateToken(ctx, sess.ID, token); err != nil {
			m.logger.Error("リフレッシュ後のトークン保存に失敗しました",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
		sess.SetToken(token)
		m.logger.Info("トークンをリフレッシュしました", slog.String("session_id", sess.ID))
		m.recordRefresh(true)
		return token, nil
	})

	token, _ := result.(string)
	return token
}

// HandleUnauthorized は401受信時のセッション無効化シーケンス。
// backend.UnauthorizedHandlerの実装。同一セッションで確認が未解決の間は
// 再発行しない（バーストにつき1回）。匿名セッションでは何もしない
// （ログイン試行の401はLoginの失敗分類で扱う）。
func (m *Manager) HandleUnauthorized(ctx context.Context, message string) {
	sess := FromContext(ctx)
	if !sess.IsAuthenticated() {
		return
	}
	if !m.notifier.BeginReauth(sess.ID) {
		return
	}
	if m.metrics != nil {
		m.metrics.RecordReauthPrompt()
	}

	m.logger.Info("認証切れを検知したためセッションを無効化します",
		slog.String("session_id", sess.ID),
	)
	m.clearAuthState(ctx, sess)

	if message == "" {
		message = "ログイン状態の有効期限が切れました。再度ログインしますか？"
	}
	m.notifier.Publish(ctx, notify.Notice{
		Level:     notify.LevelWarning,
		Message:   message,
		Reauth:    true,
		SessionID: sess.ID,
	})
}

// Login はバックエンドにログインし、トークンとプロフィールをセッションに格納する。
func (m *Manager) Login(ctx context.Context, req model.LoginRequest) (*model.User, error) {
	sess := FromContext(ctx)
	if sess == nil {
		return nil, model.NewSessionNotFoundError()
	}

	env, err := m.client.Post(ctx, "/api/users/login", &backend.RequestOptions{Body: req})
	if err != nil {
		return nil, mapLoginError(err)
	}

	token := extractToken(env)
	if token == "" {
		return nil, model.NewBusinessError("ログインレスポンスにトークンが含まれていません。")
	}

	user := extractUser(env)

	if err := m.repo.UpdateToken(ctx, sess.ID, token); err != nil {
		return nil, err
	}
	if err := m.repo.UpdateProfile(ctx, sess.ID, user); err != nil {
		return nil, err
	}
	sess.SetAuth(token, user)
	m.notifier.EndReauth(sess.ID)

	if user == nil {
		user, err = m.FetchCurrentUser(ctx, true)
		if err != nil {
			m.logger.Warn("ログイン直後のプロフィール取得に失敗しました",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	m.logger.Info("ログインしました",
		slog.String("session_id", sess.ID),
		slog.String("username", req.Username),
	)
	m.notifier.Publish(ctx, notify.Notice{
		Level:     notify.LevelSuccess,
		Message:   "ログインしました。",
		SessionID: sess.ID,
	})
	return user, nil
}

// Logout はバックエンドにログアウトを通知し、セッションを破棄する。
// バックエンド呼び出しはベストエフォートで、失敗してもローカル状態は必ず破棄する。
func (m *Manager) Logout(ctx context.Context) error {
	sess := FromContext(ctx)
	if sess == nil {
		return nil
	}

	if sess.IsAuthenticated() {
		if _, err := m.client.Post(ctx, "/api/users/logout", nil); err != nil {
			m.logger.Warn("バックエンドへのログアウト通知に失敗しました",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := m.repo.DeleteByID(ctx, sess.ID); err != nil {
		return err
	}
	sess.ClearAuth()
	m.notifier.EndReauth(sess.ID)

	m.logger.Info("ログアウトしました", slog.String("session_id", sess.ID))
	m.notifier.Publish(ctx, notify.Notice{
		Level:     notify.LevelSuccess,
		Message:   "ログアウトしました。",
		SessionID: sess.ID,
	})
	return nil
}

// FetchCurrentUser はプロフィールを取得してキャッシュする。
// forceがfalseでキャッシュがあればそれを返す。取得は同一セッションの
// 並行リクエスト間でsingle-flightに合流する。
func (m *Manager) FetchCurrentUser(ctx context.Context, force bool) (*model.User, error) {
	sess := FromContext(ctx)
	if !sess.IsAuthenticated() {
		return nil, model.NewSessionNotFoundError()
	}
	if !force {
		if cached := sess.CurrentUser(); cached != nil {
			return cached, nil
		}
	}

	result, err, _ := m.profileGroup.Do(sess.ID, func() (any, error) {
		env, err := m.client.Get(ctx, "/api/users/profile", nil)
		if err != nil {
			return nil, err
		}

		user := &model.User{}
		if err := env.DecodeData(user); err != nil {
			return nil, err
		}
		if user.ID == 0 {
			return nil, model.NewBusinessError("プロフィールの取得に失敗しました。")
		}

		if err := m.repo.UpdateProfile(ctx, sess.ID, user); err != nil {
			m.logger.Error("プロフィールキャッシュの保存に失敗しました",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
		sess.SetUser(user)
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.User), nil
}

// ValidateToken はトークンの有効性をバックエンドに問い合わせる。
// 無効が確定した場合はログアウトの往復なしにローカル状態を破棄する。
// ネットワーク障害では状態を維持したままfalseを返す（判断の持ち越し）。
func (m *Manager) ValidateToken(ctx context.Context) bool {
	sess := FromContext(ctx)
	if !sess.IsAuthenticated() {
		return false
	}

	env, err := m.client.Get(ctx, backend.ValidateTokenPath, nil)
	if err != nil {
		if isConfirmedInvalid(err) {
			m.logger.Info("トークンの無効が確定したためローカル状態を破棄します",
				slog.String("session_id", sess.ID),
			)
			m.clearAuthState(ctx, sess)
		}
		return false
	}

	payload := struct {
		Valid *bool `json:"valid"`
	}{}
	if decodeErr := env.DecodeData(&payload); decodeErr == nil && payload.Valid != nil && !*payload.Valid {
		m.clearAuthState(ctx, sess)
		return false
	}
	return true
}

// InitAuth はセッション復元時の認証状態初期化を行う。
// トークンを検証し、有効ならプロフィールキャッシュを確保する。
// 未認証または無効なセッションではnilを返す（エラーではない）。
func (m *Manager) InitAuth(ctx context.Context) (*model.User, error) {
	sess := FromContext(ctx)
	if !sess.IsAuthenticated() {
		return nil, nil
	}
	if !m.ValidateToken(ctx) {
		return nil, nil
	}
	if cached := sess.CurrentUser(); cached != nil {
		return cached, nil
	}
	return m.FetchCurrentUser(ctx, true)
}

// Register はユーザー登録を行い、バックエンドのメッセージを返す。
// 登録後は承認待ちとなるため、トークンは発行されない。
func (m *Manager) Register(ctx context.Context, req model.RegisterRequest) (string, error) {
	env, err := m.client.Post(ctx, "/api/users/register", &backend.RequestOptions{Body: req})
	if err != nil {
		return "", err
	}
	message := env.Message
	if message == "" || message == "success" {
		message = "登録が完了しました。管理者の承認をお待ちください。"
	}
	return message, nil
}

// ChangePassword はパスワードを変更する。
func (m *Manager) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error {
	sess := FromContext(ctx)
	if !sess.IsAuthenticated() {
		return model.NewSessionNotFoundError()
	}
	if _, err := m.client.Post(ctx, "/api/users/change-password", &backend.RequestOptions{Body: req}); err != nil {
		return err
	}
	m.notifier.Publish(ctx, notify.Notice{
		Level:     notify.LevelSuccess,
		Message:   "パスワードを変更しました。",
		SessionID: sess.ID,
	})
	return nil
}

func (m *Manager) recordRefresh(success bool) {
	if m.metrics != nil {
		m.metrics.RecordTokenRefresh(success)
	}
}

// clearAuthState はトークンとプロフィールキャッシュを破棄する。
// セッション自体（ブラウザとの関連付け）は維持し、再ログインに備える。
func (m *Manager) clearAuthState(ctx context.Context, sess *model.Session) {
	if err := m.repo.UpdateToken(ctx, sess.ID, ""); err != nil {
		m.logger.Error("トークンの破棄に失敗しました",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := m.repo.UpdateProfile(ctx, sess.ID, nil); err != nil {
		m.logger.Error("プロフィールキャッシュの破棄に失敗しました",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
	}
	sess.ClearAuth()
}

// mapLoginError はログイン失敗をユーザー向けエラーに変換する。
// ステータス起因は認証系の文言に、接続不能とタイムアウトはログイン向けの文言に揃える。
func mapLoginError(err error) error {
	apiErr := &model.APIError{}
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Status {
	case 401:
		return model.NewLoginFailedError()
	case 403:
		return model.NewAccountDisabledError()
	case 404:
		return model.NewUserNotFoundError()
	}
	switch apiErr.Code {
	case model.ErrCodeNetworkError:
		return model.NewLoginNetworkError()
	case model.ErrCodeRequestTimeout:
		return model.NewLoginTimeoutError()
	}
	return apiErr
}

// isConfirmedInvalid はトークンの無効が確定したエラーかを判定する。
// ネットワーク障害・タイムアウト・5xxは確定とみなさない。
func isConfirmedInvalid(err error) bool {
	apiErr := &model.APIError{}
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case model.ErrCodeAuthExpired, model.ErrCodeBusinessError:
		return true
	}
	return false
}

// loginPayload はログイン・リフレッシュレスポンスのトークンとプロフィールを表す。
// バックエンドはdata配下とトップレベルの両方の形状を返すことがある。
type loginPayload struct {
	Token    string      `json:"token"`
	UserInfo *model.User `json:"userInfo"`
	User     *model.User `json:"user"`
}

// extractToken はエンベロープからトークンを取り出す。
// data配下を優先し、なければトップレベルを探す。
func extractToken(env *model.Envelope) string {
	payload := loginPayload{}
	if err := env.DecodeData(&payload); err == nil && payload.Token != "" {
		return payload.Token
	}
	payload = loginPayload{}
	if err := env.DecodeRaw(&payload); err == nil {
		return payload.Token
	}
	return ""
}

// extractUser はエンベロープからユーザープロフィールを取り出す。
// 含まれていない場合はnilを返す（後続のプロフィール取得で補完する）。
func extractUser(env *model.Envelope) *model.User {
	payload := loginPayload{}
	if err := env.DecodeData(&payload); err == nil {
		if payload.UserInfo != nil {
			return payload.UserInfo
		}
		if payload.User != nil {
			return payload.User
		}
	}
	payload = loginPayload{}
	if err := env.DecodeRaw(&payload); err == nil {
		if payload.UserInfo != nil {
			return payload.UserInfo
		}
		if payload.User != nil {
			return payload.User
		}
	}
	return nil
}
