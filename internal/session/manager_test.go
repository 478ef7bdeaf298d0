package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moriyama/contestgate/internal/backend"
	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/notify"
	"github.com/moriyama/contestgate/internal/repository"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// mockGateway はBackendGatewayのテスト用実装。
type mockGateway struct {
	mu     sync.Mutex
	getFn  func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error)
	postFn func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error)
	calls  []string
}

func (m *mockGateway) Get(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
	m.record("GET " + path)
	return m.getFn(ctx, path, opts)
}

func (m *mockGateway) Post(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
	m.record("POST " + path)
	return m.postFn(ctx, path, opts)
}

func (m *mockGateway) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockGateway) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// recordingNotifier はNotifierのテスト用実装。
type recordingNotifier struct {
	mu            sync.Mutex
	notices       []notify.Notice
	reauthPending map[string]bool
	endCount      int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{reauthPending: make(map[string]bool)}
}

func (r *recordingNotifier) Publish(ctx context.Context, notice notify.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *recordingNotifier) BeginReauth(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reauthPending[sessionID] {
		return false
	}
	r.reauthPending[sessionID] = true
	return true
}

func (r *recordingNotifier) EndReauth(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reauthPending, sessionID)
	r.endCount++
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func (r *recordingNotifier) noticesOf(level notify.Level) []notify.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Notice
	for _, n := range r.notices {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

// newTestManager はインメモリリポジトリを使うManagerと認証済みセッションを生成する。
func newTestManager(t *testing.T, gateway *mockGateway) (*Manager, *recordingNotifier, *model.Session, context.Context) {
	t.Helper()
	repo := repository.NewMemorySessionRepo()
	notifier := newRecordingNotifier()
	mgr := NewManager(repo, notifier, newTestLogger(), time.Hour)
	mgr.SetClient(gateway)

	sess, err := mgr.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin がエラーを返した: %v", err)
	}
	sess.Token = "backend-jwt"
	if err := repo.UpdateToken(context.Background(), sess.ID, "backend-jwt"); err != nil {
		t.Fatalf("UpdateToken がエラーを返した: %v", err)
	}
	ctx := WithSession(context.Background(), sess)
	return mgr, notifier, sess, ctx
}

func successEnvelope(t *testing.T, data any) *model.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("テストデータのエンコードに失敗: %v", err)
	}
	return &model.Envelope{Success: true, Data: raw, Message: "success"}
}

func TestManager_Begin_CreatesAnonymousSession(t *testing.T) {
	repo := repository.NewMemorySessionRepo()
	mgr := NewManager(repo, newRecordingNotifier(), newTestLogger(), time.Hour)

	sess, err := mgr.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin がエラーを返した: %v", err)
	}

	if sess.ID == "" {
		t.Error("ID が空")
	}
	if sess.IsAuthenticated() {
		t.Error("作成直後のセッションは未認証であるべき")
	}

	loaded, err := mgr.Load(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Load がエラーを返した: %v", err)
	}
	if loaded == nil {
		t.Fatal("作成したセッションが復元できない")
	}
}

func TestManager_Login_StoresTokenAndProfile(t *testing.T) {
	gateway := &mockGateway{
		postFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			if path != "/api/users/login" {
				t.Errorf("path = %q, want /api/users/login", path)
			}
			return successEnvelope(t, map[string]any{
				"token": "new-jwt",
				"userInfo": map[string]any{
					"id": 7, "username": "tanaka", "role": "STUDENT", "status": "APPROVED",
				},
			}), nil
		},
	}
	mgr, notifier, sess, ctx := newTestManager(t, gateway)

	user, err := mgr.Login(ctx, model.LoginRequest{Username: "tanaka", Password: "pw"})
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}

	if user == nil || user.Username != "tanaka" {
		t.Fatalf("user = %+v, want username=tanaka", user)
	}
	if sess.Token != "new-jwt" {
		t.Errorf("Token = %q, want new-jwt", sess.Token)
	}

	loaded, _ := mgr.Load(ctx, sess.ID)
	if loaded == nil || loaded.Token != "new-jwt" {
		t.Error("トークンが永続化されていない")
	}
	if loaded.User == nil || loaded.User.Username != "tanaka" {
		t.Error("プロフィールが永続化されていない")
	}

	if got := notifier.noticesOf(notify.LevelSuccess); len(got) != 1 {
		t.Errorf("成功通知 = %d件, want 1件", len(got))
	}
}

func TestManager_Login_TopLevelTokenShape(t *testing.T) {
	// dataの下ではなくトップレベルにtokenを置くレスポンス形状
	raw := []byte(`{"success":true,"message":"ok","token":"top-jwt","userInfo":{"id":3,"username":"sato","role":"TEACHER","status":"APPROVED"}}`)
	gateway := &mockGateway{
		postFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			return &model.Envelope{Success: true, Message: "ok", Raw: raw}, nil
		},
	}
	mgr, _, sess, ctx := newTestManager(t, gateway)

	user, err := mgr.Login(ctx, model.LoginRequest{Username: "sato", Password: "pw"})
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if sess.Token != "top-jwt" {
		t.Errorf("Token = %q, want top-jwt", sess.Token)
	}
	if user == nil || user.Role != model.RoleTeacher {
		t.Errorf("user = %+v, want role=TEACHER", user)
	}
}

func TestManager_Login_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		backend  error
		wantCode string
		wantMsg  string
	}{
		{"401は認証情報不一致", model.NewAuthExpiredError(""), model.ErrCodeLoginFailed, ""},
		{"403はアカウント無効", model.NewPermissionDeniedError(), model.ErrCodeAccountDisabled, ""},
		{"404はユーザー未存在", model.NewNotFoundError(), model.ErrCodeUserNotFound, ""},
		{"接続不能はログイン向け文言", model.NewNetworkError(), model.ErrCodeNetworkError, "ログインサーバーに接続できませんでした。"},
		{"タイムアウトはログイン向け文言", model.NewRequestTimeoutError(), model.ErrCodeRequestTimeout, "ログイン処理がタイムアウトしました。"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := &mockGateway{
				postFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
					return nil, tt.backend
				},
			}
			mgr, _, _, ctx := newTestManager(t, gateway)

			_, err := mgr.Login(ctx, model.LoginRequest{Username: "x", Password: "y"})
			if err == nil {
				t.Fatal("Login はエラーを返すべき")
			}
			apiErr := &model.APIError{}
			if !errors.As(err, &apiErr) {
				t.Fatalf("APIError が返るべき, got %T", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if tt.wantMsg != "" && apiErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestManager_RefreshToken_SingleFlight(t *testing.T) {
	var backendCalls int32
	release := make(chan struct{})
	gateway := &mockGateway{
		postFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			atomic.AddInt32(&backendCalls, 1)
			<-release
			return successEnvelope(t, map[string]string{"token": "refreshed-jwt"}), nil
		},
	}
	mgr, _, _, ctx := newTestManager(t, gateway)

	const workers = 8
	results := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- mgr.RefreshToken(ctx)
		}()
	}

	// 全ワーカーが合流するのを待ってからバックエンドを応答させる
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	if got := atomic.LoadInt32(&backendCalls); got != 1 {
		t.Errorf("バックエンド呼び出し回数 = %d, want 1（single-flightに合流すべき）", got)
	}
	for token := range results {
		if token != "refreshed-jwt" {
			t.Errorf("token = %q, want refreshed-jwt", token)
		}
	}
}

func TestManager_RefreshToken_ConcurrentReaders(t *testing.T) {
	release := make(chan struct{})
	gateway := &mockGateway{
		postFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			<-release
			return successEnvelope(t, map[string]string{"token": "refreshed-jwt"}), nil
		},
	}
	mgr, _, sess, ctx := newTestManager(t, gateway)

	// リフレッシュ中の書き込みと認証状態の読み出しが同一セッション上で交錯しても
	// 壊れないこと（-race で検出される競合がないこと）を確認する
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if token := mgr.RefreshToken(ctx); token != "refreshed-jwt" {
				t.Errorf("token = %q, want refreshed-jwt", token)
			}
		}()
	}
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if !sess.IsAuthenticated() {
					t.Error("リフレッシュ中に未認証状態が観測された")
					return
				}
				sess.CurrentUser()
				mgr.Token(ctx)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(stop)
	readers.Wait()

	if got := sess.BackendToken(); got != "refreshed-jwt" {
		t.Errorf("リフレッシュ後のトークン = %q, want refreshed-jwt", got)
	}
}

func TestManager_RefreshToken_FailureKeepsOldToken(t *testing.T) {
	gateway := &mockGateway{
		postFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			return nil, model.NewNetworkError()
		},
	}
	mgr, _, sess, ctx := newTestManager(t, gateway)

	token := mgr.RefreshToken(ctx)
	if token != "backend-jwt" {
		t.Errorf("token = %q, want 旧トークン backend-jwt", token)
	}
	if sess.Token != "backend-jwt" {
		t.Errorf("セッションのトークンが変わっている: %q", sess.Token)
	}
}

func TestManager_RefreshToken_Anonymous_ReturnsEmpty(t *testing.T) {
	gateway := &mockGateway{}
	mgr, _, sess, _ := newTestManager(t, gateway)
	sess.Token = ""
	ctx := WithSession(context.Background(), sess)

	if token := mgr.RefreshToken(ctx); token != "" {
		t.Errorf("token = %q, want 空", token)
	}
	if gateway.callCount() != 0 {
		t.Error("未認証セッションでバックエンドを呼ぶべきではない")
	}
}

func TestManager_HandleUnauthorized_OncePerBurst(t *testing.T) {
	gateway := &mockGateway{}
	mgr, notifier, sess, ctx := newTestManager(t, gateway)

	mgr.HandleUnauthorized(ctx, "ログイン状態が失効しました")
	mgr.HandleUnauthorized(ctx, "ログイン状態が失効しました")
	mgr.HandleUnauthorized(ctx, "ログイン状態が失効しました")

	if sess.IsAuthenticated() {
		t.Error("トークンが破棄されていない")
	}
	loaded, _ := mgr.Load(ctx, sess.ID)
	if loaded == nil || loaded.Token != "" {
		t.Error("永続化されたトークンが破棄されていない")
	}

	reauths := 0
	for _, n := range notifier.noticesOf(notify.LevelWarning) {
		if n.Reauth {
			reauths++
		}
	}
	if reauths != 1 {
		t.Errorf("再ログイン確認の通知 = %d件, want 1件（バーストにつき1回）", reauths)
	}
}

func TestManager_HandleUnauthorized_Anonymous_NoOp(t *testing.T) {
	gateway := &mockGateway{}
	mgr, notifier, sess, _ := newTestManager(t, gateway)
	sess.Token = ""
	ctx := WithSession(context.Background(), sess)

	mgr.HandleUnauthorized(ctx, "whatever")

	if notifier.count() != 0 {
		t.Errorf("通知 = %d件, want 0件（匿名セッションでは何もしない）", notifier.count())
	}
}

func TestManager_Login_ResetsReauthState(t *testing.T) {
	gateway := &mockGateway{
		postFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			return successEnvelope(t, map[string]any{
				"token":    "new-jwt",
				"userInfo": map[string]any{"id": 1, "username": "a", "role": "STUDENT", "status": "APPROVED"},
			}), nil
		},
	}
	mgr, notifier, _, ctx := newTestManager(t, gateway)

	mgr.HandleUnauthorized(ctx, "")
	if _, err := mgr.Login(ctx, model.LoginRequest{Username: "a", Password: "b"}); err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}

	// 再ログイン後は次の401で再び確認を出せる
	mgr.HandleUnauthorized(ctx, "")
	reauths := 0
	for _, n := range notifier.noticesOf(notify.LevelWarning) {
		if n.Reauth {
			reauths++
		}
	}
	if reauths != 2 {
		t.Errorf("再ログイン確認の通知 = %d件, want 2件（解決後は再発行可能）", reauths)
	}
}

func TestManager_FetchCurrentUser_UsesCache(t *testing.T) {
	gateway := &mockGateway{
		getFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			return successEnvelope(t, map[string]any{"id": 5, "username": "yamada", "role": "STUDENT", "status": "APPROVED"}), nil
		},
	}
	mgr, _, sess, ctx := newTestManager(t, gateway)

	first, err := mgr.FetchCurrentUser(ctx, false)
	if err != nil {
		t.Fatalf("FetchCurrentUser がエラーを返した: %v", err)
	}
	second, err := mgr.FetchCurrentUser(ctx, false)
	if err != nil {
		t.Fatalf("FetchCurrentUser がエラーを返した: %v", err)
	}

	if gateway.callCount() != 1 {
		t.Errorf("バックエンド呼び出し回数 = %d, want 1（2回目はキャッシュ）", gateway.callCount())
	}
	if first.Username != "yamada" || second.Username != "yamada" {
		t.Errorf("username = %q / %q, want yamada", first.Username, second.Username)
	}
	if sess.User == nil {
		t.Error("プロフィールがキャッシュされていない")
	}
}

func TestManager_FetchCurrentUser_ForceBypassesCache(t *testing.T) {
	gateway := &mockGateway{
		getFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			return successEnvelope(t, map[string]any{"id": 5, "username": "yamada", "role": "STUDENT", "status": "APPROVED"}), nil
		},
	}
	mgr, _, sess, ctx := newTestManager(t, gateway)
	sess.User = &model.User{ID: 5, Username: "stale"}

	user, err := mgr.FetchCurrentUser(ctx, true)
	if err != nil {
		t.Fatalf("FetchCurrentUser がエラーを返した: %v", err)
	}
	if gateway.callCount() != 1 {
		t.Errorf("バックエンド呼び出し回数 = %d, want 1", gateway.callCount())
	}
	if user.Username != "yamada" {
		t.Errorf("username = %q, want yamada（強制再取得）", user.Username)
	}
}

func TestManager_FetchCurrentUser_LegacyFieldNames(t *testing.T) {
	gateway := &mockGateway{
		getFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			// 旧フィールド名（schoolName、department、studentId）を返すバックエンド
			return successEnvelope(t, map[string]any{
				"id": 9, "username": "kimura", "role": "STUDENT", "status": "APPROVED",
				"schoolName": "情報工学部", "department": "計算機科学", "studentId": "S2023001",
			}), nil
		},
	}
	mgr, _, _, ctx := newTestManager(t, gateway)

	user, err := mgr.FetchCurrentUser(ctx, true)
	if err != nil {
		t.Fatalf("FetchCurrentUser がエラーを返した: %v", err)
	}
	if user.College != "情報工学部" {
		t.Errorf("College = %q, want schoolNameから正規化", user.College)
	}
	if user.StudentNumber != "S2023001" {
		t.Errorf("StudentNumber = %q, want studentIdから正規化", user.StudentNumber)
	}
	if user.Major != "計算機科学" {
		t.Errorf("Major = %q, want departmentから正規化", user.Major)
	}
}

func TestManager_ValidateToken_ConfirmedInvalid_ClearsState(t *testing.T) {
	gateway := &mockGateway{
		getFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			return nil, model.NewBusinessError("トークンが無効です")
		},
	}
	mgr, _, sess, ctx := newTestManager(t, gateway)

	if mgr.ValidateToken(ctx) {
		t.Error("ValidateToken = true, want false")
	}
	if sess.IsAuthenticated() {
		t.Error("無効確定時はローカル状態を破棄すべき")
	}
	loaded, _ := mgr.Load(ctx, sess.ID)
	if loaded == nil || loaded.Token != "" {
		t.Error("永続化されたトークンが破棄されていない")
	}
}

func TestManager_ValidateToken_NetworkError_KeepsState(t *testing.T) {
	gateway := &mockGateway{
		getFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			return nil, model.NewNetworkError()
		},
	}
	mgr, _, sess, ctx := newTestManager(t, gateway)

	if mgr.ValidateToken(ctx) {
		t.Error("ValidateToken = true, want false")
	}
	// 判断を持ち越すため状態は維持する
	if !sess.IsAuthenticated() {
		t.Error("ネットワーク障害でローカル状態を破棄すべきではない")
	}
}

func TestManager_ValidateToken_ValidFalsePayload_ClearsState(t *testing.T) {
	gateway := &mockGateway{
		getFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			return successEnvelope(t, map[string]bool{"valid": false}), nil
		},
	}
	mgr, _, sess, ctx := newTestManager(t, gateway)

	if mgr.ValidateToken(ctx) {
		t.Error("ValidateToken = true, want false")
	}
	if sess.IsAuthenticated() {
		t.Error("valid:false の場合はローカル状態を破棄すべき")
	}
}

func TestManager_Logout_BestEffortBackendCall(t *testing.T) {
	gateway := &mockGateway{
		postFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			return nil, model.NewNetworkError()
		},
	}
	mgr, notifier, sess, ctx := newTestManager(t, gateway)

	if err := mgr.Logout(ctx); err != nil {
		t.Fatalf("バックエンド障害でもLogoutは成功すべき: %v", err)
	}
	if sess.IsAuthenticated() {
		t.Error("ローカル状態が破棄されていない")
	}
	loaded, _ := mgr.Load(ctx, sess.ID)
	if loaded != nil {
		t.Error("セッションが削除されていない")
	}
	if got := notifier.noticesOf(notify.LevelSuccess); len(got) != 1 {
		t.Errorf("成功通知 = %d件, want 1件", len(got))
	}
}

func TestManager_InitAuth_Anonymous_ReturnsNil(t *testing.T) {
	gateway := &mockGateway{}
	mgr, _, sess, _ := newTestManager(t, gateway)
	sess.Token = ""
	ctx := WithSession(context.Background(), sess)

	user, err := mgr.InitAuth(ctx)
	if err != nil {
		t.Fatalf("InitAuth がエラーを返した: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
	if gateway.callCount() != 0 {
		t.Error("未認証セッションでバックエンドを呼ぶべきではない")
	}
}

func TestManager_InitAuth_ValidToken_EnsuresProfile(t *testing.T) {
	gateway := &mockGateway{
		getFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			switch path {
			case backend.ValidateTokenPath:
				return successEnvelope(t, map[string]bool{"valid": true}), nil
			case "/api/users/profile":
				return successEnvelope(t, map[string]any{"id": 2, "username": "suzuki", "role": "ADMIN", "status": "APPROVED"}), nil
			}
			t.Errorf("予期しないパス: %s", path)
			return nil, model.NewNotFoundError()
		},
	}
	mgr, _, _, ctx := newTestManager(t, gateway)

	user, err := mgr.InitAuth(ctx)
	if err != nil {
		t.Fatalf("InitAuth がエラーを返した: %v", err)
	}
	if user == nil || user.Role != model.RoleAdmin {
		t.Fatalf("user = %+v, want role=ADMIN", user)
	}
}

func TestManager_Register_ReturnsBackendMessage(t *testing.T) {
	gateway := &mockGateway{
		postFn: func(ctx context.Context, path string, opts *backend.RequestOptions) (*model.Envelope, error) {
			if path != "/api/users/register" {
				t.Errorf("path = %q, want /api/users/register", path)
			}
			return &model.Envelope{Success: true, Message: "登録を受け付けました。承認をお待ちください。"}, nil
		},
	}
	mgr, _, _, ctx := newTestManager(t, gateway)

	message, err := mgr.Register(ctx, model.RegisterRequest{Username: "new", Role: model.RoleStudent})
	if err != nil {
		t.Fatalf("Register がエラーを返した: %v", err)
	}
	if message != "登録を受け付けました。承認をお待ちください。" {
		t.Errorf("message = %q, want バックエンドのメッセージ", message)
	}
}

func TestManager_ChangePassword_RequiresAuth(t *testing.T) {
	gateway := &mockGateway{}
	mgr, _, sess, _ := newTestManager(t, gateway)
	sess.Token = ""
	ctx := WithSession(context.Background(), sess)

	err := mgr.ChangePassword(ctx, model.ChangePasswordRequest{CurrentPassword: "a", NewPassword: "b"})
	if err == nil {
		t.Fatal("未認証セッションではエラーになるべき")
	}
}
