package guard

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/moriyama/contestgate/internal/model"
	"github.com/moriyama/contestgate/internal/notify"
	"github.com/moriyama/contestgate/internal/session"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// mockProfiles はProfileSourceのテスト用実装。
type mockProfiles struct {
	mu      sync.Mutex
	fetchFn func(ctx context.Context, force bool) (*model.User, error)
	calls   int
}

func (m *mockProfiles) FetchCurrentUser(ctx context.Context, force bool) (*model.User, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.fetchFn(ctx, force)
}

func (m *mockProfiles) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// recordingNotifier はNotifierのテスト用実装。
type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (r *recordingNotifier) Publish(ctx context.Context, notice notify.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *recordingNotifier) BeginReauth(sessionID string) bool { return true }
func (r *recordingNotifier) EndReauth(sessionID string)        {}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func (r *recordingNotifier) last() notify.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return notify.Notice{}
	}
	return r.notices[len(r.notices)-1]
}

func authedSession(user *model.User) *model.Session {
	return &model.Session{
		ID:        "sess-1",
		Token:     "jwt",
		User:      user,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// serveGuarded はガード配下のハンドラーにリクエストを通し、レスポンスを返す。
func serveGuarded(t *testing.T, g *Guard, sess *model.Session, path string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	passed := false
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		passed = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sess != nil {
		req = req.WithContext(session.WithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, passed
}

func TestGuard_PublicRoute_PassesThrough(t *testing.T) {
	g := New(nil, &mockProfiles{}, &recordingNotifier{}, newTestLogger())

	rec, passed := serveGuarded(t, g, nil, "/login")
	if !passed {
		t.Error("公開ルートは通過すべき")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGuard_AuthRequired_RedirectsToLoginWithRedirectQuery(t *testing.T) {
	notifier := &recordingNotifier{}
	g := New(nil, &mockProfiles{}, notifier, newTestLogger())

	rec, passed := serveGuarded(t, g, &model.Session{ID: "anon"}, "/competitions/42")
	if passed {
		t.Error("未認証は通過すべきではない")
	}
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}

	location := rec.Header().Get("Location")
	if location != "/login?redirect=%2Fcompetitions%2F42" {
		t.Errorf("Location = %q, want redirectクエリ付きログインページ", location)
	}
	if notifier.count() != 1 || notifier.last().Level != notify.LevelWarning {
		t.Error("ログイン要求の警告通知が1件発行されるべき")
	}
}

func TestGuard_LoginPath_AuthenticatedUser_RedirectedByRole(t *testing.T) {
	tests := []struct {
		name string
		role model.Role
		want string
	}{
		{"管理者は管理ダッシュボード", model.RoleAdmin, "/admin-dashboard"},
		{"教員は教員ダッシュボード", model.RoleTeacher, "/teacher-dashboard"},
		{"学生は一般ダッシュボード", model.RoleStudent, "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(nil, &mockProfiles{}, &recordingNotifier{}, newTestLogger())
			sess := authedSession(&model.User{ID: 1, Role: tt.role})

			rec, passed := serveGuarded(t, g, sess, "/login")
			if passed {
				t.Error("認証済みユーザーはログインページを通過すべきではない")
			}
			if got := rec.Header().Get("Location"); got != tt.want {
				t.Errorf("Location = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGuard_LoginPath_ProfileFetchFails_ShowsLoginPage(t *testing.T) {
	profiles := &mockProfiles{
		fetchFn: func(ctx context.Context, force bool) (*model.User, error) {
			return nil, model.NewNetworkError()
		},
	}
	g := New(nil, profiles, &recordingNotifier{}, newTestLogger())
	sess := authedSession(nil) // プロフィール未キャッシュ

	_, passed := serveGuarded(t, g, sess, "/login")
	if !passed {
		t.Error("プロフィール取得失敗時はログインページを表示すべき")
	}
}

func TestGuard_RootPath_Redirects(t *testing.T) {
	t.Run("未認証はログインページへ", func(t *testing.T) {
		g := New(nil, &mockProfiles{}, &recordingNotifier{}, newTestLogger())
		rec, _ := serveGuarded(t, g, &model.Session{ID: "anon"}, "/")
		if got := rec.Header().Get("Location"); got != "/login" {
			t.Errorf("Location = %q, want /login", got)
		}
	})

	t.Run("認証済みはロール別ダッシュボードへ", func(t *testing.T) {
		g := New(nil, &mockProfiles{}, &recordingNotifier{}, newTestLogger())
		sess := authedSession(&model.User{ID: 1, Role: model.RoleTeacher})
		rec, _ := serveGuarded(t, g, sess, "/")
		if got := rec.Header().Get("Location"); got != "/teacher-dashboard" {
			t.Errorf("Location = %q, want /teacher-dashboard", got)
		}
	})
}

func TestGuard_RoleRestricted_InsufficientRole_RedirectsTo403(t *testing.T) {
	notifier := &recordingNotifier{}
	g := New(nil, &mockProfiles{}, notifier, newTestLogger())
	sess := authedSession(&model.User{ID: 1, Role: model.RoleStudent})

	rec, passed := serveGuarded(t, g, sess, "/admin/users")
	if passed {
		t.Error("ロール不足は通過すべきではない")
	}
	if got := rec.Header().Get("Location"); got != "/403" {
		t.Errorf("Location = %q, want /403", got)
	}

	// 表示名（管理者・学生）でメッセージを組み立てる
	msg := notifier.last().Message
	want := "このページには管理者の権限が必要です（現在のロール: 学生）。"
	if msg != want {
		t.Errorf("通知メッセージ = %q, want %q", msg, want)
	}
}

func TestGuard_RoleRestricted_MultipleRoles_MessageListsAll(t *testing.T) {
	notifier := &recordingNotifier{}
	g := New(nil, &mockProfiles{}, notifier, newTestLogger())
	sess := authedSession(&model.User{ID: 1, Role: model.RoleStudent})

	rec, _ := serveGuarded(t, g, sess, "/grading")
	if got := rec.Header().Get("Location"); got != "/403" {
		t.Errorf("Location = %q, want /403", got)
	}
	want := "このページには教員または管理者の権限が必要です（現在のロール: 学生）。"
	if got := notifier.last().Message; got != want {
		t.Errorf("通知メッセージ = %q, want %q", got, want)
	}
}

func TestGuard_RoleRestricted_SufficientRole_Passes(t *testing.T) {
	g := New(nil, &mockProfiles{}, &recordingNotifier{}, newTestLogger())
	sess := authedSession(&model.User{ID: 1, Role: model.RoleAdmin})

	_, passed := serveGuarded(t, g, sess, "/admin/users")
	if !passed {
		t.Error("管理者は管理ルートを通過すべき")
	}
}

func TestGuard_RoleRestricted_UsesCachedProfile(t *testing.T) {
	profiles := &mockProfiles{
		fetchFn: func(ctx context.Context, force bool) (*model.User, error) {
			t.Error("キャッシュ済みプロフィールがあれば取得しない")
			return nil, nil
		},
	}
	g := New(nil, profiles, &recordingNotifier{}, newTestLogger())
	sess := authedSession(&model.User{ID: 1, Role: model.RoleAdmin})

	serveGuarded(t, g, sess, "/admin-dashboard")
	if profiles.callCount() != 0 {
		t.Errorf("プロフィール取得回数 = %d, want 0", profiles.callCount())
	}
}

func TestGuard_RoleRestricted_FetchesProfileWhenMissing(t *testing.T) {
	profiles := &mockProfiles{
		fetchFn: func(ctx context.Context, force bool) (*model.User, error) {
			return &model.User{ID: 1, Role: model.RoleAdmin}, nil
		},
	}
	g := New(nil, profiles, &recordingNotifier{}, newTestLogger())
	sess := authedSession(nil)

	_, passed := serveGuarded(t, g, sess, "/admin-dashboard")
	if !passed {
		t.Error("取得したプロフィールのロールで通過すべき")
	}
	if profiles.callCount() != 1 {
		t.Errorf("プロフィール取得回数 = %d, want 1", profiles.callCount())
	}
}

func TestGuard_RoleRestricted_ProfileFetchFails_RedirectsToLogin(t *testing.T) {
	profiles := &mockProfiles{
		fetchFn: func(ctx context.Context, force bool) (*model.User, error) {
			return nil, model.NewNetworkError()
		},
	}
	g := New(nil, profiles, &recordingNotifier{}, newTestLogger())
	sess := authedSession(nil)

	rec, _ := serveGuarded(t, g, sess, "/admin-dashboard")
	if got := rec.Header().Get("Location"); got != "/login?redirect=%2Fadmin-dashboard" {
		t.Errorf("Location = %q, want ログインページ", got)
	}
}

func TestGuard_UnlistedRoute_PassesThrough(t *testing.T) {
	g := New(nil, &mockProfiles{}, &recordingNotifier{}, newTestLogger())

	_, passed := serveGuarded(t, g, &model.Session{ID: "anon"}, "/about")
	if !passed {
		t.Error("テーブルにないルートは通過すべき")
	}
}

func TestMatch_LongestPrefixWins(t *testing.T) {
	routes := []Route{
		{Pattern: "/admin", Roles: []model.Role{model.RoleAdmin}},
		{Pattern: "/admin/public"},
	}

	got := match(routes, "/admin/public/help")
	if got == nil || got.Pattern != "/admin/public" {
		t.Fatalf("match = %+v, want /admin/public（最長一致）", got)
	}

	got = match(routes, "/admin/users")
	if got == nil || got.Pattern != "/admin" {
		t.Fatalf("match = %+v, want /admin", got)
	}

	if match(routes, "/administrator") != nil {
		t.Error("/administrator は /admin に一致すべきではない")
	}
}
