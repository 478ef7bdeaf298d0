package model

import (
	"sync"
	"time"
)

// Session はゲートウェイセッションを表す。
// ブラウザには不透明なセッションIDのみを渡し、バックエンドJWTと
// プロフィールのキャッシュはゲートウェイ側で保持する。
// Tokenが空のセッションではUserを有効とみなしてはならない。
//
// TokenとUserは同一リクエスト内の並行処理（single-flightの合流など）から
// 触られるため、読み書きはメソッド経由で行い、認証状態は常に
// まるごと置き換える（部分的な書き換えをしない）。
type Session struct {
	ID        string
	Token     string
	User      *User
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	mu sync.RWMutex
}

// IsAuthenticated はバックエンドJWTを保持しているかを返す。
func (s *Session) IsAuthenticated() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Token != ""
}

// CurrentUser はプロフィールキャッシュを返す。
// 未認証セッションではトークン破棄済みの古いキャッシュを返さないようnilを返す。
func (s *Session) CurrentUser() *User {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Token == "" {
		return nil
	}
	return s.User
}

// BackendToken は現在のバックエンドJWTを返す。
func (s *Session) BackendToken() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Token
}

// SetAuth は認証状態をまるごと置き換える。
func (s *Session) SetAuth(token string, user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Token = token
	s.User = user
}

// SetToken はトークンのみを置き換える。リフレッシュ後に使う。
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Token = token
}

// SetUser はプロフィールキャッシュを置き換える。
func (s *Session) SetUser(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.User = user
}

// ClearAuth はトークンとプロフィールキャッシュを破棄する。
func (s *Session) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Token = ""
	s.User = nil
}
