package repository

import (
	"context"
	"sync"
	"time"

	"github.com/moriyama/contestgate/internal/model"
)

// sessionRecord はストア内部のセッション表現。
// model.Sessionは同期プリミティブを持つためコピーせず、フィールドのみ保持する。
type sessionRecord struct {
	token     string
	user      *model.User
	expiresAt time.Time
	createdAt time.Time
	updatedAt time.Time
}

// MemorySessionRepo はSessionRepositoryのインメモリ実装。
// テストとローカル開発で使用する。取得のたびに新しいSessionを
// 組み立てて返すため、呼び出し側での変更はストアに影響しない。
type MemorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]sessionRecord
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{sessions: make(map[string]sessionRecord)}
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Createは共有前の新規セッションのみを受け取るため直接読み出しで足りる
	r.sessions[session.ID] = sessionRecord{
		token:     session.Token,
		user:      session.User,
		expiresAt: session.ExpiresAt,
		createdAt: session.CreatedAt,
		updatedAt: session.UpdatedAt,
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。
// 見つからない場合と期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok || !rec.expiresAt.After(time.Now()) {
		return nil, nil
	}
	return &model.Session{
		ID:        id,
		Token:     rec.token,
		User:      rec.user,
		ExpiresAt: rec.expiresAt,
		CreatedAt: rec.createdAt,
		UpdatedAt: rec.updatedAt,
	}, nil
}

// UpdateToken はセッションのバックエンドJWTを差し替える。
func (r *MemorySessionRepo) UpdateToken(ctx context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok {
		return model.NewSessionNotFoundError()
	}
	rec.token = token
	rec.updatedAt = time.Now()
	r.sessions[id] = rec
	return nil
}

// UpdateProfile はプロフィールキャッシュを全置換する。
func (r *MemorySessionRepo) UpdateProfile(ctx context.Context, id string, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok {
		return model.NewSessionNotFoundError()
	}
	rec.user = user
	rec.updatedAt = time.Now()
	r.sessions[id] = rec
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *MemorySessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var deleted int64
	for id, rec := range r.sessions {
		if !rec.expiresAt.After(now) {
			delete(r.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}
