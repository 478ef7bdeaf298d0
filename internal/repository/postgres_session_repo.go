package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/moriyama/contestgate/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// バックエンドJWTとプロフィールキャッシュ（JSONB）を保持する。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
// 共有前の新規セッションのみを受け取るため、フィールドの直接読み出しで足りる。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	profile, err := marshalProfile(session.User)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token, profile, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		session.ID, session.Token, profile, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。
// 見つからない場合と期限切れの場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	var profile []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, token, profile, expires_at, created_at, updated_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.Token, &profile, &session.ExpiresAt, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	if len(profile) > 0 {
		user := &model.User{}
		if err := json.Unmarshal(profile, user); err != nil {
			return nil, fmt.Errorf("failed to decode session profile: %w", err)
		}
		session.User = user
	}

	return session, nil
}

// UpdateToken はセッションのバックエンドJWTを差し替える。
func (r *PostgresSessionRepo) UpdateToken(ctx context.Context, id, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET token = $2, updated_at = now() WHERE id = $1`,
		id, token,
	)
	if err != nil {
		return fmt.Errorf("failed to update session token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return model.NewSessionNotFoundError()
	}
	return nil
}

// UpdateProfile はプロフィールキャッシュを全置換する。
func (r *PostgresSessionRepo) UpdateProfile(ctx context.Context, id string, user *model.User) error {
	profile, err := marshalProfile(user)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE sessions SET profile = $2, updated_at = now() WHERE id = $1`,
		id, profile,
	)
	if err != nil {
		return fmt.Errorf("failed to update session profile: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows, nil
}

// marshalProfile はプロフィールをJSONBカラム用にエンコードする。
// nilの場合はSQLのNULLとして扱う。
func marshalProfile(user *model.User) ([]byte, error) {
	if user == nil {
		return nil, nil
	}
	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session profile: %w", err)
	}
	return data, nil
}
