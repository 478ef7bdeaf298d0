// Package export はバックエンドのファイルエクスポートの素通し配信を提供する。
// バイナリボディはエンベロープ正規化を経由せず、そのままブラウザへ流す。
package export

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/moriyama/contestgate/internal/backend"
	"github.com/moriyama/contestgate/internal/model"
)

// fallbackContentType はxlsxのMIMEタイプ。
// バックエンドがContent-Typeを返さない場合に使う。
const fallbackContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Downloader はバイナリ取得のインターフェース。backend.Clientが実装する。
type Downloader interface {
	Download(ctx context.Context, path string, opts *backend.RequestOptions) (*backend.Blob, error)
}

// Service はエクスポートの素通し配信を行う。
type Service struct {
	dl Downloader
}

// NewService はServiceを生成する。
func NewService(dl Downloader) *Service {
	return &Service{dl: dl}
}

// AuditLogs は指定競技会の監査ログをxlsxで取得する。
// 保存用のタイムスタンプ付きファイル名を併せて返す。
func (s *Service) AuditLogs(ctx context.Context, competitionID int64) (*backend.Blob, string, error) {
	path := fmt.Sprintf("/api/competitions/%d/audit-logs/export", competitionID)
	return s.fetch(ctx, path, "audit-logs")
}

// Registrations は指定競技会の参加登録一覧をxlsxで取得する。
func (s *Service) Registrations(ctx context.Context, competitionID int64) (*backend.Blob, string, error) {
	path := fmt.Sprintf("/api/registrations/competition/%d/export", competitionID)
	return s.fetch(ctx, path, "registrations")
}

// Scores は指定競技会の成績一覧をxlsxで取得する。
func (s *Service) Scores(ctx context.Context, competitionID int64) (*backend.Blob, string, error) {
	path := fmt.Sprintf("/api/scores/competition/%d/export", competitionID)
	return s.fetch(ctx, path, "scores")
}

// Users は指定ロールのユーザー一覧をxlsxで取得する。
// filterの検索条件はそのままバックエンドへ引き渡す。
func (s *Service) Users(ctx context.Context, role model.Role, filter url.Values) (*backend.Blob, string, error) {
	query := url.Values{}
	for key, values := range filter {
		query[key] = values
	}
	query.Set("userType", string(role))
	query.Set("format", "excel")

	blob, err := s.dl.Download(ctx, "/api/admin/users/export", &backend.RequestOptions{Query: query})
	if err != nil {
		return nil, "", err
	}

	baseName := "students"
	if role == model.RoleTeacher {
		baseName = "teachers"
	}
	return blob, Filename(baseName, time.Now()), nil
}

func (s *Service) fetch(ctx context.Context, path, baseName string) (*backend.Blob, string, error) {
	blob, err := s.dl.Download(ctx, path, nil)
	if err != nil {
		return nil, "", err
	}
	return blob, Filename(baseName, time.Now()), nil
}

// Filename はタイムスタンプ付きのxlsxファイル名を組み立てる。
func Filename(baseName string, now time.Time) string {
	return fmt.Sprintf("%s-%s.xlsx", baseName, now.Format("20060102-150405"))
}

// Write はBlobをダウンロードレスポンスとして書き出す。
func Write(w http.ResponseWriter, blob *backend.Blob, filename string) error {
	contentType := blob.ContentType
	if contentType == "" {
		contentType = fallbackContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, err := w.Write(blob.Data)
	return err
}
