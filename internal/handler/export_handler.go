package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/moriyama/contestgate/internal/backend"
	"github.com/moriyama/contestgate/internal/export"
	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/model"
)

// ExportServiceInterface はエクスポートハンドラーが必要とするサービスインターフェース。
type ExportServiceInterface interface {
	AuditLogs(ctx context.Context, competitionID int64) (*backend.Blob, string, error)
	Registrations(ctx context.Context, competitionID int64) (*backend.Blob, string, error)
	Scores(ctx context.Context, competitionID int64) (*backend.Blob, string, error)
	Users(ctx context.Context, role model.Role, filter url.Values) (*backend.Blob, string, error)
}

// ExportHandler はファイルエクスポートの素通し配信を行うHTTPハンドラー。
type ExportHandler struct {
	service ExportServiceInterface
}

// NewExportHandler はExportHandlerを生成する。
func NewExportHandler(service ExportServiceInterface) *ExportHandler {
	return &ExportHandler{service: service}
}

type exportFunc func(ctx context.Context, competitionID int64) (*backend.Blob, string, error)

func (h *ExportHandler) serve(w http.ResponseWriter, r *http.Request, param string, fn exportFunc) {
	competitionID, ok := idParam(w, r, param)
	if !ok {
		return
	}
	blob, filename, err := fn(r.Context(), competitionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if err := export.Write(w, blob, filename); err != nil {
		// ヘッダー送信後の書き込み失敗はレスポンスを修復できないためログのみ
		slog.Warn("failed to write export body", slog.String("error", err.Error()))
	}
}

// AuditLogs は監査ログのxlsxエクスポートを配信する。
// 競技会ルートの{id}サブツリーにマウントされる。
// GET /api/competitions/{id}/audit-logs/export
func (h *ExportHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "id", h.service.AuditLogs)
}

// Registrations は参加登録一覧のxlsxエクスポートを配信する。
// GET /api/registrations/competition/{competitionId}/export
func (h *ExportHandler) Registrations(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "competitionId", h.service.Registrations)
}

// Scores は成績一覧のxlsxエクスポートを配信する。
// GET /api/scores/competition/{competitionId}/export
func (h *ExportHandler) Scores(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "competitionId", h.service.Scores)
}

// Users はユーザー一覧のxlsxエクスポートを配信する。
// GET /api/admin/users/export?userType=STUDENT|TEACHER
// userType以外のクエリは検索条件としてバックエンドへ引き渡す。
func (h *ExportHandler) Users(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	role := model.Role(query.Get("userType"))
	switch role {
	case "":
		role = model.RoleStudent
	case model.RoleStudent, model.RoleTeacher:
	default:
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			newValidationError("userTypeはSTUDENTまたはTEACHERを指定してください。"))
		return
	}
	query.Del("userType")

	blob, filename, err := h.service.Users(r.Context(), role, query)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if err := export.Write(w, blob, filename); err != nil {
		slog.Warn("failed to write export body", slog.String("error", err.Error()))
	}
}
