package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/moriyama/contestgate/internal/middleware"
	"github.com/moriyama/contestgate/internal/notify"
)

// NoticeSubscriber は通知ストリームの購読インターフェース。notify.Hubが実装する。
type NoticeSubscriber interface {
	Subscribe() (<-chan notify.Notice, func())
}

// NoticeHandler は通知のServer-Sent Eventsストリームを配信するHTTPハンドラー。
type NoticeHandler struct {
	hub NoticeSubscriber
	// heartbeatInterval はプロキシのアイドル切断を防ぐコメント送信間隔。
	heartbeatInterval time.Duration
}

// NewNoticeHandler はNoticeHandlerを生成する。
func NewNoticeHandler(hub NoticeSubscriber) *NoticeHandler {
	return &NoticeHandler{
		hub:               hub,
		heartbeatInterval: 30 * time.Second,
	}
}

// Stream は通知のSSEストリームを配信する。
// セッション宛の通知は該当セッションにのみ配信し、
// 宛先なしの通知は全購読者に配信する。
// GET /api/notices
func (h *NoticeHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sessionID := middleware.SessionIDFromContext(r.Context())
	ch, cancel := h.hub.Subscribe()
	defer cancel()

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case notice, open := <-ch:
			if !open {
				return
			}
			if notice.SessionID != "" && notice.SessionID != sessionID {
				continue
			}
			data, err := json.Marshal(notice)
			if err != nil {
				slog.Error("failed to marshal notice", slog.String("error", err.Error()))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
