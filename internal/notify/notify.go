// Package notify はユーザー向け通知イベントを提供する。
// バックエンド由来のメッセージはUI層（SPA・外部フロントエンド）に
// イベントとして配信され、ログにも記録される。
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// Level は通知の重要度を表す。
type Level string

const (
	// LevelSuccess は操作成功の通知。
	LevelSuccess Level = "success"
	// LevelWarning は警告の通知。
	LevelWarning Level = "warning"
	// LevelError はエラーの通知。
	LevelError Level = "error"
)

// Notice はユーザーに表示する1件の通知を表す。
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	// Reauth は再ログイン確認を要求する通知であることを示す。
	Reauth bool `json:"reauth,omitempty"`
	// SessionID は通知の宛先セッション。空の場合は全体通知。
	SessionID string `json:"-"`
}

// Notifier は通知の発行インターフェース。
// トランスポート層・セッション層から利用する。
type Notifier interface {
	// Publish は通知を発行する。
	Publish(ctx context.Context, notice Notice)
	// BeginReauth は再ログイン確認の発行を試みる。
	// 同一セッションで確認が未解決の間はfalseを返し、重複発行を抑止する。
	BeginReauth(sessionID string) bool
	// EndReauth は再ログイン確認の解決を記録し、次回の発行を許可する。
	EndReauth(sessionID string)
}

// Hub はNotifierの実装。購読者への配信と再ログイン確認の重複抑止を行う。
// バックエンド由来のメッセージはHTMLとして解釈されないよう
// bluemondayのStrictPolicyでサニタイズする。
type Hub struct {
	logger    *slog.Logger
	sanitizer *bluemonday.Policy

	mu            sync.Mutex
	subscribers   map[int]chan Notice
	nextSubID     int
	reauthPending map[string]bool
}

// NewHub はHubを生成する。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:        logger,
		sanitizer:     bluemonday.StrictPolicy(),
		subscribers:   make(map[int]chan Notice),
		reauthPending: make(map[string]bool),
	}
}

// Publish は通知をサニタイズして全購読者に配信する。
// 購読者のバッファが満杯の場合、その購読者への配信は破棄する
// （通知は補助的なUI要素であり、配信遅延でリクエストを塞がない）。
func (h *Hub) Publish(ctx context.Context, notice Notice) {
	notice.Message = h.sanitizer.Sanitize(notice.Message)

	level := slog.LevelInfo
	if notice.Level == LevelError {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, "user_notice",
		slog.String("notice_level", string(notice.Level)),
		slog.String("message", notice.Message),
		slog.Bool("reauth", notice.Reauth),
	)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- notice:
		default:
		}
	}
}

// Subscribe は通知ストリームの購読を開始する。
// 返されたcancelを呼ぶと購読を解除しチャネルを閉じる。
func (h *Hub) Subscribe() (<-chan Notice, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Notice, 16)
	h.subscribers[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

// BeginReauth は再ログイン確認の発行を試みる。
// 同一セッションで未解決の確認がある間はfalseを返す。
func (h *Hub) BeginReauth(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.reauthPending[sessionID] {
		return false
	}
	h.reauthPending[sessionID] = true
	return true
}

// EndReauth は再ログイン確認の解決を記録する。
func (h *Hub) EndReauth(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.reauthPending, sessionID)
}
