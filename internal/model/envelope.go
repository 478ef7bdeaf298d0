package model

import "encoding/json"

// Envelope はバックエンドレスポンスの正規化済み形式を表す。
// バックエンドのエンドポイントはペイロードを直接返すもの、
// ページングオブジェクトを返すもの、dataの下にネストするものが混在するため、
// 正規化後の呼び出し側はこの形式のみを扱う。
type Envelope struct {
	Success       bool            `json:"success"`
	Data          json.RawMessage `json:"data,omitempty"`
	Message       string          `json:"message,omitempty"`
	TotalElements int64           `json:"totalElements,omitempty"`
	TotalPages    int             `json:"totalPages,omitempty"`
	CurrentPage   int             `json:"currentPage,omitempty"`

	// Raw は正規化前のレスポンスボディ全体。
	// ログイン応答のようにトップレベルへ独自フィールド（token、userInfo等）を
	// 置くエンドポイントのデコードに使用する。
	Raw json.RawMessage `json:"-"`
}

// DecodeRaw は正規化前のボディ全体を指定の型にデコードする。
func (e *Envelope) DecodeRaw(v any) error {
	if len(e.Raw) == 0 {
		return nil
	}
	return json.Unmarshal(e.Raw, v)
}

// DecodeData はDataを指定の型にデコードする。
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Page は1始まりページネーションのリスト結果を表す。
// バックエンドは0始まりだが、ゲートウェイの公開APIは1始まりに変換する。
type Page[T any] struct {
	Items         []T   `json:"items"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	// CurrentPage は1始まりの現在ページ番号。
	CurrentPage int `json:"currentPage"`
	Size        int `json:"size"`
}

// PageRequest はリスト取得の共通クエリパラメータを表す。
// Pageは1始まりで指定する。
type PageRequest struct {
	Page    int
	Size    int
	SortBy  string
	SortDir string
	Keyword string
}
