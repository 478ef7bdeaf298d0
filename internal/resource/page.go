package resource

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/moriyama/contestgate/internal/model"
)

// toBackendQuery は1始まりのPageRequestをバックエンドの0始まりクエリに変換する。
// Pageが1未満の場合は1として扱う。
func toBackendQuery(req model.PageRequest) url.Values {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size <= 0 {
		size = 10
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page-1))
	query.Set("size", strconv.Itoa(size))
	if req.SortBy != "" {
		query.Set("sortBy", req.SortBy)
	}
	if req.SortDir != "" {
		query.Set("sortDir", req.SortDir)
	}
	if req.Keyword != "" {
		query.Set("keyword", req.Keyword)
	}
	return query
}

// springPage はSpring Data形式のページングオブジェクトを表す。
// numberは0始まりのページ番号。
type springPage struct {
	Content       json.RawMessage `json:"content"`
	TotalElements int64           `json:"totalElements"`
	TotalPages    int             `json:"totalPages"`
	Number        *int            `json:"number"`
	Size          int             `json:"size"`
}

// listContainer はエンドポイントごとに異なるリストのキー名を表す。
// data、list、usersの下にリストを置くレスポンスがある。
type listContainer struct {
	Data  json.RawMessage `json:"data"`
	List  json.RawMessage `json:"list"`
	Users json.RawMessage `json:"users"`

	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Total         int64 `json:"total"`
	CurrentPage   *int  `json:"currentPage"`
}

// decodePage はエンベロープのDataを1始まりのPageに正規化する。
// 形状判定は順序付きで行う:
//  1. 配列そのもの
//  2. contentキーを持つオブジェクト（Spring Data形式、numberは0始まり）
//  3. data / list / usersキーの下に配列を置くオブジェクト
func decodePage[T any](env *model.Envelope, req model.PageRequest) (*model.Page[T], error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.Size
	if size <= 0 {
		size = 10
	}

	result := &model.Page[T]{
		Items:         []T{},
		TotalElements: env.TotalElements,
		TotalPages:    env.TotalPages,
		CurrentPage:   page,
		Size:          size,
	}

	raw := env.Data
	if len(raw) == 0 {
		return result, nil
	}

	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &result.Items); err != nil {
			return nil, fmt.Errorf("リストのデコードに失敗しました: %w", err)
		}
		if result.TotalElements == 0 {
			result.TotalElements = int64(len(result.Items))
		}
		if result.TotalPages == 0 {
			result.TotalPages = totalPages(result.TotalElements, size)
		}
		if env.CurrentPage > 0 {
			// エンベロープのcurrentPageは0始まり
			result.CurrentPage = env.CurrentPage + 1
		}
		return result, nil
	}

	spring := springPage{}
	if err := json.Unmarshal(raw, &spring); err == nil && spring.Content != nil {
		if err := json.Unmarshal(spring.Content, &result.Items); err != nil {
			return nil, fmt.Errorf("contentのデコードに失敗しました: %w", err)
		}
		result.TotalElements = spring.TotalElements
		result.TotalPages = spring.TotalPages
		if spring.Number != nil {
			result.CurrentPage = *spring.Number + 1
		}
		if spring.Size > 0 {
			result.Size = spring.Size
		}
		return result, nil
	}

	container := listContainer{}
	if err := json.Unmarshal(raw, &container); err != nil {
		return nil, fmt.Errorf("リストレスポンスのデコードに失敗しました: %w", err)
	}

	var items json.RawMessage
	switch {
	case container.Data != nil:
		items = container.Data
	case container.List != nil:
		items = container.List
	case container.Users != nil:
		items = container.Users
	default:
		return nil, fmt.Errorf("リストレスポンスの形状を判定できません")
	}
	if err := json.Unmarshal(items, &result.Items); err != nil {
		return nil, fmt.Errorf("リストのデコードに失敗しました: %w", err)
	}

	switch {
	case container.TotalElements > 0:
		result.TotalElements = container.TotalElements
	case container.Total > 0:
		result.TotalElements = container.Total
	case result.TotalElements == 0:
		result.TotalElements = int64(len(result.Items))
	}
	if container.TotalPages > 0 {
		result.TotalPages = container.TotalPages
	} else if result.TotalPages == 0 {
		result.TotalPages = totalPages(result.TotalElements, size)
	}
	if container.CurrentPage != nil {
		result.CurrentPage = *container.CurrentPage + 1
	}
	return result, nil
}

// decodeItems はページングなしのリストをデコードする。
// 配列そのもの、またはdata/list/usersキーの下の配列を受け付ける。
func decodeItems[T any](env *model.Envelope) ([]T, error) {
	raw := env.Data
	if len(raw) == 0 {
		return []T{}, nil
	}

	items := []T{}
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("リストのデコードに失敗しました: %w", err)
		}
		return items, nil
	}

	container := listContainer{}
	if err := json.Unmarshal(raw, &container); err != nil {
		return nil, fmt.Errorf("リストレスポンスのデコードに失敗しました: %w", err)
	}
	var nested json.RawMessage
	switch {
	case container.Data != nil:
		nested = container.Data
	case container.List != nil:
		nested = container.List
	case container.Users != nil:
		nested = container.Users
	default:
		return nil, fmt.Errorf("リストレスポンスの形状を判定できません")
	}
	if err := json.Unmarshal(nested, &items); err != nil {
		return nil, fmt.Errorf("リストのデコードに失敗しました: %w", err)
	}
	return items, nil
}

// totalPages は総件数とページサイズから総ページ数を計算する。
func totalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	pages := total / int64(size)
	if total%int64(size) != 0 {
		pages++
	}
	return int(pages)
}
