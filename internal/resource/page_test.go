package resource

import (
	"encoding/json"
	"testing"

	"github.com/moriyama/contestgate/internal/model"
)

type testItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestToBackendQuery(t *testing.T) {
	tests := []struct {
		name string
		req  model.PageRequest
		want map[string]string
	}{
		{
			"1ページ目は0に変換",
			model.PageRequest{Page: 1, Size: 10},
			map[string]string{"page": "0", "size": "10"},
		},
		{
			"3ページ目は2に変換",
			model.PageRequest{Page: 3, Size: 20},
			map[string]string{"page": "2", "size": "20"},
		},
		{
			"0や負のページは1ページ目として扱う",
			model.PageRequest{Page: 0, Size: 10},
			map[string]string{"page": "0", "size": "10"},
		},
		{
			"サイズ未指定は既定値10",
			model.PageRequest{Page: 2},
			map[string]string{"page": "1", "size": "10"},
		},
		{
			"ソートとキーワードは透過",
			model.PageRequest{Page: 1, Size: 10, SortBy: "createdAt", SortDir: "desc", Keyword: "数学"},
			map[string]string{"page": "0", "size": "10", "sortBy": "createdAt", "sortDir": "desc", "keyword": "数学"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toBackendQuery(tt.req)
			for key, want := range tt.want {
				if got.Get(key) != want {
					t.Errorf("%s = %q, want %q", key, got.Get(key), want)
				}
			}
		})
	}
}

func TestDecodePage_ShapeDetection(t *testing.T) {
	tests := []struct {
		name        string
		env         *model.Envelope
		req         model.PageRequest
		wantIDs     []int64
		wantTotal   int64
		wantPages   int
		wantCurrent int
	}{
		{
			name: "配列そのもの",
			env: &model.Envelope{
				Success: true,
				Data:    json.RawMessage(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`),
			},
			req:         model.PageRequest{Page: 1, Size: 10},
			wantIDs:     []int64{1, 2},
			wantTotal:   2,
			wantPages:   1,
			wantCurrent: 1,
		},
		{
			name: "配列とエンベロープのページング情報",
			env: &model.Envelope{
				Success:       true,
				Data:          json.RawMessage(`[{"id":3,"name":"c"}]`),
				TotalElements: 21,
				TotalPages:    3,
				CurrentPage:   1, // 0始まり
			},
			req:         model.PageRequest{Page: 2, Size: 10},
			wantIDs:     []int64{3},
			wantTotal:   21,
			wantPages:   3,
			wantCurrent: 2,
		},
		{
			name: "Spring Data形式（contentキー、numberは0始まり）",
			env: &model.Envelope{
				Success: true,
				Data:    json.RawMessage(`{"content":[{"id":4,"name":"d"}],"totalElements":31,"totalPages":4,"number":2,"size":10}`),
			},
			req:         model.PageRequest{Page: 3, Size: 10},
			wantIDs:     []int64{4},
			wantTotal:   31,
			wantPages:   4,
			wantCurrent: 3,
		},
		{
			name: "dataキーの下のリスト",
			env: &model.Envelope{
				Success: true,
				Data:    json.RawMessage(`{"data":[{"id":5,"name":"e"}],"total":12}`),
			},
			req:         model.PageRequest{Page: 1, Size: 10},
			wantIDs:     []int64{5},
			wantTotal:   12,
			wantPages:   2,
			wantCurrent: 1,
		},
		{
			name: "listキーの下のリスト",
			env: &model.Envelope{
				Success: true,
				Data:    json.RawMessage(`{"list":[{"id":6,"name":"f"},{"id":7,"name":"g"}],"totalElements":2}`),
			},
			req:         model.PageRequest{Page: 1, Size: 10},
			wantIDs:     []int64{6, 7},
			wantTotal:   2,
			wantPages:   1,
			wantCurrent: 1,
		},
		{
			name: "usersキーの下のリスト（管理画面）",
			env: &model.Envelope{
				Success: true,
				Data:    json.RawMessage(`{"users":[{"id":8,"name":"h"}],"totalElements":45,"totalPages":5,"currentPage":0}`),
			},
			req:         model.PageRequest{Page: 1, Size: 10},
			wantIDs:     []int64{8},
			wantTotal:   45,
			wantPages:   5,
			wantCurrent: 1,
		},
		{
			name:        "空ボディは空ページ",
			env:         &model.Envelope{Success: true},
			req:         model.PageRequest{Page: 1, Size: 10},
			wantIDs:     nil,
			wantTotal:   0,
			wantPages:   0,
			wantCurrent: 1,
		},
		{
			name: "空配列",
			env: &model.Envelope{
				Success: true,
				Data:    json.RawMessage(`[]`),
			},
			req:         model.PageRequest{Page: 1, Size: 10},
			wantIDs:     nil,
			wantTotal:   0,
			wantPages:   0,
			wantCurrent: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := decodePage[testItem](tt.env, tt.req)
			if err != nil {
				t.Fatalf("decodePage がエラーを返した: %v", err)
			}

			if len(page.Items) != len(tt.wantIDs) {
				t.Fatalf("件数 = %d, want %d", len(page.Items), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if page.Items[i].ID != id {
					t.Errorf("Items[%d].ID = %d, want %d", i, page.Items[i].ID, id)
				}
			}
			if page.TotalElements != tt.wantTotal {
				t.Errorf("TotalElements = %d, want %d", page.TotalElements, tt.wantTotal)
			}
			if page.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", page.TotalPages, tt.wantPages)
			}
			if page.CurrentPage != tt.wantCurrent {
				t.Errorf("CurrentPage = %d, want %d（1始まり）", page.CurrentPage, tt.wantCurrent)
			}
		})
	}
}

func TestDecodePage_UnknownShape_ReturnsError(t *testing.T) {
	env := &model.Envelope{
		Success: true,
		Data:    json.RawMessage(`{"id":1,"name":"not a list"}`),
	}

	_, err := decodePage[testItem](env, model.PageRequest{Page: 1, Size: 10})
	if err == nil {
		t.Fatal("判定できない形状はエラーになるべき")
	}
}

func TestDecodeItems(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantIDs []int64
	}{
		{"配列そのもの", `[{"id":1,"name":"a"}]`, []int64{1}},
		{"dataキーの下", `{"data":[{"id":2,"name":"b"},{"id":3,"name":"c"}]}`, []int64{2, 3}},
		{"listキーの下", `{"list":[{"id":4,"name":"d"}]}`, []int64{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &model.Envelope{Success: true, Data: json.RawMessage(tt.data)}
			items, err := decodeItems[testItem](env)
			if err != nil {
				t.Fatalf("decodeItems がエラーを返した: %v", err)
			}
			if len(items) != len(tt.wantIDs) {
				t.Fatalf("件数 = %d, want %d", len(items), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if items[i].ID != id {
					t.Errorf("items[%d].ID = %d, want %d", i, items[i].ID, id)
				}
			}
		})
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		size  int
		want  int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{21, 10, 3},
		{5, 0, 0},
	}

	for _, tt := range tests {
		if got := totalPages(tt.total, tt.size); got != tt.want {
			t.Errorf("totalPages(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}
