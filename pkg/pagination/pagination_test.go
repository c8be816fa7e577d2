package pagination_test

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/JaimeStill/ldaa/pkg/pagination"
	"github.com/JaimeStill/ldaa/pkg/query"
)

var cfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func TestPageRequestFromQuery(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantPage     int
		wantPageSize int
		wantSearch   string
		wantSort     int
	}{
		{"defaults", "", 1, 20, "", 0},
		{"explicit", "page=3&page_size=50&search=lease&sort=-created_at,stage", 3, 50, "lease", 2},
		{"clamped", "page=-2&page_size=1000", 1, 100, "", 0},
		{"garbage", "page=x&page_size=y", 1, 20, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			req := pagination.PageRequestFromQuery(values, cfg)

			if req.Page != tt.wantPage {
				t.Errorf("page = %d, want %d", req.Page, tt.wantPage)
			}
			if req.PageSize != tt.wantPageSize {
				t.Errorf("page size = %d, want %d", req.PageSize, tt.wantPageSize)
			}
			var search string
			if req.Search != nil {
				search = *req.Search
			}
			if search != tt.wantSearch {
				t.Errorf("search = %q, want %q", search, tt.wantSearch)
			}
			if len(req.Sort) != tt.wantSort {
				t.Errorf("sort = %+v, want %d fields", req.Sort, tt.wantSort)
			}
		})
	}
}

func TestSortFieldsUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []query.SortField
	}{
		{"string form", `{"sort":"-created_at"}`, []query.SortField{{Field: "created_at", Descending: true}}},
		{"array form", `{"sort":[{"field":"stage"},{"field":"status","descending":true}]}`, []query.SortField{{Field: "stage"}, {Field: "status", Descending: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req pagination.PageRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(req.Sort) != len(tt.want) {
				t.Fatalf("sort = %+v, want %+v", req.Sort, tt.want)
			}
			for i := range tt.want {
				if req.Sort[i] != tt.want[i] {
					t.Errorf("sort[%d] = %+v, want %+v", i, req.Sort[i], tt.want[i])
				}
			}
		})
	}

	var req pagination.PageRequest
	if err := json.Unmarshal([]byte(`{"sort":42}`), &req); err == nil {
		t.Error("expected error for numeric sort")
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		wantPages int
	}{
		{"empty", 0, 20, 1},
		{"exact", 40, 20, 2},
		{"remainder", 41, 20, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := pagination.NewPageResult[string](nil, tt.total, 1, tt.pageSize)
			if res.TotalPages != tt.wantPages {
				t.Errorf("total pages = %d, want %d", res.TotalPages, tt.wantPages)
			}
			if res.Data == nil {
				t.Error("data is nil")
			}
		})
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_PAGE_DEFAULT", "10")

	c := pagination.Config{}
	if err := c.Finalize(&pagination.ConfigEnv{DefaultPageSize: "TEST_PAGE_DEFAULT"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if c.DefaultPageSize != 10 || c.MaxPageSize != 100 {
		t.Errorf("config = %+v", c)
	}

	bad := pagination.Config{DefaultPageSize: 200, MaxPageSize: 50}
	if err := bad.Finalize(nil); err == nil {
		t.Error("expected error when default exceeds max")
	}
}
