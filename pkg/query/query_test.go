package query_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/JaimeStill/ldaa/pkg/query"
)

func runsProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "runs", "r").
		Project("id", "ID").
		Project("status", "Status").
		Project("stage", "Stage").
		Project("created_at", "CreatedAt").
		Expr("SELECT COUNT(*) FROM public.checkpoints c WHERE c.run_id = r.id", "Checkpoints")
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		in   string
		want []query.SortField
	}{
		{"", nil},
		{"stage", []query.SortField{{Field: "stage"}}},
		{"stage,-created_at", []query.SortField{{Field: "stage"}, {Field: "created_at", Descending: true}}},
		{" , -ID ,", []query.SortField{{Field: "ID", Descending: true}}},
	}

	for _, tt := range tests {
		if got := query.ParseSortFields(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseSortFields(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestProjection(t *testing.T) {
	p := runsProjection()

	if got := p.From(); got != "public.runs r" {
		t.Errorf("From = %q", got)
	}
	if got := p.Column("Status"); got != "r.status" {
		t.Errorf("Column(Status) = %q", got)
	}
	if got := p.Column("Checkpoints"); !strings.HasPrefix(got, "(SELECT COUNT(*)") {
		t.Errorf("Column(Checkpoints) = %q", got)
	}

	for _, key := range []string{"created_at", "CreatedAt", "Checkpoints"} {
		if _, ok := p.Sortable(key); !ok {
			t.Errorf("Sortable(%q) not resolved", key)
		}
	}
	if _, ok := p.Sortable("1; DROP TABLE runs"); ok {
		t.Error("unprojected sort key resolved")
	}
}

func TestBuildConditions(t *testing.T) {
	status := "running"
	empty := ""
	search := "lease"

	sql, args := query.NewBuilder(runsProjection()).
		WhereEquals("Status", &status).
		WhereEquals("Stage", (*string)(nil)).
		WhereContains("ID", &empty).
		WhereIn("Stage", "analyze", "compare").
		WhereSearch(&search, "ID", "Stage").
		Build()

	wantWhere := " WHERE r.status = $1 AND r.stage IN ($2, $3) AND (r.id ILIKE $4 OR r.stage ILIKE $5)"
	if !strings.Contains(sql, wantWhere) {
		t.Errorf("sql = %q\nwant where %q", sql, wantWhere)
	}

	wantArgs := []any{&status, "analyze", "compare", "%lease%", "%lease%"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Errorf("args = %v, want %v", args, wantArgs)
	}
}

func TestBuildCount(t *testing.T) {
	sql, args := query.NewBuilder(runsProjection()).
		WhereIn("Status", "failed").
		BuildCount()

	if sql != "SELECT COUNT(*) FROM public.runs r WHERE r.status IN ($1)" {
		t.Errorf("sql = %q", sql)
	}
	if len(args) != 1 {
		t.Errorf("args = %v", args)
	}
}

func TestBuildPageOrdering(t *testing.T) {
	def := query.SortField{Field: "CreatedAt", Descending: true}

	tests := []struct {
		name      string
		sort      []query.SortField
		wantOrder string
	}{
		{"default", nil, " ORDER BY r.created_at DESC"},
		{"explicit", []query.SortField{{Field: "stage"}, {Field: "Checkpoints", Descending: true}}, " ORDER BY r.stage ASC, (SELECT COUNT(*) FROM public.checkpoints c WHERE c.run_id = r.id) DESC"},
		{"unknown dropped", []query.SortField{{Field: "password"}, {Field: "status"}}, " ORDER BY r.status ASC"},
		{"all unknown falls back", []query.SortField{{Field: "r.id; --"}}, " ORDER BY r.created_at DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _ := query.NewBuilder(runsProjection(), def).
				OrderByFields(tt.sort).
				BuildPage(3, 20)

			if !strings.HasSuffix(sql, tt.wantOrder+" LIMIT 20 OFFSET 40") {
				t.Errorf("sql = %q\nwant suffix %q", sql, tt.wantOrder+" LIMIT 20 OFFSET 40")
			}
		})
	}
}

func TestBuildSingle(t *testing.T) {
	sql, args := query.NewBuilder(runsProjection()).BuildSingle("ID", "run-1")

	if !strings.HasSuffix(sql, "FROM public.runs r WHERE r.id = $1") {
		t.Errorf("sql = %q", sql)
	}
	if len(args) != 1 || args[0] != "run-1" {
		t.Errorf("args = %v", args)
	}
}
