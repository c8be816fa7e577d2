package prompts_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/ldaa/internal/prompts"
	"github.com/JaimeStill/ldaa/pkg/pagination"
	"github.com/JaimeStill/ldaa/pkg/routes"
)

type mockSystem struct {
	prompts.Source

	listFn       func(ctx context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Prompt], error)
	findFn       func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
	createFn     func(ctx context.Context, cmd prompts.Command) (*prompts.Prompt, error)
	updateFn     func(ctx context.Context, id uuid.UUID, cmd prompts.Command) (*prompts.Prompt, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
	activateFn   func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
	deactivateFn func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
	resolveFn    func(ctx context.Context, stage prompts.Stage) (*prompts.Resolution, error)
}

func (m *mockSystem) Handler() *prompts.Handler {
	return prompts.NewHandler(m, slog.New(slog.NewTextHandler(io.Discard, nil)), pagination.Config{DefaultPageSize: 20, MaxPageSize: 100})
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, cmd prompts.Command) (*prompts.Prompt, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Update(ctx context.Context, id uuid.UUID, cmd prompts.Command) (*prompts.Prompt, error) {
	return m.updateFn(ctx, id, cmd)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSystem) Activate(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.activateFn(ctx, id)
}

func (m *mockSystem) Deactivate(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.deactivateFn(ctx, id)
}

func (m *mockSystem) Active(ctx context.Context, stage prompts.Stage) (*prompts.Prompt, error) {
	return nil, prompts.ErrNotFound
}

func (m *mockSystem) Resolve(ctx context.Context, stage prompts.Stage) (*prompts.Resolution, error) {
	return m.resolveFn(ctx, stage)
}

func setupMux(sys *mockSystem) *http.ServeMux {
	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler().Routes())
	return mux
}

var sampleID = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

func samplePrompt() prompts.Prompt {
	return prompts.Prompt{
		ID:           sampleID,
		Name:         "strict-compare",
		Stage:        prompts.StageCompare,
		Instructions: "Compare clause by clause.",
		Active:       true,
	}
}

func serve(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandlerList(t *testing.T) {
	var captured prompts.Filters
	var capturedPage pagination.PageRequest
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest, f prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
			captured, capturedPage = f, page
			result := pagination.NewPageResult([]prompts.Prompt{samplePrompt()}, 1, page.Page, page.PageSize)
			return &result, nil
		},
	}

	rec := serve(setupMux(sys), "GET", "/prompts?stage=compare&active=true&page_size=500", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result pagination.PageResult[prompts.Prompt]
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Data) != 1 || result.Data[0].ID != sampleID {
		t.Errorf("data = %+v", result.Data)
	}
	if captured.Stage == nil || *captured.Stage != prompts.StageCompare {
		t.Errorf("stage filter = %v", captured.Stage)
	}
	if captured.Active == nil || !*captured.Active {
		t.Errorf("active filter = %v", captured.Active)
	}
	if capturedPage.PageSize != 100 {
		t.Errorf("page size = %d, want clamp to 100", capturedPage.PageSize)
	}
}

func TestHandlerSearch(t *testing.T) {
	var captured prompts.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest, f prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
			captured = f
			result := pagination.NewPageResult([]prompts.Prompt{}, 0, page.Page, page.PageSize)
			return &result, nil
		},
	}
	mux := setupMux(sys)

	rec := serve(mux, "POST", "/prompts/search", `{"page":1,"name":"strict"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.Name == nil || *captured.Name != "strict" {
		t.Errorf("name filter = %v", captured.Name)
	}

	rec = serve(mux, "POST", "/prompts/search", `{"stage":"classify"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown stage status = %d, want 400", rec.Code)
	}
}

func TestHandlerStages(t *testing.T) {
	rec := serve(setupMux(&mockSystem{}), "GET", "/prompts/stages", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stages []prompts.Stage
	if err := json.NewDecoder(rec.Body).Decode(&stages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stages) != 5 {
		t.Errorf("stages = %v, want 5", stages)
	}
}

func TestHandlerResolve(t *testing.T) {
	sys := &mockSystem{
		resolveFn: func(_ context.Context, stage prompts.Stage) (*prompts.Resolution, error) {
			p := samplePrompt()
			return &prompts.Resolution{Stage: stage, Instructions: p.Instructions, Override: &p}, nil
		},
	}
	mux := setupMux(sys)

	rec := serve(mux, "GET", "/prompts/stages/compare", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var res prompts.Resolution
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Stage != prompts.StageCompare || res.Override == nil || res.Override.ID != sampleID {
		t.Errorf("resolution = %+v", res)
	}

	rec = serve(mux, "GET", "/prompts/stages/ingest", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown stage status = %d, want 400", rec.Code)
	}
}

func TestHandlerByID(t *testing.T) {
	found := func(_ context.Context, id uuid.UUID) (*prompts.Prompt, error) {
		if id != sampleID {
			return nil, prompts.ErrNotFound
		}
		p := samplePrompt()
		return &p, nil
	}
	sys := &mockSystem{findFn: found, activateFn: found, deactivateFn: found}
	mux := setupMux(sys)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"find", "GET", "/prompts/" + sampleID.String(), http.StatusOK},
		{"find missing", "GET", "/prompts/" + uuid.NewString(), http.StatusNotFound},
		{"find malformed", "GET", "/prompts/not-a-uuid", http.StatusNotFound},
		{"activate", "POST", "/prompts/" + sampleID.String() + "/activate", http.StatusOK},
		{"deactivate", "POST", "/prompts/" + sampleID.String() + "/deactivate", http.StatusOK},
		{"activate missing", "POST", "/prompts/" + uuid.NewString() + "/activate", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, tt.method, tt.path, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandlerCreate(t *testing.T) {
	var captured prompts.Command
	sys := &mockSystem{
		createFn: func(_ context.Context, cmd prompts.Command) (*prompts.Prompt, error) {
			captured = cmd
			if cmd.Name == "taken" {
				return nil, prompts.ErrDuplicate
			}
			p := samplePrompt()
			p.Active = false
			return &p, nil
		},
	}
	mux := setupMux(sys)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"created", `{"name":"strict-compare","stage":"compare","instructions":"Compare clause by clause."}`, http.StatusCreated},
		{"duplicate", `{"name":"taken","stage":"compare","instructions":"x"}`, http.StatusConflict},
		{"invalid stage", `{"name":"x","stage":"classify","instructions":"x"}`, http.StatusBadRequest},
		{"malformed body", `{"name":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, "POST", "/prompts", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if captured.Stage != prompts.StageCompare {
		t.Errorf("captured stage = %q", captured.Stage)
	}
}

func TestHandlerUpdateDelete(t *testing.T) {
	sys := &mockSystem{
		updateFn: func(_ context.Context, id uuid.UUID, cmd prompts.Command) (*prompts.Prompt, error) {
			if cmd.Instructions == "" {
				return nil, prompts.ErrEmpty
			}
			p := samplePrompt()
			p.Instructions = cmd.Instructions
			return &p, nil
		},
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			if id != sampleID {
				return prompts.ErrNotFound
			}
			return nil
		},
	}
	mux := setupMux(sys)
	path := "/prompts/" + sampleID.String()

	rec := serve(mux, "PUT", path, `{"name":"n","stage":"analyze","instructions":"Be terse."}`)
	if rec.Code != http.StatusOK {
		t.Errorf("update status = %d, want 200", rec.Code)
	}

	rec = serve(mux, "PUT", path, `{"name":"n","stage":"analyze","instructions":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty update status = %d, want 400", rec.Code)
	}

	rec = serve(mux, "DELETE", path, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}

	rec = serve(mux, "DELETE", "/prompts/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", rec.Code)
	}
}

func TestHandlerListError(t *testing.T) {
	sys := &mockSystem{
		listFn: func(context.Context, pagination.PageRequest, prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
			return nil, errors.New("database unavailable")
		},
	}

	rec := serve(setupMux(sys), "GET", "/prompts", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
