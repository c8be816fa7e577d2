package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/JaimeStill/ldaa/internal/workflow"
)

func TestReviewPayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    workflow.ResponseType
		raw     string
		want    string
		wantErr bool
	}{
		{"empty", workflow.ResponseAccept, "", "", false},
		{"respond plain text", workflow.ResponseRespond, "looks right", `"looks right"`, false},
		{"respond json string", workflow.ResponseRespond, `"already quoted"`, `"already quoted"`, false},
		{"edit object", workflow.ResponseEdit, `{"summary":"fixed"}`, `{"summary":"fixed"}`, false},
		{"edit invalid", workflow.ResponseEdit, `{summary`, "", true},
		{"accept with payload", workflow.ResponseAccept, "x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reviewPayload(tt.kind, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("payload = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Providers   shall\nregister", 80); got != "Providers shall register" {
		t.Errorf("truncate collapsed = %q", got)
	}
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Errorf("truncate = %q", got)
	}
}

func TestClientSubmit(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "act.txt")
	pathB := filepath.Join(dir, "directive.md")
	os.WriteFile(pathA, []byte("Article 1."), 0o644)
	os.WriteFile(pathB, []byte("# Directive"), 0o644)

	var gotAuth string
	files := map[string]string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodPost || r.URL.Path != "/api/runs" {
			http.NotFound(w, r)
			return
		}
		for _, field := range []string{"document_a", "document_b"} {
			f, header, err := r.FormFile(field)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(f)
			f.Close()
			files[field] = header.Filename + ":" + string(data)
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"id": "run-1", "status": "pending"})
	}))
	defer srv.Close()

	c := newClient(srv.URL+"/api/", "reviewer-token")

	var out struct {
		ID string `json:"id"`
	}
	if err := c.submit(context.Background(), pathA, pathB, &out); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if out.ID != "run-1" {
		t.Errorf("id = %s", out.ID)
	}
	if gotAuth != "Bearer reviewer-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if files["document_a"] != "act.txt:Article 1." || files["document_b"] != "directive.md:# Directive" {
		t.Errorf("files = %v", files)
	}

	if err := c.submit(context.Background(), filepath.Join(dir, "missing.pdf"), pathB, nil); err == nil {
		t.Error("expected error for unreadable document")
	}
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/runs/active/cancel":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			io.WriteString(w, `{"error":"run already finished"}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "upstream unavailable\n")
		}
	}))
	defer srv.Close()

	c := newClient(srv.URL, "")

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/runs/active/cancel", http.StatusConflict, "run already finished"},
		{"/runs/other", http.StatusBadGateway, "upstream unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := c.postJSON(context.Background(), tt.path, nil, nil)

			var apiErr *apiError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want apiError", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.message {
				t.Errorf("apiError = %+v", apiErr)
			}
		})
	}
}
