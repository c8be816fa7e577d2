package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/ldaa/pkg/middleware"
)

type fakeVerifier struct {
	tokens map[string]string
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (*oidc.IDToken, error) {
	subject, ok := f.tokens[raw]
	if !ok {
		return nil, errors.New("signature mismatch")
	}
	return &oidc.IDToken{Subject: subject}, nil
}

func TestAuth(t *testing.T) {
	verifier := &fakeVerifier{tokens: map[string]string{"good-token": "reviewer@example.com"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := middleware.Auth(verifier, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(middleware.Subject(r.Context())))
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
		wantError  string
	}{
		{"valid token", "Bearer good-token", http.StatusOK, "reviewer@example.com", ""},
		{"case-insensitive scheme", "bearer good-token", http.StatusOK, "reviewer@example.com", ""},
		{"missing header", "", http.StatusUnauthorized, "", middleware.ErrMissingToken.Error()},
		{"wrong scheme", "Basic Zm9vOmJhcg==", http.StatusUnauthorized, "", middleware.ErrMissingToken.Error()},
		{"empty token", "Bearer ", http.StatusUnauthorized, "", middleware.ErrMissingToken.Error()},
		{"rejected token", "Bearer forged", http.StatusUnauthorized, "", middleware.ErrInvalidToken.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/runs/abc/resume", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}

			if tt.wantError != "" {
				var body map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if body["error"] != tt.wantError {
					t.Errorf("error: got %q, want %q", body["error"], tt.wantError)
				}
				return
			}

			if rec.Body.String() != tt.wantBody {
				t.Errorf("subject: got %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestSubjectUnauthenticated(t *testing.T) {
	if got := middleware.Subject(context.Background()); got != "" {
		t.Errorf("Subject: got %q, want empty", got)
	}
	ctx := middleware.WithSubject(context.Background(), "alice")
	if got := middleware.Subject(ctx); got != "alice" {
		t.Errorf("Subject: got %q, want alice", got)
	}
}

func TestAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     middleware.AuthConfig
		env     map[string]string
		wantErr bool
	}{
		{"disabled needs nothing", middleware.AuthConfig{}, nil, false},
		{"enabled without issuer", middleware.AuthConfig{Enabled: true, ClientID: "ldaa"}, nil, true},
		{"enabled without client", middleware.AuthConfig{Enabled: true, IssuerURL: "https://idp.local"}, nil, true},
		{"enabled via env", middleware.AuthConfig{}, map[string]string{
			"TEST_AUTH_ENABLED":    "true",
			"TEST_AUTH_ISSUER_URL": "https://idp.local",
			"TEST_AUTH_CLIENT_ID":  "ldaa",
		}, false},
		{"enabled via env missing client", middleware.AuthConfig{}, map[string]string{
			"TEST_AUTH_ENABLED":    "true",
			"TEST_AUTH_ISSUER_URL": "https://idp.local",
		}, true},
	}

	env := &middleware.AuthEnv{
		Enabled:   "TEST_AUTH_ENABLED",
		IssuerURL: "TEST_AUTH_ISSUER_URL",
		ClientID:  "TEST_AUTH_CLIENT_ID",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := tt.cfg
			err := cfg.Finalize(env)
			if (err != nil) != tt.wantErr {
				t.Errorf("Finalize error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
