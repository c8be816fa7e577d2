// Package module mounts self-contained HTTP handlers under path prefixes.
// Each module sees request paths relative to its prefix and carries its
// own middleware chain.
package module

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JaimeStill/ldaa/pkg/middleware"
)

// Module serves an inner handler beneath a path prefix.
type Module struct {
	prefix  string
	inner   http.Handler
	chain   middleware.Chain
	handler http.Handler
}

// New creates a Module mounting inner at prefix. The prefix must start with
// a slash and may not end with one; it may span several segments
// ("/api/v1").
func New(prefix string, inner http.Handler) (*Module, error) {
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}
	return &Module{prefix: prefix, inner: inner, handler: inner}, nil
}

// Prefix returns the mount path.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use appends middleware to the module chain. It must be called before the
// module serves its first request.
func (m *Module) Use(fns ...middleware.Func) {
	m.chain.Use(fns...)
	m.handler = m.chain.Then(m.inner)
}

// ServeHTTP strips the prefix and dispatches through the middleware chain.
func (m *Module) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, m.prefix)
	if rel == "" {
		rel = "/"
	}

	r2 := r.Clone(r.Context())
	r2.URL.Path = rel
	r2.URL.RawPath = ""
	m.handler.ServeHTTP(w, r2)
}

// matches reports whether path falls under the prefix on a segment boundary.
func (m *Module) matches(path string) bool {
	if !strings.HasPrefix(path, m.prefix) {
		return false
	}
	rest := path[len(m.prefix):]
	return rest == "" || rest[0] == '/'
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case !strings.HasPrefix(prefix, "/"):
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case prefix == "/" || strings.HasSuffix(prefix, "/"):
		return fmt.Errorf("module prefix must not end with /: %s", prefix)
	case strings.Contains(prefix, "//"):
		return fmt.Errorf("module prefix contains an empty segment: %s", prefix)
	}
	return nil
}
