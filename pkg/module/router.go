package module

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Router dispatches to mounted modules by longest matching prefix. Paths no
// module claims fall through to a plain ServeMux for service endpoints such
// as health probes and metrics.
type Router struct {
	modules  []*Module
	fallback *http.ServeMux
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{fallback: http.NewServeMux()}
}

// Handle registers a fallback handler for pattern.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.fallback.Handle(pattern, handler)
}

// HandleFunc registers a fallback handler function for pattern.
func (r *Router) HandleFunc(pattern string, handler http.HandlerFunc) {
	r.fallback.HandleFunc(pattern, handler)
}

// Mount adds m to the router. Mounting two modules at the same prefix is an
// error.
func (r *Router) Mount(m *Module) error {
	for _, existing := range r.modules {
		if existing.prefix == m.prefix {
			return fmt.Errorf("module already mounted at %s", m.prefix)
		}
	}

	r.modules = append(r.modules, m)
	sort.SliceStable(r.modules, func(i, j int) bool {
		return len(r.modules[i].prefix) > len(r.modules[j].prefix)
	})
	return nil
}

// ServeHTTP trims a trailing slash and hands the request to the module with
// the longest matching prefix, or to the fallback mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if p := req.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
		req.URL.Path = strings.TrimSuffix(p, "/")
	}

	for _, m := range r.modules {
		if m.matches(req.URL.Path) {
			m.ServeHTTP(w, req)
			return
		}
	}

	r.fallback.ServeHTTP(w, req)
}
