// Package middleware provides the HTTP middleware applied to mounted modules:
// request logging, CORS, and OIDC reviewer authentication.
package middleware

import "net/http"

// Func wraps an http.Handler with additional behavior.
type Func func(http.Handler) http.Handler

// Chain is an ordered middleware stack. The first entry is the outermost
// wrapper, so it sees each request before the rest of the chain.
type Chain []Func

// Use appends middleware to the end of the chain.
func (c *Chain) Use(fns ...Func) {
	*c = append(*c, fns...)
}

// Then wraps handler with every middleware in the chain.
func (c Chain) Then(handler http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		handler = c[i](handler)
	}
	return handler
}
