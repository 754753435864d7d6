// Package middleware provides the HTTP middleware chain of the clip server:
// request ids, CORS, a W3C extended access log, Prometheus request metrics
// and gzip for JSON responses.
//
// CORS wraps the router itself; the others are installed with router.Use.
package middleware
