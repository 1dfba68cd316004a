package router

import (
	"net/http"
	"strings"
)

// Middleware wraps a handler with additional behaviour.
type Middleware func(next http.Handler) http.Handler

// Router is a thin layer over http.ServeMux that applies a middleware chain and
// supports mounting sub-routers under a path prefix.
type Router struct {
	prefix     string
	mux        *http.ServeMux
	middleware []Middleware
}

func New() *Router {
	return &Router{
		mux: http.NewServeMux(),
	}
}

func (rt *Router) Use(mw ...Middleware) {
	rt.middleware = append(rt.middleware, mw...)
}

func (rt *Router) Handle(pattern string, handler http.Handler) {
	rt.mux.Handle(normalize(pattern), handler)
}

func (rt *Router) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	rt.mux.HandleFunc(normalize(pattern), handler)
}

// SubRouter mounts a new router under prefix. Requests reaching it have already
// passed through the parent's middleware; middleware added to the sub-router
// applies only to its own routes.
func (rt *Router) SubRouter(prefix string) *Router {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		panic("sub-router prefix must not be empty")
	}

	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}

	s := &Router{
		prefix: rt.prefix + prefix,
		mux:    http.NewServeMux(),
	}

	rt.mux.Handle(prefix+"/", http.StripPrefix(prefix, s))
	return s
}

// Prefix returns the full path prefix the router is mounted under.
func (rt *Router) Prefix() string {
	return rt.prefix
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var h http.Handler = rt.mux
	for i := len(rt.middleware) - 1; i >= 0; i-- {
		h = rt.middleware[i](h)
	}

	h.ServeHTTP(w, r)
}

// normalize makes sure the path part of a mux pattern ("[METHOD ]/path") is rooted.
func normalize(pattern string) string {
	method, path, found := strings.Cut(pattern, " ")
	if !found {
		path, method = method, ""
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if method == "" {
		return path
	}

	return method + " " + path
}
