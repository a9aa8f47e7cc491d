// Package router implements the fixed-bound, first-registered-wins route
// table described in spec.md section 4.4, grounded on the original's
// ROUTE_TABLE/router_add_handler/router_dispatch in src/http/router.c.
package router

import (
	"errors"

	"golang.org/x/text/unicode/norm"
)

// MaxRoutes bounds the route table, matching the original's MAX_ROUTES.
const MaxRoutes = 64

// ErrRouteTableFull is returned once MaxRoutes registrations have been made.
var ErrRouteTableFull = errors.New("router: route table is full")

// Handler produces a response for a matched request. path is passed
// already NFC-normalized (see Dispatch).
type Handler func(method, path string) (status int, body []byte)

type route struct {
	method  string
	path    string
	handler Handler
}

// Router is a fixed-capacity, linear-scan route table. Not safe for
// concurrent registration; intended to be built once at startup and then
// only read from worker goroutines.
type Router struct {
	routes []route
}

// New creates an empty Router.
func New() *Router {
	return &Router{routes: make([]route, 0, MaxRoutes)}
}

// Register appends a route. Duplicate (method, path) pairs are both
// stored; Dispatch always matches the first-registered entry, mirroring
// the original's linear for-loop over ROUTE_TABLE.
func (r *Router) Register(method, path string, handler Handler) error {
	if len(r.routes) >= MaxRoutes {
		return ErrRouteTableFull
	}
	r.routes = append(r.routes, route{method: method, path: path, handler: handler})
	return nil
}

// Dispatch normalizes path to Unicode NFC (closing off a normalization-form
// bypass of the "../" traversal check performed upstream in h1parse, per
// SPEC_FULL's domain-stack wiring of golang.org/x/text) and then performs
// an exact linear scan for a matching (method, path) route. A 404 fallback
// is returned when nothing matches, with the exact body the original's
// not_found_handler sends.
func (r *Router) Dispatch(method, path string) (status int, body []byte) {
	normalized := norm.NFC.String(path)
	for _, rt := range r.routes {
		if rt.method == method && rt.path == normalized {
			return rt.handler(method, normalized)
		}
	}
	return 404, []byte("Not Found\n")
}

// Len reports the number of registered routes.
func (r *Router) Len() int {
	return len(r.routes)
}
