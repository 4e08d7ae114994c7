package kernel

import "errors"

var (
	// ErrRouteExists is returned by RouteAdd when the kernel already has
	// the route. Callers treat it as an idempotent success.
	ErrRouteExists = errors.New("route already exists in kernel")
	// ErrRouteNotFound is returned by RouteDel when the kernel has no
	// matching route.
	ErrRouteNotFound = errors.New("route not found in kernel")
)
