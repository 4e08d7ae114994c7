package server

import "github.com/malbeclabs/routeman/internal/routes"

const (
	RoutesPath        = "/routes"
	RouteItemPath     = "/routes/"
	RoutePausePath    = "/routes/pause"
	RouteActivatePath = "/routes/activate"
	DeletedRoutesPath = "/routes/deleted"
	HealthzPath       = "/healthz"
	ReadyzPath        = "/readyz"
)

// RoutesResponse pairs the declared routes with a snapshot of the
// kernel routing table.
type RoutesResponse struct {
	DatabaseRoutes []routes.Route `json:"database_routes"`
	SystemRoutes   []string       `json:"system_routes"`
}

type DeletedRoutesResponse struct {
	DeletedRoutes []routes.DeletedRoute `json:"deleted_routes"`
}

// RouteRef is the body of requests that address a route by destination
// alone: DELETE, pause, and activate.
type RouteRef struct {
	To string `json:"to"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
