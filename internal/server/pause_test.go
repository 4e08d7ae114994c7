package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/routeman/internal/routes"
)

// putActive declares a route with an open window so it is installed and
// recorded active.
func putActive(t *testing.T, e *testEnv, to string) {
	t.Helper()
	rr := e.do(t, http.MethodPut, RouteItemPath, routes.RouteRequest{
		To:       to,
		Dev:      "eth0",
		DeleteAt: rfc3339(e.now.Add(time.Hour)),
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.True(t, e.kernel.has(to))
}

func TestServer_Pause_ActiveRoute(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	putActive(t, e, "10.100.100.0/24")

	rr := e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.100.100.0/24"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "route 10.100.100.0/24 successfully paused", decodeMessage(t, rr))
	require.False(t, e.kernel.has("10.100.100.0/24"))

	rt, err := e.store.Get(context.Background(), "10.100.100.0/24")
	require.NoError(t, err)
	require.Equal(t, routes.StatusPaused, rt.Status)
	require.False(t, rt.Active)
}

func TestServer_Pause_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, RoutePausePath, nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, http.MethodPatch, rr.Header().Get("Allow"))
}

func TestServer_Pause_NotFound(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	rr := e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.99.99.0/24"})
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "route 10.99.99.0/24 not found", decodeError(t, rr).Error)
}

func TestServer_Pause_MissingDestination(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	rr := e.do(t, http.MethodPatch, RoutePausePath, RouteRef{})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "route must include a destination", decodeError(t, rr).Error)
}

func TestServer_Pause_PendingRoute_Conflicts(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	rr := e.do(t, http.MethodPut, RouteItemPath, routes.RouteRequest{
		To:       "10.101.101.0/24",
		Dev:      "eth0",
		CreateAt: rfc3339(e.now.Add(time.Minute)),
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.101.101.0/24"})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "route 10.101.101.0/24 is not active", decodeError(t, rr).Error)
}

func TestServer_Pause_AlreadyPaused_Conflicts(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	putActive(t, e, "10.102.102.0/24")

	rr := e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.102.102.0/24"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.102.102.0/24"})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "route 10.102.102.0/24 is not active", decodeError(t, rr).Error)
}

func TestServer_Pause_WindowClosed_Conflicts(t *testing.T) {
	t.Parallel()

	// A record can still read active when its window lapsed and the
	// sweep has not fired yet. Pausing it then is refused.
	e := newTestEnv(t)
	deleteAt := e.now.Add(-time.Minute)
	require.NoError(t, e.store.Insert(context.Background(), routes.Route{
		To:       "10.103.103.0/24",
		Dev:      "eth0",
		CreateAt: e.now.Add(-time.Hour),
		DeleteAt: &deleteAt,
		Active:   true,
		Status:   routes.StatusActive,
	}))

	rr := e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.103.103.0/24"})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "route 10.103.103.0/24 is outside its activation window", decodeError(t, rr).Error)
}

func TestServer_Pause_KernelFailure_LeavesRecordActive(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	putActive(t, e, "10.104.104.0/24")

	e.kernel.delErr = errors.New("failed to delete route 10.104.104.0/24: RTNETLINK answers: Operation not permitted")
	rr := e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.104.104.0/24"})
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	rt, err := e.store.Get(context.Background(), "10.104.104.0/24")
	require.NoError(t, err)
	require.Equal(t, routes.StatusActive, rt.Status)
	require.True(t, rt.Active, "failed pause must not flip the record")
}

func TestServer_Pause_KernelNotPresent_Benign(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	deleteAt := e.now.Add(time.Hour)
	require.NoError(t, e.store.Insert(context.Background(), routes.Route{
		To:       "10.105.105.0/24",
		Dev:      "eth0",
		CreateAt: e.now,
		DeleteAt: &deleteAt,
		Active:   true,
		Status:   routes.StatusActive,
	}))

	rr := e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.105.105.0/24"})
	require.Equal(t, http.StatusOK, rr.Code)

	rt, err := e.store.Get(context.Background(), "10.105.105.0/24")
	require.NoError(t, err)
	require.Equal(t, routes.StatusPaused, rt.Status)
}

func TestServer_Activate_PausedRoute(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	putActive(t, e, "10.120.120.0/24")

	rr := e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.120.120.0/24"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = e.do(t, http.MethodPatch, RouteActivatePath, RouteRef{To: "10.120.120.0/24"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "route 10.120.120.0/24 successfully re-activated", decodeMessage(t, rr))
	require.True(t, e.kernel.has("10.120.120.0/24"))

	rt, err := e.store.Get(context.Background(), "10.120.120.0/24")
	require.NoError(t, err)
	require.Equal(t, routes.StatusActive, rt.Status)
	require.True(t, rt.Active)
}

func TestServer_Activate_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	rr := e.do(t, http.MethodPost, RouteActivatePath, nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, http.MethodPatch, rr.Header().Get("Allow"))
}

func TestServer_Activate_NotFound(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	rr := e.do(t, http.MethodPatch, RouteActivatePath, RouteRef{To: "10.99.99.0/24"})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_Activate_NotPaused_Conflicts(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	putActive(t, e, "10.121.121.0/24")

	rr := e.do(t, http.MethodPatch, RouteActivatePath, RouteRef{To: "10.121.121.0/24"})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "route 10.121.121.0/24 is not paused", decodeError(t, rr).Error)
}

func TestServer_Activate_WindowClosed_Conflicts(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	rr := e.do(t, http.MethodPut, RouteItemPath, routes.RouteRequest{
		To:       "10.122.122.0/24",
		Dev:      "eth0",
		DeleteAt: rfc3339(e.now.Add(time.Minute)),
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.122.122.0/24"})
	require.Equal(t, http.StatusOK, rr.Code)

	e.clock.Advance(2 * time.Minute)

	rr = e.do(t, http.MethodPatch, RouteActivatePath, RouteRef{To: "10.122.122.0/24"})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "route 10.122.122.0/24 is outside its activation window", decodeError(t, rr).Error)
}

func TestServer_Activate_KernelFailure_StaysPaused(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	putActive(t, e, "10.123.123.0/24")
	rr := e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.123.123.0/24"})
	require.Equal(t, http.StatusOK, rr.Code)

	e.kernel.addErr = errors.New("failed to add route 10.123.123.0/24: RTNETLINK answers: Operation not permitted")
	rr = e.do(t, http.MethodPatch, RouteActivatePath, RouteRef{To: "10.123.123.0/24"})
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	rt, err := e.store.Get(context.Background(), "10.123.123.0/24")
	require.NoError(t, err)
	require.Equal(t, routes.StatusPaused, rt.Status)
	require.False(t, rt.Active, "failed activation must leave the record paused")
}

func TestServer_Activate_AlreadyInKernel_Benign(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	putActive(t, e, "10.124.124.0/24")
	rr := e.do(t, http.MethodPatch, RoutePausePath, RouteRef{To: "10.124.124.0/24"})
	require.Equal(t, http.StatusOK, rr.Code)

	// Another process put the route back while it was paused.
	e.kernel.seed("10.124.124.0/24")

	rr = e.do(t, http.MethodPatch, RouteActivatePath, RouteRef{To: "10.124.124.0/24"})
	require.Equal(t, http.StatusOK, rr.Code)

	rt, err := e.store.Get(context.Background(), "10.124.124.0/24")
	require.NoError(t, err)
	require.Equal(t, routes.StatusActive, rt.Status)
	require.True(t, rt.Active)
}
