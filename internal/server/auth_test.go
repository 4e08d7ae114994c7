package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServer_Auth_Rejections(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic dXNlcjpwYXNz"},
		{name: "empty token", header: "Bearer "},
		{name: "wrong token", header: "Bearer not-the-token"},
		{name: "token with trailing garbage", header: "Bearer " + testToken + "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, RoutesPath, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			e.mux.ServeHTTP(rr, req)

			require.Equal(t, http.StatusForbidden, rr.Code)
			require.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
			require.Equal(t, "invalid or expired token", decodeError(t, rr).Error)
		})
	}
}

func TestServer_Auth_ValidToken(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, RoutesPath, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_Auth_SchemeIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, RoutesPath, nil)
	req.Header.Set("Authorization", "bearer "+testToken)
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_Auth_CoversWholeRoutesTree(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, RoutesPath},
		{http.MethodPut, RouteItemPath},
		{http.MethodPatch, RouteItemPath},
		{http.MethodDelete, RouteItemPath},
		{http.MethodPatch, RoutePausePath},
		{http.MethodPatch, RouteActivatePath},
		{http.MethodGet, DeletedRoutesPath},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		rr := httptest.NewRecorder()
		e.mux.ServeHTTP(rr, req)
		require.Equalf(t, http.StatusForbidden, rr.Code, "%s %s must require auth", p.method, p.path)
	}
}

func TestServer_Auth_HealthEndpointsAreOpen(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	for _, path := range []string{HealthzPath, ReadyzPath} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		e.mux.ServeHTTP(rr, req)
		require.Equalf(t, http.StatusOK, rr.Code, "%s must not require auth", path)
	}
}
