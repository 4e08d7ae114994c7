package routes_test

import (
	"errors"
	"testing"
	"time"

	"github.com/malbeclabs/routeman/internal/routes"
	"github.com/stretchr/testify/require"
)

type fakeDevices struct {
	names map[string]bool
	err   error
}

func (f *fakeDevices) DeviceExists(name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.names[name], nil
}

func TestRoutes_New_Valid(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	devices := &fakeDevices{names: map[string]bool{"eth0": true}}

	r, err := routes.New(routes.RouteRequest{
		To:       "10.10.10.0/24",
		Via:      "192.168.1.1",
		CreateAt: "2025-06-01T12:00:05+00:00",
		DeleteAt: "2025-06-01T12:01:05Z",
	}, now, devices)
	require.NoError(t, err)
	require.Equal(t, "10.10.10.0/24", r.To)
	require.Equal(t, "192.168.1.1", r.Via)
	require.Empty(t, r.Dev)
	require.Equal(t, time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC), r.CreateAt)
	require.NotNil(t, r.DeleteAt)
	require.Equal(t, time.Date(2025, 6, 1, 12, 1, 5, 0, time.UTC), *r.DeleteAt)
}

func TestRoutes_New_DefaultsCreateAtToNow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	devices := &fakeDevices{names: map[string]bool{"eth0": true}}

	r, err := routes.New(routes.RouteRequest{To: "10.1.1.0/24", Dev: "eth0"}, now, devices)
	require.NoError(t, err)
	require.Equal(t, now, r.CreateAt)
	require.Nil(t, r.DeleteAt)
}

func TestRoutes_New_AllowsViaAndDevTogether(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	devices := &fakeDevices{names: map[string]bool{"eth0": true}}

	r, err := routes.New(routes.RouteRequest{To: "10.1.2.0/24", Via: "192.168.1.1", Dev: "eth0"}, now, devices)
	require.NoError(t, err)
	require.Equal(t, "192.168.1.1", r.Via)
	require.Equal(t, "eth0", r.Dev)
}

func TestRoutes_New_HostAddressDestination(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	devices := &fakeDevices{names: map[string]bool{"eth0": true}}

	_, err := routes.New(routes.RouteRequest{To: "192.0.2.7", Dev: "eth0"}, now, devices)
	require.NoError(t, err)

	_, err = routes.New(routes.RouteRequest{To: "2001:db8::1", Dev: "eth0"}, now, devices)
	require.NoError(t, err)
}

func TestRoutes_New_ValidationErrors(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	devices := &fakeDevices{names: map[string]bool{"eth0": true}}

	tests := []struct {
		name    string
		req     routes.RouteRequest
		wantMsg string
	}{
		{
			name:    "missing via and dev",
			req:     routes.RouteRequest{To: "10.4.4.0/24"},
			wantMsg: "route must include at least one of 'via' or 'dev'",
		},
		{
			name:    "unknown interface",
			req:     routes.RouteRequest{To: "10.5.5.0/24", Dev: "fake0"},
			wantMsg: "is not a valid network interface",
		},
		{
			name:    "bad destination",
			req:     routes.RouteRequest{To: "not-an-address", Dev: "eth0"},
			wantMsg: "is not a valid address or prefix",
		},
		{
			name:    "bad gateway",
			req:     routes.RouteRequest{To: "10.5.5.0/24", Via: "999.999.0.1"},
			wantMsg: "is not a valid gateway address",
		},
		{
			name:    "family mismatch",
			req:     routes.RouteRequest{To: "10.5.5.0/24", Via: "2001:db8::1"},
			wantMsg: "same address family",
		},
		{
			name:    "naive create_at",
			req:     routes.RouteRequest{To: "10.6.6.0/24", Via: "192.168.1.1", CreateAt: "2025-06-01T12:00:00"},
			wantMsg: "create_at must include timezone information",
		},
		{
			name:    "naive delete_at",
			req:     routes.RouteRequest{To: "10.6.6.0/24", Via: "192.168.1.1", DeleteAt: "2025-06-01T12:00:00.123456"},
			wantMsg: "delete_at must include timezone information",
		},
		{
			name:    "garbage timestamp",
			req:     routes.RouteRequest{To: "10.6.6.0/24", Via: "192.168.1.1", CreateAt: "next tuesday"},
			wantMsg: "is not a valid RFC 3339 timestamp",
		},
		{
			name: "delete_at before create_at",
			req: routes.RouteRequest{
				To:       "10.8.8.0/24",
				Via:      "192.168.1.1",
				CreateAt: "2025-06-01T12:02:00Z",
				DeleteAt: "2025-06-01T12:01:00Z",
			},
			wantMsg: "delete_at can't be set before create_at",
		},
		{
			name:    "missing destination",
			req:     routes.RouteRequest{Via: "192.168.1.1"},
			wantMsg: "route must include a destination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := routes.New(tt.req, now, devices)
			require.Error(t, err)
			var verr *routes.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRoutes_New_PastDeleteAtIsNotRejected(t *testing.T) {
	t.Parallel()

	// A window entirely in the past validates; the caller records it as
	// expired rather than rejecting it.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	devices := &fakeDevices{names: map[string]bool{"eth0": true}}

	r, err := routes.New(routes.RouteRequest{
		To:       "10.7.7.0/24",
		Dev:      "eth0",
		CreateAt: "2025-06-01T10:00:00Z",
		DeleteAt: "2025-06-01T11:00:00Z",
	}, now, devices)
	require.NoError(t, err)
	require.Equal(t, routes.StatusExpired, routes.Classify(r.CreateAt, r.DeleteAt, now))
}

func TestRoutes_New_DeviceCheckFailureIsNotValidation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	devices := &fakeDevices{err: errors.New("netlink: permission denied")}

	_, err := routes.New(routes.RouteRequest{To: "10.9.9.0/24", Dev: "eth0"}, now, devices)
	require.Error(t, err)
	var verr *routes.ValidationError
	require.False(t, errors.As(err, &verr))
}

func TestRoutes_RouteUpdate_Parse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		update  routes.RouteUpdate
		wantErr string
	}{
		{name: "via only", update: routes.RouteUpdate{To: "10.30.30.0/24", Via: "192.168.2.1"}},
		{name: "dev only", update: routes.RouteUpdate{To: "10.30.30.0/24", Dev: "eth0"}},
		{name: "timestamps", update: routes.RouteUpdate{To: "10.30.30.0/24", CreateAt: "2025-06-01T12:00:00Z", DeleteAt: "2025-06-01T13:00:00Z"}},
		{name: "missing to", update: routes.RouteUpdate{Via: "192.168.2.1"}, wantErr: "route must include a destination"},
		{name: "bad to", update: routes.RouteUpdate{To: "nope"}, wantErr: "is not a valid address or prefix"},
		{name: "bad via", update: routes.RouteUpdate{To: "10.30.30.0/24", Via: "nope"}, wantErr: "is not a valid gateway address"},
		{name: "naive create_at", update: routes.RouteUpdate{To: "10.30.30.0/24", CreateAt: "2025-06-01T12:00:00"}, wantErr: "timezone information"},
		{
			name:    "delete_at before create_at",
			update:  routes.RouteUpdate{To: "10.30.30.0/24", CreateAt: "2025-06-01T13:00:00Z", DeleteAt: "2025-06-01T12:00:00Z"},
			wantErr: "delete_at can't be set before create_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.update.Parse()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *routes.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRoutes_RouteUpdate_Parse_Normalizes(t *testing.T) {
	t.Parallel()

	p, err := routes.RouteUpdate{
		To:       " 10.30.30.0/24 ",
		Dev:      " eth0 ",
		DeleteAt: "2025-06-01T13:00:00+00:00",
	}.Parse()
	require.NoError(t, err)
	require.Equal(t, "10.30.30.0/24", p.To)
	require.Equal(t, "eth0", p.Dev)
	require.Empty(t, p.Via)
	require.Nil(t, p.CreateAt)
	require.NotNil(t, p.DeleteAt)
	require.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), *p.DeleteAt)
}
