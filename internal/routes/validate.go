package routes

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// RouteRequest is the wire form of a route declaration. Timestamps are
// RFC 3339 strings so that offset-less values can be rejected with a
// useful message instead of a generic decode error.
type RouteRequest struct {
	To       string `json:"to"`
	Via      string `json:"via,omitempty"`
	Dev      string `json:"dev,omitempty"`
	CreateAt string `json:"create_at,omitempty"`
	DeleteAt string `json:"delete_at,omitempty"`
}

// RouteUpdate is the wire form of a partial update. Empty fields are
// absent; To is the key and is never updated.
type RouteUpdate struct {
	To       string `json:"to"`
	Via      string `json:"via,omitempty"`
	Dev      string `json:"dev,omitempty"`
	CreateAt string `json:"create_at,omitempty"`
	DeleteAt string `json:"delete_at,omitempty"`
}

// DeviceChecker reports whether a named network interface exists on the
// host.
type DeviceChecker interface {
	DeviceExists(name string) (bool, error)
}

// ValidationError is returned for malformed route declarations. Callers
// map it to an HTTP 422.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func invalidf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// naiveTimeLayout matches ISO 8601 timestamps that omit a UTC offset.
const naiveTimeLayout = "2006-01-02T15:04:05.999999999"

// New validates a route declaration and returns the normalized record.
// Fields are trimmed and empty strings coerced to absent, create_at
// defaults to now, timestamps must carry an offset, and delete_at may
// not precede create_at. Status and Active are left zero; callers derive
// them from the window (see Classify).
func New(req RouteRequest, now time.Time, devices DeviceChecker) (Route, error) {
	r := Route{
		To:  strings.TrimSpace(req.To),
		Via: strings.TrimSpace(req.Via),
		Dev: strings.TrimSpace(req.Dev),
	}

	if r.To == "" {
		return Route{}, invalidf("route must include a destination")
	}
	toAddr, err := parseDestination(r.To)
	if err != nil {
		return Route{}, err
	}

	if r.Via == "" && r.Dev == "" {
		return Route{}, invalidf("route must include at least one of 'via' or 'dev'")
	}

	if r.Via != "" {
		viaAddr, err := netip.ParseAddr(r.Via)
		if err != nil {
			return Route{}, invalidf("%q is not a valid gateway address", r.Via)
		}
		if viaAddr.Is4() != toAddr.Is4() {
			return Route{}, invalidf("via must be in the same address family as to")
		}
	}

	if r.Dev != "" {
		ok, err := devices.DeviceExists(r.Dev)
		if err != nil {
			return Route{}, fmt.Errorf("failed to check interface %q: %w", r.Dev, err)
		}
		if !ok {
			return Route{}, invalidf("%q is not a valid network interface", r.Dev)
		}
	}

	createAt, err := parseTimestamp("create_at", req.CreateAt)
	if err != nil {
		return Route{}, err
	}
	if createAt.IsZero() {
		createAt = now.UTC()
	}
	r.CreateAt = createAt

	deleteAt, err := parseTimestamp("delete_at", req.DeleteAt)
	if err != nil {
		return Route{}, err
	}
	if !deleteAt.IsZero() {
		if deleteAt.Before(r.CreateAt) {
			return Route{}, invalidf("delete_at can't be set before create_at")
		}
		r.DeleteAt = &deleteAt
	}

	return r, nil
}

// RoutePatch is the validated form of a RouteUpdate: fields trimmed,
// empty strings meaning absent, timestamps parsed. Nil timestamps were
// not in the update.
type RoutePatch struct {
	To       string
	Via      string
	Dev      string
	CreateAt *time.Time
	DeleteAt *time.Time
}

// Parse validates a partial update and returns its normalized form: the
// key must parse, any next-hop given must parse, and any timestamp
// given must carry an offset. The interface check for dev is the
// caller's concern since it needs the host device table.
func (u RouteUpdate) Parse() (RoutePatch, error) {
	p := RoutePatch{
		To:  strings.TrimSpace(u.To),
		Via: strings.TrimSpace(u.Via),
		Dev: strings.TrimSpace(u.Dev),
	}
	if p.To == "" {
		return RoutePatch{}, invalidf("route must include a destination")
	}
	if _, err := parseDestination(p.To); err != nil {
		return RoutePatch{}, err
	}
	if p.Via != "" {
		if _, err := netip.ParseAddr(p.Via); err != nil {
			return RoutePatch{}, invalidf("%q is not a valid gateway address", p.Via)
		}
	}

	createAt, err := parseTimestamp("create_at", u.CreateAt)
	if err != nil {
		return RoutePatch{}, err
	}
	if !createAt.IsZero() {
		p.CreateAt = &createAt
	}
	deleteAt, err := parseTimestamp("delete_at", u.DeleteAt)
	if err != nil {
		return RoutePatch{}, err
	}
	if !deleteAt.IsZero() {
		p.DeleteAt = &deleteAt
	}
	if p.CreateAt != nil && p.DeleteAt != nil && p.DeleteAt.Before(*p.CreateAt) {
		return RoutePatch{}, invalidf("delete_at can't be set before create_at")
	}
	return p, nil
}

// parseDestination accepts a bare IP or a CIDR prefix and returns the
// address part for family comparisons.
func parseDestination(to string) (netip.Addr, error) {
	if p, err := netip.ParsePrefix(to); err == nil {
		return p.Addr(), nil
	}
	if a, err := netip.ParseAddr(to); err == nil {
		return a, nil
	}
	return netip.Addr{}, invalidf("%q is not a valid address or prefix", to)
}

// parseTimestamp parses an RFC 3339 timestamp in UTC. An empty string
// is absent and returns the zero time. A timestamp that parses only
// without an offset is reported as missing timezone information.
func parseTimestamp(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if _, naiveErr := time.Parse(naiveTimeLayout, s); naiveErr == nil {
			return time.Time{}, invalidf("%s must include timezone information", field)
		}
		return time.Time{}, invalidf("%q is not a valid RFC 3339 timestamp for %s", s, field)
	}
	return t.UTC(), nil
}
