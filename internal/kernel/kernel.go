// Package kernel is the adapter between route intent and the host
// routing table. It is the only place allowed to mutate kernel routes,
// and it performs no retries; idempotency signals from iproute2 are
// lifted into distinct error values so callers can decide what is
// benign.
package kernel

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/malbeclabs/routeman/internal/routes"
)

// Markers iproute2 prints on stderr for idempotency conflicts.
const (
	routeExistsMarker   = "RTNETLINK answers: File exists"
	routeNotFoundMarker = "RTNETLINK answers: No such process"
)

// Actuator adds, removes, and lists routes in the host routing table.
type Actuator interface {
	RouteAdd(ctx context.Context, r routes.Route) error
	RouteDel(ctx context.Context, to string) error
	RouteShow(ctx context.Context) ([]string, error)
}

type runner interface {
	run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// IPRoute drives the routing table through the ip(8) binary.
type IPRoute struct {
	log *slog.Logger
	run runner
}

func NewIPRoute(log *slog.Logger) *IPRoute {
	return &IPRoute{log: log, run: execRunner{}}
}

func (k *IPRoute) RouteAdd(ctx context.Context, r routes.Route) error {
	args := []string{"route", "add", "to", r.To}
	if r.Via != "" {
		args = append(args, "via", r.Via)
	}
	if r.Dev != "" {
		args = append(args, "dev", r.Dev)
	}

	k.log.Debug("kernel: adding route", "to", r.To, "via", r.Via, "dev", r.Dev)
	_, stderr, err := k.run.run(ctx, "ip", args...)
	if err != nil {
		if strings.Contains(string(stderr), routeExistsMarker) {
			return ErrRouteExists
		}
		return commandError("failed to add route "+r.To, stderr, err)
	}
	return nil
}

func (k *IPRoute) RouteDel(ctx context.Context, to string) error {
	k.log.Debug("kernel: removing route", "to", to)
	_, stderr, err := k.run.run(ctx, "ip", "route", "del", "to", to)
	if err != nil {
		if strings.Contains(string(stderr), routeNotFoundMarker) {
			return ErrRouteNotFound
		}
		return commandError("failed to remove route "+to, stderr, err)
	}
	return nil
}

// RouteShow returns the kernel routing table as trimmed lines of
// `ip route show` output.
func (k *IPRoute) RouteShow(ctx context.Context) ([]string, error) {
	stdout, stderr, err := k.run.run(ctx, "ip", "route", "show")
	if err != nil {
		return nil, commandError("failed to list routes", stderr, err)
	}

	lines := strings.Split(string(stdout), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// commandError reports the stderr text when iproute2 produced any,
// falling back to the exec error when the command never ran.
func commandError(op string, stderr []byte, err error) error {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %s", op, msg)
}
