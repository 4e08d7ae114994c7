// Package reconciler converges the host routing table onto the stored
// route intent. It runs one sweep per interval: every stored route is
// classified against the current time and at most one transition is
// applied to it. Routes whose delete_at has passed are removed from the
// kernel and moved to history; routes whose window is open and which
// are not yet installed are added to the kernel and marked active.
// Paused routes are left alone until they expire.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/routeman/internal/kernel"
	"github.com/malbeclabs/routeman/internal/routes"
	"github.com/malbeclabs/routeman/internal/store"
)

const DefaultInterval = 10 * time.Second

// Store is the slice of the route store the reconciler needs.
type Store interface {
	List(ctx context.Context) ([]routes.Route, error)
	Update(ctx context.Context, to string, p store.Patch) error
	Delete(ctx context.Context, to string, removal routes.Status) (routes.Route, error)
}

type Config struct {
	Logger *slog.Logger
	Store  Store
	Kernel kernel.Actuator

	// Optional configuration.
	Clock    clockwork.Clock
	Interval time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.Kernel == nil {
		return errors.New("kernel actuator is required")
	}

	// Optional configuration.
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return nil
}

type Reconciler struct {
	log      *slog.Logger
	store    Store
	kernel   kernel.Actuator
	clock    clockwork.Clock
	interval time.Duration
}

func New(cfg Config) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Reconciler{
		log:      cfg.Logger,
		store:    cfg.Store,
		kernel:   cfg.Kernel,
		clock:    cfg.Clock,
		interval: cfg.Interval,
	}, nil
}

// Run sweeps once immediately, then on every interval tick until the
// context is canceled. A sweep in progress runs to completion; the
// shutdown signal is only honored between sweeps.
func (r *Reconciler) Run(ctx context.Context) error {
	r.Sweep(ctx)
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			r.Sweep(ctx)
		}
	}
}

// Sweep walks a snapshot of the stored routes and applies at most one
// transition to each. Routes are handled independently; a failure on
// one is logged and never aborts the rest of the sweep.
func (r *Reconciler) Sweep(ctx context.Context) {
	SweepsTotal.Inc()

	list, err := r.store.List(ctx)
	if err != nil {
		r.log.Error("reconciler: failed to list routes", "error", err)
		ErrorsTotal.WithLabelValues("list").Inc()
		return
	}

	now := r.clock.Now().UTC()
	for _, rt := range list {
		switch {
		case rt.DeleteAt != nil && !rt.DeleteAt.After(now) && rt.Status != routes.StatusExpired:
			if err := r.expire(ctx, rt); err != nil {
				r.log.Error("reconciler: failed to expire route", "to", rt.To, "error", err)
				ErrorsTotal.WithLabelValues("expire").Inc()
			}
		case rt.InWindow(now) && !rt.Active && rt.Status != routes.StatusPaused:
			if err := r.activate(ctx, rt); err != nil {
				r.log.Error("reconciler: failed to activate route", "to", rt.To, "error", err)
				ErrorsTotal.WithLabelValues("activate").Inc()
			}
		}
	}
}

// expire removes the route from the kernel and moves the record to the
// deletion history with the expired status. Paused routes are not
// installed, so their kernel removal is skipped. A kernel failure other
// than not-present leaves the record in place for the next sweep.
func (r *Reconciler) expire(ctx context.Context, rt routes.Route) error {
	if rt.Status != routes.StatusPaused {
		if err := r.kernel.RouteDel(ctx, rt.To); err != nil {
			if !errors.Is(err, kernel.ErrRouteNotFound) {
				return fmt.Errorf("failed to remove route from kernel: %w", err)
			}
			r.log.Debug("reconciler: route already absent from kernel", "to", rt.To)
		}
	}

	if _, err := r.store.Delete(ctx, rt.To, routes.StatusExpired); err != nil {
		// Deleted by an API call between our snapshot and now.
		if errors.Is(err, store.ErrNotFound) {
			r.log.Debug("reconciler: route deleted during sweep", "to", rt.To)
			return nil
		}
		return fmt.Errorf("failed to move route to history: %w", err)
	}

	TransitionsTotal.WithLabelValues("expire").Inc()
	r.log.Info("reconciler: route expired", "to", rt.To, "delete_at", rt.DeleteAt)
	return nil
}

// activate installs the route in the kernel and marks the record
// active. Already-exists from the kernel is benign; any other install
// failure leaves the record untouched for the next sweep.
func (r *Reconciler) activate(ctx context.Context, rt routes.Route) error {
	if err := r.kernel.RouteAdd(ctx, rt); err != nil {
		if !errors.Is(err, kernel.ErrRouteExists) {
			return fmt.Errorf("failed to install route in kernel: %w", err)
		}
		r.log.Debug("reconciler: route already present in kernel", "to", rt.To)
	}

	active := true
	status := routes.StatusActive
	if err := r.store.Update(ctx, rt.To, store.Patch{Active: &active, Status: &status}); err != nil {
		// Deleted by an API call between our snapshot and now.
		if errors.Is(err, store.ErrNotFound) {
			r.log.Debug("reconciler: route deleted during sweep", "to", rt.To)
			return nil
		}
		return fmt.Errorf("failed to mark route active: %w", err)
	}

	TransitionsTotal.WithLabelValues("activate").Inc()
	r.log.Info("reconciler: route activated", "to", rt.To)
	return nil
}
