package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/routeman/internal/kernel"
	"github.com/malbeclabs/routeman/internal/routes"
	"github.com/malbeclabs/routeman/internal/store"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxBodySize     = 1 << 20 // 1 MiB
)

// Store is the slice of the route store the API needs.
type Store interface {
	List(ctx context.Context) ([]routes.Route, error)
	Get(ctx context.Context, to string) (routes.Route, error)
	Insert(ctx context.Context, r routes.Route) error
	Update(ctx context.Context, to string, p store.Patch) error
	Delete(ctx context.Context, to string, removal routes.Status) (routes.Route, error)
	ListDeleted(ctx context.Context) ([]routes.DeletedRoute, error)
	Ping(ctx context.Context) error
}

type Config struct {
	Logger  *slog.Logger
	Store   Store
	Kernel  kernel.Actuator
	Devices routes.DeviceChecker
	Token   string

	// Optional configuration.
	Clock           clockwork.Clock
	ShutdownTimeout time.Duration
	MaxBodySize     int64
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
	if c.Devices == nil {
		return errors.New("device checker is required")
	}
	if c.Token == "" {
		return errors.New("api token is required")
	}

	// Optional configuration.
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = defaultMaxBodySize
	}
	return nil
}
