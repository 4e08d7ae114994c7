// Package store persists route intent in an embedded DuckDB database:
// the saved_routes table holds the declared routes keyed by destination,
// and deleted_routes keeps an append-only history of removals.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/routeman/internal/routes"
)

var schemas = []string{
	`CREATE TABLE IF NOT EXISTS saved_routes (
		"to" VARCHAR PRIMARY KEY,
		via VARCHAR,
		dev VARCHAR,
		create_at TIMESTAMPTZ NOT NULL,
		delete_at TIMESTAMPTZ,
		active BOOLEAN NOT NULL DEFAULT false,
		status VARCHAR NOT NULL
	)`,
	`CREATE SEQUENCE IF NOT EXISTS deleted_routes_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS deleted_routes (
		id BIGINT PRIMARY KEY DEFAULT nextval('deleted_routes_id_seq'),
		"to" VARCHAR NOT NULL,
		via VARCHAR,
		dev VARCHAR,
		create_at TIMESTAMPTZ,
		delete_at TIMESTAMPTZ,
		status VARCHAR NOT NULL,
		removed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS deleted_routes_to_idx ON deleted_routes ("to")`,
}

type Config struct {
	Logger *slog.Logger

	// DSN is the DuckDB database path. Empty means in-memory, which is
	// the injection point tests use instead of a file-backed store.
	DSN string

	// Optional configuration.
	Clock clockwork.Clock
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Store is the authoritative source of route intent. Writes are
// serialized through writeMu so check-then-write sequences stay atomic
// within the owning process; reads run concurrently.
type Store struct {
	log     *slog.Logger
	clock   clockwork.Clock
	db      *sql.DB
	writeMu sync.Mutex
}

// Open opens the database at cfg.DSN and creates the tables if needed.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, schema := range schemas {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	return &Store{log: cfg.Logger, clock: cfg.Clock, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const routeColumns = `"to", via, dev, create_at, delete_at, active, status`

// List returns every saved route ordered by destination.
func (s *Store) List(ctx context.Context) ([]routes.Route, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+routeColumns+` FROM saved_routes ORDER BY "to"`)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var out []routes.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate routes: %w", err)
	}
	return out, nil
}

// Get returns the route for a destination or ErrNotFound.
func (s *Store) Get(ctx context.Context, to string) (routes.Route, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+routeColumns+` FROM saved_routes WHERE "to" = ?`, to)
	r, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return routes.Route{}, ErrNotFound
	}
	if err != nil {
		return routes.Route{}, err
	}
	return r, nil
}

// Insert stores a new route. ErrConflict when the destination is taken.
func (s *Store) Insert(ctx context.Context, r routes.Route) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM saved_routes WHERE "to" = ?`, r.To).Scan(&n); err != nil {
		return fmt.Errorf("failed to check for existing route: %w", err)
	}
	if n > 0 {
		return ErrConflict
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO saved_routes ("to", via, dev, create_at, delete_at, active, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.To, nullString(r.Via), nullString(r.Dev), r.CreateAt.UTC(), nullTime(r.DeleteAt), r.Active, string(r.Status))
	if err != nil {
		return fmt.Errorf("failed to insert route: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}
	return nil
}

// Patch is a partial update of a saved route. Nil fields are left
// untouched; Via and Dev pointing at an empty string clear the column.
// Active and Status travel together in one Patch wherever the caller
// needs the active-implies-active-status invariant to hold.
type Patch struct {
	Via      *string
	Dev      *string
	CreateAt *time.Time
	DeleteAt *time.Time
	Active   *bool
	Status   *routes.Status
}

// Update applies a patch to the route for a destination in a single
// statement. ErrNotFound when no row matches.
func (s *Store) Update(ctx context.Context, to string, p Patch) error {
	set := make([]string, 0, 6)
	args := make([]any, 0, 7)

	if p.Via != nil {
		set = append(set, "via = ?")
		args = append(args, nullString(*p.Via))
	}
	if p.Dev != nil {
		set = append(set, "dev = ?")
		args = append(args, nullString(*p.Dev))
	}
	if p.CreateAt != nil {
		set = append(set, "create_at = ?")
		args = append(args, p.CreateAt.UTC())
	}
	if p.DeleteAt != nil {
		set = append(set, "delete_at = ?")
		args = append(args, p.DeleteAt.UTC())
	}
	if p.Active != nil {
		set = append(set, "active = ?")
		args = append(args, *p.Active)
	}
	if p.Status != nil {
		set = append(set, "status = ?")
		args = append(args, string(*p.Status))
	}
	if len(set) == 0 {
		_, err := s.Get(ctx, to)
		return err
	}
	args = append(args, to)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE saved_routes SET `+strings.Join(set, ", ")+` WHERE "to" = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update route: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the route for a destination and appends a history
// record carrying the removal status. It returns the prior route.
// ErrNotFound when absent, ErrAmbiguous when the destination matches
// more than one row.
func (s *Store) Delete(ctx context.Context, to string, removal routes.Status) (routes.Route, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return routes.Route{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT `+routeColumns+` FROM saved_routes WHERE "to" = ?`, to)
	if err != nil {
		return routes.Route{}, fmt.Errorf("failed to query route: %w", err)
	}
	var matches []routes.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			rows.Close()
			return routes.Route{}, err
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return routes.Route{}, fmt.Errorf("failed to iterate routes: %w", err)
	}
	rows.Close()

	switch {
	case len(matches) == 0:
		return routes.Route{}, ErrNotFound
	case len(matches) > 1:
		return routes.Route{}, ErrAmbiguous
	}
	prior := matches[0]

	removedAt := s.clock.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO deleted_routes ("to", via, dev, create_at, delete_at, status, removed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		prior.To, nullString(prior.Via), nullString(prior.Dev), prior.CreateAt.UTC(), nullTime(prior.DeleteAt), string(removal), removedAt)
	if err != nil {
		return routes.Route{}, fmt.Errorf("failed to record deleted route: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM saved_routes WHERE "to" = ?`, to); err != nil {
		return routes.Route{}, fmt.Errorf("failed to delete route: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return routes.Route{}, fmt.Errorf("failed to commit delete: %w", err)
	}
	return prior, nil
}

// ListDeleted returns the removal history in insertion order.
func (s *Store) ListDeleted(ctx context.Context) ([]routes.DeletedRoute, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, "to", via, dev, create_at, delete_at, status, removed_at FROM deleted_routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query deleted routes: %w", err)
	}
	defer rows.Close()

	var out []routes.DeletedRoute
	for rows.Next() {
		var (
			d        routes.DeletedRoute
			via, dev sql.NullString
			createAt sql.NullTime
			deleteAt sql.NullTime
			status   string
		)
		if err := rows.Scan(&d.ID, &d.To, &via, &dev, &createAt, &deleteAt, &status, &d.RemovedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deleted route: %w", err)
		}
		d.Via = via.String
		d.Dev = dev.String
		if createAt.Valid {
			d.CreateAt = createAt.Time.UTC()
		}
		if deleteAt.Valid {
			t := deleteAt.Time.UTC()
			d.DeleteAt = &t
		}
		d.Status = routes.Status(status)
		d.RemovedAt = d.RemovedAt.UTC()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted routes: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoute(row scanner) (routes.Route, error) {
	var (
		r        routes.Route
		via, dev sql.NullString
		deleteAt sql.NullTime
		status   string
	)
	if err := row.Scan(&r.To, &via, &dev, &r.CreateAt, &deleteAt, &r.Active, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return routes.Route{}, err
		}
		return routes.Route{}, fmt.Errorf("failed to scan route: %w", err)
	}
	r.Via = via.String
	r.Dev = dev.String
	r.CreateAt = r.CreateAt.UTC()
	if deleteAt.Valid {
		t := deleteAt.Time.UTC()
		r.DeleteAt = &t
	}
	r.Status = routes.Status(status)
	return r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
