// Package sqlite implements the event store on SQLite via the pure-Go
// modernc driver. One database holds all tenants; isolation is by
// instance_id on every statement.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/eventstore/sqlite/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Notifier is called after a successful push with the committed events.
// Delivery is best effort; durability comes from the committed positions.
type Notifier func(ctx context.Context, events []eventstore.Event)

// Store is the SQLite-backed eventstore.Store.
type Store struct {
	db       *sql.DB
	notifier Notifier
	now      func() time.Time

	// Serializes pushes. SQLite allows a single writer anyway; taking the
	// lock up front turns busy-errors into queueing.
	mu sync.Mutex
}

type config struct {
	dsn          string
	maxOpenConns int
	maxIdleConns int
	walMode      bool
	autoMigrate  bool
	notifier     Notifier
	now          func() time.Time
}

// Option configures the store.
type Option func(*config)

// WithDSN sets the database file; ":memory:" keeps everything in memory.
func WithDSN(dsn string) Option {
	return func(c *config) { c.dsn = dsn }
}

// WithMemoryDatabase is shorthand for an in-memory database (tests).
func WithMemoryDatabase() Option {
	return func(c *config) { c.dsn = ":memory:" }
}

// WithWALMode toggles write-ahead logging. Not available for :memory:.
func WithWALMode(enabled bool) Option {
	return func(c *config) { c.walMode = enabled }
}

// WithAutoMigrate toggles running pending migrations at open.
func WithAutoMigrate(enabled bool) Option {
	return func(c *config) { c.autoMigrate = enabled }
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(c *config) { c.maxOpenConns = n }
}

// WithNotifier registers the post-commit notifier.
func WithNotifier(n Notifier) Option {
	return func(c *config) { c.notifier = n }
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// New opens (and by default migrates) a SQLite event store.
func New(opts ...Option) (*Store, error) {
	cfg := config{
		dsn:          "auriga.db",
		maxOpenConns: 25,
		maxIdleConns: 5,
		walMode:      true,
		autoMigrate:  true,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", cfg.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection; force a single one.
	if cfg.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.maxOpenConns)
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db, notifier: cfg.notifier, now: cfg.now}

	if cfg.walMode && cfg.dsn != ":memory:" {
		if _, err := db.Exec(`
			PRAGMA journal_mode = WAL;
			PRAGMA synchronous = NORMAL;
			PRAGMA foreign_keys = ON;
		`); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	if cfg.autoMigrate {
		if err := Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return store, nil
}

// Migrate applies the event store schema to db.
func Migrate(db *sql.DB) error {
	m := migrate.New(db, "eventstore_schema_migrations")
	if err := m.LoadFromFS(migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := m.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// DB exposes the handle so projections and queries can share the database.
func (s *Store) DB() *sql.DB { return s.db }

// SetNotifier replaces the post-commit notifier. Used when the event bus is
// constructed after the store.
func (s *Store) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Push appends the commands as events in one transaction. All events share
// one base position, allocated from the per-instance counter; within the
// push they carry in_position_order 0..N-1.
func (s *Store) Push(ctx context.Context, instanceID string, commands ...eventstore.Command) ([]eventstore.Event, error) {
	if len(commands) == 0 {
		return nil, nil
	}
	if instanceID == "" {
		return nil, fmt.Errorf("%w: missing instance id", eventstore.ErrStorageUnavailable)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", eventstore.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	// Current version per touched aggregate, checked against the expected
	// versions before anything is written.
	versions := make(map[eventstore.Aggregate]uint64)
	for _, cmd := range commands {
		if _, ok := versions[cmd.Aggregate]; ok {
			continue
		}
		var current uint64
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(aggregate_version), 0) FROM events
			WHERE instance_id = ? AND aggregate_type = ? AND aggregate_id = ?`,
			instanceID, cmd.Aggregate.Type, cmd.Aggregate.ID,
		).Scan(&current)
		if err != nil {
			return nil, fmt.Errorf("%w: current version: %v", eventstore.ErrStorageUnavailable, err)
		}
		versions[cmd.Aggregate] = current
	}
	// Only the first expectation per aggregate is checked against storage;
	// later commands in the same push build on it.
	expected := make(map[eventstore.Aggregate]bool)
	for _, cmd := range commands {
		if cmd.ExpectedVersion == nil || expected[cmd.Aggregate] {
			continue
		}
		expected[cmd.Aggregate] = true
		if versions[cmd.Aggregate] != *cmd.ExpectedVersion {
			return nil, eventstore.ErrConcurrencyConflict
		}
	}

	basePosition, err := s.nextPosition(ctx, tx, instanceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	events := make([]eventstore.Event, 0, len(commands))
	for i, cmd := range commands {
		var payload []byte
		if cmd.Payload != nil {
			payload, err = json.Marshal(cmd.Payload)
			if err != nil {
				return nil, fmt.Errorf("marshal payload of %s: %w", cmd.Type, err)
			}
		}
		if err := s.applyUniqueConstraints(ctx, tx, instanceID, cmd.UniqueConstraints); err != nil {
			return nil, err
		}

		versions[cmd.Aggregate]++
		revision := cmd.Revision
		if revision == 0 {
			revision = 1
		}
		event := eventstore.Event{
			ID:               uuid.NewString(),
			InstanceID:       instanceID,
			Aggregate:        cmd.Aggregate,
			AggregateVersion: versions[cmd.Aggregate],
			Type:             cmd.Type,
			Revision:         revision,
			Payload:          payload,
			EditorUser:       cmd.EditorUser,
			ResourceOwner:    cmd.ResourceOwner,
			Position:         decimal.NewFromInt(basePosition),
			InPositionOrder:  uint32(i),
			CreatedAt:        now,
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (
				id, instance_id, aggregate_type, aggregate_id, aggregate_version,
				event_type, revision, payload, editor_user, resource_owner,
				position, in_position_order, creation_date
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.ID, event.InstanceID, event.Aggregate.Type, event.Aggregate.ID,
			event.AggregateVersion, event.Type, event.Revision, event.Payload,
			event.EditorUser, event.ResourceOwner, basePosition,
			event.InPositionOrder, event.CreatedAt.UnixMicro(),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: insert event: %v", eventstore.ErrStorageUnavailable, err)
		}
		events = append(events, event)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", eventstore.ErrStorageUnavailable, err)
	}

	if s.notifier != nil {
		s.notifier(ctx, events)
	}
	return events, nil
}

// nextPosition bumps and returns the per-instance position counter.
func (s *Store) nextPosition(ctx context.Context, tx *sql.Tx, instanceID string) (int64, error) {
	var position int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO positions (instance_id, value) VALUES (?, 1)
		ON CONFLICT (instance_id) DO UPDATE SET value = value + 1
		RETURNING value`,
		instanceID,
	).Scan(&position)
	if err != nil {
		return 0, fmt.Errorf("%w: allocate position: %v", eventstore.ErrStorageUnavailable, err)
	}
	return position, nil
}

func (s *Store) applyUniqueConstraints(ctx context.Context, tx *sql.Tx, instanceID string, constraints []*eventstore.UniqueConstraint) error {
	for _, constraint := range constraints {
		switch constraint.Action {
		case eventstore.ConstraintAdd:
			var exists int
			err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM unique_constraints
				WHERE instance_id = ? AND unique_type = ? AND unique_field = ?`,
				instanceID, constraint.UniqueType, constraint.UniqueField,
			).Scan(&exists)
			if err != nil {
				return fmt.Errorf("%w: check constraint: %v", eventstore.ErrStorageUnavailable, err)
			}
			if exists > 0 {
				return &eventstore.UniqueConstraintError{
					UniqueType:  constraint.UniqueType,
					UniqueField: constraint.UniqueField,
					ErrorCode:   constraint.ErrorCode,
				}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO unique_constraints (instance_id, unique_type, unique_field, created_at)
				VALUES (?, ?, ?, ?)`,
				instanceID, constraint.UniqueType, constraint.UniqueField, s.now().Unix(),
			); err != nil {
				return fmt.Errorf("%w: claim constraint: %v", eventstore.ErrStorageUnavailable, err)
			}
		case eventstore.ConstraintRemove:
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM unique_constraints
				WHERE instance_id = ? AND unique_type = ? AND unique_field = ?`,
				instanceID, constraint.UniqueType, constraint.UniqueField,
			); err != nil {
				return fmt.Errorf("%w: release constraint: %v", eventstore.ErrStorageUnavailable, err)
			}
		case eventstore.ConstraintRemoveInstance:
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM unique_constraints WHERE instance_id = ?`,
				instanceID,
			); err != nil {
				return fmt.Errorf("%w: release instance constraints: %v", eventstore.ErrStorageUnavailable, err)
			}
		}
	}
	return nil
}

// LatestPosition returns the instance's highest committed position, or zero
// if the instance has no events yet.
func (s *Store) LatestPosition(ctx context.Context, instanceID string) (eventstore.Position, error) {
	var position int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), 0) FROM events WHERE instance_id = ?`,
		instanceID,
	).Scan(&position)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: latest position: %v", eventstore.ErrStorageUnavailable, err)
	}
	return decimal.NewFromInt(position), nil
}

// Instances lists instance IDs that have at least one event. Projections
// use this to advance every tenant.
func (s *Store) Instances(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT instance_id FROM events ORDER BY instance_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: instances: %v", eventstore.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var instances []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		instances = append(instances, id)
	}
	return instances, rows.Err()
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
