// Package projection materializes the event log into read-model tables. Each
// projection advances through an instance's stream independently, tracked by
// a cursor in projection_states; the handler's SQL effects and the cursor
// advance commit in one transaction, which makes delivery effectively
// exactly-once per projection even though the stream is at-least-once.
package projection

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/eventstore/sqlite/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Handler applies events to one read model. Reduce must be idempotent under
// replay of an already-applied event; the manager additionally guards with
// the cursor, so in practice each event is applied once.
type Handler interface {
	// Name identifies the projection in projection_states.
	Name() string
	// Reduce applies one event inside the given transaction. Events the
	// projection does not care about must be ignored without error.
	Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error
}

// Resetter is implemented by projections that can be rebuilt from scratch.
type Resetter interface {
	// Reset deletes the projection's rows for one instance inside tx.
	Reset(ctx context.Context, tx *sql.Tx, instanceID string) error
}

// tableSet implements Resetter for projections whose state lives in a
// fixed set of tables keyed by instance_id.
type tableSet []string

func (t tableSet) Reset(ctx context.Context, tx *sql.Tx, instanceID string) error {
	for _, table := range t {
		_, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE instance_id = ?", instanceID)
		if err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// Migrate applies the projection schema to db.
func Migrate(db *sql.DB) error {
	m := migrate.New(db, "projection_schema_migrations")
	if err := m.LoadFromFS(migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("load projection migrations: %w", err)
	}
	if err := m.Up(); err != nil {
		return fmt.Errorf("run projection migrations: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the last applied cursor of a projection for one
// instance, or the zero cursor.
func LoadCheckpoint(ctx context.Context, db *sql.DB, projection, instanceID string) (eventstore.Cursor, error) {
	var (
		position int64
		order    uint32
	)
	err := db.QueryRowContext(ctx, `
		SELECT position, in_position_order FROM projection_states
		WHERE projection_name = ? AND instance_id = ?`,
		projection, instanceID,
	).Scan(&position, &order)
	if err == sql.ErrNoRows {
		return eventstore.ZeroCursor(), nil
	}
	if err != nil {
		return eventstore.Cursor{}, fmt.Errorf("load checkpoint %s/%s: %w", projection, instanceID, err)
	}
	return eventstore.Cursor{Position: decimal.NewFromInt(position), InPositionOrder: order}, nil
}

// loadCheckpointTx reads the cursor inside the apply transaction.
func loadCheckpointTx(ctx context.Context, tx *sql.Tx, projection, instanceID string) (eventstore.Cursor, error) {
	var (
		position int64
		order    uint32
	)
	err := tx.QueryRowContext(ctx, `
		SELECT position, in_position_order FROM projection_states
		WHERE projection_name = ? AND instance_id = ?`,
		projection, instanceID,
	).Scan(&position, &order)
	if err == sql.ErrNoRows {
		return eventstore.ZeroCursor(), nil
	}
	if err != nil {
		return eventstore.Cursor{}, err
	}
	return eventstore.Cursor{Position: decimal.NewFromInt(position), InPositionOrder: order}, nil
}

// saveCheckpointTx advances the cursor inside the apply transaction.
// Advancement is monotonic; the caller has already compared cursors.
func saveCheckpointTx(ctx context.Context, tx *sql.Tx, projection, instanceID string, cursor eventstore.Cursor, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projection_states (projection_name, instance_id, position, in_position_order, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (projection_name, instance_id) DO UPDATE SET
			position = excluded.position,
			in_position_order = excluded.in_position_order,
			updated_at = excluded.updated_at`,
		projection, instanceID, cursor.Position.IntPart(), cursor.InPositionOrder, now.Unix(),
	)
	return err
}
