package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// Action is one row of actions_projection.
type Action struct {
	ID            string
	Name          string
	Script        string
	Timeout       time.Duration
	AllowedToFail bool
	State         string
}

// ActionByID returns one action.
func (q *Queries) ActionByID(ctx context.Context, instanceID, actionID string) (*Action, error) {
	action := &Action{}
	var timeout int64
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, script, timeout, allowed_to_fail, state
		FROM actions_projection
		WHERE instance_id = ? AND id = ?`,
		instanceID, actionID,
	).Scan(&action.ID, &action.Name, &action.Script, &timeout, &action.AllowedToFail, &action.State)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-ACTION-001", "action not found")
	}
	if err != nil {
		return nil, err
	}
	action.Timeout = time.Duration(timeout)
	return action, nil
}

// Actions lists all actions of an instance.
func (q *Queries) Actions(ctx context.Context, instanceID string) ([]Action, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, script, timeout, allowed_to_fail, state
		FROM actions_projection
		WHERE instance_id = ?
		ORDER BY name`,
		instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var action Action
		var timeout int64
		if err := rows.Scan(&action.ID, &action.Name, &action.Script, &timeout, &action.AllowedToFail, &action.State); err != nil {
			return nil, err
		}
		action.Timeout = time.Duration(timeout)
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

// ExecutionTargets returns the ordered action IDs bound to a trigger
// condition, or nil when no execution is set.
func (q *Queries) ExecutionTargets(ctx context.Context, instanceID, condition string) ([]string, error) {
	var targets string
	err := q.db.QueryRowContext(ctx, `
		SELECT targets FROM executions_projection
		WHERE instance_id = ? AND condition = ?`,
		instanceID, condition,
	).Scan(&targets)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeStrings(targets), nil
}
