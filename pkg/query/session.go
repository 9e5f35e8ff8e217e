package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// Session is one row of sessions_projection.
type Session struct {
	ID            string
	ResourceOwner string
	UserID        string
	ClientID      string
	UserAgent     string
	State         string
	AuthTime      time.Time
	AMR           []string
	// Factors maps verified factor names to their check time.
	Factors   map[string]time.Time
	CreatedAt time.Time
	ChangedAt time.Time
	Sequence  int64
}

const sessionColumns = `id, resource_owner, user_id, client_id, user_agent, state,
	auth_time, amr, factors, created_at, changed_at, sequence`

func scanSessionColumns(scan func(...any) error) (*Session, error) {
	session := &Session{}
	var amr, factors string
	var authTime, createdAt, changedAt int64
	err := scan(
		&session.ID, &session.ResourceOwner, &session.UserID, &session.ClientID,
		&session.UserAgent, &session.State,
		&authTime, &amr, &factors, &createdAt, &changedAt, &session.Sequence)
	if err != nil {
		return nil, err
	}
	if authTime > 0 {
		session.AuthTime = time.Unix(authTime, 0)
	}
	session.AMR = decodeStrings(amr)
	session.Factors = decodeFactors(factors)
	session.CreatedAt = time.Unix(createdAt, 0)
	session.ChangedAt = time.Unix(changedAt, 0)
	return session, nil
}

func decodeFactors(raw string) map[string]time.Time {
	if raw == "" || raw == "{}" {
		return nil
	}
	var unix map[string]int64
	if err := json.Unmarshal([]byte(raw), &unix); err != nil {
		return nil
	}
	factors := make(map[string]time.Time, len(unix))
	for name, at := range unix {
		factors[name] = time.Unix(at, 0)
	}
	return factors
}

// SessionByID returns one session.
func (q *Queries) SessionByID(ctx context.Context, instanceID, sessionID string) (*Session, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions_projection
		WHERE instance_id = ? AND id = ?`,
		instanceID, sessionID)
	session, err := scanSessionColumns(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-SESSION-001", "session not found")
	}
	return session, err
}

// SessionsByUser lists the sessions of a user, newest first. Pass
// activeOnly to exclude terminated rows.
func (q *Queries) SessionsByUser(ctx context.Context, instanceID, userID string, activeOnly bool) ([]Session, error) {
	stmt := `SELECT ` + sessionColumns + ` FROM sessions_projection
		WHERE instance_id = ? AND user_id = ?`
	if activeOnly {
		stmt += ` AND state = 'active'`
	}
	stmt += ` ORDER BY created_at DESC, id`

	rows, err := q.db.QueryContext(ctx, stmt, instanceID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSessionColumns(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}
