package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// User is one row of users_projection.
type User struct {
	ID                 string
	ResourceOwner      string
	Username           string
	Type               string
	State              string
	FirstName          string
	LastName           string
	DisplayName        string
	PreferredLanguage  string
	Email              string
	IsEmailVerified    bool
	Phone              string
	IsPhoneVerified    bool
	MachineName        string
	MachineDescription string
	CreatedAt          time.Time
	ChangedAt          time.Time
	Sequence           int64
}

const userColumns = `id, resource_owner, username, user_type, state,
	first_name, last_name, display_name, preferred_language,
	email, is_email_verified, phone, is_phone_verified,
	machine_name, machine_description, created_at, changed_at, sequence`

func scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	var createdAt, changedAt int64
	err := row.Scan(
		&user.ID, &user.ResourceOwner, &user.Username, &user.Type, &user.State,
		&user.FirstName, &user.LastName, &user.DisplayName, &user.PreferredLanguage,
		&user.Email, &user.IsEmailVerified, &user.Phone, &user.IsPhoneVerified,
		&user.MachineName, &user.MachineDescription, &createdAt, &changedAt, &user.Sequence)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-USER-001", "user not found")
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	user.ChangedAt = time.Unix(changedAt, 0)
	return user, nil
}

// UserByID returns one user.
func (q *Queries) UserByID(ctx context.Context, instanceID, userID string) (*User, error) {
	return scanUser(q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users_projection
		WHERE instance_id = ? AND id = ?`,
		instanceID, userID))
}

// UserByUsername returns the user holding a username. Usernames are unique
// per instance.
func (q *Queries) UserByUsername(ctx context.Context, instanceID, username string) (*User, error) {
	return scanUser(q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users_projection
		WHERE instance_id = ? AND username = ?`,
		instanceID, username))
}

// UsersByOrg lists the users owned by one organization.
func (q *Queries) UsersByOrg(ctx context.Context, instanceID, orgID string) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users_projection
		WHERE instance_id = ? AND resource_owner = ?
		ORDER BY username`,
		instanceID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		var createdAt, changedAt int64
		if err := rows.Scan(
			&user.ID, &user.ResourceOwner, &user.Username, &user.Type, &user.State,
			&user.FirstName, &user.LastName, &user.DisplayName, &user.PreferredLanguage,
			&user.Email, &user.IsEmailVerified, &user.Phone, &user.IsPhoneVerified,
			&user.MachineName, &user.MachineDescription, &createdAt, &changedAt, &user.Sequence); err != nil {
			return nil, err
		}
		user.CreatedAt = time.Unix(createdAt, 0)
		user.ChangedAt = time.Unix(changedAt, 0)
		users = append(users, user)
	}
	return users, rows.Err()
}
