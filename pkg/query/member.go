package query

import (
	"context"
	"database/sql"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// Member is one row of members_projection.
type Member struct {
	ContainerType string
	ContainerID   string
	GrantID       string
	UserID        string
	Roles         []string
}

// OrgMemberRoles returns the roles of an org member.
func (q *Queries) OrgMemberRoles(ctx context.Context, instanceID, orgID, userID string) ([]string, error) {
	return q.memberRoles(ctx, instanceID, "org", orgID, "", userID)
}

// ProjectMemberRoles returns the roles of a direct project member.
func (q *Queries) ProjectMemberRoles(ctx context.Context, instanceID, projectID, userID string) ([]string, error) {
	return q.memberRoles(ctx, instanceID, "project", projectID, "", userID)
}

// ProjectGrantMemberRoles returns the roles of a member on one project
// grant.
func (q *Queries) ProjectGrantMemberRoles(ctx context.Context, instanceID, projectID, grantID, userID string) ([]string, error) {
	return q.memberRoles(ctx, instanceID, "project", projectID, grantID, userID)
}

func (q *Queries) memberRoles(ctx context.Context, instanceID, containerType, containerID, grantID, userID string) ([]string, error) {
	var roles string
	err := q.db.QueryRowContext(ctx, `
		SELECT roles FROM members_projection
		WHERE instance_id = ? AND container_type = ? AND container_id = ? AND grant_id = ? AND user_id = ?`,
		instanceID, containerType, containerID, grantID, userID,
	).Scan(&roles)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-MEMBER-001", "member not found")
	}
	if err != nil {
		return nil, err
	}
	return decodeStrings(roles), nil
}

// Members lists all members of a container, direct and granted.
func (q *Queries) Members(ctx context.Context, instanceID, containerType, containerID string) ([]Member, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT container_type, container_id, grant_id, user_id, roles
		FROM members_projection
		WHERE instance_id = ? AND container_type = ? AND container_id = ?
		ORDER BY grant_id, user_id`,
		instanceID, containerType, containerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var member Member
		var roles string
		if err := rows.Scan(&member.ContainerType, &member.ContainerID, &member.GrantID, &member.UserID, &roles); err != nil {
			return nil, err
		}
		member.Roles = decodeStrings(roles)
		members = append(members, member)
	}
	return members, rows.Err()
}

// MembershipsByUser lists every membership of a user across containers.
func (q *Queries) MembershipsByUser(ctx context.Context, instanceID, userID string) ([]Member, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT container_type, container_id, grant_id, user_id, roles
		FROM members_projection
		WHERE instance_id = ? AND user_id = ?
		ORDER BY container_type, container_id, grant_id`,
		instanceID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var member Member
		var roles string
		if err := rows.Scan(&member.ContainerType, &member.ContainerID, &member.GrantID, &member.UserID, &roles); err != nil {
			return nil, err
		}
		member.Roles = decodeStrings(roles)
		members = append(members, member)
	}
	return members, rows.Err()
}
