package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// Project is one row of projects_projection.
type Project struct {
	ID                   string
	ResourceOwner        string
	Name                 string
	State                string
	ProjectRoleAssertion bool
	ProjectRoleCheck     bool
	CreatedAt            time.Time
	ChangedAt            time.Time
	Sequence             int64
}

// ProjectRole is one row of project_roles_projection.
type ProjectRole struct {
	ProjectID   string
	Key         string
	DisplayName string
	Group       string
}

// ProjectGrant is one row of project_grants_projection.
type ProjectGrant struct {
	GrantID      string
	ProjectID    string
	GrantedOrgID string
	RoleKeys     []string
	State        string
}

// ProjectByID returns one project.
func (q *Queries) ProjectByID(ctx context.Context, instanceID, projectID string) (*Project, error) {
	project := &Project{}
	var createdAt, changedAt int64
	err := q.db.QueryRowContext(ctx, `
		SELECT id, resource_owner, name, state, project_role_assertion, project_role_check,
			created_at, changed_at, sequence
		FROM projects_projection
		WHERE instance_id = ? AND id = ?`,
		instanceID, projectID,
	).Scan(&project.ID, &project.ResourceOwner, &project.Name, &project.State,
		&project.ProjectRoleAssertion, &project.ProjectRoleCheck,
		&createdAt, &changedAt, &project.Sequence)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-PROJECT-001", "project not found")
	}
	if err != nil {
		return nil, err
	}
	project.CreatedAt = time.Unix(createdAt, 0)
	project.ChangedAt = time.Unix(changedAt, 0)
	return project, nil
}

// ProjectRoles lists the roles of a project.
func (q *Queries) ProjectRoles(ctx context.Context, instanceID, projectID string) ([]ProjectRole, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT project_id, role_key, display_name, role_group
		FROM project_roles_projection
		WHERE instance_id = ? AND project_id = ?
		ORDER BY role_key`,
		instanceID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []ProjectRole
	for rows.Next() {
		var role ProjectRole
		if err := rows.Scan(&role.ProjectID, &role.Key, &role.DisplayName, &role.Group); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ProjectGrantByID returns one project grant.
func (q *Queries) ProjectGrantByID(ctx context.Context, instanceID, grantID string) (*ProjectGrant, error) {
	grant := &ProjectGrant{}
	var roleKeys string
	err := q.db.QueryRowContext(ctx, `
		SELECT grant_id, project_id, granted_org_id, role_keys, state
		FROM project_grants_projection
		WHERE instance_id = ? AND grant_id = ?`,
		instanceID, grantID,
	).Scan(&grant.GrantID, &grant.ProjectID, &grant.GrantedOrgID, &roleKeys, &grant.State)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-PROJECT-002", "project grant not found")
	}
	if err != nil {
		return nil, err
	}
	grant.RoleKeys = decodeStrings(roleKeys)
	return grant, nil
}

// ProjectGrants lists the grants of a project.
func (q *Queries) ProjectGrants(ctx context.Context, instanceID, projectID string) ([]ProjectGrant, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT grant_id, project_id, granted_org_id, role_keys, state
		FROM project_grants_projection
		WHERE instance_id = ? AND project_id = ?
		ORDER BY grant_id`,
		instanceID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []ProjectGrant
	for rows.Next() {
		var grant ProjectGrant
		var roleKeys string
		if err := rows.Scan(&grant.GrantID, &grant.ProjectID, &grant.GrantedOrgID, &roleKeys, &grant.State); err != nil {
			return nil, err
		}
		grant.RoleKeys = decodeStrings(roleKeys)
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}
