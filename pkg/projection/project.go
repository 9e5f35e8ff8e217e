package projection

import (
	"context"
	"database/sql"
	"strings"

	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// ProjectProjection maintains projects_projection, project_roles_projection
// and project_grants_projection.
type ProjectProjection struct{ tableSet }

func NewProjectProjection() *ProjectProjection {
	return &ProjectProjection{tableSet{"projects_projection", "project_roles_projection", "project_grants_projection"}}
}

func (*ProjectProjection) Name() string { return "projects" }

func (p *ProjectProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	switch event.Type {
	case events.ProjectAddedType:
		var payload events.ProjectAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects_projection (
				id, instance_id, resource_owner, name, state,
				project_role_assertion, project_role_check,
				created_at, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			event.Aggregate.ID, event.InstanceID, event.ResourceOwner,
			payload.Name, stateActive,
			payload.ProjectRoleAssertion, payload.ProjectRoleCheck,
			event.CreatedAt.Unix(), event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.ProjectChangedType:
		var payload events.ProjectChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.Name != nil {
			sets, args = append(sets, "name = ?"), append(args, *payload.Name)
		}
		if payload.ProjectRoleAssertion != nil {
			sets, args = append(sets, "project_role_assertion = ?"), append(args, *payload.ProjectRoleAssertion)
		}
		if payload.ProjectRoleCheck != nil {
			sets, args = append(sets, "project_role_check = ?"), append(args, *payload.ProjectRoleCheck)
		}
		if len(sets) == 0 {
			return nil
		}
		sets = append(sets, "changed_at = ?", "sequence = ?")
		args = append(args, event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, event.Aggregate.ID)
		_, err := tx.ExecContext(ctx,
			"UPDATE projects_projection SET "+strings.Join(sets, ", ")+" WHERE instance_id = ? AND id = ?",
			args...)
		return err

	case events.ProjectDeactivatedType:
		return p.setProjectState(ctx, tx, event, stateInactive)

	case events.ProjectReactivatedType:
		return p.setProjectState(ctx, tx, event, stateActive)

	case events.ProjectRemovedType:
		for _, stmt := range []string{
			`DELETE FROM project_grants_projection WHERE instance_id = ? AND project_id = ?`,
			`DELETE FROM project_roles_projection WHERE instance_id = ? AND project_id = ?`,
			`DELETE FROM projects_projection WHERE instance_id = ? AND id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, event.InstanceID, event.Aggregate.ID); err != nil {
				return err
			}
		}
		return nil

	case events.ProjectRoleAddedType:
		var payload events.ProjectRoleAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO project_roles_projection (instance_id, project_id, role_key, display_name, role_group, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, project_id, role_key) DO UPDATE SET
				display_name = excluded.display_name, role_group = excluded.role_group,
				changed_at = excluded.changed_at, sequence = excluded.sequence`,
			event.InstanceID, event.Aggregate.ID, payload.Key,
			payload.DisplayName, payload.Group,
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.ProjectRoleChangedType:
		var payload events.ProjectRoleChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.DisplayName != nil {
			sets, args = append(sets, "display_name = ?"), append(args, *payload.DisplayName)
		}
		if payload.Group != nil {
			sets, args = append(sets, "role_group = ?"), append(args, *payload.Group)
		}
		if len(sets) == 0 {
			return nil
		}
		sets = append(sets, "changed_at = ?", "sequence = ?")
		args = append(args, event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, event.Aggregate.ID, payload.Key)
		_, err := tx.ExecContext(ctx,
			"UPDATE project_roles_projection SET "+strings.Join(sets, ", ")+
				" WHERE instance_id = ? AND project_id = ? AND role_key = ?",
			args...)
		return err

	case events.ProjectRoleRemovedType:
		var payload events.ProjectRoleRemoved
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM project_roles_projection
			WHERE instance_id = ? AND project_id = ? AND role_key = ?`,
			event.InstanceID, event.Aggregate.ID, payload.Key)
		return err

	case events.ProjectGrantAddedType:
		var payload events.ProjectGrantAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO project_grants_projection (
				grant_id, instance_id, project_id, granted_org_id, role_keys, state, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, grant_id) DO NOTHING`,
			payload.GrantID, event.InstanceID, event.Aggregate.ID,
			payload.GrantedOrgID, jsonStrings(payload.RoleKeys), stateActive,
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.ProjectGrantChangedType:
		var payload events.ProjectGrantChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE project_grants_projection SET role_keys = ?, changed_at = ?, sequence = ?
			WHERE instance_id = ? AND grant_id = ?`,
			jsonStrings(payload.RoleKeys), event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, payload.GrantID)
		return err

	case events.ProjectGrantDeactivatedType:
		return p.setGrantState(ctx, tx, event, stateInactive)

	case events.ProjectGrantReactivatedType:
		return p.setGrantState(ctx, tx, event, stateActive)

	case events.ProjectGrantRemovedType:
		var payload events.ProjectGrantStateChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM project_grants_projection WHERE instance_id = ? AND grant_id = ?`,
			event.InstanceID, payload.GrantID)
		return err
	}
	return nil
}

func (*ProjectProjection) setProjectState(ctx context.Context, tx *sql.Tx, event *eventstore.Event, state string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projects_projection SET state = ?, changed_at = ?, sequence = ?
		WHERE instance_id = ? AND id = ?`,
		state, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, event.Aggregate.ID)
	return err
}

func (*ProjectProjection) setGrantState(ctx context.Context, tx *sql.Tx, event *eventstore.Event, state string) error {
	var payload events.ProjectGrantStateChanged
	if err := event.UnmarshalPayload(&payload); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE project_grants_projection SET state = ?, changed_at = ?, sequence = ?
		WHERE instance_id = ? AND grant_id = ?`,
		state, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, payload.GrantID)
	return err
}
