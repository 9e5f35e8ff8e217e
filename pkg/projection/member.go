package projection

import (
	"context"
	"database/sql"

	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// MemberProjection maintains members_projection across org members, project
// members and project grant members. Container rows are keyed by
// (container_type, container_id, grant_id, user_id); grant_id is empty for
// direct memberships.
type MemberProjection struct{ tableSet }

func NewMemberProjection() *MemberProjection {
	return &MemberProjection{tableSet{"members_projection"}}
}

func (*MemberProjection) Name() string { return "members" }

func (p *MemberProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	switch event.Type {
	case events.OrgMemberAddedType, events.OrgMemberChangedType:
		var payload events.OrgMemberChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.upsert(ctx, tx, event, "org", event.Aggregate.ID, "", payload.UserID, payload.Roles)

	case events.OrgMemberRemovedType:
		var payload events.OrgMemberRemoved
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.delete(ctx, tx, event, "org", event.Aggregate.ID, "", payload.UserID)

	case events.ProjectMemberAddedType, events.ProjectMemberChangedType:
		var payload events.ProjectMemberChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.upsert(ctx, tx, event, "project", event.Aggregate.ID, "", payload.UserID, payload.Roles)

	case events.ProjectMemberRemovedType:
		var payload events.ProjectMemberRemoved
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.delete(ctx, tx, event, "project", event.Aggregate.ID, "", payload.UserID)

	case events.ProjectGrantMemberAddedType, events.ProjectGrantMemberChangedType:
		var payload events.ProjectGrantMemberChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.upsert(ctx, tx, event, "project", event.Aggregate.ID, payload.GrantID, payload.UserID, payload.Roles)

	case events.ProjectGrantMemberRemovedType:
		var payload events.ProjectGrantMemberRemoved
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.delete(ctx, tx, event, "project", event.Aggregate.ID, payload.GrantID, payload.UserID)

	case events.ProjectGrantRemovedType:
		var payload events.ProjectGrantStateChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM members_projection
			WHERE instance_id = ? AND container_type = 'project' AND container_id = ? AND grant_id = ?`,
			event.InstanceID, event.Aggregate.ID, payload.GrantID)
		return err

	case events.OrgRemovedType:
		_, err := tx.ExecContext(ctx, `
			DELETE FROM members_projection
			WHERE instance_id = ? AND container_type = 'org' AND container_id = ?`,
			event.InstanceID, event.Aggregate.ID)
		return err

	case events.ProjectRemovedType:
		_, err := tx.ExecContext(ctx, `
			DELETE FROM members_projection
			WHERE instance_id = ? AND container_type = 'project' AND container_id = ?`,
			event.InstanceID, event.Aggregate.ID)
		return err

	case events.UserRemovedType:
		_, err := tx.ExecContext(ctx, `
			DELETE FROM members_projection WHERE instance_id = ? AND user_id = ?`,
			event.InstanceID, event.Aggregate.ID)
		return err
	}
	return nil
}

func (*MemberProjection) upsert(ctx context.Context, tx *sql.Tx, event *eventstore.Event, containerType, containerID, grantID, userID string, roles []string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO members_projection (instance_id, container_type, container_id, grant_id, user_id, roles, changed_at, sequence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instance_id, container_type, container_id, grant_id, user_id) DO UPDATE SET
			roles = excluded.roles, changed_at = excluded.changed_at, sequence = excluded.sequence`,
		event.InstanceID, containerType, containerID, grantID, userID,
		jsonStrings(roles), event.CreatedAt.Unix(), event.Position.IntPart())
	return err
}

func (*MemberProjection) delete(ctx context.Context, tx *sql.Tx, event *eventstore.Event, containerType, containerID, grantID, userID string) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM members_projection
		WHERE instance_id = ? AND container_type = ? AND container_id = ? AND grant_id = ? AND user_id = ?`,
		event.InstanceID, containerType, containerID, grantID, userID)
	return err
}
