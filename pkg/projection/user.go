package projection

import (
	"context"
	"database/sql"
	"strings"

	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// UserProjection maintains users_projection for humans and machines.
type UserProjection struct{ tableSet }

func NewUserProjection() *UserProjection {
	return &UserProjection{tableSet{"users_projection"}}
}

func (*UserProjection) Name() string { return "users" }

func (p *UserProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	switch event.Type {
	case events.HumanAddedType:
		var payload events.HumanAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		displayName := payload.DisplayName
		if displayName == "" {
			displayName = payload.FirstName + " " + payload.LastName
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users_projection (
				id, instance_id, resource_owner, username, user_type, state,
				first_name, last_name, display_name, preferred_language,
				email, is_email_verified, phone, is_phone_verified,
				created_at, changed_at, sequence)
			VALUES (?, ?, ?, ?, 'human', ?, ?, ?, ?, ?, ?, 0, ?, 0, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			event.Aggregate.ID, event.InstanceID, event.ResourceOwner,
			payload.Username, stateActive,
			payload.FirstName, payload.LastName, displayName, payload.Language,
			payload.Email, payload.Phone,
			event.CreatedAt.Unix(), event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.MachineAddedType:
		var payload events.MachineAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users_projection (
				id, instance_id, resource_owner, username, user_type, state,
				machine_name, machine_description, created_at, changed_at, sequence)
			VALUES (?, ?, ?, ?, 'machine', ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			event.Aggregate.ID, event.InstanceID, event.ResourceOwner,
			payload.Username, stateActive, payload.Name, payload.Description,
			event.CreatedAt.Unix(), event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.MachineChangedType:
		var payload events.MachineChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.Name != nil {
			sets, args = append(sets, "machine_name = ?"), append(args, *payload.Name)
		}
		if payload.Description != nil {
			sets, args = append(sets, "machine_description = ?"), append(args, *payload.Description)
		}
		return p.update(ctx, tx, event, sets, args)

	case events.UsernameChangedType:
		var payload events.UsernameChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.update(ctx, tx, event, []string{"username = ?"}, []any{payload.Username})

	case events.HumanProfileChangedType:
		var payload events.HumanProfileChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.FirstName != nil {
			sets, args = append(sets, "first_name = ?"), append(args, *payload.FirstName)
		}
		if payload.LastName != nil {
			sets, args = append(sets, "last_name = ?"), append(args, *payload.LastName)
		}
		if payload.DisplayName != nil {
			sets, args = append(sets, "display_name = ?"), append(args, *payload.DisplayName)
		}
		if payload.Language != nil {
			sets, args = append(sets, "preferred_language = ?"), append(args, *payload.Language)
		}
		return p.update(ctx, tx, event, sets, args)

	case events.HumanEmailChangedType:
		var payload events.HumanEmailChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		// A changed address starts unverified again.
		return p.update(ctx, tx, event,
			[]string{"email = ?", "is_email_verified = 0"}, []any{payload.Email})

	case events.HumanEmailVerifiedType:
		return p.update(ctx, tx, event, []string{"is_email_verified = 1"}, nil)

	case events.HumanPhoneChangedType:
		var payload events.HumanPhoneChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.update(ctx, tx, event,
			[]string{"phone = ?", "is_phone_verified = 0"}, []any{payload.Phone})

	case events.HumanPhoneVerifiedType:
		return p.update(ctx, tx, event, []string{"is_phone_verified = 1"}, nil)

	case events.HumanPhoneRemovedType:
		return p.update(ctx, tx, event, []string{"phone = ''", "is_phone_verified = 0"}, nil)

	case events.UserLockedType:
		return p.update(ctx, tx, event, []string{"state = ?"}, []any{stateLocked})

	case events.UserUnlockedType, events.UserReactivatedType:
		return p.update(ctx, tx, event, []string{"state = ?"}, []any{stateActive})

	case events.UserDeactivatedType:
		return p.update(ctx, tx, event, []string{"state = ?"}, []any{stateInactive})

	case events.UserRemovedType:
		_, err := tx.ExecContext(ctx, `
			DELETE FROM users_projection WHERE instance_id = ? AND id = ?`,
			event.InstanceID, event.Aggregate.ID)
		return err
	}
	return nil
}

func (*UserProjection) update(ctx context.Context, tx *sql.Tx, event *eventstore.Event, sets []string, args []any) error {
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "changed_at = ?", "sequence = ?")
	args = append(args, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, event.Aggregate.ID)
	_, err := tx.ExecContext(ctx,
		"UPDATE users_projection SET "+strings.Join(sets, ", ")+" WHERE instance_id = ? AND id = ?",
		args...)
	return err
}
