package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// SessionProjection maintains sessions_projection. Besides per-session
// events it handles the bulk termination fan-out events of the user, org
// and project aggregates.
type SessionProjection struct{ tableSet }

func NewSessionProjection() *SessionProjection {
	return &SessionProjection{tableSet{"sessions_projection"}}
}

func (*SessionProjection) Name() string { return "sessions" }

func (p *SessionProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	switch event.Type {
	case events.SessionAddedType:
		var payload events.SessionAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions_projection (
				id, instance_id, resource_owner, user_id, client_id, user_agent, state,
				created_at, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			event.Aggregate.ID, event.InstanceID, event.ResourceOwner,
			payload.UserID, payload.ClientID, payload.UserAgent, stateActive,
			event.CreatedAt.Unix(), event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.SessionOIDCAddedType:
		var payload events.SessionOIDCAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions_projection (
				id, instance_id, resource_owner, user_id, client_id, state,
				created_at, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			event.Aggregate.ID, event.InstanceID, event.ResourceOwner,
			payload.UserID, payload.ClientID, stateActive,
			event.CreatedAt.Unix(), event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.SessionUpdatedType:
		var payload events.SessionUpdated
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.AMR != nil {
			sets, args = append(sets, "amr = ?"), append(args, jsonStrings(payload.AMR))
		}
		if payload.AuthTime != nil {
			sets, args = append(sets, "auth_time = ?"), append(args, payload.AuthTime.Unix())
		}
		if len(sets) == 0 {
			return nil
		}
		sets = append(sets, "changed_at = ?", "sequence = ?")
		args = append(args, event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, event.Aggregate.ID)
		_, err := tx.ExecContext(ctx,
			"UPDATE sessions_projection SET "+strings.Join(sets, ", ")+" WHERE instance_id = ? AND id = ?",
			args...)
		return err

	case events.SessionFactorSetType:
		var payload events.SessionFactorSet
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.setFactor(ctx, tx, event, payload)

	case events.SessionTerminatedType:
		_, err := tx.ExecContext(ctx, `
			UPDATE sessions_projection SET state = ?, changed_at = ?, sequence = ?
			WHERE instance_id = ? AND id = ?`,
			stateTerminated, event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, event.Aggregate.ID)
		return err

	case events.UserSessionsTerminatedType:
		return p.terminateWhere(ctx, tx, event, "user_id = ?", event.Aggregate.ID)

	case events.OrgSessionsTerminatedType:
		return p.terminateWhere(ctx, tx, event, "resource_owner = ?", event.Aggregate.ID)

	case events.ClientSessionsTerminatedType:
		var payload events.ClientSessionsTerminated
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.terminateWhere(ctx, tx, event, "client_id = ?", payload.ClientID)
	}
	return nil
}

// setFactor merges one verified factor into the factors JSON column. The
// column maps factor name to the unix time it was checked.
func (*SessionProjection) setFactor(ctx context.Context, tx *sql.Tx, event *eventstore.Event, payload events.SessionFactorSet) error {
	var raw string
	err := tx.QueryRowContext(ctx, `
		SELECT factors FROM sessions_projection WHERE instance_id = ? AND id = ?`,
		event.InstanceID, event.Aggregate.ID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	factors := map[string]int64{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &factors); err != nil {
			factors = map[string]int64{}
		}
	}
	factors[authMethodText(payload.Type)] = payload.CheckedAt.Unix()
	encoded, err := json.Marshal(factors)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions_projection SET factors = ?, changed_at = ?, sequence = ?
		WHERE instance_id = ? AND id = ?`,
		string(encoded), event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, event.Aggregate.ID)
	return err
}

// terminateWhere is the bulk fan-out: one aggregate event terminates every
// matching active session row.
func (*SessionProjection) terminateWhere(ctx context.Context, tx *sql.Tx, event *eventstore.Event, predicate string, arg any) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE sessions_projection SET state = ?, changed_at = ?, sequence = ?
		WHERE instance_id = ? AND state = ? AND `+predicate,
		stateTerminated, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, stateActive, arg)
	return err
}

func authMethodText(t domain.AuthMethodType) string {
	switch t {
	case domain.AuthMethodTypePassword:
		return "password"
	case domain.AuthMethodTypeTOTP:
		return "totp"
	case domain.AuthMethodTypeOTPSMS:
		return "otp_sms"
	case domain.AuthMethodTypeOTPEmail:
		return "otp_email"
	case domain.AuthMethodTypeU2F:
		return "u2f"
	case domain.AuthMethodTypePasswordless:
		return "passwordless"
	case domain.AuthMethodTypeIDP:
		return "idp"
	default:
		return "unspecified"
	}
}
