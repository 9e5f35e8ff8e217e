package projection

import (
	"context"
	"database/sql"
	"strings"

	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// NotifyConfigProjection maintains smtp_configs_projection and
// sms_configs_projection. Sealed secrets never reach the read model.
type NotifyConfigProjection struct{ tableSet }

func NewNotifyConfigProjection() *NotifyConfigProjection {
	return &NotifyConfigProjection{tableSet{"smtp_configs_projection", "sms_configs_projection"}}
}

func (*NotifyConfigProjection) Name() string { return "notify_configs" }

func (p *NotifyConfigProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	switch event.Type {
	case events.SMTPConfigAddedType:
		var payload events.SMTPConfigAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO smtp_configs_projection (
				id, instance_id, resource_owner, description, host, smtp_user, tls,
				sender_address, sender_name, reply_to_address, state, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			payload.ID, event.InstanceID, event.Aggregate.ID,
			payload.Description, payload.Host, payload.User, payload.TLS,
			payload.SenderAddress, payload.SenderName, payload.ReplyToAddress,
			stateInactive, event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.SMTPConfigChangedType:
		var payload events.SMTPConfigChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.Description != nil {
			sets, args = append(sets, "description = ?"), append(args, *payload.Description)
		}
		if payload.Host != nil {
			sets, args = append(sets, "host = ?"), append(args, *payload.Host)
		}
		if payload.User != nil {
			sets, args = append(sets, "smtp_user = ?"), append(args, *payload.User)
		}
		if payload.TLS != nil {
			sets, args = append(sets, "tls = ?"), append(args, *payload.TLS)
		}
		if payload.SenderAddress != nil {
			sets, args = append(sets, "sender_address = ?"), append(args, *payload.SenderAddress)
		}
		if payload.SenderName != nil {
			sets, args = append(sets, "sender_name = ?"), append(args, *payload.SenderName)
		}
		if payload.ReplyToAddress != nil {
			sets, args = append(sets, "reply_to_address = ?"), append(args, *payload.ReplyToAddress)
		}
		return p.update(ctx, tx, event, "smtp_configs_projection", payload.ID, sets, args)

	case events.SMTPConfigActivatedType:
		return p.setState(ctx, tx, event, "smtp_configs_projection", stateActive)

	case events.SMTPConfigDeactivatedType:
		return p.setState(ctx, tx, event, "smtp_configs_projection", stateInactive)

	case events.SMTPConfigRemovedType:
		return p.delete(ctx, tx, event, "smtp_configs_projection")

	case events.SMSConfigTwilioAddedType:
		var payload events.SMSConfigTwilioAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sms_configs_projection (
				id, instance_id, resource_owner, provider_type, description,
				sid, sender_number, state, changed_at, sequence)
			VALUES (?, ?, ?, 'twilio', ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			payload.ID, event.InstanceID, event.Aggregate.ID,
			payload.Description, payload.SID, payload.SenderNumber,
			stateInactive, event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.SMSConfigHTTPAddedType:
		var payload events.SMSConfigHTTPAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sms_configs_projection (
				id, instance_id, resource_owner, provider_type, description,
				endpoint, state, changed_at, sequence)
			VALUES (?, ?, ?, 'http', ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			payload.ID, event.InstanceID, event.Aggregate.ID,
			payload.Description, payload.Endpoint,
			stateInactive, event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.SMSConfigChangedType:
		var payload events.SMSConfigChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.Description != nil {
			sets, args = append(sets, "description = ?"), append(args, *payload.Description)
		}
		if payload.SID != nil {
			sets, args = append(sets, "sid = ?"), append(args, *payload.SID)
		}
		if payload.SenderNumber != nil {
			sets, args = append(sets, "sender_number = ?"), append(args, *payload.SenderNumber)
		}
		if payload.Endpoint != nil {
			sets, args = append(sets, "endpoint = ?"), append(args, *payload.Endpoint)
		}
		if payload.ProviderType == domain.SMSProviderTypeTwilio {
			sets = append(sets, "provider_type = 'twilio'")
		} else if payload.ProviderType == domain.SMSProviderTypeHTTP {
			sets = append(sets, "provider_type = 'http'")
		}
		return p.update(ctx, tx, event, "sms_configs_projection", payload.ID, sets, args)

	case events.SMSConfigActivatedType:
		return p.setState(ctx, tx, event, "sms_configs_projection", stateActive)

	case events.SMSConfigDeactivatedType:
		return p.setState(ctx, tx, event, "sms_configs_projection", stateInactive)

	case events.SMSConfigRemovedType:
		return p.delete(ctx, tx, event, "sms_configs_projection")

	case events.OrgRemovedType:
		for _, table := range []string{"smtp_configs_projection", "sms_configs_projection"} {
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM "+table+" WHERE instance_id = ? AND resource_owner = ?",
				event.InstanceID, event.Aggregate.ID); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (*NotifyConfigProjection) update(ctx context.Context, tx *sql.Tx, event *eventstore.Event, table, id string, sets []string, args []any) error {
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "changed_at = ?", "sequence = ?")
	args = append(args, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, id)
	_, err := tx.ExecContext(ctx,
		"UPDATE "+table+" SET "+strings.Join(sets, ", ")+" WHERE instance_id = ? AND id = ?",
		args...)
	return err
}

func (*NotifyConfigProjection) setState(ctx context.Context, tx *sql.Tx, event *eventstore.Event, table, state string) error {
	var payload events.SMTPConfigStateChanged
	if err := event.UnmarshalPayload(&payload); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		"UPDATE "+table+" SET state = ?, changed_at = ?, sequence = ? WHERE instance_id = ? AND id = ?",
		state, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, payload.ID)
	return err
}

func (*NotifyConfigProjection) delete(ctx context.Context, tx *sql.Tx, event *eventstore.Event, table string) error {
	var payload events.SMTPConfigStateChanged
	if err := event.UnmarshalPayload(&payload); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE instance_id = ? AND id = ?",
		event.InstanceID, payload.ID)
	return err
}
