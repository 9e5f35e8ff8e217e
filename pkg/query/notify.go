package query

import (
	"context"
	"database/sql"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// SMTPConfig is one row of smtp_configs_projection. The password is sealed
// in the event log and never part of the read model.
type SMTPConfig struct {
	ID             string
	ResourceOwner  string
	Description    string
	Host           string
	User           string
	TLS            bool
	SenderAddress  string
	SenderName     string
	ReplyToAddress string
	State          string
}

// SMSConfig is one row of sms_configs_projection.
type SMSConfig struct {
	ID            string
	ResourceOwner string
	ProviderType  string
	Description   string
	SID           string
	SenderNumber  string
	Endpoint      string
	State         string
}

// ActiveSMTPConfig returns the org's active SMTP provider. At most one
// config per org is active.
func (q *Queries) ActiveSMTPConfig(ctx context.Context, instanceID, orgID string) (*SMTPConfig, error) {
	config := &SMTPConfig{}
	err := q.db.QueryRowContext(ctx, `
		SELECT id, resource_owner, description, host, smtp_user, tls,
			sender_address, sender_name, reply_to_address, state
		FROM smtp_configs_projection
		WHERE instance_id = ? AND resource_owner = ? AND state = 'active'`,
		instanceID, orgID,
	).Scan(&config.ID, &config.ResourceOwner, &config.Description, &config.Host,
		&config.User, &config.TLS, &config.SenderAddress, &config.SenderName,
		&config.ReplyToAddress, &config.State)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-SMTP-001", "no active smtp config")
	}
	if err != nil {
		return nil, err
	}
	return config, nil
}

// SMTPConfigByID returns one SMTP config.
func (q *Queries) SMTPConfigByID(ctx context.Context, instanceID, configID string) (*SMTPConfig, error) {
	config := &SMTPConfig{}
	err := q.db.QueryRowContext(ctx, `
		SELECT id, resource_owner, description, host, smtp_user, tls,
			sender_address, sender_name, reply_to_address, state
		FROM smtp_configs_projection
		WHERE instance_id = ? AND id = ?`,
		instanceID, configID,
	).Scan(&config.ID, &config.ResourceOwner, &config.Description, &config.Host,
		&config.User, &config.TLS, &config.SenderAddress, &config.SenderName,
		&config.ReplyToAddress, &config.State)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-SMTP-002", "smtp config not found")
	}
	if err != nil {
		return nil, err
	}
	return config, nil
}

// SMTPConfigs lists all SMTP configs of an org.
func (q *Queries) SMTPConfigs(ctx context.Context, instanceID, orgID string) ([]SMTPConfig, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, resource_owner, description, host, smtp_user, tls,
			sender_address, sender_name, reply_to_address, state
		FROM smtp_configs_projection
		WHERE instance_id = ? AND resource_owner = ?
		ORDER BY id`,
		instanceID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []SMTPConfig
	for rows.Next() {
		var config SMTPConfig
		if err := rows.Scan(&config.ID, &config.ResourceOwner, &config.Description, &config.Host,
			&config.User, &config.TLS, &config.SenderAddress, &config.SenderName,
			&config.ReplyToAddress, &config.State); err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	return configs, rows.Err()
}

// ActiveSMSConfig returns the org's active SMS provider.
func (q *Queries) ActiveSMSConfig(ctx context.Context, instanceID, orgID string) (*SMSConfig, error) {
	config := &SMSConfig{}
	err := q.db.QueryRowContext(ctx, `
		SELECT id, resource_owner, provider_type, description, sid, sender_number, endpoint, state
		FROM sms_configs_projection
		WHERE instance_id = ? AND resource_owner = ? AND state = 'active'`,
		instanceID, orgID,
	).Scan(&config.ID, &config.ResourceOwner, &config.ProviderType, &config.Description,
		&config.SID, &config.SenderNumber, &config.Endpoint, &config.State)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-SMS-001", "no active sms config")
	}
	if err != nil {
		return nil, err
	}
	return config, nil
}
