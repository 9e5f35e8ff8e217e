package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// Org is one row of organizations_projection.
type Org struct {
	ID            string
	Name          string
	PrimaryDomain string
	State         string
	CreatedAt     time.Time
	ChangedAt     time.Time
	Sequence      int64
}

// OrgDomain is one row of org_domains_projection.
type OrgDomain struct {
	OrgID          string
	Domain         string
	IsVerified     bool
	IsPrimary      bool
	ValidationType string
}

// OrgByID returns one organization.
func (q *Queries) OrgByID(ctx context.Context, instanceID, orgID string) (*Org, error) {
	org := &Org{}
	var createdAt, changedAt int64
	err := q.db.QueryRowContext(ctx, `
		SELECT id, name, primary_domain, state, created_at, changed_at, sequence
		FROM organizations_projection
		WHERE instance_id = ? AND id = ?`,
		instanceID, orgID,
	).Scan(&org.ID, &org.Name, &org.PrimaryDomain, &org.State, &createdAt, &changedAt, &org.Sequence)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-ORG-001", "org not found")
	}
	if err != nil {
		return nil, err
	}
	org.CreatedAt = time.Unix(createdAt, 0)
	org.ChangedAt = time.Unix(changedAt, 0)
	return org, nil
}

// ActiveOrgs lists all active organizations of an instance.
func (q *Queries) ActiveOrgs(ctx context.Context, instanceID string) ([]Org, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, primary_domain, state, created_at, changed_at, sequence
		FROM organizations_projection
		WHERE instance_id = ? AND state = 'active'
		ORDER BY name, id`,
		instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Org
	for rows.Next() {
		var org Org
		var createdAt, changedAt int64
		if err := rows.Scan(&org.ID, &org.Name, &org.PrimaryDomain, &org.State,
			&createdAt, &changedAt, &org.Sequence); err != nil {
			return nil, err
		}
		org.CreatedAt = time.Unix(createdAt, 0)
		org.ChangedAt = time.Unix(changedAt, 0)
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// OrgByDomain returns the organization owning a verified domain.
func (q *Queries) OrgByDomain(ctx context.Context, instanceID, domain string) (*Org, error) {
	var orgID string
	err := q.db.QueryRowContext(ctx, `
		SELECT org_id FROM org_domains_projection
		WHERE instance_id = ? AND domain = ? AND is_verified = 1`,
		instanceID, domain,
	).Scan(&orgID)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-ORG-002", "no org with verified domain")
	}
	if err != nil {
		return nil, err
	}
	return q.OrgByID(ctx, instanceID, orgID)
}

// OrgDomains lists all domains of an organization.
func (q *Queries) OrgDomains(ctx context.Context, instanceID, orgID string) ([]OrgDomain, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT org_id, domain, is_verified, is_primary, validation_type
		FROM org_domains_projection
		WHERE instance_id = ? AND org_id = ?
		ORDER BY domain`,
		instanceID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []OrgDomain
	for rows.Next() {
		var d OrgDomain
		if err := rows.Scan(&d.OrgID, &d.Domain, &d.IsVerified, &d.IsPrimary, &d.ValidationType); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}
