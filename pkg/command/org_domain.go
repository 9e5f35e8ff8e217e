package command

import (
	"context"
	"time"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/domainverify"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// uniqueTypeOrgDomain claims a domain name for one org per instance.
const uniqueTypeOrgDomain = "org_domain"

// OrgDomain is the reduced state of one domain on the org aggregate.
type OrgDomain struct {
	Name           string
	Verified       bool
	Primary        bool
	ValidationType string
	// PendingToken is the last issued, not yet consumed verification token.
	PendingToken       string
	PendingTokenExpiry time.Time
}

// OrgDomainsWriteModel reduces the org's domain list.
type OrgDomainsWriteModel struct {
	eventstore.WriteModel

	OrgState domain.OrgState
	Domains  []*OrgDomain
}

func NewOrgDomainsWriteModel(instanceID, orgID string) *OrgDomainsWriteModel {
	return &OrgDomainsWriteModel{WriteModel: eventstore.NewWriteModel(instanceID, orgID)}
}

func (wm *OrgDomainsWriteModel) Domain(name string) *OrgDomain {
	for _, d := range wm.Domains {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func (wm *OrgDomainsWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.OrgAddedType:
			wm.OrgState = domain.OrgStateActive
		case events.OrgDeactivatedType:
			wm.OrgState = domain.OrgStateInactive
		case events.OrgReactivatedType:
			wm.OrgState = domain.OrgStateActive
		case events.OrgRemovedType:
			wm.OrgState = domain.OrgStateRemoved
		case events.OrgDomainAddedType:
			var payload events.OrgDomainAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.Domains = append(wm.Domains, &OrgDomain{Name: payload.Domain})
			}
		case events.OrgDomainVerificationAddedType:
			var payload events.OrgDomainVerificationAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			if d := wm.Domain(payload.Domain); d != nil {
				d.ValidationType = payload.ValidationType
				d.PendingToken = payload.Code
				d.PendingTokenExpiry = payload.Expiry
			}
		case events.OrgDomainVerifiedType:
			var payload events.OrgDomainVerified
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			if d := wm.Domain(payload.Domain); d != nil {
				d.Verified = true
				d.PendingToken = ""
			}
		case events.OrgDomainPrimarySetType:
			var payload events.OrgDomainPrimarySet
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			// All other domains lose the primary flag first.
			for _, d := range wm.Domains {
				d.Primary = d.Name == payload.Domain
			}
		case events.OrgDomainRemovedType:
			var payload events.OrgDomainRemoved
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			for i, d := range wm.Domains {
				if d.Name == payload.Domain {
					wm.Domains = append(wm.Domains[:i], wm.Domains[i+1:]...)
					break
				}
			}
		}
	}
	wm.WriteModel.Reduce()
}

func (wm *OrgDomainsWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeOrg, ID: wm.AggregateID}
}

// AddOrgDomain registers a domain on the org and claims it instance-wide.
func (c *Commands) AddOrgDomain(ctx context.Context, instanceID, orgID, domainName string) (*Details, error) {
	domainName = domain.NormalizeDomainName(domainName)
	if err := domain.CheckDomainName(domainName); err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "org.domain.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgDomainsWriteModel(instanceID, orgID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.OrgState.Exists() {
			return nil, apperror.NotFound(nil, "ORG-003", "org not found")
		}
		if wm.Domain(domainName) != nil {
			return nil, apperror.AlreadyExists(nil, "ORG-DOMAIN-003", "domain already exists on org")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OrgDomainAddedType,
			Payload:         events.OrgDomainAdded{Domain: domainName},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
			UniqueConstraints: []*eventstore.UniqueConstraint{
				eventstore.NewAddUniqueConstraint(uniqueTypeOrgDomain, domainName, "ORG-DOMAIN-003"),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// DomainVerification is the token the org must publish to prove ownership.
type DomainVerification struct {
	Token   string
	Expiry  time.Time
	Details *Details
}

// GenerateOrgDomainVerification issues a fresh ownership token. The token is
// public knowledge once served, so it is stored in clear.
func (c *Commands) GenerateOrgDomainVerification(ctx context.Context, instanceID, orgID, domainName, validationType string) (*DomainVerification, error) {
	domainName = domain.NormalizeDomainName(domainName)
	if validationType != domainverify.TypeHTTP && validationType != domainverify.TypeDNS {
		return nil, apperror.InvalidArgument(nil, "ORG-DOMAIN-006", "validation type must be http or dns")
	}
	token, err := c.codes.Token32()
	if err != nil {
		return nil, apperror.Internal(err, "ORG-DOMAIN-007", "unable to generate verification token")
	}
	expiry := c.now().Add(c.domainTokenExpiry)

	pushed, err := c.exec(ctx, "org.domain.verification.generate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgDomainsWriteModel(instanceID, orgID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		d := wm.Domain(domainName)
		if !wm.OrgState.Exists() || d == nil {
			return nil, apperror.NotFound(nil, "ORG-DOMAIN-008", "domain not found on org")
		}
		if d.Verified {
			return nil, apperror.FailedPrecondition(nil, "ORG-DOMAIN-009", "domain is already verified")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.OrgDomainVerificationAddedType,
			Payload: events.OrgDomainVerificationAdded{
				Domain:         domainName,
				ValidationType: validationType,
				Code:           token,
				Expiry:         expiry,
			},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &DomainVerification{Token: token, Expiry: expiry, Details: detailsFromEvents(pushed)}, nil
}

// VerifyOrgDomain probes the domain for the issued token. A failed probe is
// recorded as an event and surfaced as an error.
func (c *Commands) VerifyOrgDomain(ctx context.Context, instanceID, orgID, domainName string) (*Details, error) {
	domainName = domain.NormalizeDomainName(domainName)

	pushed, err := c.exec(ctx, "org.domain.verify", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgDomainsWriteModel(instanceID, orgID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		d := wm.Domain(domainName)
		if !wm.OrgState.Exists() || d == nil {
			return nil, apperror.NotFound(nil, "ORG-DOMAIN-008", "domain not found on org")
		}
		if d.Verified {
			return nil, apperror.FailedPrecondition(nil, "ORG-DOMAIN-009", "domain is already verified")
		}
		if d.PendingToken == "" || c.now().After(d.PendingTokenExpiry) {
			return nil, apperror.FailedPrecondition(nil, "ORG-DOMAIN-010", "no valid verification token, generate a new one")
		}

		ok := false
		switch d.ValidationType {
		case domainverify.TypeDNS:
			ok = c.probe.VerifyDNS(ctx, domainName, d.PendingToken)
		default:
			ok = c.probe.VerifyHTTP(ctx, domainName, d.PendingToken)
		}
		if !ok {
			// Record the failed attempt but keep the command failing.
			if _, pushErr := c.push(ctx, instanceID, eventstore.Command{
				Aggregate:       wm.aggregate(),
				Type:            events.OrgDomainVerificationFailedType,
				Payload:         events.OrgDomainVerificationFailed{Domain: domainName},
				ResourceOwner:   wm.ResourceOwner,
				ExpectedVersion: wm.ExpectedVersion(),
			}); pushErr != nil {
				return nil, pushErr
			}
			return nil, apperror.FailedPrecondition(nil, "ORG-DOMAIN-011", "domain verification failed")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OrgDomainVerifiedType,
			Payload:         events.OrgDomainVerified{Domain: domainName},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// SetPrimaryOrgDomain marks a verified domain as the org's primary domain.
func (c *Commands) SetPrimaryOrgDomain(ctx context.Context, instanceID, orgID, domainName string) (*Details, error) {
	domainName = domain.NormalizeDomainName(domainName)

	var details *Details
	_, err := c.exec(ctx, "org.domain.set_primary", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgDomainsWriteModel(instanceID, orgID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		d := wm.Domain(domainName)
		if !wm.OrgState.Exists() || d == nil {
			return nil, apperror.NotFound(nil, "ORG-DOMAIN-008", "domain not found on org")
		}
		if !d.Verified {
			return nil, apperror.FailedPrecondition(nil, "ORG-DOMAIN-005", "Domain must be verified to set as primary")
		}
		if d.Primary {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OrgDomainPrimarySetType,
			Payload:         events.OrgDomainPrimarySet{Domain: domainName},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
		if err != nil {
			return nil, err
		}
		details = detailsFromEvents(pushed)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// RemoveOrgDomain removes a domain and releases the instance-wide claim. The
// primary domain must be demoted first.
func (c *Commands) RemoveOrgDomain(ctx context.Context, instanceID, orgID, domainName string) (*Details, error) {
	domainName = domain.NormalizeDomainName(domainName)

	pushed, err := c.exec(ctx, "org.domain.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgDomainsWriteModel(instanceID, orgID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		d := wm.Domain(domainName)
		if !wm.OrgState.Exists() || d == nil {
			return nil, apperror.NotFound(nil, "ORG-DOMAIN-008", "domain not found on org")
		}
		if d.Primary {
			return nil, apperror.FailedPrecondition(nil, "ORG-DOMAIN-012", "primary domain must not be removed")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OrgDomainRemovedType,
			Payload:         events.OrgDomainRemoved{Domain: domainName},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
			UniqueConstraints: []*eventstore.UniqueConstraint{
				eventstore.NewRemoveUniqueConstraint(uniqueTypeOrgDomain, domainName),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}
