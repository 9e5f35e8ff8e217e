package command

import (
	"context"
	"time"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// SessionWriteModel reduces one session aggregate.
type SessionWriteModel struct {
	eventstore.WriteModel

	State          domain.SessionState
	UserID         string
	ClientID       string
	AccessTokenID  string
	RefreshTokenID string
	AMR            []string
	AuthTime       time.Time

	// At most one verified factor per auth method type.
	Factors map[domain.AuthMethodType]time.Time
}

func NewSessionWriteModel(instanceID, sessionID string) *SessionWriteModel {
	return &SessionWriteModel{
		WriteModel: eventstore.NewWriteModel(instanceID, sessionID),
		Factors:    map[domain.AuthMethodType]time.Time{},
	}
}

func (wm *SessionWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeSession, ID: wm.AggregateID}
}

func (wm *SessionWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.SessionAddedType:
			var payload events.SessionAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.State = domain.SessionStateActive
			wm.UserID = payload.UserID
			wm.ClientID = payload.ClientID
		case events.SessionOIDCAddedType:
			var payload events.SessionOIDCAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.State = domain.SessionStateActive
			wm.UserID = payload.UserID
			wm.ClientID = payload.ClientID
		case events.SessionUpdatedType:
			var payload events.SessionUpdated
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			if payload.AccessTokenID != nil {
				wm.AccessTokenID = *payload.AccessTokenID
			}
			if payload.RefreshTokenID != nil {
				wm.RefreshTokenID = *payload.RefreshTokenID
			}
			if payload.AMR != nil {
				wm.AMR = payload.AMR
			}
			if payload.AuthTime != nil {
				wm.AuthTime = *payload.AuthTime
			}
		case events.SessionFactorSetType:
			var payload events.SessionFactorSet
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.Factors[payload.Type] = payload.CheckedAt
			}
		case events.SessionTerminatedType:
			wm.State = domain.SessionStateTerminated
		}
	}
	wm.WriteModel.Reduce()
}

// CreatedSession is the result of a create-session command.
type CreatedSession struct {
	ID      string
	Details *Details
}

// CreateSession starts a classic session for a user.
func (c *Commands) CreateSession(ctx context.Context, instanceID, orgID, userID, userAgent, clientID string, lifetime time.Duration) (*CreatedSession, error) {
	if userID == "" {
		return nil, apperror.InvalidArgument(nil, "SESSION-001", "user id must not be empty")
	}

	sessionID, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "session.create", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewSessionWriteModel(instanceID, sessionID)
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.SessionAddedType,
			Payload: events.SessionAdded{
				UserID:    userID,
				UserAgent: userAgent,
				ClientID:  clientID,
				Lifetime:  lifetime,
			},
			ResourceOwner: orgID,
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedSession{ID: sessionID, Details: detailsFromEvents(pushed)}, nil
}

// CreateOIDCSession holds the input of CreateOIDCSession.
type CreateOIDCSession struct {
	UserID              string
	ClientID            string
	RedirectURI         string
	Scope               []string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod domain.OIDCCodeChallengeMethod
}

// CreateOIDCSession starts a session bound to an OIDC authorization request,
// validating the PKCE pair.
func (c *Commands) CreateOIDCSession(ctx context.Context, instanceID, orgID string, session CreateOIDCSession) (*CreatedSession, error) {
	if session.UserID == "" {
		return nil, apperror.InvalidArgument(nil, "SESSION-001", "user id must not be empty")
	}
	if session.ClientID == "" {
		return nil, apperror.InvalidArgument(nil, "SESSION-002", "client id must not be empty")
	}
	if err := domain.CheckCodeChallenge(session.CodeChallenge, session.CodeChallengeMethod); err != nil {
		return nil, err
	}

	sessionID, err := c.nextID()
	if err != nil {
		return nil, err
	}

	var challenge *domain.OIDCCodeChallenge
	if session.CodeChallenge != "" {
		challenge = &domain.OIDCCodeChallenge{Challenge: session.CodeChallenge, Method: session.CodeChallengeMethod}
	}

	pushed, err := c.exec(ctx, "session.oidc.create", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewSessionWriteModel(instanceID, sessionID)
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.SessionOIDCAddedType,
			Payload: events.SessionOIDCAdded{
				UserID:        session.UserID,
				ClientID:      session.ClientID,
				RedirectURI:   session.RedirectURI,
				Scope:         session.Scope,
				Nonce:         session.Nonce,
				CodeChallenge: challenge,
			},
			ResourceOwner: orgID,
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedSession{ID: sessionID, Details: detailsFromEvents(pushed)}, nil
}

// UpdateSession is the input of UpdateSession; nil fields keep the current
// value.
type UpdateSession struct {
	AccessTokenID  *string
	RefreshTokenID *string
	AMR            []string
	AuthTime       *time.Time
}

// UpdateSession records token IDs, AMR and auth time on an active session.
// All fields equal is a no-op.
func (c *Commands) UpdateSession(ctx context.Context, instanceID, sessionID string, update UpdateSession) (*Details, error) {
	var details *Details
	_, err := c.exec(ctx, "session.update", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadActiveSession(ctx, instanceID, sessionID)
		if err != nil {
			return nil, err
		}
		payload := events.SessionUpdated{}
		if stringChanged(wm.AccessTokenID, update.AccessTokenID) {
			payload.AccessTokenID = update.AccessTokenID
		}
		if stringChanged(wm.RefreshTokenID, update.RefreshTokenID) {
			payload.RefreshTokenID = update.RefreshTokenID
		}
		if update.AMR != nil && !sameStringSet(wm.AMR, update.AMR) {
			payload.AMR = update.AMR
		}
		if update.AuthTime != nil && !update.AuthTime.Equal(wm.AuthTime) {
			payload.AuthTime = update.AuthTime
		}
		if payload.AccessTokenID == nil && payload.RefreshTokenID == nil && payload.AMR == nil && payload.AuthTime == nil {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.SessionUpdatedType,
			Payload:         payload,
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

// SetSessionFactor records a verified auth factor on an active session. The
// reducer keeps at most one verified factor per type, so a repeated check
// simply refreshes the timestamp.
func (c *Commands) SetSessionFactor(ctx context.Context, instanceID, sessionID string, factorType domain.AuthMethodType) (*Details, error) {
	if factorType == domain.AuthMethodTypeUnspecified {
		return nil, apperror.InvalidArgument(nil, "SESSION-004", "factor type must not be unspecified")
	}

	pushed, err := c.exec(ctx, "session.factor.set", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadActiveSession(ctx, instanceID, sessionID)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.SessionFactorSetType,
			Payload:         events.SessionFactorSet{Type: factorType, CheckedAt: c.now()},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// TerminateSession ends a session. Terminating an already terminated session
// is a no-op.
func (c *Commands) TerminateSession(ctx context.Context, instanceID, sessionID, reason string) (*Details, error) {
	var details *Details
	_, err := c.exec(ctx, "session.terminate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewSessionWriteModel(instanceID, sessionID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if wm.State == domain.SessionStateUnspecified {
			return nil, apperror.NotFound(nil, "SESSION-003", "session not found")
		}
		if wm.State == domain.SessionStateTerminated {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.SessionTerminatedType,
			Payload:         events.SessionTerminated{Reason: reason},
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

func (c *Commands) loadActiveSession(ctx context.Context, instanceID, sessionID string) (*SessionWriteModel, error) {
	wm := NewSessionWriteModel(instanceID, sessionID)
	if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
		return nil, err
	}
	if wm.State == domain.SessionStateUnspecified {
		return nil, apperror.NotFound(nil, "SESSION-003", "session not found")
	}
	if wm.State == domain.SessionStateTerminated {
		return nil, apperror.FailedPrecondition(nil, "SESSION-005", "session is terminated")
	}
	return wm, nil
}
