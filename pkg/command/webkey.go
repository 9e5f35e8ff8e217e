package command

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// WebKeyWriteModel reduces one signing key aggregate.
type WebKeyWriteModel struct {
	eventstore.WriteModel

	State     domain.WebKeyState
	Algorithm string
	PublicKey string
}

func NewWebKeyWriteModel(instanceID, keyID string) *WebKeyWriteModel {
	return &WebKeyWriteModel{WriteModel: eventstore.NewWriteModel(instanceID, keyID)}
}

func (wm *WebKeyWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeWebKey, ID: wm.AggregateID}
}

func (wm *WebKeyWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.WebKeyGeneratedType:
			var payload events.WebKeyGenerated
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.State = domain.WebKeyStateInitial
			wm.Algorithm = payload.Algorithm
			wm.PublicKey = payload.PublicKey
		case events.WebKeyActivatedType:
			wm.State = domain.WebKeyStateActive
		case events.WebKeyDeactivatedType:
			wm.State = domain.WebKeyStateInactive
		case events.WebKeyRemovedType:
			wm.State = domain.WebKeyStateRemoved
		}
	}
	wm.WriteModel.Reduce()
}

// CreatedWebKey is the result of GenerateWebKey.
type CreatedWebKey struct {
	KeyID     string
	PublicKey string
	Details   *Details
}

// GenerateWebKey creates an ES256 signing key pair. The private key is
// sealed before it is stored; new keys start in INITIAL and must be
// activated explicitly.
func (c *Commands) GenerateWebKey(ctx context.Context, instanceID string) (*CreatedWebKey, error) {
	keyID, err := c.nextID()
	if err != nil {
		return nil, err
	}
	privateJWK, publicJWK, err := generateES256(keyID)
	if err != nil {
		return nil, apperror.Internal(err, "WEBKEY-001", "unable to generate key pair")
	}
	sealed, err := c.sealer.Seal(ctx, privateJWK)
	if err != nil {
		return nil, apperror.Internal(err, "WEBKEY-002", "unable to seal private key")
	}

	pushed, err := c.exec(ctx, "web_key.generate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewWebKeyWriteModel(instanceID, keyID)
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.WebKeyGeneratedType,
			Payload: events.WebKeyGenerated{
				KeyID:      keyID,
				PrivateKey: sealed,
				PublicKey:  publicJWK,
				Algorithm:  "ES256",
			},
			ResourceOwner: instanceID,
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedWebKey{KeyID: keyID, PublicKey: publicJWK, Details: detailsFromEvents(pushed)}, nil
}

// webKeyRef is one key's state within the instance keyset.
type webKeyRef struct {
	State   domain.WebKeyState
	Version uint64
}

// loadWebKeys reduces all signing key aggregates of an instance. Keys are
// separate aggregates, so keeping at most one active needs the whole set.
func (c *Commands) loadWebKeys(ctx context.Context, instanceID string) (map[string]*webKeyRef, error) {
	stream, err := c.store.Query(ctx, eventstore.NewFilter(instanceID).
		Aggregate(eventstore.AggregateTypeWebKey))
	if err != nil {
		return nil, err
	}
	keys := make(map[string]*webKeyRef)
	for _, event := range stream {
		ref, ok := keys[event.Aggregate.ID]
		if !ok {
			ref = &webKeyRef{}
			keys[event.Aggregate.ID] = ref
		}
		ref.Version = event.AggregateVersion
		switch event.Type {
		case events.WebKeyGeneratedType:
			ref.State = domain.WebKeyStateInitial
		case events.WebKeyActivatedType:
			ref.State = domain.WebKeyStateActive
		case events.WebKeyDeactivatedType:
			ref.State = domain.WebKeyStateInactive
		case events.WebKeyRemovedType:
			ref.State = domain.WebKeyStateRemoved
		}
	}
	return keys, nil
}

func webKeyAggregate(keyID string) eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeWebKey, ID: keyID}
}

// ActivateWebKey puts a key into signing rotation, deactivating the
// previously active key in the same push.
func (c *Commands) ActivateWebKey(ctx context.Context, instanceID, keyID string) (*Details, error) {
	pushed, err := c.exec(ctx, "web_key.activate", func(ctx context.Context) ([]eventstore.Event, error) {
		keys, err := c.loadWebKeys(ctx, instanceID)
		if err != nil {
			return nil, err
		}
		target, ok := keys[keyID]
		if !ok || target.State == domain.WebKeyStateRemoved {
			return nil, apperror.NotFound(nil, "WEBKEY-003", "web key not found")
		}
		if target.State == domain.WebKeyStateActive {
			return nil, apperror.FailedPrecondition(nil, "WEBKEY-004", "web key is already active")
		}

		commands := make([]eventstore.Command, 0, 2)
		for id, key := range keys {
			if id == keyID || key.State != domain.WebKeyStateActive {
				continue
			}
			version := key.Version
			commands = append(commands, eventstore.Command{
				Aggregate:       webKeyAggregate(id),
				Type:            events.WebKeyDeactivatedType,
				ResourceOwner:   instanceID,
				ExpectedVersion: &version,
			})
		}
		version := target.Version
		commands = append(commands, eventstore.Command{
			Aggregate:       webKeyAggregate(keyID),
			Type:            events.WebKeyActivatedType,
			ResourceOwner:   instanceID,
			ExpectedVersion: &version,
		})
		return c.push(ctx, instanceID, commands...)
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// DeactivateWebKey takes an active key out of rotation.
func (c *Commands) DeactivateWebKey(ctx context.Context, instanceID, keyID string) (*Details, error) {
	pushed, err := c.exec(ctx, "web_key.deactivate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadWebKey(ctx, instanceID, keyID)
		if err != nil {
			return nil, err
		}
		if wm.State != domain.WebKeyStateActive {
			return nil, apperror.FailedPrecondition(nil, "WEBKEY-005", "web key is not active")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.WebKeyDeactivatedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveWebKey removes a key. Active keys must be deactivated first.
func (c *Commands) RemoveWebKey(ctx context.Context, instanceID, keyID string) (*Details, error) {
	pushed, err := c.exec(ctx, "web_key.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadWebKey(ctx, instanceID, keyID)
		if err != nil {
			return nil, err
		}
		if wm.State == domain.WebKeyStateActive {
			return nil, apperror.FailedPrecondition(nil, "WEBKEY-006", "active web key must not be removed")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.WebKeyRemovedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

func (c *Commands) loadWebKey(ctx context.Context, instanceID, keyID string) (*WebKeyWriteModel, error) {
	wm := NewWebKeyWriteModel(instanceID, keyID)
	if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
		return nil, err
	}
	if wm.State == domain.WebKeyStateUnspecified || wm.State == domain.WebKeyStateRemoved {
		return nil, apperror.NotFound(nil, "WEBKEY-003", "web key not found")
	}
	return wm, nil
}

// generateES256 returns the private key as PKCS#8 DER (base64) and the
// public key as a JWK document.
func generateES256(keyID string) (privateKey, publicJWK string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", err
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", "", err
	}

	jwk := map[string]string{
		"kty": "EC",
		"crv": "P-256",
		"alg": "ES256",
		"use": "sig",
		"kid": keyID,
		"x":   base64.RawURLEncoding.EncodeToString(key.PublicKey.X.FillBytes(make([]byte, 32))),
		"y":   base64.RawURLEncoding.EncodeToString(key.PublicKey.Y.FillBytes(make([]byte, 32))),
	}
	doc, err := json.Marshal(jwk)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(der), string(doc), nil
}
