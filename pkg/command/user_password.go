package command

import (
	"context"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// ChangeHumanPassword sets a new password. When oldPassword is non-empty it
// must match the current hash; an empty oldPassword is the administrative
// reset path.
func (c *Commands) ChangeHumanPassword(ctx context.Context, instanceID, userID, oldPassword, newPassword string, changeRequired bool) (*Details, error) {
	encodedHash, err := c.hashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "user.human.password.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if oldPassword != "" {
			if wm.PasswordHash == "" || c.hasher.Verify(wm.PasswordHash, oldPassword) != nil {
				return nil, apperror.InvalidArgument(nil, "USER-PASSWORD-002", "old password is invalid")
			}
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.HumanPasswordChangedType,
			Payload: events.HumanPasswordChanged{
				EncodedHash:    encodedHash,
				ChangeRequired: changeRequired,
			},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// CheckHumanPassword verifies a login password. The outcome is recorded as
// an event either way so projections can track failed attempts; when the
// lockout policy's cap is reached the user is locked in the same push.
func (c *Commands) CheckHumanPassword(ctx context.Context, instanceID, userID, candidate string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.password.check", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.State == domain.UserStateLocked {
			return nil, apperror.FailedPrecondition(nil, "USER-005", "user is locked")
		}
		if wm.PasswordHash == "" {
			return nil, apperror.FailedPrecondition(nil, "USER-PASSWORD-003", "user has no password set")
		}

		if c.hasher.Verify(wm.PasswordHash, candidate) != nil {
			commands := []eventstore.Command{{
				Aggregate:       wm.aggregate(),
				Type:            events.HumanPasswordCheckFailedType,
				ResourceOwner:   wm.ResourceOwner,
				ExpectedVersion: wm.ExpectedVersion(),
			}}
			if c.lockoutPolicy.ShouldLock(wm.PasswordCheckFailed + 1) {
				commands = append(commands, eventstore.Command{
					Aggregate:     wm.aggregate(),
					Type:          events.UserLockedType,
					ResourceOwner: wm.ResourceOwner,
				})
			}
			if _, pushErr := c.push(ctx, instanceID, commands...); pushErr != nil {
				return nil, pushErr
			}
			return nil, apperror.Unauthenticated(nil, "USER-PASSWORD-001", "password is invalid")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanPasswordCheckSucceededType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}
