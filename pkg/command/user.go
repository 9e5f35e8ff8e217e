package command

import (
	"context"
	"strings"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/password"
)

// AddHuman is the input of AddHuman.
type AddHuman struct {
	Username    string
	FirstName   string
	LastName    string
	DisplayName string
	Language    string
	Email       string
	Phone       string
	// Password is optional; without it the user starts in the initial
	// state and must set one before becoming active.
	Password string
}

// CreatedUser is the result of AddHuman / AddMachine.
type CreatedUser struct {
	ID      string
	Details *Details
}

// AddHuman creates a human user owned by an org. The username is claimed
// per org.
func (c *Commands) AddHuman(ctx context.Context, instanceID, orgID string, human AddHuman) (*CreatedUser, error) {
	human.Username = strings.TrimSpace(human.Username)
	if err := domain.CheckUsername(human.Username); err != nil {
		return nil, err
	}
	if strings.TrimSpace(human.FirstName) == "" {
		return nil, apperror.InvalidArgument(nil, "USER-HUMAN-001", "first name must not be empty")
	}
	if strings.TrimSpace(human.LastName) == "" {
		return nil, apperror.InvalidArgument(nil, "USER-HUMAN-002", "last name must not be empty")
	}
	human.Email = domain.NormalizeEmail(human.Email)
	if err := domain.CheckEmail(human.Email); err != nil {
		return nil, err
	}
	if err := domain.CheckLanguage(human.Language); err != nil {
		return nil, err
	}
	if human.Phone != "" {
		normalized, err := c.phones.Normalize(human.Phone, c.defaultRegion)
		if err != nil {
			return nil, err
		}
		human.Phone = normalized
	}

	var encodedHash string
	if human.Password != "" {
		hash, err := c.hashPassword(human.Password)
		if err != nil {
			return nil, err
		}
		encodedHash = hash
	}

	userID, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "user.human.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewUserWriteModel(instanceID, userID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if wm.State != domain.UserStateUnspecified {
			return nil, apperror.AlreadyExists(nil, "USER-004", "user already exists")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.HumanAddedType,
			Payload: events.HumanAdded{
				Username:    human.Username,
				FirstName:   human.FirstName,
				LastName:    human.LastName,
				DisplayName: human.DisplayName,
				Language:    human.Language,
				Email:       human.Email,
				Phone:       human.Phone,
				EncodedHash: encodedHash,
			},
			ResourceOwner:   orgID,
			ExpectedVersion: wm.ExpectedVersion(),
			UniqueConstraints: []*eventstore.UniqueConstraint{
				eventstore.NewAddUniqueConstraint(uniqueTypeUsername, usernameUniqueField(orgID, human.Username), "USER-003"),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedUser{ID: userID, Details: detailsFromEvents(pushed)}, nil
}

// AddMachine is the input of AddMachine.
type AddMachine struct {
	Username    string
	Name        string
	Description string
}

// AddMachine creates a machine user owned by an org.
func (c *Commands) AddMachine(ctx context.Context, instanceID, orgID string, machine AddMachine) (*CreatedUser, error) {
	machine.Username = strings.TrimSpace(machine.Username)
	if err := domain.CheckUsername(machine.Username); err != nil {
		return nil, err
	}
	if strings.TrimSpace(machine.Name) == "" {
		return nil, apperror.InvalidArgument(nil, "USER-MACHINE-001", "machine name must not be empty")
	}

	userID, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "user.machine.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewUserWriteModel(instanceID, userID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if wm.State != domain.UserStateUnspecified {
			return nil, apperror.AlreadyExists(nil, "USER-004", "user already exists")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.MachineAddedType,
			Payload: events.MachineAdded{
				Username:    machine.Username,
				Name:        machine.Name,
				Description: machine.Description,
			},
			ResourceOwner:   orgID,
			ExpectedVersion: wm.ExpectedVersion(),
			UniqueConstraints: []*eventstore.UniqueConstraint{
				eventstore.NewAddUniqueConstraint(uniqueTypeUsername, usernameUniqueField(orgID, machine.Username), "USER-003"),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedUser{ID: userID, Details: detailsFromEvents(pushed)}, nil
}

// ChangeMachine updates name or description of a machine user. All fields
// equal is a no-op.
func (c *Commands) ChangeMachine(ctx context.Context, instanceID, userID string, name, description *string) (*Details, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, apperror.InvalidArgument(nil, "USER-MACHINE-001", "machine name must not be empty")
	}

	var details *Details
	_, err := c.exec(ctx, "user.machine.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingUser(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.Type != domain.UserTypeMachine {
			return nil, apperror.InvalidArgument(nil, "USER-MACHINE-002", "user is not a machine user")
		}
		payload := events.MachineChanged{}
		if stringChanged(wm.MachineName, name) {
			payload.Name = name
		}
		if stringChanged(wm.MachineDescription, description) {
			payload.Description = description
		}
		if payload.Name == nil && payload.Description == nil {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.MachineChangedType,
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

// ChangeUsername renames a user and swaps the per-org username claim.
func (c *Commands) ChangeUsername(ctx context.Context, instanceID, userID, username string) (*Details, error) {
	username = strings.TrimSpace(username)
	if err := domain.CheckUsername(username); err != nil {
		return nil, err
	}

	var details *Details
	_, err := c.exec(ctx, "user.username.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingUser(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.Username == username {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.UsernameChangedType,
			Payload:         events.UsernameChanged{OldUsername: wm.Username, Username: username},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
			UniqueConstraints: []*eventstore.UniqueConstraint{
				eventstore.NewRemoveUniqueConstraint(uniqueTypeUsername, usernameUniqueField(wm.ResourceOwner, wm.Username)),
				eventstore.NewAddUniqueConstraint(uniqueTypeUsername, usernameUniqueField(wm.ResourceOwner, username), "USER-003"),
			},
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

// ChangeHumanProfile is the input of ChangeHumanProfile; nil fields keep the
// current value.
type ChangeHumanProfile struct {
	FirstName   *string
	LastName    *string
	DisplayName *string
	Language    *string
}

// ChangeHumanProfile updates the profile of a human user. All fields equal
// is a no-op.
func (c *Commands) ChangeHumanProfile(ctx context.Context, instanceID, userID string, profile ChangeHumanProfile) (*Details, error) {
	if profile.FirstName != nil && strings.TrimSpace(*profile.FirstName) == "" {
		return nil, apperror.InvalidArgument(nil, "USER-HUMAN-001", "first name must not be empty")
	}
	if profile.LastName != nil && strings.TrimSpace(*profile.LastName) == "" {
		return nil, apperror.InvalidArgument(nil, "USER-HUMAN-002", "last name must not be empty")
	}
	if profile.Language != nil {
		if err := domain.CheckLanguage(*profile.Language); err != nil {
			return nil, err
		}
	}

	var details *Details
	_, err := c.exec(ctx, "user.human.profile.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		payload := events.HumanProfileChanged{}
		if stringChanged(wm.FirstName, profile.FirstName) {
			payload.FirstName = profile.FirstName
		}
		if stringChanged(wm.LastName, profile.LastName) {
			payload.LastName = profile.LastName
		}
		if stringChanged(wm.DisplayName, profile.DisplayName) {
			payload.DisplayName = profile.DisplayName
		}
		if stringChanged(wm.Language, profile.Language) {
			payload.Language = profile.Language
		}
		if payload == (events.HumanProfileChanged{}) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanProfileChangedType,
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

// LockUser locks a user out. Locked users fail every authentication until
// unlocked.
func (c *Commands) LockUser(ctx context.Context, instanceID, userID string) (*Details, error) {
	return c.changeUserState(ctx, "user.lock", instanceID, userID, events.UserLockedType,
		func(state domain.UserState) error {
			if state == domain.UserStateLocked {
				return apperror.FailedPrecondition(nil, "USER-005", "user is already locked")
			}
			return nil
		})
}

// UnlockUser lifts a lock.
func (c *Commands) UnlockUser(ctx context.Context, instanceID, userID string) (*Details, error) {
	return c.changeUserState(ctx, "user.unlock", instanceID, userID, events.UserUnlockedType,
		func(state domain.UserState) error {
			if state != domain.UserStateLocked {
				return apperror.FailedPrecondition(nil, "USER-006", "user is not locked")
			}
			return nil
		})
}

// DeactivateUser suspends a user.
func (c *Commands) DeactivateUser(ctx context.Context, instanceID, userID string) (*Details, error) {
	return c.changeUserState(ctx, "user.deactivate", instanceID, userID, events.UserDeactivatedType,
		func(state domain.UserState) error {
			if state == domain.UserStateInactive {
				return apperror.FailedPrecondition(nil, "USER-007", "user is already inactive")
			}
			return nil
		})
}

// ReactivateUser resumes a suspended user.
func (c *Commands) ReactivateUser(ctx context.Context, instanceID, userID string) (*Details, error) {
	return c.changeUserState(ctx, "user.reactivate", instanceID, userID, events.UserReactivatedType,
		func(state domain.UserState) error {
			if state != domain.UserStateInactive {
				return apperror.FailedPrecondition(nil, "USER-008", "user is not inactive")
			}
			return nil
		})
}

func (c *Commands) changeUserState(ctx context.Context, name, instanceID, userID string, eventType eventstore.EventType, check func(domain.UserState) error) (*Details, error) {
	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingUser(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if err := check(wm.State); err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            eventType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveUser deletes a user and releases the username claim.
func (c *Commands) RemoveUser(ctx context.Context, instanceID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingUser(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.UserRemovedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
			UniqueConstraints: []*eventstore.UniqueConstraint{
				eventstore.NewRemoveUniqueConstraint(uniqueTypeUsername, usernameUniqueField(wm.ResourceOwner, wm.Username)),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// TerminateAllUserSessions logs the user out everywhere. The sessions
// projection fans the single event out over the user's session rows.
func (c *Commands) TerminateAllUserSessions(ctx context.Context, instanceID, userID, reason string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.sessions.terminate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingUser(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.UserSessionsTerminatedType,
			Payload:         events.UserSessionsTerminated{Reason: reason},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// loadExistingUser loads the user write model and fails if the user does not
// exist.
func (c *Commands) loadExistingUser(ctx context.Context, instanceID, userID string) (*UserWriteModel, error) {
	wm := NewUserWriteModel(instanceID, userID)
	if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
		return nil, err
	}
	if !wm.State.Exists() {
		return nil, apperror.NotFound(nil, "USER-009", "user not found")
	}
	return wm, nil
}

// loadExistingHuman additionally requires the human variant.
func (c *Commands) loadExistingHuman(ctx context.Context, instanceID, userID string) (*UserWriteModel, error) {
	wm, err := c.loadExistingUser(ctx, instanceID, userID)
	if err != nil {
		return nil, err
	}
	if wm.Type != domain.UserTypeHuman {
		return nil, apperror.InvalidArgument(nil, "USER-010", "user is not a human user")
	}
	return wm, nil
}

// hashPassword enforces the complexity policy and the entropy floor, then
// hashes.
func (c *Commands) hashPassword(plain string) (string, error) {
	if code, ok := c.passwordPolicy.Check(plain); !ok {
		return "", apperror.InvalidArgument(nil, code, "password does not satisfy the complexity policy")
	}
	if err := password.ValidateStrength(plain); err != nil {
		return "", apperror.InvalidArgument(err, "PASSWORD-006", "password is too weak")
	}
	hash, err := c.hasher.Hash(plain)
	if err != nil {
		return "", apperror.InvalidArgument(err, "PASSWORD-007", "unable to hash password")
	}
	return hash, nil
}
