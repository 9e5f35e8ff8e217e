// Package command implements the write side: every mutation is expressed as
// a command that validates its input, loads a write model by replaying the
// aggregate's events, decides, and pushes new events to the store.
package command

import (
	"context"
	"errors"
	"time"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/crypto"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/domainverify"
	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/idgen"
	"github.com/auriga-id/auriga/pkg/notification"
	"github.com/auriga-id/auriga/pkg/observability"
	"github.com/auriga-id/auriga/pkg/password"
	"github.com/auriga-id/auriga/pkg/phone"
	"github.com/auriga-id/auriga/pkg/runner"
)

const (
	// maxPushAttempts bounds concurrency-conflict retries. After the last
	// attempt the conflict surfaces as Aborted.
	maxPushAttempts = 3
	retryBackoff    = 50 * time.Millisecond

	// defaultCodeExpiry is the lifetime of email/phone/OTP verification
	// codes.
	defaultCodeExpiry = 1 * time.Hour
	// defaultDomainTokenExpiry is the lifetime of domain ownership tokens.
	defaultDomainTokenExpiry = 24 * time.Hour
)

// TOTPVerifier checks a TOTP code against a seed. The ceremony and code
// generation live outside the core.
type TOTPVerifier interface {
	Verify(secret, code string) bool
}

// TOTPVerifierFunc adapts a function to TOTPVerifier.
type TOTPVerifierFunc func(secret, code string) bool

func (f TOTPVerifierFunc) Verify(secret, code string) bool { return f(secret, code) }

// rejectTOTP is the default when no verifier is wired.
type rejectTOTP struct{}

func (rejectTOTP) Verify(string, string) bool { return false }

// Commands is the command engine. Safe for concurrent use; per-aggregate
// serialization comes from the event store's version check, not from locks.
type Commands struct {
	store    eventstore.Store
	idgen    idgen.Generator
	hasher   password.Hasher
	phones   phone.Normalizer
	probe    domainverify.Probe
	codes    crypto.CodeGenerator
	sealer   crypto.Sealer
	totp     TOTPVerifier
	notifier notification.Notifier
	metrics  *observability.Metrics
	logger   runner.Logger
	now      func() time.Time

	defaultRegion     string
	codeExpiry        time.Duration
	domainTokenExpiry time.Duration
	passwordPolicy    domain.PasswordComplexityPolicy
	lockoutPolicy     domain.PasswordLockoutPolicy
}

// Option configures the command engine.
type Option func(*Commands)

// WithIDGenerator replaces the ID generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(c *Commands) { c.idgen = g }
}

// WithHasher replaces the password hasher.
func WithHasher(h password.Hasher) Option {
	return func(c *Commands) { c.hasher = h }
}

// WithPhoneNormalizer replaces the phone normalizer.
func WithPhoneNormalizer(n phone.Normalizer) Option {
	return func(c *Commands) { c.phones = n }
}

// WithDomainProbe replaces the domain ownership probe.
func WithDomainProbe(p domainverify.Probe) Option {
	return func(c *Commands) { c.probe = p }
}

// WithCodeGenerator replaces the verification code generator.
func WithCodeGenerator(g crypto.CodeGenerator) Option {
	return func(c *Commands) { c.codes = g }
}

// WithSealer wires secret sealing for provider credentials stored in
// events.
func WithSealer(s crypto.Sealer) Option {
	return func(c *Commands) { c.sealer = s }
}

// WithTOTPVerifier wires the TOTP check.
func WithTOTPVerifier(v TOTPVerifier) Option {
	return func(c *Commands) { c.totp = v }
}

// WithNotifier wires outbound email/SMS delivery.
func WithNotifier(n notification.Notifier) Option {
	return func(c *Commands) { c.notifier = n }
}

// WithMetrics wires the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Commands) { c.metrics = m }
}

// WithLogger replaces the logger.
func WithLogger(l runner.Logger) Option {
	return func(c *Commands) { c.logger = l }
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Commands) { c.now = now }
}

// WithDefaultRegion sets the region for phone numbers without a country
// prefix.
func WithDefaultRegion(region string) Option {
	return func(c *Commands) { c.defaultRegion = region }
}

// WithCodeExpiry sets the verification code lifetime.
func WithCodeExpiry(d time.Duration) Option {
	return func(c *Commands) { c.codeExpiry = d }
}

// WithPasswordComplexity sets the default complexity policy applied when an
// org has none configured.
func WithPasswordComplexity(p domain.PasswordComplexityPolicy) Option {
	return func(c *Commands) { c.passwordPolicy = p }
}

// WithPasswordLockout sets the default lockout policy.
func WithPasswordLockout(p domain.PasswordLockoutPolicy) Option {
	return func(c *Commands) { c.lockoutPolicy = p }
}

// New creates the command engine on top of a store.
func New(store eventstore.Store, opts ...Option) *Commands {
	c := &Commands{
		store:             store,
		idgen:             idgen.New(),
		hasher:            password.NewHasher(),
		phones:            phone.New(),
		probe:             domainverify.New(),
		codes:             crypto.NewCodes(),
		sealer:            crypto.PlaintextSealer{},
		totp:              rejectTOTP{},
		notifier:          notification.Discard{},
		logger:            runner.NewNoopLogger(),
		now:               time.Now,
		defaultRegion:     phone.DefaultRegion,
		codeExpiry:        defaultCodeExpiry,
		domainTokenExpiry: defaultDomainTokenExpiry,
		passwordPolicy: domain.PasswordComplexityPolicy{
			MinLength:    8,
			HasLowercase: true,
			HasUppercase: true,
			HasNumber:    true,
		},
		lockoutPolicy: domain.PasswordLockoutPolicy{MaxPasswordAttempts: 10, MaxOTPAttempts: 10},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type editorKey struct{}

// WithEditor returns a context carrying the acting user. Commands record it
// as editor_user on every emitted event.
func WithEditor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, editorKey{}, userID)
}

func editorFrom(ctx context.Context) string {
	editor, _ := ctx.Value(editorKey{}).(string)
	return editor
}

// Details reports where a command landed in the log.
type Details struct {
	// Sequence is the aggregate version after the command.
	Sequence uint64
	// Position is the log position of the last emitted event; unchanged on
	// a no-op.
	Position      eventstore.Position
	ResourceOwner string
	CreationDate  time.Time
}

func detailsFromEvents(events []eventstore.Event) *Details {
	if len(events) == 0 {
		return &Details{}
	}
	last := events[len(events)-1]
	return &Details{
		Sequence:      last.AggregateVersion,
		Position:      last.Position,
		ResourceOwner: last.ResourceOwner,
		CreationDate:  last.CreatedAt,
	}
}

func detailsFromWriteModel(wm *eventstore.WriteModel) *Details {
	return &Details{
		Sequence:      wm.ProcessedVersion,
		Position:      wm.ProcessedPosition,
		ResourceOwner: wm.ResourceOwner,
	}
}

// exec runs the whole command (load, decide, push) and retries it on
// concurrency conflicts with exponential backoff. fn returning no events and
// no error is the idempotent no-op path.
func (c *Commands) exec(ctx context.Context, name string, fn func(ctx context.Context) ([]eventstore.Event, error)) (events []eventstore.Event, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordCommand(ctx, name, time.Since(start), err)
	}()

	for attempt := 0; attempt < maxPushAttempts; attempt++ {
		events, err = fn(ctx)
		if err == nil {
			return events, nil
		}
		if !errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return nil, err
		}
		if attempt == maxPushAttempts-1 {
			break
		}
		c.metrics.RecordRetry(ctx, name)
		c.logger.Debug("command conflicted, retrying", "command", name, "attempt", attempt+1)

		backoff := retryBackoff << attempt
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, apperror.Aborted(err, "COMMAND-001", "too many concurrent modifications")
}

// reducer is what every write model implements on top of
// eventstore.WriteModel.
type reducer interface {
	AppendEvents(...eventstore.Event)
	Reduce()
}

// load replays an aggregate's full stream into the write model. Reducers
// ignore event types they do not know, so the model's processed version is
// the aggregate's current version.
func (c *Commands) load(ctx context.Context, instanceID string, aggregate eventstore.Aggregate, model reducer) error {
	events, err := c.store.Query(ctx, eventstore.NewFilter(instanceID).Aggregate(aggregate.Type, aggregate.ID))
	if err != nil {
		return err
	}
	model.AppendEvents(events...)
	model.Reduce()
	return nil
}

// push appends commands stamping the editor from ctx.
func (c *Commands) push(ctx context.Context, instanceID string, commands ...eventstore.Command) ([]eventstore.Event, error) {
	editor := editorFrom(ctx)
	for i := range commands {
		if commands[i].EditorUser == "" {
			commands[i].EditorUser = editor
		}
		if commands[i].InstanceID == "" {
			commands[i].InstanceID = instanceID
		}
	}
	return c.store.Push(ctx, instanceID, commands...)
}

func (c *Commands) nextID() (string, error) {
	id, err := c.idgen.NextID()
	if err != nil {
		return "", apperror.Internal(err, "COMMAND-002", "unable to generate id")
	}
	return id, nil
}

// stringChanged reports whether an optional field is set to a new value.
func stringChanged(current string, candidate *string) bool {
	return candidate != nil && *candidate != current
}

func boolChanged(current bool, candidate *bool) bool {
	return candidate != nil && *candidate != current
}

// sameStringSet compares two role/scope lists ignoring order.
func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, s := range a {
		set[s]++
	}
	for _, s := range b {
		if set[s] == 0 {
			return false
		}
		set[s]--
	}
	return true
}
