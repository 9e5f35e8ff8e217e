// Package password hashes and verifies user passwords with bcrypt and
// checks password strength.
package password

import (
	"errors"

	passwordvalidator "github.com/wagslane/go-password-validator"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinCost     = bcrypt.MinCost
	MaxCost     = bcrypt.MaxCost
	DefaultCost = 12

	// MaxPasswordLength is bcrypt's input limit.
	MaxPasswordLength = 72

	// MinEntropyBits is the strength floor applied on top of the
	// complexity policy.
	MinEntropyBits = 50
)

// Hasher is the port consumed by the command engine.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) error
}

// Bcrypt implements Hasher.
type Bcrypt struct {
	cost int
}

// Option configures the hasher.
type Option func(*Bcrypt)

// WithCost sets the bcrypt cost; out-of-range values keep the default.
func WithCost(cost int) Option {
	return func(b *Bcrypt) {
		if cost >= MinCost && cost <= MaxCost {
			b.cost = cost
		}
	}
}

// NewHasher creates a bcrypt hasher.
func NewHasher(opts ...Option) *Bcrypt {
	b := &Bcrypt{cost: DefaultCost}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Hash returns the encoded bcrypt hash of password.
func (b *Bcrypt) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if len(password) > MaxPasswordLength {
		return "", errors.New("password exceeds 72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares an encoded hash with a candidate password. The underlying
// comparison is constant time.
func (b *Bcrypt) Verify(encoded, password string) error {
	if encoded == "" || password == "" {
		return errors.New("password and hash must not be empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
}

// ValidateStrength enforces the entropy floor. Complexity-class rules are
// the policy's job; this catches long-but-trivial passwords.
func ValidateStrength(password string) error {
	return passwordvalidator.Validate(password, MinEntropyBits)
}
