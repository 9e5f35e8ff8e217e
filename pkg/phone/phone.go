// Package phone normalizes phone numbers to E.164.
package phone

import (
	"github.com/nyaruka/phonenumbers"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// DefaultRegion is used when a number has no country prefix and the caller
// supplies no region.
const DefaultRegion = "CH"

// Normalizer is the port consumed by the command engine.
type Normalizer interface {
	Normalize(number, defaultRegion string) (string, error)
}

// E164 implements Normalizer with libphonenumber.
type E164 struct{}

// New creates the normalizer.
func New() E164 { return E164{} }

// Normalize parses number and returns its E.164 form. Normalization is
// idempotent: feeding an E.164 number back yields the same string.
func (E164) Normalize(number, defaultRegion string) (string, error) {
	if number == "" {
		return "", apperror.InvalidArgument(nil, "PHONE-Zt0NV", "phone number must not be empty")
	}
	if defaultRegion == "" {
		defaultRegion = DefaultRegion
	}
	parsed, err := phonenumbers.Parse(number, defaultRegion)
	if err != nil {
		return "", apperror.InvalidArgument(err, "PHONE-so0wa", "phone number is not parseable")
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", apperror.InvalidArgument(nil, "PHONE-so0wa", "phone number is invalid")
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}
