package domain

import (
	"regexp"
	"strings"

	"github.com/asaskevich/govalidator"
	"golang.org/x/text/language"

	"github.com/auriga-id/auriga/pkg/apperror"
)

const (
	// MaxNameLength bounds org names, usernames and display names.
	MaxNameLength = 200
)

var (
	roleKeyRegexp  = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	domainRegexp   = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)
	hexColorRegexp = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	// Verification tokens for domain ownership.
	verifyTokenRegexp = regexp.MustCompile(`^[A-Za-z0-9]{16,64}$`)
	otpCodeRegexp     = regexp.MustCompile(`^[0-9]{6}$`)
)

// CheckOrgName validates an organization name.
func CheckOrgName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperror.InvalidArgument(nil, "ORG-001", "org name must not be empty")
	}
	if len(name) > MaxNameLength {
		return apperror.InvalidArgument(nil, "ORG-002", "org name must be at most 200 characters")
	}
	return nil
}

// CheckUsername validates a username.
func CheckUsername(username string) error {
	if username = strings.TrimSpace(username); username == "" {
		return apperror.InvalidArgument(nil, "USER-001", "username must not be empty")
	}
	if len(username) > MaxNameLength {
		return apperror.InvalidArgument(nil, "USER-002", "username must be at most 200 characters")
	}
	return nil
}

// CheckEmail validates an email address.
func CheckEmail(email string) error {
	if email == "" {
		return apperror.InvalidArgument(nil, "USER-EMAIL-001", "email must not be empty")
	}
	if !govalidator.IsEmail(email) {
		return apperror.InvalidArgument(nil, "USER-EMAIL-002", "email is malformed")
	}
	return nil
}

// NormalizeEmail lowercases the address; normalization is idempotent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckDomainName validates a DNS domain name (lowercase).
func CheckDomainName(name string) error {
	if name == "" {
		return apperror.InvalidArgument(nil, "ORG-DOMAIN-001", "domain must not be empty")
	}
	if !domainRegexp.MatchString(name) {
		return apperror.InvalidArgument(nil, "ORG-DOMAIN-002", "domain is malformed")
	}
	return nil
}

// NormalizeDomainName lowercases and trims the domain; idempotent.
func NormalizeDomainName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CheckRoleKey validates a project role key.
func CheckRoleKey(key string) error {
	if !roleKeyRegexp.MatchString(key) {
		return apperror.InvalidArgument(nil, "PROJECT-ROLE-001", "role key must match ^[A-Z][A-Z0-9_]*$")
	}
	return nil
}

// CheckHexColor validates a #rgb / #rrggbb color used by label policies.
func CheckHexColor(color string) error {
	if color == "" {
		return nil
	}
	if !hexColorRegexp.MatchString(color) {
		return apperror.InvalidArgument(nil, "POLICY-LABEL-001", "color must be a hex color")
	}
	return nil
}

// CheckURL validates an absolute URL.
func CheckURL(raw string) error {
	if raw == "" || !govalidator.IsURL(raw) {
		return apperror.InvalidArgument(nil, "URL-001", "url is malformed")
	}
	return nil
}

// CheckLanguage validates a BCP 47 language tag.
func CheckLanguage(tag string) error {
	if tag == "" {
		return nil
	}
	if _, err := language.Parse(tag); err != nil {
		return apperror.InvalidArgument(err, "LANGUAGE-001", "language tag is malformed")
	}
	return nil
}

// IsVerificationToken reports whether s is a valid domain verification
// token (16-64 alphanumerics).
func IsVerificationToken(s string) bool {
	return verifyTokenRegexp.MatchString(s)
}

// IsOTPCode reports whether s is a 6-digit decimal OTP code.
func IsOTPCode(s string) bool {
	return otpCodeRegexp.MatchString(s)
}
