package domain

import "unicode"

// PasswordComplexityPolicy is the pure rule set for password validation.
type PasswordComplexityPolicy struct {
	MinLength    uint64 `json:"minLength"`
	HasLowercase bool   `json:"hasLowercase"`
	HasUppercase bool   `json:"hasUppercase"`
	HasNumber    bool   `json:"hasNumber"`
	HasSymbol    bool   `json:"hasSymbol"`
}

// Check validates a candidate password against the policy. It returns the
// first violated requirement as a domain code.
func (p PasswordComplexityPolicy) Check(password string) (code string, ok bool) {
	if uint64(len(password)) < p.MinLength {
		return "PASSWORD-001", false
	}
	var lower, upper, number, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			number = true
		default:
			symbol = true
		}
	}
	switch {
	case p.HasLowercase && !lower:
		return "PASSWORD-002", false
	case p.HasUppercase && !upper:
		return "PASSWORD-003", false
	case p.HasNumber && !number:
		return "PASSWORD-004", false
	case p.HasSymbol && !symbol:
		return "PASSWORD-005", false
	}
	return "", true
}

// PasswordLockoutPolicy caps failed attempts. Zero means unlimited.
type PasswordLockoutPolicy struct {
	MaxPasswordAttempts uint64 `json:"maxPasswordAttempts"`
	MaxOTPAttempts      uint64 `json:"maxOtpAttempts"`
}

// ShouldLock reports whether failedAttempts reached the password cap.
func (p PasswordLockoutPolicy) ShouldLock(failedAttempts uint64) bool {
	return p.MaxPasswordAttempts > 0 && failedAttempts >= p.MaxPasswordAttempts
}

// PasswordAgePolicy expires passwords. Zero days disables expiry.
type PasswordAgePolicy struct {
	ExpireWarnDays uint64 `json:"expireWarnDays"`
	MaxAgeDays     uint64 `json:"maxAgeDays"`
}

// LoginPolicy configures the login flow.
type LoginPolicy struct {
	AllowUsernamePassword bool   `json:"allowUsernamePassword"`
	AllowRegister         bool   `json:"allowRegister"`
	AllowExternalIDP      bool   `json:"allowExternalIdp"`
	ForceMFA              bool   `json:"forceMfa"`
	DefaultLanguage       string `json:"defaultLanguage,omitempty"`
}

// LabelPolicy configures branding.
type LabelPolicy struct {
	PrimaryColor        string `json:"primaryColor,omitempty"`
	BackgroundColor     string `json:"backgroundColor,omitempty"`
	WarnColor           string `json:"warnColor,omitempty"`
	FontColor           string `json:"fontColor,omitempty"`
	HideLoginNameSuffix bool   `json:"hideLoginNameSuffix"`
	DisableWatermark    bool   `json:"disableWatermark"`
}

// PrivacyPolicy links legal documents.
type PrivacyPolicy struct {
	TOSLink        string `json:"tosLink,omitempty"`
	PrivacyLink    string `json:"privacyLink,omitempty"`
	HelpLink       string `json:"helpLink,omitempty"`
	SupportEmail   string `json:"supportEmail,omitempty"`
	DocsLink       string `json:"docsLink,omitempty"`
	CustomLink     string `json:"customLink,omitempty"`
	CustomLinkText string `json:"customLinkText,omitempty"`
}

// NotificationPolicy configures notification triggers.
type NotificationPolicy struct {
	PasswordChange bool `json:"passwordChange"`
}

// DomainPolicy configures login-name handling.
type DomainPolicy struct {
	UserLoginMustBeDomain                  bool `json:"userLoginMustBeDomain"`
	ValidateOrgDomains                     bool `json:"validateOrgDomains"`
	SMTPSenderAddressMatchesInstanceDomain bool `json:"smtpSenderAddressMatchesInstanceDomain"`
}

// MFAPolicy restricts second factor types.
type MFAPolicy struct {
	SecondFactors []AuthMethodType `json:"secondFactors,omitempty"`
	MultiFactors  []AuthMethodType `json:"multiFactors,omitempty"`
}
