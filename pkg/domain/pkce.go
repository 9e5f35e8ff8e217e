package domain

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// OIDCCodeChallengeMethod is the PKCE transformation.
type OIDCCodeChallengeMethod string

const (
	CodeChallengeMethodPlain OIDCCodeChallengeMethod = "plain"
	CodeChallengeMethodS256  OIDCCodeChallengeMethod = "S256"
)

// OIDCCodeChallenge is the PKCE pair attached to an OIDC session.
type OIDCCodeChallenge struct {
	Challenge string                  `json:"challenge,omitempty"`
	Method    OIDCCodeChallengeMethod `json:"method,omitempty"`
}

// CheckCodeChallenge rejects half-specified PKCE pairs: a challenge requires
// a method and vice versa.
func CheckCodeChallenge(challenge string, method OIDCCodeChallengeMethod) error {
	if challenge != "" && method == "" {
		return apperror.InvalidArgument(nil, "SESSION-PKCE-001", "codeChallengeMethod required with codeChallenge")
	}
	if challenge == "" && method != "" {
		return apperror.InvalidArgument(nil, "SESSION-PKCE-002", "codeChallenge required with codeChallengeMethod")
	}
	if method != "" && method != CodeChallengeMethodPlain && method != CodeChallengeMethodS256 {
		return apperror.InvalidArgument(nil, "SESSION-PKCE-003", "codeChallengeMethod must be plain or S256")
	}
	return nil
}

// VerifyCodeChallenge checks a code verifier against the stored challenge.
func VerifyCodeChallenge(challenge OIDCCodeChallenge, verifier string) bool {
	switch challenge.Method {
	case CodeChallengeMethodPlain:
		return challenge.Challenge == verifier
	case CodeChallengeMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		return challenge.Challenge == base64.RawURLEncoding.EncodeToString(sum[:])
	default:
		return false
	}
}
