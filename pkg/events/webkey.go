package events

import "github.com/auriga-id/auriga/pkg/eventstore"

// Web key aggregate events. One aggregate per key.
const (
	WebKeyGeneratedType   eventstore.EventType = "web_key.generated"
	WebKeyActivatedType   eventstore.EventType = "web_key.activated"
	WebKeyDeactivatedType eventstore.EventType = "web_key.deactivated"
	WebKeyRemovedType     eventstore.EventType = "web_key.removed"
)

type WebKeyGenerated struct {
	KeyID string `json:"keyId"`
	// PrivateKey is sealed by the crypto keeper; PublicKey is plain JWK.
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
	Algorithm  string `json:"algorithm"`
}
