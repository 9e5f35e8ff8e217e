package crypto

import (
	"context"
	"encoding/base64"
	"fmt"

	"gocloud.dev/secrets"
)

// Sealer encrypts secret config values (SMTP passwords, provider tokens,
// IDP client secrets) before they are written into event payloads.
type Sealer interface {
	Seal(ctx context.Context, plaintext string) (string, error)
	Open(ctx context.Context, sealed string) (string, error)
}

// KeeperSealer seals with a gocloud.dev secrets keeper.
type KeeperSealer struct {
	keeper *secrets.Keeper
}

// NewKeeperSealer opens the keeper behind keeperURL, e.g. "base64key://..."
// or a cloud KMS URL.
func NewKeeperSealer(ctx context.Context, keeperURL string) (*KeeperSealer, error) {
	keeper, err := secrets.OpenKeeper(ctx, keeperURL)
	if err != nil {
		return nil, fmt.Errorf("open secrets keeper: %w", err)
	}
	return &KeeperSealer{keeper: keeper}, nil
}

func (s *KeeperSealer) Seal(ctx context.Context, plaintext string) (string, error) {
	sealed, err := s.keeper.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("seal secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *KeeperSealer) Open(ctx context.Context, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed secret: %w", err)
	}
	plaintext, err := s.keeper.Decrypt(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("open secret: %w", err)
	}
	return string(plaintext), nil
}

// Close releases the keeper.
func (s *KeeperSealer) Close() error { return s.keeper.Close() }

// PlaintextSealer passes values through unchanged. Tests and single-node
// setups without a keeper use it.
type PlaintextSealer struct{}

func (PlaintextSealer) Seal(_ context.Context, plaintext string) (string, error) { return plaintext, nil }

func (PlaintextSealer) Open(_ context.Context, sealed string) (string, error) { return sealed, nil }
