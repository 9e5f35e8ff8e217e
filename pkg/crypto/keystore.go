package crypto

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"gocloud.dev/secrets"
	_ "gocloud.dev/secrets/localsecrets"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// EncryptionKey is a stored key. Unlike the event-sourced aggregates, keys
// are plain records: their lifecycle is add/get/list/remove.
type EncryptionKey struct {
	ID         string
	Identifier string
	Algorithm  string
	// Material is the decrypted key material.
	Material  []byte
	CreatedAt time.Time
}

// KeyStore persists encryption keys with the material sealed at rest.
type KeyStore struct {
	db     *sql.DB
	keeper *secrets.Keeper
	now    func() time.Time
}

// NewKeyStore opens the key store on db. keeperURL selects the sealing
// backend, e.g. "base64key://..." for a local key or a cloud KMS URL.
func NewKeyStore(ctx context.Context, db *sql.DB, keeperURL string) (*KeyStore, error) {
	keeper, err := secrets.OpenKeeper(ctx, keeperURL)
	if err != nil {
		return nil, fmt.Errorf("open secrets keeper: %w", err)
	}
	store := &KeyStore{db: db, keeper: keeper, now: time.Now}
	if err := store.migrate(ctx); err != nil {
		keeper.Close()
		return nil, err
	}
	return store, nil
}

func (s *KeyStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS encryption_keys (
			id TEXT PRIMARY KEY,
			identifier TEXT NOT NULL UNIQUE,
			algorithm TEXT NOT NULL,
			key_material TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create encryption_keys: %w", err)
	}
	return nil
}

// Add seals and stores a key. The identifier must be unique.
func (s *KeyStore) Add(ctx context.Context, key *EncryptionKey) error {
	if key.Identifier == "" {
		return apperror.InvalidArgument(nil, "KEY-001", "key identifier must not be empty")
	}
	if len(key.Material) == 0 {
		return apperror.InvalidArgument(nil, "KEY-002", "key material must not be empty")
	}

	sealed, err := s.keeper.Encrypt(ctx, key.Material)
	if err != nil {
		return apperror.Internal(err, "KEY-003", "unable to seal key material")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO encryption_keys (id, identifier, algorithm, key_material, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		key.ID, key.Identifier, key.Algorithm,
		base64.StdEncoding.EncodeToString(sealed), s.now().Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyExists(err, "KEY-004", "key identifier already exists")
		}
		return apperror.Unavailable(err, "KEY-005", "unable to store key")
	}
	return nil
}

// Get returns the key with the given identifier, unsealed.
func (s *KeyStore) Get(ctx context.Context, identifier string) (*EncryptionKey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, identifier, algorithm, key_material, created_at
		FROM encryption_keys WHERE identifier = ?`, identifier)
	key, err := s.scan(ctx, row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "KEY-006", "key not found")
	}
	return key, err
}

// List returns all keys, unsealed, ordered by identifier.
func (s *KeyStore) List(ctx context.Context) ([]*EncryptionKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identifier, algorithm, key_material, created_at
		FROM encryption_keys ORDER BY identifier`)
	if err != nil {
		return nil, apperror.Unavailable(err, "KEY-007", "unable to list keys")
	}
	defer rows.Close()

	var keys []*EncryptionKey
	for rows.Next() {
		key, err := s.scan(ctx, rows.Scan)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Remove deletes a key by identifier.
func (s *KeyStore) Remove(ctx context.Context, identifier string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM encryption_keys WHERE identifier = ?`, identifier)
	if err != nil {
		return apperror.Unavailable(err, "KEY-008", "unable to remove key")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound(nil, "KEY-006", "key not found")
	}
	return nil
}

// Close releases the keeper.
func (s *KeyStore) Close() error {
	return s.keeper.Close()
}

func (s *KeyStore) scan(ctx context.Context, scan func(dest ...any) error) (*EncryptionKey, error) {
	var (
		key       EncryptionKey
		sealed    string
		createdAt int64
	)
	if err := scan(&key.ID, &key.Identifier, &key.Algorithm, &sealed, &createdAt); err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, apperror.Internal(err, "KEY-009", "stored key material is corrupt")
	}
	material, err := s.keeper.Decrypt(ctx, raw)
	if err != nil {
		return nil, apperror.Internal(err, "KEY-010", "unable to unseal key material")
	}
	key.Material = material
	key.CreatedAt = time.Unix(createdAt, 0)
	return &key, nil
}

func isUniqueViolation(err error) bool {
	// modernc/sqlite reports constraint violations in the error text;
	// there is no exported errno for UNIQUE alone.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
