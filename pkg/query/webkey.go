package query

import (
	"context"
	"database/sql"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// WebKey is one row of web_keys_projection.
type WebKey struct {
	ID        string
	Algorithm string
	PublicKey string
	State     string
}

// ActiveWebKey returns the instance's signing key in rotation.
func (q *Queries) ActiveWebKey(ctx context.Context, instanceID string) (*WebKey, error) {
	key := &WebKey{}
	err := q.db.QueryRowContext(ctx, `
		SELECT id, algorithm, public_key, state
		FROM web_keys_projection
		WHERE instance_id = ? AND state = 'active'`,
		instanceID,
	).Scan(&key.ID, &key.Algorithm, &key.PublicKey, &key.State)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-WEBKEY-001", "no active web key")
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// WebKeys lists every key of an instance, active or not. Verifiers need
// the full set to validate tokens signed by rotated-out keys.
func (q *Queries) WebKeys(ctx context.Context, instanceID string) ([]WebKey, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, algorithm, public_key, state
		FROM web_keys_projection
		WHERE instance_id = ?
		ORDER BY id`,
		instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []WebKey
	for rows.Next() {
		var key WebKey
		if err := rows.Scan(&key.ID, &key.Algorithm, &key.PublicKey, &key.State); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
