package store

import (
	"context"
	"database/sql"
	"fmt"

	"syncpair/internal/domain"
)

const keyColumns = `key_id, client_id, public_key, private_key, status, modified_at`

// AddKeys inserts new keys for their owners in one transaction.
func (s *SQLStore) AddKeys(ctx context.Context, keys []domain.EphemeralKey) error {
	if len(keys) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.stamp()
		for _, k := range keys {
			if err := s.upsertKey(ctx, tx, k, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) upsertKey(ctx context.Context, q querier, k domain.EphemeralKey, now int64) error {
	if k.Status == "" {
		k.Status = domain.KeyPublished
	}
	priv, err := s.vault.sealKey(k.Private, "key:"+string(k.ID))
	if err != nil {
		return err
	}
	// A key id belongs to one client for good, and a withdrawn key stays
	// withdrawn.
	res, err := q.ExecContext(ctx, `
INSERT INTO ephemeral_keys (`+keyColumns+`, deleted)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (key_id) DO UPDATE SET
	public_key = excluded.public_key,
	private_key = COALESCE(excluded.private_key, ephemeral_keys.private_key),
	status = CASE
		WHEN ephemeral_keys.deleted = 1 THEN ephemeral_keys.status
		WHEN ephemeral_keys.status = 'provisioned' THEN 'provisioned'
		ELSE excluded.status END,
	deleted = MAX(ephemeral_keys.deleted, excluded.deleted),
	modified_at = excluded.modified_at
WHERE ephemeral_keys.client_id = excluded.client_id`,
		string(k.ID), string(k.ClientID), k.Public.String(), priv, string(k.Status), now,
		boolInt(k.Status == domain.KeyDeleted),
	)
	if err != nil {
		return fmt.Errorf("save key %s: %w", k.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("save key %s: %w", k.ID, err)
	} else if n == 0 {
		return fmt.Errorf("key %s belongs to another client: %w", k.ID, domain.ErrIntegrity)
	}
	return nil
}

// LoadKey returns a live key by id.
func (s *SQLStore) LoadKey(ctx context.Context, id domain.KeyID) (domain.EphemeralKey, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM ephemeral_keys WHERE key_id = ? AND deleted = 0`, string(id))
	k, err := s.scanKey(row)
	if isNoRows(err) {
		return domain.EphemeralKey{}, false, nil
	}
	if err != nil {
		return domain.EphemeralKey{}, false, err
	}
	return k, true, nil
}

// ListKeys returns the live keys of owner, filtered by status unless status
// is empty.
func (s *SQLStore) ListKeys(ctx context.Context, owner domain.ClientID, status domain.KeyStatus) ([]domain.EphemeralKey, error) {
	return s.listKeys(ctx, s.db, owner, status)
}

func (s *SQLStore) listKeys(ctx context.Context, q querier, owner domain.ClientID, status domain.KeyStatus) ([]domain.EphemeralKey, error) {
	query := `SELECT ` + keyColumns + ` FROM ephemeral_keys WHERE client_id = ? AND deleted = 0`
	args := []any{string(owner)}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY modified_at, key_id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var out []domain.EphemeralKey
	for rows.Next() {
		k, err := s.scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// ProvisionKey marks a published key as consumed by a session.
func (s *SQLStore) ProvisionKey(ctx context.Context, id domain.KeyID) error {
	return s.provisionKey(ctx, s.db, id)
}

func (s *SQLStore) provisionKey(ctx context.Context, q querier, id domain.KeyID) error {
	res, err := q.ExecContext(ctx,
		`UPDATE ephemeral_keys SET status = ?, modified_at = ? WHERE key_id = ? AND status = ? AND deleted = 0`,
		string(domain.KeyProvisioned), s.stamp(), string(id), string(domain.KeyPublished))
	if err != nil {
		return fmt.Errorf("provision key %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var status string
	err = q.QueryRowContext(ctx, `SELECT status FROM ephemeral_keys WHERE key_id = ?`, string(id)).Scan(&status)
	if isNoRows(err) {
		return notFound("key", id)
	}
	if err != nil {
		return fmt.Errorf("provision key %s: %w", id, err)
	}
	return fmt.Errorf("key %s is %s: %w", id, status, domain.ErrAlreadyProvisioned)
}

// provisionOwnKey is provisionKey for a key named by a peer. Only keys this
// device holds the private half of qualify; anything else is a mismatch.
func (s *SQLStore) provisionOwnKey(ctx context.Context, q querier, id domain.KeyID) error {
	var (
		priv   []byte
		isSelf int
	)
	err := q.QueryRowContext(ctx, `
SELECT k.private_key, COALESCE(c.is_self, 0)
FROM ephemeral_keys k
LEFT JOIN clients c ON c.client_id = k.client_id AND c.deleted = 0
WHERE k.key_id = ? AND k.deleted = 0`, string(id)).Scan(&priv, &isSelf)
	switch {
	case isNoRows(err):
		return fmt.Errorf("key %s is not one of ours: %w", id, domain.ErrSessionMismatch)
	case err != nil:
		return fmt.Errorf("provision key %s: %w", id, err)
	case isSelf != 1 || len(priv) == 0:
		return fmt.Errorf("key %s is not one of ours: %w", id, domain.ErrSessionMismatch)
	}
	return s.provisionKey(ctx, q, id)
}

func (s *SQLStore) scanKey(row scanner) (domain.EphemeralKey, error) {
	var (
		k                  domain.EphemeralKey
		id, owner, pub, st string
		priv               []byte
		modified           int64
	)
	if err := row.Scan(&id, &owner, &pub, &priv, &st, &modified); err != nil {
		if isNoRows(err) {
			return k, err
		}
		return k, fmt.Errorf("scan key: %w", err)
	}
	public, err := domain.ParseX25519Public(pub)
	if err != nil {
		return k, fmt.Errorf("key %s: %w", id, domain.ErrFormat)
	}
	k.ID = domain.KeyID(id)
	k.ClientID = domain.ClientID(owner)
	k.Public = public
	k.Status = domain.KeyStatus(st)
	k.ModifiedAt = fromStamp(modified)
	if k.Private, err = s.vault.openKey(priv, "key:"+id); err != nil {
		return k, err
	}
	return k, nil
}
