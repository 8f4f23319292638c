package store

import (
	"context"
	"database/sql"
	"fmt"

	"syncpair/internal/domain"
)

const clientColumns = `client_id, name, identity_key, identity_private, status, auth_level, version, is_self, modified_at`

// SaveClient upserts a client and reconciles its key list. Listed keys are
// upserted; a key this device already marked provisioned stays provisioned.
// Published keys missing from the list are soft-deleted since their owner
// has withdrawn them.
func (s *SQLStore) SaveClient(ctx context.Context, c domain.Client) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.stamp()
		priv, err := s.vault.sealKey(c.IdentityPrivate, "identity:"+string(c.ID))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO clients (`+clientColumns+`, deleted)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT (client_id) DO UPDATE SET
	name = excluded.name,
	identity_key = excluded.identity_key,
	identity_private = COALESCE(excluded.identity_private, clients.identity_private),
	status = excluded.status,
	auth_level = excluded.auth_level,
	version = excluded.version,
	deleted = 0,
	modified_at = excluded.modified_at`,
			string(c.ID), c.Name, c.IdentityKey.String(), priv, string(c.Status),
			c.AuthLevel, c.Version, boolInt(c.Self), now,
		); err != nil {
			return fmt.Errorf("save client %s: %w", c.ID, err)
		}

		keep := make(map[domain.KeyID]bool, len(c.Keys))
		for _, k := range c.Keys {
			k.ClientID = c.ID
			if err := s.upsertKey(ctx, tx, k, now); err != nil {
				return err
			}
			keep[k.ID] = true
		}

		existing, err := s.listKeys(ctx, tx, c.ID, domain.KeyPublished)
		if err != nil {
			return err
		}
		for _, k := range existing {
			if keep[k.ID] {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE ephemeral_keys SET status = ?, deleted = 1, modified_at = ? WHERE key_id = ?`,
				string(domain.KeyDeleted), now, string(k.ID),
			); err != nil {
				return fmt.Errorf("withdraw key %s: %w", k.ID, err)
			}
		}
		return nil
	})
}

// LoadClient returns a client and its live keys.
func (s *SQLStore) LoadClient(ctx context.Context, id domain.ClientID) (domain.Client, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE client_id = ? AND deleted = 0`, string(id))
	return s.loadClientRow(ctx, row)
}

// LoadSelf returns the local device's identity.
func (s *SQLStore) LoadSelf(ctx context.Context) (domain.Client, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE is_self = 1 AND deleted = 0`)
	return s.loadClientRow(ctx, row)
}

func (s *SQLStore) loadClientRow(ctx context.Context, row *sql.Row) (domain.Client, bool, error) {
	c, err := s.scanClient(row)
	if isNoRows(err) {
		return domain.Client{}, false, nil
	}
	if err != nil {
		return domain.Client{}, false, err
	}
	keys, err := s.listKeys(ctx, s.db, c.ID, "")
	if err != nil {
		return domain.Client{}, false, err
	}
	c.Keys = keys
	return c, true, nil
}

// ListClients returns every live client, the local one included.
func (s *SQLStore) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE deleted = 0 ORDER BY name, client_id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	var out []domain.Client
	for rows.Next() {
		c, err := s.scanClient(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Keys are loaded after the cursor is closed; the pool has one connection.
	for i := range out {
		keys, err := s.listKeys(ctx, s.db, out[i].ID, "")
		if err != nil {
			return nil, err
		}
		out[i].Keys = keys
	}
	return out, nil
}

// SetClientStatus updates the authorisation status of a client.
func (s *SQLStore) SetClientStatus(ctx context.Context, id domain.ClientID, status domain.ClientStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE clients SET status = ?, modified_at = ? WHERE client_id = ? AND deleted = 0`,
		string(status), s.stamp(), string(id))
	if err != nil {
		return fmt.Errorf("set client status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("client", id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLStore) scanClient(row scanner) (domain.Client, error) {
	var (
		c                    domain.Client
		id, identity, status string
		priv                 []byte
		self                 int
		modified             int64
	)
	if err := row.Scan(&id, &c.Name, &identity, &priv, &status, &c.AuthLevel, &c.Version, &self, &modified); err != nil {
		if isNoRows(err) {
			return c, err
		}
		return c, fmt.Errorf("scan client: %w", err)
	}
	pub, err := domain.ParseX25519Public(identity)
	if err != nil {
		return c, fmt.Errorf("client %s identity: %w", id, domain.ErrFormat)
	}
	c.ID = domain.ClientID(id)
	c.IdentityKey = pub
	c.Status = domain.ClientStatus(status)
	c.Self = self == 1
	c.ModifiedAt = fromStamp(modified)
	if c.IdentityPrivate, err = s.vault.openKey(priv, "identity:"+id); err != nil {
		return c, err
	}
	return c, nil
}
