package store

import (
	"context"
	"fmt"
)

// GetProperty returns a plain property value.
func (s *SQLStore) GetProperty(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM properties WHERE key = ? AND deleted = 0 AND secret IS NULL`, key).Scan(&v)
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get property %s: %w", key, err)
	}
	return v, true, nil
}

// SetProperty stores a plain property value, replacing any sealed one.
func (s *SQLStore) SetProperty(ctx context.Context, key, value string) error {
	return s.putProperty(ctx, key, value, nil)
}

// GetSecret returns a sealed property value.
func (s *SQLStore) GetSecret(ctx context.Context, key string) (string, bool, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT secret FROM properties WHERE key = ? AND deleted = 0 AND secret IS NOT NULL`, key).Scan(&sealed)
	if isNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get secret %s: %w", key, err)
	}
	pt, err := s.vault.open(sealed, []byte("prop:"+key))
	if err != nil {
		return "", false, fmt.Errorf("secret %s: %w", key, err)
	}
	return string(pt), true, nil
}

// SetSecret seals and stores a property value.
func (s *SQLStore) SetSecret(ctx context.Context, key, value string) error {
	sealed, err := s.vault.seal([]byte(value), []byte("prop:"+key))
	if err != nil {
		return err
	}
	return s.putProperty(ctx, key, "", sealed)
}

func (s *SQLStore) putProperty(ctx context.Context, key, value string, sealed []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO properties (key, value, secret, deleted, modified_at) VALUES (?, ?, ?, 0, ?)
ON CONFLICT (key) DO UPDATE SET
	value = excluded.value,
	secret = excluded.secret,
	deleted = 0,
	modified_at = excluded.modified_at`,
		key, value, sealed, s.stamp())
	if err != nil {
		return fmt.Errorf("set property %s: %w", key, err)
	}
	return nil
}

// DeleteProperty soft-deletes a property. Deleting a missing key is not an
// error.
func (s *SQLStore) DeleteProperty(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE properties SET deleted = 1, modified_at = ? WHERE key = ?`, s.stamp(), key); err != nil {
		return fmt.Errorf("delete property %s: %w", key, err)
	}
	return nil
}
