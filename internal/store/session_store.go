package store

import (
	"context"
	"database/sql"
	"fmt"

	"syncpair/internal/domain"
)

const sessionColumns = `session_id, role, own_key_id, other_client_id, other_identity_key, other_key_id, other_key, own_sequence, other_sequence, state, modified_at`

// CreateSession provisions each key in consume and inserts the session in one
// transaction. A key that is no longer published aborts the whole write.
func (s *SQLStore) CreateSession(ctx context.Context, sess domain.Session, consume ...domain.KeyID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range consume {
			if err := s.provisionKey(ctx, tx, id); err != nil {
				return err
			}
		}
		return s.insertSession(ctx, tx, sess)
	})
}

// CreateIncomingSession consumes the session's own key, inserts the session
// and records the message that opened it. The own key must be a published
// key of the local device; otherwise nothing is written and the error wraps
// domain.ErrSessionMismatch.
func (s *SQLStore) CreateIncomingSession(ctx context.Context, sess domain.Session, first domain.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.provisionOwnKey(ctx, tx, sess.OwnEphemeralKeyID); err != nil {
			return err
		}
		if err := s.insertSession(ctx, tx, sess); err != nil {
			return err
		}
		first.SessionID = sess.ID
		_, err := s.insertMessage(ctx, tx, first)
		return err
	})
}

func (s *SQLStore) insertSession(ctx context.Context, q querier, sess domain.Session) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sess.ID), string(sess.Role), string(sess.OwnEphemeralKeyID),
		string(sess.OtherClientID), sess.OtherIdentityKey.String(),
		string(sess.OtherEphemeralKeyID), sess.OtherEphemeralKey.String(),
		sess.OwnSequence, sess.OtherSequence, string(sess.State), s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", sess.ID, err)
	}
	return nil
}

// LoadSession returns a session by id.
func (s *SQLStore) LoadSession(ctx context.Context, id domain.SessionID) (domain.Session, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ? AND deleted = 0`, string(id))
	sess, err := scanSession(row)
	if isNoRows(err) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, err
	}
	return sess, true, nil
}

// UpdateSession writes the mutable parts of a session: state and sequences.
func (s *SQLStore) UpdateSession(ctx context.Context, sess domain.Session) error {
	return s.updateSession(ctx, s.db, sess)
}

func (s *SQLStore) updateSession(ctx context.Context, q querier, sess domain.Session) error {
	res, err := q.ExecContext(ctx,
		`UPDATE sessions SET state = ?, own_sequence = ?, other_sequence = ?, modified_at = ? WHERE session_id = ? AND deleted = 0`,
		string(sess.State), sess.OwnSequence, sess.OtherSequence, s.stamp(), string(sess.ID))
	if err != nil {
		return fmt.Errorf("update session %s: %w", sess.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("session", sess.ID)
	}
	return nil
}

// ListSessions returns live sessions in state, or all of them when state is
// empty, oldest first.
func (s *SQLStore) ListSessions(ctx context.Context, state domain.SessionState) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted = 0`
	var args []any
	if state != "" {
		query += ` AND state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY modified_at, session_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(row scanner) (domain.Session, error) {
	var (
		sess                                 domain.Session
		id, role, own, other, identity, okid string
		okey, state                          string
		modified                             int64
	)
	if err := row.Scan(&id, &role, &own, &other, &identity, &okid, &okey,
		&sess.OwnSequence, &sess.OtherSequence, &state, &modified); err != nil {
		if isNoRows(err) {
			return sess, err
		}
		return sess, fmt.Errorf("scan session: %w", err)
	}
	idk, err := domain.ParseX25519Public(identity)
	if err != nil {
		return sess, fmt.Errorf("session %s identity: %w", id, domain.ErrFormat)
	}
	ek, err := domain.ParseX25519Public(okey)
	if err != nil {
		return sess, fmt.Errorf("session %s ephemeral: %w", id, domain.ErrFormat)
	}
	sess.ID = domain.SessionID(id)
	sess.Role = domain.Role(role)
	sess.OwnEphemeralKeyID = domain.KeyID(own)
	sess.OtherClientID = domain.ClientID(other)
	sess.OtherIdentityKey = idk
	sess.OtherEphemeralKeyID = domain.KeyID(okid)
	sess.OtherEphemeralKey = ek
	sess.State = domain.SessionState(state)
	sess.ModifiedAt = fromStamp(modified)
	return sess, nil
}
