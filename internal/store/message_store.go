package store

import (
	"context"
	"database/sql"
	"fmt"

	"syncpair/internal/domain"
)

const messageColumns = `message_id, session_id, version, src_client_id, src_key_id, src_key, dst_client_id, dst_key_id, sequence, type, content, is_read, deleted, modified_at`

// RecordMessage stores msg and writes the session's new state and sequences
// in one transaction.
func (s *SQLStore) RecordMessage(ctx context.Context, msg domain.Message, sess domain.Session) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		msg.SessionID = sess.ID
		if _, err := s.insertMessage(ctx, tx, msg); err != nil {
			return err
		}
		return s.updateSession(ctx, tx, sess)
	})
}

func (s *SQLStore) insertMessage(ctx context.Context, q querier, msg domain.Message) (int64, error) {
	srcKey := ""
	if !msg.SourceKey.IsZero() {
		srcKey = msg.SourceKey.String()
	}
	res, err := q.ExecContext(ctx, `
INSERT INTO messages (session_id, version, src_client_id, src_key_id, src_key, dst_client_id, dst_key_id, sequence, type, content, is_read, deleted, modified_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		string(msg.SessionID), msg.Version, string(msg.SourceClientID), string(msg.SourceKeyID), srcKey,
		string(msg.DestinationClientID), string(msg.DestinationKeyID), msg.Sequence, string(msg.Type),
		msg.Content, boolInt(msg.Read), s.stamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert message %s/%d: %w", msg.SessionID, msg.Sequence, err)
	}
	return res.LastInsertId()
}

// LoadMessage returns the live message with the given sequence in a session.
func (s *SQLStore) LoadMessage(ctx context.Context, sessionID domain.SessionID, sequence int) (domain.Message, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE session_id = ? AND sequence = ? AND deleted = 0`,
		string(sessionID), sequence)
	m, err := scanMessage(row)
	if isNoRows(err) {
		return domain.Message{}, false, nil
	}
	if err != nil {
		return domain.Message{}, false, err
	}
	return m, true, nil
}

// ListMessages returns a session's messages in sequence order.
func (s *SQLStore) ListMessages(ctx context.Context, sessionID domain.SessionID, includeDeleted bool) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE session_id = ?`
	if !includeDeleted {
		query += ` AND deleted = 0`
	}
	query += ` ORDER BY sequence`

	rows, err := s.db.QueryContext(ctx, query, string(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkMessageRead flags a message as processed.
func (s *SQLStore) MarkMessageRead(ctx context.Context, id int64) error {
	return s.touchMessage(ctx, `is_read = 1`, id)
}

// DeleteMessage soft-deletes a message.
func (s *SQLStore) DeleteMessage(ctx context.Context, id int64) error {
	return s.touchMessage(ctx, `deleted = 1`, id)
}

func (s *SQLStore) touchMessage(ctx context.Context, set string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET `+set+`, modified_at = ? WHERE message_id = ?`, s.stamp(), id)
	if err != nil {
		return fmt.Errorf("update message %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("message", id)
	}
	return nil
}

func scanMessage(row scanner) (domain.Message, error) {
	var (
		m                              domain.Message
		session, src, srcKeyID, srcKey string
		dst, dstKeyID, typ             string
		read, deleted                  int
		modified                       int64
	)
	if err := row.Scan(&m.ID, &session, &m.Version, &src, &srcKeyID, &srcKey, &dst, &dstKeyID,
		&m.Sequence, &typ, &m.Content, &read, &deleted, &modified); err != nil {
		if isNoRows(err) {
			return m, err
		}
		return m, fmt.Errorf("scan message: %w", err)
	}
	if srcKey != "" {
		pub, err := domain.ParseX25519Public(srcKey)
		if err != nil {
			return m, fmt.Errorf("message %d source key: %w", m.ID, domain.ErrFormat)
		}
		m.SourceKey = pub
	}
	m.SessionID = domain.SessionID(session)
	m.SourceClientID = domain.ClientID(src)
	m.SourceKeyID = domain.KeyID(srcKeyID)
	m.DestinationClientID = domain.ClientID(dst)
	m.DestinationKeyID = domain.KeyID(dstKeyID)
	m.Type = domain.MessageType(typ)
	m.Read = read == 1
	m.Deleted = deleted == 1
	m.ModifiedAt = fromStamp(modified)
	return m, nil
}
