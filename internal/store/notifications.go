package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"splitsheet/internal/notifications"
)

// CreateNotification inserts the record for one participant. A second
// record for the same pair is a conflict.
func (s *Store) CreateNotification(ctx context.Context, rec notifications.Record) error {
	_, err := s.execWithRetry(ctx, `
		INSERT INTO notifications (splitsheet_id, participant_id, token_digest, email_sent, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SplitsheetID, rec.ParticipantID, rec.TokenDigest, boolToInt(rec.EmailSent), nullableTime(rec.SentAt), formatTime(s.now()),
	)
	if isUniqueViolation(err) {
		return conflict("create_notification", err)
	}
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// MarkNotificationSent flips email_sent once. Later calls leave the first
// timestamp in place.
func (s *Store) MarkNotificationSent(ctx context.Context, splitsheetID, participantID string, sentAt time.Time) error {
	_, err := s.execWithRetry(ctx, `
		UPDATE notifications SET email_sent = 1, sent_at = ?
		WHERE splitsheet_id = ? AND participant_id = ? AND email_sent = 0`,
		formatTime(sentAt), splitsheetID, participantID,
	)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// Notifications lists the records for a splitsheet in participant order.
func (s *Store) Notifications(ctx context.Context, splitsheetID string) ([]notifications.Record, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT n.splitsheet_id, n.participant_id, n.token_digest, n.email_sent, n.sent_at
		FROM notifications n
		JOIN participants p ON p.splitsheet_id = n.splitsheet_id AND p.id = n.participant_id
		WHERE n.splitsheet_id = ?
		ORDER BY p.position`, splitsheetID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []notifications.Record
	for rows.Next() {
		var (
			rec     notifications.Record
			sent    int
			sentRaw sql.NullString
		)
		if err := rows.Scan(&rec.SplitsheetID, &rec.ParticipantID, &rec.TokenDigest, &sent, &sentRaw); err != nil {
			return nil, err
		}
		rec.EmailSent = sent != 0
		rec.SentAt = parseNullTime(sentRaw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ notifications.RecordStore = (*Store)(nil)
