package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"splitsheet/internal/workcode"
)

// HighestContributorID returns the largest contributor id seen in registered
// contributors or non-degraded identifiers, or -1 when there are none.
func (s *Store) HighestContributorID(ctx context.Context) (int, error) {
	var highest int
	err := s.db.QueryRowContext(ensureContext(ctx), `
		SELECT COALESCE(MAX(id), -1) FROM (
			SELECT contributor_id AS id FROM contributors
			UNION ALL
			SELECT contributor_id AS id FROM work_codes WHERE degraded = 0
		)`).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("highest contributor id: %w", err)
	}
	return highest, nil
}

// ContributorID looks up a registered contributor by folded name key.
func (s *Store) ContributorID(ctx context.Context, nameKey string) (int, bool, error) {
	var id int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT contributor_id FROM contributors WHERE name_key = ?`, nameKey,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup contributor: %w", err)
	}
	return id, true, nil
}

// RegisterContributor binds nameKey to id. Either side already taken is a
// conflict.
func (s *Store) RegisterContributor(ctx context.Context, nameKey, displayName string, id int) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO contributors (name_key, display_name, contributor_id, created_at) VALUES (?, ?, ?, ?)`,
		nameKey, displayName, id, formatTime(s.now()),
	)
	if isUniqueViolation(err) {
		return conflict("register_contributor", err)
	}
	if err != nil {
		return fmt.Errorf("register contributor: %w", err)
	}
	return nil
}

// Sequences lists every sequence issued to a contributor in a year,
// including degraded ones.
func (s *Store) Sequences(ctx context.Context, contributorID, year int) ([]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT sequence FROM work_codes WHERE contributor_id = ? AND year = ? ORDER BY sequence`,
		contributorID, year,
	)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		out = append(out, seq)
	}
	return out, rows.Err()
}

// RecordIdentifier persists an issued identifier. The (contributor, year,
// sequence) triple is unique, so a racing writer gets a conflict.
func (s *Store) RecordIdentifier(ctx context.Context, issued workcode.Issued) error {
	id := issued.Identifier
	_, err := s.execWithRetry(ctx, `
		INSERT INTO work_codes (code, contributor_id, year, sequence, is_original, degraded, contributor_name, work_title, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), id.ContributorID, id.Year, id.Sequence, boolToInt(id.IsOriginal()), boolToInt(issued.Degraded),
		nullableString(issued.ContributorName), nullableString(issued.WorkTitle), formatTime(issued.IssuedAt),
	)
	if isUniqueViolation(err) {
		return conflict("record_identifier", err)
	}
	if err != nil {
		return fmt.Errorf("record identifier: %w", err)
	}
	return nil
}

// IssuedIdentifiers returns the most recent identifiers, newest first.
func (s *Store) IssuedIdentifiers(ctx context.Context, limit int) ([]workcode.Issued, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT code, degraded, contributor_name, work_title, issued_at
		FROM work_codes ORDER BY issued_at DESC, code DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list identifiers: %w", err)
	}
	defer rows.Close()

	var out []workcode.Issued
	for rows.Next() {
		var (
			code        string
			degraded    int
			contributor sql.NullString
			title       sql.NullString
			issuedRaw   string
		)
		if err := rows.Scan(&code, &degraded, &contributor, &title, &issuedRaw); err != nil {
			return nil, err
		}
		id, err := workcode.Parse(code)
		if err != nil {
			return nil, fmt.Errorf("stored identifier %q: %w", code, err)
		}
		issuedAt, _ := parseTimeString(issuedRaw)
		out = append(out, workcode.Issued{
			Identifier:      id,
			ContributorName: contributor.String,
			WorkTitle:       title.String,
			IssuedAt:        issuedAt,
			Degraded:        degraded != 0,
		})
	}
	return out, rows.Err()
}

var _ workcode.History = (*Store)(nil)
