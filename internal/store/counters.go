package store

import (
	"context"
	"fmt"

	"splitsheet/internal/reference"
)

// ReferenceCount counts references already issued for suffix on date.
func (s *Store) ReferenceCount(ctx context.Context, suffix, date string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM reference_numbers WHERE suffix = ? AND issued_on = ?`, suffix, date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count references: %w", err)
	}
	return count, nil
}

// ReserveReference claims value. A value issued before is a conflict.
func (s *Store) ReserveReference(ctx context.Context, value, suffix, date string) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO reference_numbers (value, suffix, issued_on) VALUES (?, ?, ?)`,
		value, suffix, date,
	)
	if isUniqueViolation(err) {
		return conflict("reserve_reference", err)
	}
	if err != nil {
		return fmt.Errorf("reserve reference: %w", err)
	}
	return nil
}

var _ reference.Counter = (*Store)(nil)
