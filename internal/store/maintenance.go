package store

import (
	"context"
	"fmt"

	"splitsheet/internal/splitsheet"
)

// Summary aggregates store state for status output.
type Summary struct {
	ByStatus          map[splitsheet.Status]int
	Total             int
	AwaitingPayment   int
	Downloads         int
	IssuedWorkCodes   int
	DegradedWorkCodes int
	PendingDelivery   int
}

// Stats returns a count of splitsheets grouped by status.
func (s *Store) Stats(ctx context.Context) (map[splitsheet.Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM splitsheets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("splitsheet stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[splitsheet.Status]int)
	for rows.Next() {
		var status splitsheet.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Summary aggregates counters across tables for diagnostic output.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	ctx = ensureContext(ctx)
	stats, err := s.Stats(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{ByStatus: stats}
	for _, count := range stats {
		summary.Total += count
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(1) FROM splitsheets WHERE status = ? AND payment_status NOT IN (?, ?)),
			(SELECT COALESCE(SUM(download_count), 0) FROM splitsheets),
			(SELECT COUNT(1) FROM work_codes),
			(SELECT COUNT(1) FROM work_codes WHERE degraded = 1),
			(SELECT COUNT(1) FROM notifications WHERE email_sent = 0)`,
		string(splitsheet.StatusFullySigned), string(splitsheet.PaymentPaid), string(splitsheet.PaymentFree),
	).Scan(&summary.AwaitingPayment, &summary.Downloads, &summary.IssuedWorkCodes, &summary.DegradedWorkCodes, &summary.PendingDelivery)
	if err != nil {
		return Summary{}, fmt.Errorf("store summary: %w", err)
	}
	return summary, nil
}
