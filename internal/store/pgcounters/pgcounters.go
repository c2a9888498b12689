package pgcounters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"splitsheet/internal/reference"
	"splitsheet/internal/services"
	"splitsheet/internal/workcode"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS splitsheet_contributors (
    name_key TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    contributor_id INTEGER NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS splitsheet_work_codes (
    code TEXT PRIMARY KEY,
    contributor_id INTEGER NOT NULL,
    year INTEGER NOT NULL,
    sequence INTEGER NOT NULL,
    degraded BOOLEAN NOT NULL DEFAULT false,
    contributor_name TEXT,
    work_title TEXT,
    issued_at TIMESTAMPTZ NOT NULL,
    UNIQUE (contributor_id, year, sequence)
);
CREATE TABLE IF NOT EXISTS splitsheet_references (
    value TEXT PRIMARY KEY,
    suffix TEXT NOT NULL,
    issued_on TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS splitsheet_references_scope ON splitsheet_references (suffix, issued_on);
`

// Store keeps identifier history and reference counters in PostgreSQL so
// several instances can allocate from one namespace.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for dsn and ensures the counter tables exist.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pgcounters", "connect", "parse storage.counters_dsn", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "pgcounters", "connect", "open pool", err)
	}
	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the counter tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return services.Wrap(services.ErrExternal, "pgcounters", "migrate", "create counter tables", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func isUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// HighestContributorID returns the largest registered or issued contributor
// id, ignoring degraded identifiers, or -1.
func (s *Store) HighestContributorID(ctx context.Context) (int, error) {
	var highest int
	err := s.pool.QueryRow(ctx, `
SELECT COALESCE(MAX(id), -1) FROM (
    SELECT contributor_id AS id FROM splitsheet_contributors
    UNION ALL
    SELECT contributor_id AS id FROM splitsheet_work_codes WHERE NOT degraded
) ids`).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("highest contributor id: %w", err)
	}
	return highest, nil
}

// ContributorID looks up a registered contributor.
func (s *Store) ContributorID(ctx context.Context, nameKey string) (int, bool, error) {
	var id int
	err := s.pool.QueryRow(ctx, `SELECT contributor_id FROM splitsheet_contributors WHERE name_key=$1`, nameKey).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup contributor: %w", err)
	}
	return id, true, nil
}

// RegisterContributor binds nameKey to id under a namespace-wide advisory
// lock.
func (s *Store) RegisterContributor(ctx context.Context, nameKey, displayName string, id int) error {
	return s.lockedInsert(ctx, "contributors", func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO splitsheet_contributors(name_key,display_name,contributor_id) VALUES($1,$2,$3)`,
			nameKey, displayName, id)
		return err
	})
}

// Sequences lists issued sequences for a contributor and year.
func (s *Store) Sequences(ctx context.Context, contributorID, year int) ([]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sequence FROM splitsheet_work_codes WHERE contributor_id=$1 AND year=$2 ORDER BY sequence`,
		contributorID, year)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	seqs, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	return seqs, nil
}

// RecordIdentifier inserts an issued identifier while holding the advisory
// lock for its (contributor, year) scope.
func (s *Store) RecordIdentifier(ctx context.Context, issued workcode.Issued) error {
	id := issued.Identifier
	scope := fmt.Sprintf("workcode:%02d:%02d", id.ContributorID, id.Year)
	return s.lockedInsert(ctx, scope, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO splitsheet_work_codes(code,contributor_id,year,sequence,degraded,contributor_name,work_title,issued_at)
VALUES($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8)`,
			id.String(), id.ContributorID, id.Year, id.Sequence, issued.Degraded,
			issued.ContributorName, issued.WorkTitle, issued.IssuedAt)
		return err
	})
}

// ReferenceCount counts issued references for suffix on date.
func (s *Store) ReferenceCount(ctx context.Context, suffix, date string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM splitsheet_references WHERE suffix=$1 AND issued_on=$2`, suffix, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count references: %w", err)
	}
	return count, nil
}

// ReserveReference claims value under the (suffix, date) advisory lock.
func (s *Store) ReserveReference(ctx context.Context, value, suffix, date string) error {
	return s.lockedInsert(ctx, "reference:"+suffix+":"+date, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO splitsheet_references(value,suffix,issued_on) VALUES($1,$2,$3)`, value, suffix, date)
		return err
	})
}

func (s *Store) lockedInsert(ctx context.Context, scope string, insert func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scope); err != nil {
		return fmt.Errorf("advisory lock %s: %w", scope, err)
	}
	if err := insert(tx); err != nil {
		if isUnique(err) {
			return services.Wrap(services.ErrConflict, "pgcounters", scope, "already issued", err)
		}
		return err
	}
	return tx.Commit(ctx)
}

var (
	_ workcode.History  = (*Store)(nil)
	_ reference.Counter = (*Store)(nil)
)
