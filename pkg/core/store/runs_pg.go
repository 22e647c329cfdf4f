package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const runsSchema = `
	CREATE TABLE IF NOT EXISTS clo_runs (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		deal_name   TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL,
		run_json    JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS clo_runs_created_at_idx ON clo_runs (created_at DESC);
`

// PGRunStore keeps runs in the clo_runs table, payload in a JSONB column.
type PGRunStore struct {
	pool *pgxpool.Pool
}

func NewPGRunStore(pool *pgxpool.Pool) *PGRunStore {
	return &PGRunStore{pool: pool}
}

// EnsureSchema creates the runs table if it does not exist.
func (s *PGRunStore) EnsureSchema(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	if _, err := s.pool.Exec(ctx, runsSchema); err != nil {
		return fmt.Errorf("failed to create runs schema: %w", err)
	}
	return nil
}

// Save upserts a run by id.
func (s *PGRunStore) Save(ctx context.Context, rec *RunRecord) error {
	if s.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	query := `
		INSERT INTO clo_runs (id, kind, deal_name, created_at, duration_ms, run_json)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			kind = EXCLUDED.kind,
			deal_name = EXCLUDED.deal_name,
			duration_ms = EXCLUDED.duration_ms,
			run_json = EXCLUDED.run_json;
	`
	_, err = s.pool.Exec(ctx, query, rec.ID, string(rec.Kind), rec.DealName, rec.CreatedAt, rec.DurationMs, jsonData)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load reads a run by id.
func (s *PGRunStore) Load(ctx context.Context, id string) (*RunRecord, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	var jsonData []byte
	err := s.pool.QueryRow(ctx, `SELECT run_json FROM clo_runs WHERE id = $1`, id).Scan(&jsonData)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s: %w", ErrRunNotFound, id, err)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal(jsonData, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &rec, nil
}

// List returns run summaries, newest first.
func (s *PGRunStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `SELECT id, kind, deal_name, created_at, duration_ms FROM clo_runs ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var sum RunSummary
		var kind string
		if err := rows.Scan(&sum.ID, &kind, &sum.DealName, &sum.CreatedAt, &sum.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.Kind = RunKind(kind)
		out = append(out, sum)
	}
	return out, rows.Err()
}
