// Package store persists engine runs, in Postgres when a database is configured
// and as JSON files otherwise.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"corp_finance/pkg/core/deal"
	"corp_finance/pkg/core/logger"
	"corp_finance/pkg/core/scenario"
	"corp_finance/pkg/core/waterfall"
)

// ErrRunNotFound is returned by Load for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// RunKind tells which engine produced a record.
type RunKind string

const (
	KindWaterfall RunKind = "waterfall"
	KindScenarios RunKind = "scenarios"
)

// RunRecord is one stored engine run. Exactly one of Waterfall and Scenarios
// is set, matching Kind.
type RunRecord struct {
	ID         string             `json:"id"`
	Kind       RunKind            `json:"kind"`
	DealName   string             `json:"deal_name"`
	CreatedAt  time.Time          `json:"created_at"`
	DurationMs int64              `json:"duration_ms"`
	Deal       deal.File          `json:"deal"`
	Waterfall  *waterfall.Result  `json:"waterfall,omitempty"`
	Scenarios  *scenario.Analysis `json:"scenarios,omitempty"`
}

// Summary is the listing view of a record.
func (r *RunRecord) Summary() RunSummary {
	return RunSummary{ID: r.ID, Kind: r.Kind, DealName: r.DealName, CreatedAt: r.CreatedAt, DurationMs: r.DurationMs}
}

// RunSummary is a record without its payload.
type RunSummary struct {
	ID         string    `json:"id"`
	Kind       RunKind   `json:"kind"`
	DealName   string    `json:"deal_name"`
	CreatedAt  time.Time `json:"created_at"`
	DurationMs int64     `json:"duration_ms"`
}

// RunStore is implemented by PGRunStore and FileRunStore.
type RunStore interface {
	Save(ctx context.Context, rec *RunRecord) error
	Load(ctx context.Context, id string) (*RunRecord, error)
	// List returns the newest runs first; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]RunSummary, error)
}

// Open picks the Postgres store when databaseURL is set and the file store
// under dir otherwise. The returned func releases the store.
func Open(ctx context.Context, databaseURL, dir string) (RunStore, func(), error) {
	if databaseURL != "" {
		if err := InitDB(ctx, databaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to connect run store: %w", err)
		}
		s := NewPGRunStore(GetPool())
		if err := s.EnsureSchema(ctx); err != nil {
			Close()
			return nil, nil, err
		}
		logger.Get().Info("[STORE] using postgres run store")
		return s, Close, nil
	}

	s, err := NewFileRunStore(dir)
	if err != nil {
		return nil, nil, err
	}
	logger.Get().Info("[STORE] using file run store", "dir", s.Dir())
	return s, func() {}, nil
}
