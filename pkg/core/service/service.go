// Package service runs the engines on deal documents, persists the results and
// records metrics.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"corp_finance/pkg/core/deal"
	"corp_finance/pkg/core/logger"
	"corp_finance/pkg/core/metrics"
	"corp_finance/pkg/core/scenario"
	"corp_finance/pkg/core/store"
	"corp_finance/pkg/core/waterfall"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is safe for concurrent use when its store is.
type Service struct {
	store   store.RunStore
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// New wires a service. m and log may be nil.
func New(st store.RunStore, m *metrics.Metrics, log *slog.Logger) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{store: st, metrics: m, log: log, now: time.Now}
}

// RunWaterfall simulates the deal's cash flows and stores the run.
func (s *Service) RunWaterfall(ctx context.Context, f *deal.File) (*store.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := s.parse(f, metrics.KindWaterfall)
	if err != nil {
		return nil, err
	}

	start := s.now()
	res, err := waterfall.Simulate(d.Input)
	if err != nil {
		s.rejected(metrics.KindWaterfall, err)
		return nil, err
	}
	elapsed := s.now().Sub(start)

	rec := s.record(store.KindWaterfall, f, d.Name, start, elapsed)
	rec.Waterfall = res

	s.metrics.ObserveRun(metrics.KindWaterfall, elapsed)
	s.metrics.ObserveWaterfall(len(res.Periods), res.ExhaustedAt > 0)
	s.log.Info("[WATERFALL] run complete",
		"run_id", rec.ID,
		"deal", d.Name,
		"periods", len(res.Periods),
		"tranches", len(d.Input.Structure.Tranches),
		"exhausted_at", res.ExhaustedAt,
		"duration", elapsed,
	)

	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RunScenarios runs the stress scenarios for the deal and stores the run.
// Deals without scenarios get the default stress set.
func (s *Service) RunScenarios(ctx context.Context, f *deal.File) (*store.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := s.parse(f, metrics.KindScenarios)
	if err != nil {
		return nil, err
	}

	start := s.now()
	an, err := scenario.Run(d.ScenarioInput())
	if err != nil {
		s.rejected(metrics.KindScenarios, err)
		return nil, err
	}
	elapsed := s.now().Sub(start)

	rec := s.record(store.KindScenarios, f, d.Name, start, elapsed)
	rec.Scenarios = an

	s.metrics.ObserveRun(metrics.KindScenarios, elapsed)
	s.log.Info("[SCENARIO] analysis complete",
		"run_id", rec.ID,
		"deal", d.Name,
		"scenarios", len(an.Outcomes),
		"probability_sum", an.ProbabilitySum.String(),
		"duration", elapsed,
	)
	if !an.ProbabilitySum.Equal(decimal.NewFromInt(1)) {
		s.log.Warn("[SCENARIO] probabilities do not sum to one", "run_id", rec.ID, "sum", an.ProbabilitySum.String())
	}

	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetRun loads a stored run. Unknown ids match store.ErrRunNotFound.
func (s *Service) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	return s.store.Load(ctx, id)
}

// ListRuns returns the newest runs first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	return s.store.List(ctx, limit)
}

func (s *Service) parse(f *deal.File, kind string) (*deal.Deal, error) {
	if f == nil {
		return nil, fmt.Errorf("no deal given")
	}
	d, err := f.Deal()
	if err != nil {
		s.rejected(kind, err)
		return nil, err
	}
	return d, nil
}

func (s *Service) record(kind store.RunKind, f *deal.File, name string, start time.Time, elapsed time.Duration) *store.RunRecord {
	return &store.RunRecord{
		ID:         uuid.NewString(),
		Kind:       kind,
		DealName:   name,
		CreatedAt:  start.UTC(),
		DurationMs: elapsed.Milliseconds(),
		Deal:       *f,
	}
}

func (s *Service) save(ctx context.Context, rec *store.RunRecord) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, rec); err != nil {
		s.log.Error("[STORE] failed to persist run", "run_id", rec.ID, "error", err)
		return fmt.Errorf("failed to persist run %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Service) rejected(kind string, err error) {
	var ve *waterfall.ValidationError
	if errors.As(err, &ve) {
		s.metrics.ObserveRejected(kind, ve.Field)
		s.log.Warn("[VALIDATION] input rejected", "kind", kind, "field", ve.Field, "reason", ve.Reason)
	}
}
