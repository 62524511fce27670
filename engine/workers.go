package engine

import (
	"context"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/quantfx/fxbacktester/config"
	"github.com/quantfx/fxbacktester/eventhandlers/statistics"
	"github.com/quantfx/fxbacktester/eventhandlers/strategies/base"
	"github.com/quantfx/fxbacktester/eventtypes/event"
)

// Result is one plan's outcome. A failed plan carries its error and no
// records, other plans in the batch are unaffected
type Result struct {
	Plan    *SimulationPlan
	Records []statistics.Record
	Summary statistics.Summary
	Err     error
}

// RunSettings carries everything shared across plans. Shared inputs are
// read only, each worker builds private mutable state per plan
type RunSettings struct {
	Workers        int
	BatchSize      int
	MatchingEngine config.MatchingEngine
	Targets        []base.TargetAccount
	Events         []event.Event
	Logger         *zap.Logger
	ShowProgress   bool
	// OnBatch runs on the caller's goroutine after each batch completes,
	// output writing belongs here so no I/O happens inside the event loop
	OnBatch func(batch []Result) error
}

// RunPlans drives every plan through a fixed worker pool, batch by batch.
// It returns all results, failed plans included
func RunPlans(ctx context.Context, plans []*SimulationPlan, s RunSettings) ([]Result, error) {
	if s.Workers <= 0 {
		s.Workers = 1
	}
	if s.BatchSize <= 0 {
		s.BatchSize = len(plans)
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var bar *progressbar.ProgressBar
	if s.ShowProgress && len(plans) > 0 {
		bar = progressbar.Default(int64(len(plans)), "simulations")
	}

	results := make([]Result, 0, len(plans))
	for from := 0; from < len(plans); from += s.BatchSize {
		to := from + s.BatchSize
		if to > len(plans) {
			to = len(plans)
		}
		batch := runBatch(ctx, plans[from:to], &s, logger, bar)
		results = append(results, batch...)
		if s.OnBatch != nil {
			if err := s.OnBatch(batch); err != nil {
				return results, err
			}
		}
	}
	return results, nil
}

func runBatch(ctx context.Context, plans []*SimulationPlan, s *RunSettings, logger *zap.Logger, bar *progressbar.ProgressBar) []Result {
	jobs := make(chan int)
	out := make([]Result, len(plans))
	var wg sync.WaitGroup

	workers := s.Workers
	if workers > len(plans) {
		workers = len(plans)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = runOne(ctx, plans[i], s, logger)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}
	for i := range plans {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

// runOne executes a single plan end to end, including the baseline twin of
// a relative simulation
func runOne(ctx context.Context, plan *SimulationPlan, s *RunSettings, logger *zap.Logger) Result {
	res := Result{Plan: plan}

	bt, err := NewBackTest(plan, s.MatchingEngine, s.Targets, logger)
	if err != nil {
		res.Err = err
		return res
	}
	if err := bt.Run(ctx, s.Events); err != nil {
		res.Err = err
		return res
	}

	if plan.Relative {
		baseline, err := NewBaseline(plan, s.MatchingEngine, logger)
		if err != nil {
			res.Err = err
			return res
		}
		if err := baseline.Run(ctx, s.Events); err != nil {
			res.Err = err
			return res
		}
		bt.Statistic.ApplyBaseline(baseline.Statistic.Records())
	}

	res.Records = bt.Statistic.Records()
	res.Summary = statistics.Summarise(res.Records)
	logger.Info("plan complete",
		zap.String("plan", plan.Name()),
		zap.Uint64("hash", plan.Hash()),
		zap.Int("records", len(res.Records)),
		zap.String("realised_pnl", res.Summary.RealisedPNL.String()),
	)
	return res
}
