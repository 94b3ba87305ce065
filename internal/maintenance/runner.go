// Package maintenance runs the periodic self-repair cycle: graph
// densification, cluster consolidation, and a retrieval regression
// check, on a cron schedule.
package maintenance

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tkuo/mnemo/internal/consolidate"
	"github.com/tkuo/mnemo/internal/graph"
	"github.com/tkuo/mnemo/internal/regression"
	"github.com/tkuo/mnemo/internal/store"
)

// DefaultSchedule runs the cycle nightly at 03:00.
const DefaultSchedule = "0 3 * * *"

// Runner drives one maintenance cycle and its cron scheduling.
type Runner struct {
	store        *store.SQLiteStore
	densifier    *graph.Densifier
	consolidator *consolidate.Engine
	harness      *regression.Harness
	log          zerolog.Logger

	mu sync.Mutex // one cycle at a time
}

// NewRunner wires a maintenance runner from the engines it drives.
func NewRunner(s *store.SQLiteStore, d *graph.Densifier, c *consolidate.Engine, h *regression.Harness, log zerolog.Logger) *Runner {
	return &Runner{store: s, densifier: d, consolidator: c, harness: h, log: log}
}

// CycleResult reports what one maintenance cycle did.
type CycleResult struct {
	Densify       *graph.Result      `json:"densify,omitempty"`
	Consolidated  int                `json:"consolidated"`
	Regression    *regression.Result `json:"regression,omitempty"`
	RegressionErr string             `json:"regression_error,omitempty"`
}

// RunCycle performs densify, then consolidation of every qualifying
// cluster, then a regression check. Each stage failing is logged and
// the cycle continues; every stage is idempotent, so the next cycle
// is the recovery path.
func (r *Runner) RunCycle(ctx context.Context) (*CycleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &CycleResult{}

	densify, err := r.densifier.Run(ctx, graph.Params{})
	if err != nil {
		r.log.Error().Err(err).Msg("densify stage failed")
	} else {
		result.Densify = densify
	}

	clusters, err := r.consolidator.FindClusters(ctx, 0, 0)
	if err != nil {
		r.log.Error().Err(err).Msg("clustering stage failed")
	}
	for _, cluster := range clusters {
		summary, err := r.consolidator.BasicSummary(ctx, cluster.MemberIDs)
		if err != nil {
			r.log.Warn().Str("topic", cluster.Topic).Err(err).Msg("summary failed, cluster skipped")
			continue
		}
		if _, err := r.consolidator.Consolidate(ctx, cluster, summary); err != nil {
			r.log.Warn().Str("topic", cluster.Topic).Err(err).Msg("consolidation failed, cluster skipped")
			continue
		}
		result.Consolidated++
	}

	reg, err := r.harness.Run(ctx, regression.Params{})
	if err != nil {
		// No golden queries is the common cold-start case.
		result.RegressionErr = err.Error()
		r.log.Debug().Err(err).Msg("regression stage skipped")
	} else {
		result.Regression = reg
	}

	r.log.Info().
		Int("consolidated", result.Consolidated).
		Msg("maintenance cycle complete")
	return result, nil
}

// Start schedules cycles with the maintenance.schedule setting (cron
// expression, default nightly) and blocks until ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	spec, err := r.store.GetSetting(ctx, store.SettingSchedule)
	if err != nil {
		return err
	}
	if spec == "" {
		spec = DefaultSchedule
	}

	c := cron.New()
	_, err = c.AddFunc(spec, func() {
		if _, err := r.RunCycle(ctx); err != nil {
			r.log.Error().Err(err).Msg("scheduled cycle failed")
		}
	})
	if err != nil {
		r.log.Warn().Str("spec", spec).Err(err).Msg("invalid schedule, using default")
		if _, err := c.AddFunc(DefaultSchedule, func() {
			if _, err := r.RunCycle(ctx); err != nil {
				r.log.Error().Err(err).Msg("scheduled cycle failed")
			}
		}); err != nil {
			return err
		}
	}

	r.log.Info().Str("schedule", spec).Msg("maintenance scheduler started")
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}
