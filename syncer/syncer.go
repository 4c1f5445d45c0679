// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package syncer drives the validator set to the finalized head of the source ledger.
package syncer

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/vechain/thor-relayer/co"
	"github.com/vechain/thor-relayer/health"
	"github.com/vechain/thor-relayer/log"
	"github.com/vechain/thor-relayer/metrics"
)

var (
	logger = log.WithContext("pkg", "syncer")

	metricDrift       = metrics.LazyLoadGauge("syncer_drift_heights")
	metricFinalized   = metrics.LazyLoadGauge("syncer_finalized_height")
	metricRoundsCount = metrics.LazyLoadCounterVec("syncer_rounds_count", []string{"status"})
)

// Defaults of Options.
const (
	DefaultFinality = 64              // heights a diff needs below the head to be final
	DefaultStep     = 1000            // max heights per advance
	DefaultRefresh  = 5 * time.Second // interval between rounds without notification
)

// Engine is the validator set being driven.
type Engine interface {
	Height() uint64
	BumpSetToDaHeight(ctx context.Context, height uint64) error
}

// HeadReader reports the latest source ledger height known to the relayer.
type HeadReader interface {
	Head(ctx context.Context) (uint64, error)
}

// Options configures the syncer.
type Options struct {
	Finality uint64        // heights behind the head considered final
	Step     uint64        // max heights per advance
	Refresh  time.Duration // interval between rounds without notification
}

// Syncer advances the engine to head - finality, at most Step heights at a time.
type Syncer struct {
	engine Engine
	heads  HeadReader
	health *health.Health
	opts   Options
	wake   co.Signal
}

// New creates a syncer. Zero options take the defaults, health may be nil.
func New(engine Engine, heads HeadReader, health *health.Health, opts Options) *Syncer {
	if opts.Step == 0 {
		opts.Step = DefaultStep
	}
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	return &Syncer{
		engine: engine,
		heads:  heads,
		health: health,
		opts:   opts,
	}
}

// Notify requests a sync round, typically after new diffs were ingested.
func (s *Syncer) Notify() {
	s.wake.Signal()
}

// Run syncs on every notification and refresh tick until ctx is done.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Refresh)
	defer ticker.Stop()

	for {
		if err := s.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("failed to sync validator set", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.wake.C():
		}
	}
}

// finalized returns the highest final height for the head, false if no height is final yet.
func (s *Syncer) finalized(head uint64) (uint64, bool) {
	if head < s.opts.Finality {
		return 0, false
	}
	return head - s.opts.Finality, true
}

// Sync runs one round: advance the engine in steps up to the finalized height.
func (s *Syncer) Sync(ctx context.Context) (err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metricRoundsCount().AddWithLabel(1, map[string]string{"status": status})
	}()

	head, err := s.heads.Head(ctx)
	if err != nil {
		return errors.Wrap(err, "get head")
	}
	target, ok := s.finalized(head)
	if !ok {
		logger.Debug("no finalized height yet", "head", head, "finality", s.opts.Finality)
		return nil
	}
	metricFinalized().Set(int64(target))

	current := s.engine.Height()
	if current > target {
		logger.Warn("validator set ahead of finalized height", "set", current, "finalized", target)
		s.reportRound(current, target)
		return nil
	}

	lag := target - current
	metricDrift().Set(int64(lag))
	if lag > s.opts.Finality {
		logger.Warn("validator set trails finalized height", "set", current, "finalized", target, "lag", lag)
	}

	for current < target {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := current + min(s.opts.Step, target-current)
		if err := s.engine.BumpSetToDaHeight(ctx, next); err != nil {
			return errors.Wrapf(err, "advance to %d", next)
		}
		current = next
		metricDrift().Set(int64(target - current))
		logger.Debug("validator set advanced", "height", current, "finalized", target)
	}

	s.reportRound(current, target)
	return nil
}

func (s *Syncer) reportRound(current, target uint64) {
	if s.health != nil {
		s.health.SyncRound(current, target)
	}
}
