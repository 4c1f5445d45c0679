// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package validators keeps the stake weighted validator set of the source ledger in sync with the
// stored diff history, and derives the set of any finalized height.
package validators

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/vechain/thor-relayer/cache"
	"github.com/vechain/thor-relayer/log"
	"github.com/vechain/thor-relayer/metrics"
	"github.com/vechain/thor-relayer/staking"
)

var logger = log.WithContext("pkg", "validators")

const defaultPeekCacheSize = 128

// Snapshot is the validator set at a height.
type Snapshot struct {
	Height     uint64
	Validators staking.Set
}

// Options configures Validators.
type Options struct {
	// PeekCacheSize is the number of derived sets Peek keeps, defaults to 128.
	PeekCacheSize int
}

// Validators is the authoritative validator set.
// Load, BumpSetToDaHeight and Get run one at a time; Current and Peek never wait for them.
type Validators struct {
	store Store

	lock     sync.Mutex
	snapshot atomic.Pointer[Snapshot] // immutable once stored

	peeks     *cache.LRU[uint64, staking.Set]
	peekGroup singleflight.Group
}

// New creates an empty set at height 0 backed by the store. Call Load to restore the persisted set.
func New(store Store, opts Options) (*Validators, error) {
	size := opts.PeekCacheSize
	if size <= 0 {
		size = defaultPeekCacheSize
	}
	peeks, err := cache.NewLRU[uint64, staking.Set](size)
	if err != nil {
		return nil, errors.Wrap(err, "new peek cache")
	}

	v := &Validators{
		store: store,
		peeks: peeks,
	}
	v.swap(&Snapshot{Validators: make(staking.Set)})
	return v, nil
}

func (v *Validators) swap(snap *Snapshot) {
	v.snapshot.Store(snap)
	metricSetHeight().Set(int64(snap.Height))
	metricSetSize().Set(int64(len(snap.Validators)))
}

// Load replaces the set with the persisted one. Nothing persisted yields the empty set at height 0.
// On error the set is left untouched.
func (v *Validators) Load(ctx context.Context) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	height, err := v.store.ValidatorsDaHeight(ctx)
	if err != nil {
		return storeError("ValidatorsDaHeight", err)
	}
	set, err := v.store.Validators(ctx)
	if err != nil {
		return storeError("Validators", err)
	}

	v.swap(&Snapshot{Height: height, Validators: set.Compact()})
	// derived sets may stem from another base
	v.peeks.Purge()
	logger.Info("validator set loaded", "height", height, "validators", len(set))
	return nil
}

// Current returns a copy of the set and its height.
func (v *Validators) Current() Snapshot {
	snap := v.snapshot.Load()
	return Snapshot{Height: snap.Height, Validators: snap.Validators.Clone()}
}

// Height returns the current height.
func (v *Validators) Height() uint64 {
	return v.snapshot.Load().Height
}

// BumpSetToDaHeight advances the set to the given finalized height by replaying the stored
// diffs above the current height. The changed entries are persisted before the set is updated.
// Advancing to the current height is a no-op, to a lower height returns ErrBackwardAdvance.
func (v *Validators) BumpSetToDaHeight(ctx context.Context, height uint64) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	snap := v.snapshot.Load()
	if height == snap.Height {
		logger.Info("validator set already at height", "height", height)
		return nil
	}
	if height < snap.Height {
		logger.Error("refused to advance validator set backward", "current", snap.Height, "target", height)
		return errors.Wrapf(ErrBackwardAdvance, "target %d, current %d", height, snap.Height)
	}

	start := time.Now()
	changed, err := v.advance(ctx, snap, height)
	recordReplay(advance, err)
	if err != nil {
		return err
	}
	metricReplayDuration().ObserveWithLabels(metrics.Since(start), map[string]string{"direction": advance.String()})
	logger.Debug("validator set advanced", "from", snap.Height, "to", height, "changed", changed)
	return nil
}

func (v *Validators) advance(ctx context.Context, snap *Snapshot, height uint64) (int, error) {
	diffs, err := v.store.StakingDiffs(ctx, snap.Height+1, &height)
	if err != nil {
		return 0, storeError("StakingDiffs", err)
	}
	if err := checkRange(diffs, snap.Height, height); err != nil {
		return 0, err
	}

	r := newReplay(ctx, v.store, advance, snap, height)
	if err := r.apply(diffs); err != nil {
		return 0, err
	}
	if err := v.store.ApplyValidatorDiffs(ctx, height, r.acc); err != nil {
		return 0, storeError("ApplyValidatorDiffs", err)
	}

	v.swap(&Snapshot{Height: height, Validators: r.result()})
	return len(r.acc), nil
}

// rewindTo undoes the diffs above height on the snapshot's set.
func (v *Validators) rewindTo(ctx context.Context, snap *Snapshot, height uint64) (*replay, error) {
	start := time.Now()
	r, err := func() (*replay, error) {
		diffs, err := v.store.StakingDiffs(ctx, height+1, &snap.Height)
		if err != nil {
			return nil, storeError("StakingDiffs", err)
		}
		if err := checkRange(diffs, height, snap.Height); err != nil {
			return nil, err
		}
		slices.Reverse(diffs)

		r := newReplay(ctx, v.store, rewind, snap, height)
		if err := r.apply(diffs); err != nil {
			return nil, err
		}
		return r, nil
	}()
	recordReplay(rewind, err)
	if err != nil {
		return nil, err
	}
	metricReplayDuration().ObserveWithLabels(metrics.Since(start), map[string]string{"direction": rewind.String()})
	return r, nil
}

// Get returns the set at the given height. Heights above the current one return ErrUnfinalizedHeight.
//
// Get is not read-only: for a height below the current one, the derived set replaces the
// authoritative set, in memory and in the store, and the height moves back.
// Use Peek for a side-effect free view.
func (v *Validators) Get(ctx context.Context, height uint64) (staking.Set, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	snap := v.snapshot.Load()
	if height > snap.Height {
		return nil, errors.Wrapf(ErrUnfinalizedHeight, "height %d, current %d", height, snap.Height)
	}
	if height == snap.Height {
		logger.Info("validator set already at height", "height", height)
		return snap.Validators.Clone(), nil
	}

	r, err := v.rewindTo(ctx, snap, height)
	if err != nil {
		return nil, err
	}
	// keep the persisted set in step with the rewound one
	if err := v.store.ApplyValidatorDiffs(ctx, height, r.acc); err != nil {
		return nil, storeError("ApplyValidatorDiffs", err)
	}

	set := r.result()
	v.swap(&Snapshot{Height: height, Validators: set})
	v.peeks.Add(height, set)
	logger.Info("validator set rewound", "from", snap.Height, "to", height)
	return set.Clone(), nil
}

// Peek returns the set at the given height without changing the current set.
// Derived sets are cached, concurrent peeks of one height share a single replay.
func (v *Validators) Peek(ctx context.Context, height uint64) (staking.Set, error) {
	snap := v.snapshot.Load()
	if height > snap.Height {
		return nil, errors.Wrapf(ErrUnfinalizedHeight, "height %d, current %d", height, snap.Height)
	}
	if height == snap.Height {
		return snap.Validators.Clone(), nil
	}

	// the shared replay outlives any single caller, each caller still honours its own ctx
	loadCtx := context.WithoutCancel(ctx)
	ch := v.peekGroup.DoChan(strconv.FormatUint(height, 10), func() (any, error) {
		event := "hit"
		set, err := v.peeks.GetOrLoad(height, func(h uint64) (staking.Set, error) {
			event = "miss"
			r, err := v.rewindTo(loadCtx, snap, h)
			if err != nil {
				return nil, err
			}
			return r.result(), nil
		})
		metricPeekCache().AddWithLabel(1, map[string]string{"event": event})
		return set, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	if changed, hit, miss := v.peeks.Stats(); changed {
		logger.Debug("peek cache stats", "hit", hit, "miss", miss)
	}
	return res.Val.(staking.Set).Clone(), nil
}
