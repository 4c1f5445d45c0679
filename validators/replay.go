// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validators

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vechain/thor-relayer/staking"
	"github.com/vechain/thor-relayer/thor"
)

type direction int

const (
	advance direction = iota
	rewind
)

func (d direction) String() string {
	if d == rewind {
		return "rewind"
	}
	return "advance"
}

// replay folds a range of diffs onto the set of a snapshot.
// Advance walks the diffs above the snapshot in ascending order, rewind walks the diffs
// down to the target height in descending order. Only touched entries are held in acc.
type replay struct {
	ctx    context.Context
	store  Store
	dir    direction
	base   *Snapshot
	target uint64
	acc    staking.Set
	cache  *delegationCache
}

func newReplay(ctx context.Context, store Store, dir direction, base *Snapshot, target uint64) *replay {
	return &replay{
		ctx:    ctx,
		store:  store,
		dir:    dir,
		base:   base,
		target: target,
		acc:    make(staking.Set),
		cache:  newDelegationCache(),
	}
}

// entry returns the accumulated entry of the validator, seeded from the base set.
func (r *replay) entry(addr thor.Address) *staking.Entry {
	e, ok := r.acc[addr]
	if !ok {
		e = r.base.Validators[addr].Copy()
		r.acc[addr] = e
	}
	return e
}

func (r *replay) add(d staking.Delegation, height uint64) error {
	for _, addr := range staking.SortedAddresses(d) {
		e := r.entry(addr)
		stake, err := staking.AddStake(e.Stake, d[addr])
		if err != nil {
			return errors.Wrapf(err, "validator %v at height %d", addr, height)
		}
		e.Stake = stake
	}
	return nil
}

func (r *replay) sub(d staking.Delegation, height uint64) error {
	for _, addr := range staking.SortedAddresses(d) {
		e := r.entry(addr)
		stake, err := staking.SubStake(e.Stake, d[addr])
		if err != nil {
			return errors.Wrapf(err, "validator %v at height %d", addr, height)
		}
		e.Stake = stake
	}
	return nil
}

// apply folds the diffs, which must already be ordered for the direction.
func (r *replay) apply(diffs []*staking.Diff) error {
	for _, diff := range diffs {
		if err := r.step(diff); err != nil {
			return err
		}
	}
	if r.dir == rewind {
		return r.settle()
	}
	return nil
}

func (r *replay) step(diff *staking.Diff) error {
	for _, addr := range staking.SortedAddresses(diff.Validators) {
		key := diff.Validators[addr].New
		if r.dir == rewind {
			key = diff.Validators[addr].Old
		}
		if key != nil {
			k := *key
			key = &k
		}
		r.entry(addr).ConsensusKey = key
	}

	for _, delegator := range staking.SortedAddresses(diff.Delegations) {
		next := diff.Delegations[delegator]
		// add first, stake moved within one validator must not dip below zero
		if err := r.add(next, diff.Height); err != nil {
			return err
		}
		prev, err := r.previous(delegator, diff.Height, next)
		if err != nil {
			return err
		}
		if err := r.sub(prev, diff.Height); err != nil {
			return err
		}
		r.cache.put(delegator, next, diff.Height)
	}
	return nil
}

// previous resolves the allocation the accumulator reflects for the delegator before this step.
func (r *replay) previous(delegator thor.Address, height uint64, next staking.Delegation) (staking.Delegation, error) {
	if prev, ok := r.cache.get(delegator); ok {
		return prev, nil
	}

	if r.dir == advance {
		rec, err := r.store.FirstLesserDelegation(r.ctx, delegator, height)
		if err != nil {
			return nil, storeError("FirstLesserDelegation", err)
		}
		if rec == nil {
			return nil, nil
		}
		if rec.Height > r.base.Height {
			return nil, errors.Wrapf(ErrInconsistentRange,
				"delegation of %v at %d missing from range", delegator, rec.Height)
		}
		return rec.Delegation, nil
	}

	// walking down, the first touch is the delegator's latest record, which the base set
	// already reflects, unless the fetched range skipped a later one
	rec, err := r.store.FirstGreaterDelegation(r.ctx, delegator, height)
	if err != nil {
		return nil, storeError("FirstGreaterDelegation", err)
	}
	if rec != nil && rec.Height <= r.base.Height {
		return nil, errors.Wrapf(ErrInconsistentRange,
			"delegation of %v at %d missing from range", delegator, rec.Height)
	}
	return next, nil
}

// settle replaces each touched delegator's oldest undone allocation with the one in effect before it.
func (r *replay) settle() error {
	for _, delegator := range r.cache.delegators() {
		height := r.cache.lowestHeight(delegator)
		rec, err := r.store.FirstLesserDelegation(r.ctx, delegator, height)
		if err != nil {
			return storeError("FirstLesserDelegation", err)
		}
		var prior staking.Delegation
		if rec != nil {
			if rec.Height > r.target {
				return errors.Wrapf(ErrInconsistentRange,
					"delegation of %v at %d missing from range", delegator, rec.Height)
			}
			prior = rec.Delegation
		}
		if err := r.add(prior, height); err != nil {
			return err
		}
		reflected, _ := r.cache.get(delegator)
		if err := r.sub(reflected, height); err != nil {
			return err
		}
	}
	return nil
}

// result returns the base set overlaid with the accumulated entries, without empty entries.
func (r *replay) result() staking.Set {
	set := make(staking.Set, len(r.base.Validators)+len(r.acc))
	for addr, e := range r.base.Validators {
		set[addr] = e
	}
	for addr, e := range r.acc {
		set[addr] = e
	}
	return set.Compact()
}

// checkRange verifies the diffs are strictly ascending and within (from, to].
func checkRange(diffs []*staking.Diff, from, to uint64) error {
	prev := from
	for _, diff := range diffs {
		if diff.Height <= prev || diff.Height > to {
			return errors.Wrapf(ErrInconsistentRange, "diff at %d in range (%d, %d] after %d", diff.Height, from, to, prev)
		}
		prev = diff.Height
	}
	return nil
}
