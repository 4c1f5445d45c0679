// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validators

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thor-relayer/lvldb"
	"github.com/vechain/thor-relayer/stakedb"
	"github.com/vechain/thor-relayer/staking"
	"github.com/vechain/thor-relayer/thor"
)

var errStoreDown = errors.New("store down")

// testStore counts range fetches, fails a chosen operation and can hide a diff height from range reads.
// With hold set, range reads report on entered and wait for hold to close or ctx to end.
type testStore struct {
	Store
	fail         string
	skip         uint64
	rangeFetches atomic.Int32
	hold         chan struct{}
	entered      chan struct{}
}

func (s *testStore) check(op string) error {
	if s.fail == op {
		return errStoreDown
	}
	return nil
}

func (s *testStore) ValidatorsDaHeight(ctx context.Context) (uint64, error) {
	if err := s.check("ValidatorsDaHeight"); err != nil {
		return 0, err
	}
	return s.Store.ValidatorsDaHeight(ctx)
}

func (s *testStore) Validators(ctx context.Context) (staking.Set, error) {
	if err := s.check("Validators"); err != nil {
		return nil, err
	}
	return s.Store.Validators(ctx)
}

func (s *testStore) StakingDiffs(ctx context.Context, from uint64, to *uint64) ([]*staking.Diff, error) {
	s.rangeFetches.Add(1)
	if err := s.check("StakingDiffs"); err != nil {
		return nil, err
	}
	if s.hold != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
		select {
		case <-s.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	diffs, err := s.Store.StakingDiffs(ctx, from, to)
	if err != nil || s.skip == 0 {
		return diffs, err
	}
	return slices.DeleteFunc(diffs, func(d *staking.Diff) bool { return d.Height == s.skip }), nil
}

func (s *testStore) FirstGreaterDelegation(ctx context.Context, delegator thor.Address, height uint64) (*staking.DelegationRecord, error) {
	if err := s.check("FirstGreaterDelegation"); err != nil {
		return nil, err
	}
	return s.Store.FirstGreaterDelegation(ctx, delegator, height)
}

func (s *testStore) FirstLesserDelegation(ctx context.Context, delegator thor.Address, height uint64) (*staking.DelegationRecord, error) {
	if err := s.check("FirstLesserDelegation"); err != nil {
		return nil, err
	}
	return s.Store.FirstLesserDelegation(ctx, delegator, height)
}

func (s *testStore) ApplyValidatorDiffs(ctx context.Context, height uint64, entries staking.Set) error {
	if err := s.check("ApplyValidatorDiffs"); err != nil {
		return err
	}
	return s.Store.ApplyValidatorDiffs(ctx, height, entries)
}

func addr(b ...byte) thor.Address {
	return thor.BytesToAddress(b)
}

func key(b byte) *thor.Address {
	k := addr(0xc0, b)
	return &k
}

func newTestDB(t *testing.T) *stakedb.StakeDB {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return stakedb.New(db)
}

func newTestValidators(t *testing.T, db *stakedb.StakeDB) (*Validators, *testStore) {
	store := &testStore{Store: db}
	v, err := New(store, Options{})
	require.NoError(t, err)
	require.NoError(t, v.Load(context.Background()))
	return v, store
}

// newEngine creates an engine at genesis over a store holding the history.
func newEngine(t *testing.T, history []*staking.Diff, head uint64) (*Validators, *testStore, *stakedb.StakeDB) {
	db := newTestDB(t)
	require.NoError(t, db.InsertStakingDiffs(context.Background(), head, history))
	v, store := newTestValidators(t, db)
	return v, store, db
}

func delegate(height uint64, delegator thor.Address, d staking.Delegation) *staking.Diff {
	diff := staking.NewDiff(height)
	diff.Delegations[delegator] = d
	return diff
}

func TestLoadEmpty(t *testing.T) {
	v, _ := newTestValidators(t, newTestDB(t))

	cur := v.Current()
	assert.Zero(t, cur.Height)
	assert.Empty(t, cur.Validators)
}

func TestLoadDropsDerivedSets(t *testing.T) {
	ctx := context.Background()
	d := addr(0xd1)
	v, _, db := newEngine(t, []*staking.Diff{
		delegate(2, d, staking.Delegation{addr(1): 10}),
		delegate(4, d, staking.Delegation{addr(2): 20}),
	}, 4)
	require.NoError(t, v.BumpSetToDaHeight(ctx, 4))

	set, err := v.Peek(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, staking.Set{addr(1): {Stake: 10}}, set)

	// persisted set replaced behind the engine's back
	require.NoError(t, db.ApplyValidatorDiffs(ctx, 4, staking.Set{addr(3): {Stake: 5}}))
	require.NoError(t, v.Load(ctx))

	set, err = v.Peek(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, staking.Set{addr(1): {Stake: 10}, addr(3): {Stake: 5}}, set)
}

func TestLoadFailureKeepsSet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.ApplyValidatorDiffs(ctx, 100, staking.Set{addr(1): {Stake: 5}}))
	v, store := newTestValidators(t, db)

	store.fail = "Validators"
	err := v.Load(ctx)

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "Validators", storeErr.Op)
	assert.True(t, errors.Is(err, errStoreDown))
	assert.Equal(t, uint64(100), v.Height())
}

func TestKeyAndDelegationScenario(t *testing.T) {
	ctx := context.Background()
	var (
		v1, v2 = addr(1), addr(2)
		d1     = addr(0xd1)
	)

	db := newTestDB(t)
	require.NoError(t, db.ApplyValidatorDiffs(ctx, 100, staking.Set{v1: {Stake: 500, ConsensusKey: key(1)}}))

	d101 := delegate(101, d1, staking.Delegation{v1: 200})
	d101.Validators[v1] = staking.ValidatorDiff{Old: key(1), New: key(2)}
	d102 := delegate(102, d1, staking.Delegation{v2: 200})
	require.NoError(t, db.InsertStakingDiffs(ctx, 102, []*staking.Diff{d101, d102}))

	v, _ := newTestValidators(t, db)
	require.Equal(t, uint64(100), v.Height())

	at100 := staking.Set{v1: {Stake: 500, ConsensusKey: key(1)}}
	at101 := staking.Set{v1: {Stake: 700, ConsensusKey: key(2)}}
	at102 := staking.Set{v1: {Stake: 500, ConsensusKey: key(2)}, v2: {Stake: 200}}

	require.NoError(t, v.BumpSetToDaHeight(ctx, 101))
	assert.True(t, at101.Equal(v.Current().Validators))

	persisted, err := db.Validators(ctx)
	require.NoError(t, err)
	assert.True(t, at101.Equal(persisted))

	set, err := v.Get(ctx, 100)
	require.NoError(t, err)
	assert.True(t, at100.Equal(set))
	assert.Equal(t, uint64(100), v.Height())

	require.NoError(t, v.BumpSetToDaHeight(ctx, 102))
	assert.True(t, at102.Equal(v.Current().Validators))

	// re-delegation rolled back restores the earlier allocation
	set, err = v.Get(ctx, 101)
	require.NoError(t, err)
	assert.True(t, at101.Equal(set))
	assert.Equal(t, uint64(101), v.Height())

	persisted, err = db.Validators(ctx)
	require.NoError(t, err)
	assert.True(t, at101.Equal(persisted))
	height, err := db.ValidatorsDaHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), height)
}

func TestConservationUnderReplace(t *testing.T) {
	ctx := context.Background()
	var (
		v1, v2, v3 = addr(1), addr(2), addr(3)
		d          = addr(0xd1)
	)
	v, _, _ := newEngine(t, []*staking.Diff{
		delegate(10, d, staking.Delegation{v1: 100, v2: 50}),
		delegate(20, d, staking.Delegation{v2: 80, v3: 10}),
	}, 20)

	require.NoError(t, v.BumpSetToDaHeight(ctx, 10))
	before := v.Current().Validators
	require.NoError(t, v.BumpSetToDaHeight(ctx, 20))
	after := v.Current().Validators

	stake := func(s staking.Set, a thor.Address) int64 {
		if e := s[a]; e != nil {
			return int64(e.Stake)
		}
		return 0
	}
	assert.Equal(t, int64(-100), stake(after, v1)-stake(before, v1))
	assert.Equal(t, int64(30), stake(after, v2)-stake(before, v2))
	assert.Equal(t, int64(10), stake(after, v3)-stake(before, v3))
	assert.NotContains(t, after, v1)
}

func TestWithdrawAndEmptyAllocation(t *testing.T) {
	ctx := context.Background()
	var (
		v1     = addr(1)
		d1, d2 = addr(0xd1), addr(0xd2)
	)
	v, _, _ := newEngine(t, []*staking.Diff{
		delegate(1, d1, staking.Delegation{v1: 10}),
		delegate(2, d2, staking.Delegation{v1: 5}),
		delegate(3, d1, nil),
		delegate(4, d2, staking.Delegation{}),
	}, 4)

	require.NoError(t, v.BumpSetToDaHeight(ctx, 2))
	assert.Equal(t, uint64(15), v.Current().Validators[v1].Stake)
	require.NoError(t, v.BumpSetToDaHeight(ctx, 3))
	assert.Equal(t, uint64(5), v.Current().Validators[v1].Stake)
	require.NoError(t, v.BumpSetToDaHeight(ctx, 4))
	assert.Empty(t, v.Current().Validators)

	set, err := v.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), set[v1].Stake)
}

func TestEqualHeightNoRangeFetch(t *testing.T) {
	ctx := context.Background()
	v, store, _ := newEngine(t, []*staking.Diff{delegate(5, addr(0xd1), staking.Delegation{addr(1): 1})}, 5)

	require.NoError(t, v.BumpSetToDaHeight(ctx, 5))
	fetches := store.rangeFetches.Load()

	require.NoError(t, v.BumpSetToDaHeight(ctx, 5))
	set, err := v.Get(ctx, 5)
	require.NoError(t, err)
	_, err = v.Peek(ctx, 5)
	require.NoError(t, err)

	assert.Equal(t, fetches, store.rangeFetches.Load())
	assert.Equal(t, uint64(5), v.Height())
	assert.Equal(t, uint64(1), set[addr(1)].Stake)
}

func TestBackwardAdvance(t *testing.T) {
	ctx := context.Background()
	v, _, db := newEngine(t, []*staking.Diff{delegate(5, addr(0xd1), staking.Delegation{addr(1): 1})}, 10)

	require.NoError(t, v.BumpSetToDaHeight(ctx, 10))
	before := v.Current()

	err := v.BumpSetToDaHeight(ctx, 9)
	assert.True(t, errors.Is(err, ErrBackwardAdvance))
	assert.Equal(t, before, v.Current())

	height, err := db.ValidatorsDaHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), height)
}

func TestUnfinalizedHeight(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newEngine(t, nil, 10)
	require.NoError(t, v.BumpSetToDaHeight(ctx, 3))

	_, err := v.Get(ctx, 4)
	assert.True(t, errors.Is(err, ErrUnfinalizedHeight))
	_, err = v.Peek(ctx, 4)
	assert.True(t, errors.Is(err, ErrUnfinalizedHeight))
	assert.Equal(t, uint64(3), v.Height())
}

func TestGetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d := addr(0xd1)
	v, _, _ := newEngine(t, []*staking.Diff{
		delegate(2, d, staking.Delegation{addr(1): 10}),
		delegate(4, d, staking.Delegation{addr(2): 20}),
		delegate(6, d, staking.Delegation{addr(1): 30}),
	}, 6)
	require.NoError(t, v.BumpSetToDaHeight(ctx, 6))

	first, err := v.Get(ctx, 3)
	require.NoError(t, err)
	second, err := v.Get(ctx, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, staking.Set{addr(1): {Stake: 10}}, first)
}

func TestPeekDoesNotRewind(t *testing.T) {
	ctx := context.Background()
	d := addr(0xd1)
	v, store, db := newEngine(t, []*staking.Diff{
		delegate(2, d, staking.Delegation{addr(1): 10}),
		delegate(4, d, staking.Delegation{addr(2): 20}),
	}, 4)
	require.NoError(t, v.BumpSetToDaHeight(ctx, 4))
	current := v.Current()

	peeked, err := v.Peek(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, staking.Set{addr(1): {Stake: 10}}, peeked)
	assert.Equal(t, current, v.Current())

	height, err := db.ValidatorsDaHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), height)

	// served from cache
	fetches := store.rangeFetches.Load()
	again, err := v.Peek(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, peeked, again)
	assert.Equal(t, fetches, store.rangeFetches.Load())

	// returned sets are copies
	again[addr(1)].Stake = 0
	again, err = v.Peek(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), again[addr(1)].Stake)

	got, err := v.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, peeked, got)
}

func TestConcurrentPeek(t *testing.T) {
	ctx := context.Background()
	d := addr(0xd1)
	v, _, _ := newEngine(t, []*staking.Diff{
		delegate(2, d, staking.Delegation{addr(1): 10}),
		delegate(4, d, staking.Delegation{addr(2): 20}),
	}, 8)
	require.NoError(t, v.BumpSetToDaHeight(ctx, 4))

	var wg sync.WaitGroup
	wg.Go(func() {
		for h := uint64(5); h <= 7; h++ {
			assert.NoError(t, v.BumpSetToDaHeight(ctx, h))
		}
	})
	for i := range 16 {
		wg.Go(func() {
			set, err := v.Peek(ctx, uint64(i%4))
			assert.NoError(t, err)
			if i%4 >= 2 {
				assert.Equal(t, uint64(10), set[addr(1)].Stake)
			}
		})
	}
	wg.Wait()
	assert.Equal(t, uint64(7), v.Height())
}

func TestPeekCallerCancel(t *testing.T) {
	ctx := context.Background()
	d := addr(0xd1)
	v, store, _ := newEngine(t, []*staking.Diff{
		delegate(2, d, staking.Delegation{addr(1): 10}),
		delegate(4, d, staking.Delegation{addr(2): 20}),
	}, 4)
	require.NoError(t, v.BumpSetToDaHeight(ctx, 4))

	store.hold = make(chan struct{})
	store.entered = make(chan struct{}, 1)
	fetches := store.rangeFetches.Load()

	canceledCtx, cancel := context.WithCancel(ctx)
	canceled := make(chan error, 1)
	go func() {
		_, err := v.Peek(canceledCtx, 3)
		canceled <- err
	}()
	<-store.entered

	type result struct {
		set staking.Set
		err error
	}
	live := make(chan result, 1)
	go func() {
		set, err := v.Peek(ctx, 3)
		live <- result{set, err}
	}()

	cancel()
	assert.ErrorIs(t, <-canceled, context.Canceled)

	// the shared replay keeps running for the remaining caller
	close(store.hold)
	res := <-live
	require.NoError(t, res.err)
	assert.Equal(t, staking.Set{addr(1): {Stake: 10}}, res.set)
	assert.Equal(t, fetches+1, store.rangeFetches.Load())
	assert.Equal(t, uint64(4), v.Height())
}

func TestStoreFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	d := addr(0xd1)
	history := []*staking.Diff{
		delegate(2, d, staking.Delegation{addr(1): 10}),
		delegate(4, d, staking.Delegation{addr(2): 20}),
	}

	for _, op := range []string{"StakingDiffs", "FirstLesserDelegation", "ApplyValidatorDiffs"} {
		t.Run("bump "+op, func(t *testing.T) {
			v, store, db := newEngine(t, history, 4)
			require.NoError(t, v.BumpSetToDaHeight(ctx, 2))
			before := v.Current()

			store.fail = op
			err := v.BumpSetToDaHeight(ctx, 4)

			var storeErr *StoreError
			require.True(t, errors.As(err, &storeErr))
			assert.Equal(t, op, storeErr.Op)
			assert.Equal(t, before, v.Current())
			height, err := db.ValidatorsDaHeight(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), height)

			store.fail = ""
			require.NoError(t, v.BumpSetToDaHeight(ctx, 4))
		})
	}

	for _, op := range []string{"StakingDiffs", "FirstGreaterDelegation", "FirstLesserDelegation", "ApplyValidatorDiffs"} {
		t.Run("get "+op, func(t *testing.T) {
			v, store, _ := newEngine(t, history, 4)
			require.NoError(t, v.BumpSetToDaHeight(ctx, 4))
			before := v.Current()

			store.fail = op
			_, err := v.Get(ctx, 3)

			var storeErr *StoreError
			require.True(t, errors.As(err, &storeErr))
			assert.Equal(t, op, storeErr.Op)
			assert.Equal(t, before, v.Current())
		})
	}
}

func TestStakeUnderflowAborts(t *testing.T) {
	ctx := context.Background()
	d := addr(0xd1)
	db := newTestDB(t)

	// the persisted set disagrees with the delegation history
	require.NoError(t, db.InsertStakingDiffs(ctx, 100, []*staking.Diff{delegate(50, d, staking.Delegation{addr(1): 500})}))
	require.NoError(t, db.ApplyValidatorDiffs(ctx, 100, staking.Set{addr(1): {Stake: 100}}))
	require.NoError(t, db.InsertStakingDiffs(ctx, 101, []*staking.Diff{delegate(101, d, staking.Delegation{addr(2): 1})}))

	v, _ := newTestValidators(t, db)
	before := v.Current()

	err := v.BumpSetToDaHeight(ctx, 101)
	assert.True(t, errors.Is(err, staking.ErrStakeUnderflow))
	assert.Equal(t, before, v.Current())

	persisted, err := db.Validators(ctx)
	require.NoError(t, err)
	assert.True(t, before.Validators.Equal(persisted))
}

func TestInconsistentRange(t *testing.T) {
	ctx := context.Background()
	d := addr(0xd1)
	history := []*staking.Diff{
		delegate(102, d, staking.Delegation{addr(1): 10}),
		delegate(103, d, staking.Delegation{addr(2): 20}),
	}

	t.Run("advance", func(t *testing.T) {
		v, store, _ := newEngine(t, history, 105)
		store.skip = 102

		err := v.BumpSetToDaHeight(ctx, 105)
		assert.True(t, errors.Is(err, ErrInconsistentRange))
		assert.Zero(t, v.Height())
	})

	t.Run("rewind", func(t *testing.T) {
		v, store, _ := newEngine(t, history, 105)
		require.NoError(t, v.BumpSetToDaHeight(ctx, 105))
		before := v.Current()
		store.skip = 103

		_, err := v.Get(ctx, 100)
		assert.True(t, errors.Is(err, ErrInconsistentRange))
		assert.Equal(t, before, v.Current())

		_, err = v.Peek(ctx, 100)
		assert.True(t, errors.Is(err, ErrInconsistentRange))
	})

	t.Run("out of range diff", func(t *testing.T) {
		assert.True(t, errors.Is(checkRange([]*staking.Diff{staking.NewDiff(3), staking.NewDiff(3)}, 0, 5), ErrInconsistentRange))
		assert.True(t, errors.Is(checkRange([]*staking.Diff{staking.NewDiff(6)}, 0, 5), ErrInconsistentRange))
		assert.True(t, errors.Is(checkRange([]*staking.Diff{staking.NewDiff(0)}, 0, 5), ErrInconsistentRange))
		assert.NoError(t, checkRange([]*staking.Diff{staking.NewDiff(1), staking.NewDiff(5)}, 0, 5))
	})
}

func TestReloadMatchesMemory(t *testing.T) {
	ctx := context.Background()
	history := randomHistory(7, 30)
	v, _, db := newEngine(t, history, 30)

	require.NoError(t, v.BumpSetToDaHeight(ctx, 30))
	_, err := v.Get(ctx, 12)
	require.NoError(t, err)
	require.NoError(t, v.BumpSetToDaHeight(ctx, 20))

	reloaded, _ := newTestValidators(t, db)
	assert.Equal(t, v.Current(), reloaded.Current())
}

// randomHistory generates a valid diff history: old keys match the previous new keys
// and delegations only move stake the delegator has delegated.
func randomHistory(seed int64, n uint64) []*staking.Diff {
	var (
		f          = fuzz.NewWithSeed(seed).NilChance(0)
		validators = []thor.Address{addr(1), addr(2), addr(3), addr(4)}
		delegators = []thor.Address{addr(0xd1), addr(0xd2), addr(0xd3)}
		keys       = make(map[thor.Address]*thor.Address)
		diffs      []*staking.Diff
		r          uint8
	)
	for h := uint64(1); h <= n; h++ {
		if f.Fuzz(&r); r%3 == 0 {
			continue
		}
		diff := staking.NewDiff(h)
		for _, v := range validators {
			if f.Fuzz(&r); r%4 != 0 {
				continue
			}
			var next *thor.Address
			if f.Fuzz(&r); r%3 != 0 {
				next = key(r)
			}
			diff.Validators[v] = staking.ValidatorDiff{Old: keys[v], New: next}
			keys[v] = next
		}
		for _, d := range delegators {
			if f.Fuzz(&r); r%3 != 0 {
				continue
			}
			switch f.Fuzz(&r); r % 4 {
			case 0:
				diff.Delegations[d] = nil
			case 1:
				diff.Delegations[d] = staking.Delegation{}
			default:
				del := make(staking.Delegation)
				for _, v := range validators {
					var amount uint16
					if f.Fuzz(&amount); amount%2 == 0 {
						del[v] = uint64(amount)
					}
				}
				diff.Delegations[d] = del
			}
		}
		diffs = append(diffs, diff)
	}
	return diffs
}

// setAt computes the set at height directly from the history: each delegator's latest allocation
// at or below height summed per validator, and each validator's latest key at or below height.
func setAt(history []*staking.Diff, height uint64) staking.Set {
	var (
		allocations = make(map[thor.Address]staking.Delegation)
		keys        = make(map[thor.Address]*thor.Address)
	)
	for _, diff := range history {
		if diff.Height > height {
			break
		}
		for v, vd := range diff.Validators {
			keys[v] = vd.New
		}
		for d, del := range diff.Delegations {
			allocations[d] = del
		}
	}

	set := make(staking.Set)
	entry := func(v thor.Address) *staking.Entry {
		if set[v] == nil {
			set[v] = &staking.Entry{}
		}
		return set[v]
	}
	for v, k := range keys {
		entry(v).ConsensusKey = k
	}
	for _, del := range allocations {
		for v, amount := range del {
			entry(v).Stake += amount
		}
	}
	return set.Compact()
}

func TestRandomHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	const n = 40

	for seed := range int64(16) {
		history := randomHistory(seed, n)

		expected := make(map[uint64]staking.Set, n+1)
		for h := uint64(0); h <= n; h++ {
			expected[h] = setAt(history, h)
		}

		// advancing one height at a time from genesis
		stepper, _, _ := newEngine(t, history, n)
		require.True(t, expected[0].Equal(stepper.Current().Validators), "seed %d genesis", seed)
		for h := uint64(1); h <= n; h++ {
			require.NoError(t, stepper.BumpSetToDaHeight(ctx, h))
			require.True(t, expected[h].Equal(stepper.Current().Validators), "seed %d step to %d", seed, h)
		}

		// advancing in random steps lands on the same sets
		v, _, _ := newEngine(t, history, n)
		f := fuzz.NewWithSeed(seed)
		for h := uint64(0); h < n; {
			var step uint8
			f.Fuzz(&step)
			h = min(n, h+uint64(step%7)+1)
			require.NoError(t, v.BumpSetToDaHeight(ctx, h))
			require.True(t, expected[h].Equal(v.Current().Validators), "seed %d advance to %d", seed, h)
		}

		// every lower height is reproduced without rewinding
		for h := uint64(0); h <= n; h++ {
			set, err := v.Peek(ctx, h)
			require.NoError(t, err)
			require.True(t, expected[h].Equal(set), "seed %d peek %d", seed, h)
		}
		require.Equal(t, uint64(n), v.Height())

		// rewinding step by step, then advancing again
		for h := uint64(n); h > 0; h -= min(h, 9) {
			set, err := v.Get(ctx, h-min(h, 9))
			require.NoError(t, err)
			require.True(t, expected[h-min(h, 9)].Equal(set), "seed %d rewind to %d", seed, h-min(h, 9))
		}
		require.Zero(t, v.Height())
		require.NoError(t, v.BumpSetToDaHeight(ctx, n))
		require.True(t, expected[n].Equal(v.Current().Validators), "seed %d re-advance", seed)
	}
}

func TestCurrentDuringSync(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newEngine(t, randomHistory(3, 50), 50)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for h := uint64(1); h <= 50; h++ {
			assert.NoError(t, v.BumpSetToDaHeight(ctx, h))
		}
	}()

	var last uint64
	for {
		select {
		case <-done:
			assert.Equal(t, uint64(50), v.Height())
			return
		default:
			cur := v.Current()
			assert.GreaterOrEqual(t, cur.Height, last)
			last = cur.Height
		}
	}
}
