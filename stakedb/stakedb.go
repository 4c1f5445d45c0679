// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stakedb persists the staking diff history, the per-delegator delegation index and the
// last applied validator set. Diff history is append-only.
package stakedb

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/vechain/thor-relayer/kv"
	"github.com/vechain/thor-relayer/log"
	"github.com/vechain/thor-relayer/staking"
	"github.com/vechain/thor-relayer/thor"
)

var logger = log.WithContext("pkg", "stakedb")

const (
	diffStoreName       = "d" // height => snappy(rlp(diff))
	delegationStoreName = "g" // delegator + height => rlp(delegation)
	validatorStoreName  = "v" // validator => rlp(entry)
	metaStoreName       = "m"
)

var (
	daHeightKey = []byte("da-height")
	headKey     = []byte("head")
)

var (
	// ErrNonIncreasingHeight is returned when ingested diffs do not extend the history.
	ErrNonIncreasingHeight = errors.New("diff height must be greater than stored head")
	// ErrNotFound is returned by point reads of missing entries.
	ErrNotFound = errors.New("not found")
)

// StakeDB is the relayer's persistent staking store.
type StakeDB struct {
	db          kv.Store
	diffs       kv.Store
	delegations kv.Store
	validators  kv.Store
	meta        kv.Store

	// serialises ingestion, so head checks and writes are atomic
	ingestLock sync.Mutex
}

// New creates a StakeDB over the given kv store.
func New(db kv.Store) *StakeDB {
	return &StakeDB{
		db:          db,
		diffs:       kv.Bucket(diffStoreName).NewStore(db),
		delegations: kv.Bucket(delegationStoreName).NewStore(db),
		validators:  kv.Bucket(validatorStoreName).NewStore(db),
		meta:        kv.Bucket(metaStoreName).NewStore(db),
	}
}

func heightKey(height uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], height)
	return key[:]
}

func delegationKey(delegator thor.Address, height uint64) []byte {
	key := make([]byte, 0, thor.AddressLength+8)
	key = append(key, delegator[:]...)
	return binary.BigEndian.AppendUint64(key, height)
}

func (s *StakeDB) getUint64(key []byte) (uint64, error) {
	data, err := s.meta.Get(key)
	if err != nil {
		if s.meta.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	if len(data) != 8 {
		return 0, errors.Errorf("corrupted meta value %q", key)
	}
	return binary.BigEndian.Uint64(data), nil
}

// Head returns the latest source ledger height reported by the watcher.
func (s *StakeDB) Head(_ context.Context) (uint64, error) {
	head, err := s.getUint64(headKey)
	return head, errors.Wrap(err, "get head")
}

// ValidatorsDaHeight returns the height of the persisted validator set, 0 if none.
func (s *StakeDB) ValidatorsDaHeight(_ context.Context) (uint64, error) {
	height, err := s.getUint64(daHeightKey)
	return height, errors.Wrap(err, "get validators da height")
}

// Validators returns the persisted validator set.
func (s *StakeDB) Validators(ctx context.Context) (staking.Set, error) {
	it := s.validators.Iterate(kv.Range{})
	defer it.Release()

	set := make(staking.Set)
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var entry staking.Entry
		if err := rlp.DecodeBytes(it.Value(), &entry); err != nil {
			return nil, errors.Wrap(err, "decode validator entry")
		}
		set[thor.BytesToAddress(it.Key())] = &entry
	}
	return set, errors.Wrap(it.Error(), "iterate validators")
}

// ApplyValidatorDiffs stores the resulting entries of the given validators and the new set height.
// Empty entries are removed.
func (s *StakeDB) ApplyValidatorDiffs(_ context.Context, height uint64, entries staking.Set) error {
	bulk := s.db.Bulk()
	validators := kv.Bucket(validatorStoreName).NewPutter(bulk)
	for _, addr := range entries.Addresses() {
		entry := entries[addr]
		if entry.IsEmpty() {
			if err := validators.Delete(addr[:]); err != nil {
				return err
			}
			continue
		}
		data, err := rlp.EncodeToBytes(entry)
		if err != nil {
			return errors.Wrap(err, "encode validator entry")
		}
		if err := validators.Put(addr[:], data); err != nil {
			return err
		}
	}
	if err := kv.Bucket(metaStoreName).NewPutter(bulk).Put(daHeightKey, heightKey(height)); err != nil {
		return err
	}
	return errors.Wrap(bulk.Write(), "write validator diffs")
}

// InsertStakingDiffs appends diffs to the history and moves the head forward.
// Diffs must be in ascending height order, above the stored head and not above the new head.
func (s *StakeDB) InsertStakingDiffs(_ context.Context, head uint64, diffs []*staking.Diff) error {
	s.ingestLock.Lock()
	defer s.ingestLock.Unlock()

	last, err := s.getUint64(headKey)
	if err != nil {
		return errors.Wrap(err, "get head")
	}
	if head < last {
		return errors.Wrapf(ErrNonIncreasingHeight, "head %d below stored head %d", head, last)
	}

	bulk := s.db.Bulk()
	diffPutter := kv.Bucket(diffStoreName).NewPutter(bulk)
	delegationPutter := kv.Bucket(delegationStoreName).NewPutter(bulk)

	prev := last
	for _, diff := range diffs {
		// height 0 is the empty genesis set and never carries a diff
		if diff.Height <= prev {
			return errors.Wrapf(ErrNonIncreasingHeight, "diff at %d after %d", diff.Height, prev)
		}
		if diff.Height > head {
			return errors.Errorf("diff at %d above head %d", diff.Height, head)
		}
		prev = diff.Height

		data, err := rlp.EncodeToBytes(diff)
		if err != nil {
			return errors.Wrap(err, "encode diff")
		}
		if err := diffPutter.Put(heightKey(diff.Height), snappy.Encode(nil, data)); err != nil {
			return err
		}
		for delegator, delegation := range diff.Delegations {
			enc, err := staking.EncodeDelegation(delegation)
			if err != nil {
				return errors.Wrap(err, "encode delegation")
			}
			if err := delegationPutter.Put(delegationKey(delegator, diff.Height), enc); err != nil {
				return err
			}
		}
	}
	if err := kv.Bucket(metaStoreName).NewPutter(bulk).Put(headKey, heightKey(head)); err != nil {
		return err
	}
	if err := bulk.Write(); err != nil {
		return errors.Wrap(err, "write diffs")
	}
	if len(diffs) > 0 {
		logger.Debug("staking diffs inserted", "count", len(diffs), "head", head)
	}
	return nil
}

func decodeDiff(data []byte) (*staking.Diff, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, "decompress diff")
	}
	var diff staking.Diff
	if err := rlp.DecodeBytes(raw, &diff); err != nil {
		return nil, errors.Wrap(err, "decode diff")
	}
	return &diff, nil
}

// StakingDiff returns the diff stored at the given height, or ErrNotFound.
func (s *StakeDB) StakingDiff(_ context.Context, height uint64) (*staking.Diff, error) {
	data, err := s.diffs.Get(heightKey(height))
	if err != nil {
		if s.diffs.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeDiff(data)
}

// StakingDiffs returns the diffs in [from, to] in ascending height order. A nil to means no upper bound.
func (s *StakeDB) StakingDiffs(ctx context.Context, from uint64, to *uint64) ([]*staking.Diff, error) {
	r := kv.Range{Start: heightKey(from)}
	if to != nil {
		if *to < from {
			return nil, nil
		}
		if *to < ^uint64(0) {
			r.Limit = heightKey(*to + 1)
		}
	}

	it := s.diffs.Iterate(r)
	defer it.Release()

	var diffs []*staking.Diff
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		diff, err := decodeDiff(it.Value())
		if err != nil {
			return nil, err
		}
		if diff.Height != binary.BigEndian.Uint64(it.Key()) {
			return nil, errors.Errorf("diff height %d stored under %x", diff.Height, it.Key())
		}
		diffs = append(diffs, diff)
	}
	return diffs, errors.Wrap(it.Error(), "iterate diffs")
}

// FirstGreaterDelegation returns the nearest delegation of the delegator recorded strictly after the height.
func (s *StakeDB) FirstGreaterDelegation(_ context.Context, delegator thor.Address, height uint64) (*staking.DelegationRecord, error) {
	if height == ^uint64(0) {
		return nil, nil
	}
	it := s.delegations.Iterate(kv.Range{
		Start: delegationKey(delegator, height+1),
		Limit: util.BytesPrefix(delegator[:]).Limit,
	})
	defer it.Release()

	if !it.First() {
		return nil, errors.Wrap(it.Error(), "iterate delegations")
	}
	return decodeDelegationRecord(it.Key(), it.Value())
}

// FirstLesserDelegation returns the nearest delegation of the delegator recorded strictly before the height.
func (s *StakeDB) FirstLesserDelegation(_ context.Context, delegator thor.Address, height uint64) (*staking.DelegationRecord, error) {
	it := s.delegations.Iterate(kv.Range{
		Start: delegationKey(delegator, 0),
		Limit: delegationKey(delegator, height),
	})
	defer it.Release()

	if !it.Last() {
		return nil, errors.Wrap(it.Error(), "iterate delegations")
	}
	return decodeDelegationRecord(it.Key(), it.Value())
}

func decodeDelegationRecord(key, value []byte) (*staking.DelegationRecord, error) {
	if len(key) != thor.AddressLength+8 {
		return nil, errors.Errorf("invalid delegation key %x", key)
	}
	delegation, err := staking.DecodeDelegation(value)
	if err != nil {
		return nil, errors.Wrap(err, "decode delegation")
	}
	return &staking.DelegationRecord{
		Height:     binary.BigEndian.Uint64(key[thor.AddressLength:]),
		Delegation: delegation,
	}, nil
}
