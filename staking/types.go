// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"maps"
	"slices"

	"github.com/holiman/uint256"

	"github.com/vechain/thor-relayer/thor"
)

// Entry is a validator's stake and consensus key at some source ledger height.
type Entry struct {
	Stake        uint64
	ConsensusKey *thor.Address `rlp:"nil"` // nil when no consensus key is registered
}

// IsEmpty returns whether the entry can be treated as absent.
func (e *Entry) IsEmpty() bool {
	return e == nil || (e.Stake == 0 && e.ConsensusKey == nil)
}

// Copy returns a deep copy of the entry.
func (e *Entry) Copy() *Entry {
	if e == nil {
		return &Entry{}
	}
	cpy := &Entry{Stake: e.Stake}
	if e.ConsensusKey != nil {
		key := *e.ConsensusKey
		cpy.ConsensusKey = &key
	}
	return cpy
}

// Equal compares stake and consensus key.
func (e *Entry) Equal(other *Entry) bool {
	if e.IsEmpty() || other.IsEmpty() {
		return e.IsEmpty() == other.IsEmpty()
	}
	if e.Stake != other.Stake {
		return false
	}
	if e.ConsensusKey == nil || other.ConsensusKey == nil {
		return e.ConsensusKey == other.ConsensusKey
	}
	return *e.ConsensusKey == *other.ConsensusKey
}

// Set maps validator address to its entry.
type Set map[thor.Address]*Entry

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	cpy := make(Set, len(s))
	for addr, entry := range s {
		cpy[addr] = entry.Copy()
	}
	return cpy
}

// Equal reports whether both sets hold the same validators, treating empty entries as absent.
func (s Set) Equal(other Set) bool {
	for addr, entry := range s {
		if !entry.Equal(other[addr]) {
			return false
		}
	}
	for addr, entry := range other {
		if !entry.Equal(s[addr]) {
			return false
		}
	}
	return true
}

// Compact returns a copy without the empty entries.
func (s Set) Compact() Set {
	cpy := make(Set, len(s))
	for addr, entry := range s {
		if !entry.IsEmpty() {
			cpy[addr] = entry.Copy()
		}
	}
	return cpy
}

// TotalStake sums the stake of all validators. The sum may exceed 64 bits.
func (s Set) TotalStake() *uint256.Int {
	total := new(uint256.Int)
	for _, entry := range s {
		if entry != nil {
			total.Add(total, uint256.NewInt(entry.Stake))
		}
	}
	return total
}

// Addresses returns the validator addresses in byte order.
func (s Set) Addresses() []thor.Address {
	return SortedAddresses(s)
}

// ValidatorDiff is a consensus key change: the key was Old before the height and is New from it on.
type ValidatorDiff struct {
	Old *thor.Address `rlp:"nil"`
	New *thor.Address `rlp:"nil"`
}

// Delegation is one delegator's allocation of stake across validators.
// A nil Delegation means the delegator has no delegation; an empty non-nil one is an empty allocation.
type Delegation map[thor.Address]uint64

// Copy returns a copy, preserving nil.
func (d Delegation) Copy() Delegation {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}

// DelegationRecord is a stored delegation together with the height it was recorded at.
type DelegationRecord struct {
	Height     uint64
	Delegation Delegation
}

// Diff holds the validator key and delegation changes attributed to one source ledger height.
type Diff struct {
	Height      uint64
	Validators  map[thor.Address]ValidatorDiff
	Delegations map[thor.Address]Delegation // nil value: the delegator withdrew its delegation
}

// NewDiff creates an empty diff at the given height.
func NewDiff(height uint64) *Diff {
	return &Diff{
		Height:      height,
		Validators:  make(map[thor.Address]ValidatorDiff),
		Delegations: make(map[thor.Address]Delegation),
	}
}

// IsEmpty returns whether the diff changes nothing.
func (d *Diff) IsEmpty() bool {
	return len(d.Validators) == 0 && len(d.Delegations) == 0
}

// SortedAddresses returns the keys of m in byte order, to keep replay deterministic.
func SortedAddresses[V any](m map[thor.Address]V) []thor.Address {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b thor.Address) int { return a.Compare(b) })
	return keys
}
