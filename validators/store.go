// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validators

import (
	"context"

	"github.com/vechain/thor-relayer/staking"
	"github.com/vechain/thor-relayer/thor"
)

// Store is the persistence the validator set is synchronized against.
// Diff history is append-only; the set of a finalized height never changes.
type Store interface {
	// ValidatorsDaHeight returns the height of the persisted set, 0 when nothing was persisted.
	ValidatorsDaHeight(ctx context.Context) (uint64, error)
	// Validators returns the persisted set.
	Validators(ctx context.Context) (staking.Set, error)
	// StakingDiffs returns the diffs in [from, to] in ascending height order. A nil to means no upper bound.
	StakingDiffs(ctx context.Context, from uint64, to *uint64) ([]*staking.Diff, error)
	// FirstGreaterDelegation returns the delegator's nearest delegation recorded strictly after height, nil if none.
	FirstGreaterDelegation(ctx context.Context, delegator thor.Address, height uint64) (*staking.DelegationRecord, error)
	// FirstLesserDelegation returns the delegator's nearest delegation recorded strictly before height, nil if none.
	FirstLesserDelegation(ctx context.Context, delegator thor.Address, height uint64) (*staking.DelegationRecord, error)
	// ApplyValidatorDiffs persists the resulting entries of the changed validators as the set at height.
	ApplyValidatorDiffs(ctx context.Context, height uint64, entries staking.Set) error
}
