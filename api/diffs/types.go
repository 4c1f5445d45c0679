// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package diffs

import (
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"

	"github.com/vechain/thor-relayer/staking"
	"github.com/vechain/thor-relayer/thor"
)

type KeyChange struct {
	Validator thor.Address  `json:"validator"`
	Old       *thor.Address `json:"old"`
	New       *thor.Address `json:"new"`
}

type Allocation struct {
	Validator thor.Address        `json:"validator"`
	Stake     math.HexOrDecimal64 `json:"stake"`
}

// DelegationChange is the allocation of a delegator from the diff height on.
// A null delegation is a withdrawal.
type DelegationChange struct {
	Delegator  thor.Address `json:"delegator"`
	Delegation []Allocation `json:"delegation"`
}

type Diff struct {
	Height      uint64             `json:"height"`
	Validators  []KeyChange        `json:"validators"`
	Delegations []DelegationChange `json:"delegations"`
}

type InsertRequest struct {
	Head  *uint64 `json:"head"`
	Diffs []*Diff `json:"diffs"`
}

type Head struct {
	Head uint64 `json:"head"`
}

func (d *Diff) toStaking() (*staking.Diff, error) {
	diff := staking.NewDiff(d.Height)
	for _, change := range d.Validators {
		if _, ok := diff.Validators[change.Validator]; ok {
			return nil, errors.Errorf("diff %d: duplicated validator %v", d.Height, change.Validator)
		}
		diff.Validators[change.Validator] = staking.ValidatorDiff{Old: change.Old, New: change.New}
	}
	for _, change := range d.Delegations {
		if _, ok := diff.Delegations[change.Delegator]; ok {
			return nil, errors.Errorf("diff %d: duplicated delegator %v", d.Height, change.Delegator)
		}
		var delegation staking.Delegation
		if change.Delegation != nil {
			delegation = make(staking.Delegation, len(change.Delegation))
			for _, alloc := range change.Delegation {
				if _, ok := delegation[alloc.Validator]; ok {
					return nil, errors.Errorf("diff %d: delegator %v allocates twice to %v", d.Height, change.Delegator, alloc.Validator)
				}
				delegation[alloc.Validator] = uint64(alloc.Stake)
			}
		}
		diff.Delegations[change.Delegator] = delegation
	}
	return diff, nil
}

func convertDiff(diff *staking.Diff) *Diff {
	d := &Diff{
		Height:      diff.Height,
		Validators:  make([]KeyChange, 0, len(diff.Validators)),
		Delegations: make([]DelegationChange, 0, len(diff.Delegations)),
	}
	for _, addr := range staking.SortedAddresses(diff.Validators) {
		change := diff.Validators[addr]
		d.Validators = append(d.Validators, KeyChange{Validator: addr, Old: change.Old, New: change.New})
	}
	for _, delegator := range staking.SortedAddresses(diff.Delegations) {
		delegation := diff.Delegations[delegator]
		change := DelegationChange{Delegator: delegator}
		if delegation != nil {
			change.Delegation = make([]Allocation, 0, len(delegation))
			for _, validator := range staking.SortedAddresses(delegation) {
				change.Delegation = append(change.Delegation, Allocation{
					Validator: validator,
					Stake:     math.HexOrDecimal64(delegation[validator]),
				})
			}
		}
		d.Delegations = append(d.Delegations, change)
	}
	return d
}
