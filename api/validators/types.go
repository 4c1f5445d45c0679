// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validators

import (
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/vechain/thor-relayer/staking"
	"github.com/vechain/thor-relayer/thor"
)

type Validator struct {
	Address      thor.Address        `json:"address"`
	Stake        math.HexOrDecimal64 `json:"stake"`
	ConsensusKey *thor.Address       `json:"consensusKey"`
}

type ValidatorSet struct {
	Height     uint64                `json:"height"`
	TotalStake *math.HexOrDecimal256 `json:"totalStake"`
	Validators []Validator           `json:"validators"`
}

type RewindRequest struct {
	Height *uint64 `json:"height"`
}

func convertSet(height uint64, set staking.Set) *ValidatorSet {
	validators := make([]Validator, 0, len(set))
	for _, addr := range set.Addresses() {
		entry := set[addr]
		validators = append(validators, Validator{
			Address:      addr,
			Stake:        math.HexOrDecimal64(entry.Stake),
			ConsensusKey: entry.ConsensusKey,
		})
	}
	return &ValidatorSet{
		Height:     height,
		TotalStake: (*math.HexOrDecimal256)(set.TotalStake().ToBig()),
		Validators: validators,
	}
}
