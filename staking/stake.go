// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/bits"

	"github.com/pkg/errors"
)

var (
	ErrStakeOverflow  = errors.New("stake overflow")
	ErrStakeUnderflow = errors.New("stake underflow")
)

// AddStake returns a + b, or ErrStakeOverflow.
func AddStake(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrStakeOverflow
	}
	return sum, nil
}

// SubStake returns a - b, or ErrStakeUnderflow. Stake never wraps around.
func SubStake(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrStakeUnderflow
	}
	return diff, nil
}
