// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validators

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBackwardAdvance is returned when advancing to a height below the current one.
	ErrBackwardAdvance = errors.New("cannot advance validator set backward")
	// ErrUnfinalizedHeight is returned when a set above the current height is requested.
	ErrUnfinalizedHeight = errors.New("height not finalized")
	// ErrInconsistentRange is returned when the stored diffs do not replay onto the requested height.
	ErrInconsistentRange = errors.New("inconsistent diff range")
)

// StoreError is a failed store call. The operation that hit it left the set untouched and can be retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
