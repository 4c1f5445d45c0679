// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package health tracks whether the relayer keeps its validator set in step with the finalized head.
package health

import (
	"sync"
	"time"
)

// Sync is the progress of the last completed sync round.
type Sync struct {
	SetHeight       uint64     `json:"setHeight"`
	FinalizedHeight uint64     `json:"finalizedHeight"`
	Timestamp       *time.Time `json:"timestamp"`
}

// Status is the health report served by the admin API.
type Status struct {
	Healthy bool  `json:"healthy"`
	Sync    *Sync `json:"sync"`
	Synced  bool  `json:"synced"`
}

// Health tracks sync rounds. It is safe for concurrent use.
type Health struct {
	lock      sync.RWMutex
	maxIdle   time.Duration
	lastRound time.Time
	setHeight uint64
	finalized uint64
}

// New creates a Health which turns unhealthy when no sync round completed within maxIdle.
func New(maxIdle time.Duration) *Health {
	return &Health{maxIdle: maxIdle}
}

// SyncRound records a completed sync round.
func (h *Health) SyncRound(setHeight, finalized uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.lastRound = time.Now()
	h.setHeight = setHeight
	h.finalized = finalized
}

// Status reports the sync progress. It is unhealthy before the first round or after maxIdle without one.
func (h *Health) Status() (*Status, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	var ts *time.Time
	if !h.lastRound.IsZero() {
		t := h.lastRound
		ts = &t
	}
	synced := ts != nil && h.setHeight >= h.finalized
	healthy := synced && time.Since(h.lastRound) <= h.maxIdle

	return &Status{
		Healthy: healthy,
		Sync: &Sync{
			SetHeight:       h.setHeight,
			FinalizedHeight: h.finalized,
			Timestamp:       ts,
		},
		Synced: synced,
	}, nil
}
