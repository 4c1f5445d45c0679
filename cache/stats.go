// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cache

import "sync/atomic"

// Stats counts cache hits and misses.
type Stats struct {
	hit, miss atomic.Int64
	rate      atomic.Int32 // hit rate in permille at the last Stats call
}

// Hit records a hit.
func (cs *Stats) Hit() int64 { return cs.hit.Add(1) }

// Miss records a miss.
func (cs *Stats) Miss() int64 { return cs.miss.Add(1) }

// Stats returns the number of hits and misses, and whether the hit rate
// changed since the last call. Callers use the flag to log only on change.
func (cs *Stats) Stats() (bool, int64, int64) {
	hit := cs.hit.Load()
	miss := cs.miss.Load()

	var rate int32
	if lookups := hit + miss; lookups > 0 {
		rate = int32(hit * 1000 / lookups)
	}
	return cs.rate.Swap(rate) != rate, hit, miss
}
