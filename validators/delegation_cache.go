// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validators

import (
	"github.com/vechain/thor-relayer/staking"
	"github.com/vechain/thor-relayer/thor"
)

// delegationCache remembers, per delegator, the allocation the accumulator currently reflects.
// It lives for one replay.
type delegationCache struct {
	entries map[thor.Address]staking.Delegation
	// lowest diff height each delegator was touched at
	lowest map[thor.Address]uint64
}

func newDelegationCache() *delegationCache {
	return &delegationCache{
		entries: make(map[thor.Address]staking.Delegation),
		lowest:  make(map[thor.Address]uint64),
	}
}

func (c *delegationCache) get(delegator thor.Address) (staking.Delegation, bool) {
	d, ok := c.entries[delegator]
	return d, ok
}

func (c *delegationCache) put(delegator thor.Address, d staking.Delegation, height uint64) {
	c.entries[delegator] = d
	if low, ok := c.lowest[delegator]; !ok || height < low {
		c.lowest[delegator] = height
	}
}

// lowestHeight returns the lowest height the delegator was touched at.
func (c *delegationCache) lowestHeight(delegator thor.Address) uint64 {
	return c.lowest[delegator]
}

// delegators returns the touched delegators in byte order.
func (c *delegationCache) delegators() []thor.Address {
	return staking.SortedAddresses(c.entries)
}
