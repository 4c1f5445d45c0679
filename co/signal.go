// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co

import "sync"

// Signal coalesces wake-ups for a single consumer: any number of Signal calls made
// while nobody is receiving are delivered as one value on C.
// The zero value is ready to use.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

func (s *Signal) init() {
	s.once.Do(func() { s.ch = make(chan struct{}, 1) })
}

// Signal wakes the consumer, or leaves a pending wake-up if it is busy.
func (s *Signal) Signal() {
	s.init()
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C returns the channel the consumer selects on.
func (s *Signal) C() <-chan struct{} {
	s.init()
	return s.ch
}
