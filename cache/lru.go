// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cache provides in-memory caches.
package cache

import lru "github.com/hashicorp/golang-lru"

// LRU is a typed, fixed size LRU cache on top of golang-lru.
// It counts hits and misses of GetOrLoad.
type LRU[K comparable, V any] struct {
	cache *lru.Cache
	stats Stats
}

// NewLRU creates an LRU cache holding at most maxSize entries.
// maxSize should be > 0, or an error returned.
func NewLRU[K comparable, V any](maxSize int) (*LRU[K, V], error) {
	cache, err := lru.New(maxSize)
	if err != nil {
		return nil, err
	}
	return &LRU[K, V]{cache: cache}, nil
}

// Get returns the cached value of key.
func (l *LRU[K, V]) Get(key K) (V, bool) {
	if v, ok := l.cache.Get(key); ok {
		return v.(V), true
	}
	var zero V
	return zero, false
}

// Add stores the value of key, evicting the least recently used entry when full.
func (l *LRU[K, V]) Add(key K, value V) {
	l.cache.Add(key, value)
}

// Len returns the number of cached entries.
func (l *LRU[K, V]) Len() int {
	return l.cache.Len()
}

// Purge drops all entries.
func (l *LRU[K, V]) Purge() {
	l.cache.Purge()
}

// GetOrLoad returns the cached value of key, or loads and caches it on a miss.
// Load errors are not cached.
func (l *LRU[K, V]) GetOrLoad(key K, loader func(K) (V, error)) (V, error) {
	if v, ok := l.Get(key); ok {
		l.stats.Hit()
		return v, nil
	}
	l.stats.Miss()

	v, err := loader(key)
	if err != nil {
		var zero V
		return zero, err
	}
	l.Add(key, v)
	return v, nil
}

// Stats returns the GetOrLoad hits and misses, and whether the hit rate changed since the last call.
func (l *LRU[K, V]) Stats() (bool, int64, int64) {
	return l.stats.Stats()
}
