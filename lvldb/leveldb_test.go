// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package lvldb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thor-relayer/kv"
)

func TestLevelDB(t *testing.T) {
	var (
		key        = []byte("123")
		value      = []byte("456")
		inValidKey = []byte("abc")
	)

	persistent, err := New(filepath.Join(t.TempDir(), "relayer.db"), Options{16, 16})
	require.NoError(t, err)
	defer persistent.Close()

	mem, err := NewMem()
	require.NoError(t, err)
	defer mem.Close()

	for _, db := range []*LevelDB{persistent, mem} {
		assert.NoError(t, db.Put(key, value))

		got, err := db.Get(key)
		assert.NoError(t, err)
		assert.Equal(t, value, got)

		has, err := db.Has(key)
		assert.NoError(t, err)
		assert.True(t, has)

		has, err = db.Has(inValidKey)
		assert.NoError(t, err)
		assert.False(t, has)

		assert.NoError(t, db.Delete(key))
		_, err = db.Get(key)
		assert.True(t, db.IsNotFound(err))
	}
}

func TestLevelDBBulk(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()

	bulk := db.Bulk()
	assert.NoError(t, bulk.Put([]byte("a"), []byte("1")))
	assert.NoError(t, bulk.Put([]byte("b"), []byte("2")))
	assert.Equal(t, 2, bulk.Len())

	has, _ := db.Has([]byte("a"))
	assert.False(t, has)

	assert.NoError(t, bulk.Write())
	has, _ = db.Has([]byte("a"))
	assert.True(t, has)
}

func TestBucketIterate(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()

	store := kv.Bucket("g").NewStore(db)
	for _, k := range []string{"a1", "a2", "a3", "b1"} {
		require.NoError(t, store.Put([]byte(k), []byte(k)))
	}
	// outside the bucket
	require.NoError(t, db.Put([]byte("h0"), []byte("h0")))

	collect := func(r kv.Range) (keys []string) {
		it := store.Iterate(r)
		defer it.Release()
		for it.Next() {
			keys = append(keys, string(it.Key()))
		}
		require.NoError(t, it.Error())
		return
	}

	assert.Equal(t, []string{"a1", "a2", "a3", "b1"}, collect(kv.Range{}))
	assert.Equal(t, []string{"a2", "a3"}, collect(kv.Range{Start: []byte("a2"), Limit: []byte("b")}))

	it := store.Iterate(kv.Range{Start: []byte("a"), Limit: []byte("a3")})
	defer it.Release()
	require.True(t, it.Last())
	assert.Equal(t, "a2", string(it.Key()))
	require.True(t, it.Prev())
	assert.Equal(t, "a1", string(it.Key()))
	assert.False(t, it.Prev())

	bulk := store.Bulk()
	require.NoError(t, bulk.Delete([]byte("a1")))
	require.NoError(t, bulk.Write())
	assert.Equal(t, []string{"a2", "a3", "b1"}, collect(kv.Range{}))
}
