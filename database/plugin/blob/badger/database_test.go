// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger_test

import (
	"testing"
	"time"

	"github.com/blinklabs-io/degree/database/plugin/blob/badger"
	"github.com/blinklabs-io/degree/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...badger.BlobStoreBadgerOptionFunc) *badger.BlobStoreBadger {
	t.Helper()
	store, err := badger.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetGetDelete(t *testing.T) {
	store := newTestStore(t)

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k1"), []byte("v1")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	val, err := store.Get(txn, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), val)
	_, err = store.Get(txn, []byte("missing"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	require.NoError(t, txn.Rollback())

	txn = store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, []byte("k1")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, []byte("k1"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestReadOnlyTxnRejectsWrites(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	require.ErrorIs(t, store.Set(txn, []byte("k"), []byte("v")), types.ErrReadOnlyTxn)
	require.ErrorIs(t, store.Delete(txn, []byte("k")), types.ErrReadOnlyTxn)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("v")))
	require.NoError(t, txn.Rollback())
	// Finished transactions can no longer be used
	require.Error(t, store.Set(txn, []byte("k"), []byte("v")))

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err := store.Get(txn, []byte("k"))
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestTxnValidation(t *testing.T) {
	store := newTestStore(t)
	other := newTestStore(t)

	_, err := store.Get(nil, []byte("k"))
	require.ErrorIs(t, err, types.ErrNilTxn)

	otherTxn := other.NewTransaction(false)
	defer otherTxn.Rollback() //nolint:errcheck
	_, err = store.Get(otherTxn, []byte("k"))
	require.ErrorContains(t, err, "different store")
}

func TestCommitConflict(t *testing.T) {
	registry := prometheus.NewRegistry()
	store := newTestStore(t, badger.WithPromRegistry(registry))
	key := []byte("contended")

	txn1 := store.NewTransaction(true)
	_, err := store.Get(txn1, key)
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)

	txn2 := store.NewTransaction(true)
	_, err = store.Get(txn2, key)
	require.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	require.NoError(t, store.Set(txn2, key, []byte("second")))
	require.NoError(t, txn2.Commit())

	require.NoError(t, store.Set(txn1, key, []byte("first")))
	require.ErrorIs(t, txn1.Commit(), types.ErrTxnConflict)

	txn := store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := store.Get(txn, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), val)
}

func TestIteratorPrefix(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	for _, k := range []string{"a1", "a2", "b1", "a3"} {
		require.NoError(t, store.Set(txn, []byte(k), []byte(k)))
	}
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	prefix := []byte("a")
	it := store.NewIterator(txn, types.BlobIteratorOptions{Prefix: prefix})
	defer it.Close()
	var keys []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, string(it.Item().Key()))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"a1", "a2", "a3"}, keys)

	errIt := store.NewIterator(nil, types.BlobIteratorOptions{})
	assert.False(t, errIt.Valid())
	require.ErrorIs(t, errIt.Err(), types.ErrNilTxn)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Zero(t, ts)

	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(1700000000123, txn))
	require.NoError(t, txn.Commit())

	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123), ts)

	require.ErrorIs(t, store.SetCommitTimestamp(1, nil), types.ErrNilTxn)
}

func TestOnDiskStorePersists(t *testing.T) {
	dataDir := t.TempDir()
	store, err := badger.New(
		badger.WithDataDir(dataDir),
		badger.WithBlockCacheSize(1<<20),
		badger.WithIndexCacheSize(1<<20),
	)
	require.NoError(t, err)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("v")))
	require.NoError(t, txn.Commit())
	require.NoError(t, store.Stop())

	store = newTestStore(t, badger.WithDataDir(dataDir), badger.WithGc(false))
	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := store.Get(txn, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
}

func TestValueLogGcStopsOnClose(t *testing.T) {
	store, err := badger.New(
		badger.WithDataDir(t.TempDir()),
		badger.WithGcInterval(5*time.Millisecond),
		badger.WithPromRegistry(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), make([]byte, 1024)))
	require.NoError(t, txn.Commit())
	// Let a few GC ticks fire against the on-disk store
	time.Sleep(25 * time.Millisecond)
	require.NoError(t, store.Close())
}
