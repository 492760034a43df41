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

package badger

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/degree/database/types"
	badger "github.com/dgraph-io/badger/v4"
)

var (
	errForeignTxn  = errors.New("transaction from different store")
	errFinishedTxn = errors.New("transaction already finished")
)

// storeTxn ties a badger transaction to the store that created it
type storeTxn struct {
	store     *BlobStoreBadger
	tx        *badger.Txn
	readWrite bool
	finished  bool
}

// txnFor unwraps txn, rejecting handles from another store or one that has
// already been committed or discarded
func (d *BlobStoreBadger) txnFor(txn types.Txn, write bool) (*storeTxn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	st, ok := txn.(*storeTxn)
	switch {
	case !ok:
		return nil, types.ErrTxnWrongType
	case st.store != d:
		return nil, errForeignTxn
	case st.finished:
		return nil, errFinishedTxn
	case st.tx == nil:
		return nil, types.ErrBlobStoreUnavailable
	case write && !st.readWrite:
		return nil, types.ErrReadOnlyTxn
	}
	return st, nil
}

func (t *storeTxn) Commit() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.tx == nil {
		return nil
	}
	err := t.tx.Commit()
	if errors.Is(err, badger.ErrConflict) {
		t.store.countConflict()
		return fmt.Errorf("%w: %w", types.ErrTxnConflict, err)
	}
	return err
}

func (t *storeTxn) Rollback() error {
	if !t.finished && t.tx != nil {
		t.tx.Discard()
	}
	t.finished = true
	return nil
}

type iterator struct {
	it *badger.Iterator
}

func (i iterator) Rewind()                      { i.it.Rewind() }
func (i iterator) Seek(prefix []byte)           { i.it.Seek(prefix) }
func (i iterator) Valid() bool                  { return i.it.Valid() }
func (i iterator) ValidForPrefix(p []byte) bool { return i.it.ValidForPrefix(p) }
func (i iterator) Next()                        { i.it.Next() }
func (i iterator) Close()                       { i.it.Close() }
func (i iterator) Err() error                   { return nil }
func (i iterator) Item() types.BlobItem         { return item{i.it.Item()} }

// failedIterator is returned for an unusable transaction. It is empty and
// reports the reason from Err
type failedIterator struct {
	err error
}

func (failedIterator) Rewind()                    {}
func (failedIterator) Seek([]byte)                {}
func (failedIterator) Valid() bool                { return false }
func (failedIterator) ValidForPrefix([]byte) bool { return false }
func (failedIterator) Next()                      {}
func (failedIterator) Item() types.BlobItem       { return nil }
func (failedIterator) Close()                     {}
func (f failedIterator) Err() error               { return f.err }

type item struct {
	*badger.Item
}

func (i item) Key() []byte {
	return i.KeyCopy(nil)
}
