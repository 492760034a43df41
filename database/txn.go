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

package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/blinklabs-io/degree/database/types"
)

// ErrPartialCommit is returned when the account store committed but the
// metadata index did not. The index must be rebuilt before it is trusted
var ErrPartialCommit = errors.New("partial commit")

// Txn spans one account store transaction and, for writers, one metadata
// transaction. Both are committed together or rolled back together
type Txn struct {
	db        *Database
	blob      types.Txn
	meta      types.Txn
	onCommit  []func()
	mu        sync.Mutex
	done      bool
	readWrite bool
}

// NewTxn starts a transaction against both stores. Readers get a consistent
// account snapshot and read metadata through the connection pool
func NewTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if bs := db.Blob(); bs != nil {
		t.blob = bs.NewTransaction(readWrite)
	}
	if !readWrite {
		return t
	}
	if ms := db.Metadata(); ms != nil {
		t.meta = ms.Transaction()
		if t.meta == nil {
			db.logger.Warn("metadata store returned no transaction handle")
		}
	}
	return t
}

func (t *Txn) DB() *Database {
	return t.db
}

// Metadata returns the metadata transaction handle, nil for readers
func (t *Txn) Metadata() types.Txn {
	return t.meta
}

// Blob returns the account store transaction handle
func (t *Txn) Blob() types.Txn {
	return t.blob
}

// ReadWrite reports whether the transaction may write
func (t *Txn) ReadWrite() bool {
	return t.readWrite
}

// OnCommit registers fn to run once both stores have committed. Hooks run in
// registration order on the committing goroutine and are dropped on rollback
func (t *Txn) OnCommit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || fn == nil {
		return
	}
	t.onCommit = append(t.onCommit, fn)
}

// Do runs fn inside the transaction, committing if it returns nil and
// rolling back otherwise
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w: original error: %w", rbErr, err)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// Commit stamps both stores with the same commit time, then commits the
// account store followed by the metadata store
func (t *Txn) Commit() error {
	hooks, err := t.commit()
	if err != nil {
		return err
	}
	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (t *Txn) commit() ([]func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, nil
	}
	if !t.readWrite {
		// Nothing to write, only the snapshot to release
		return nil, t.rollback()
	}
	if t.blob == nil && t.meta == nil {
		t.done = true
		return nil, types.ErrNoStoreAvailable
	}
	if t.blob != nil && t.meta != nil {
		if err := t.db.stampCommit(t); err != nil {
			_ = t.rollback()
			return nil, fmt.Errorf("failed to update commit timestamp: %w", err)
		}
	}
	if t.blob != nil {
		if err := t.blob.Commit(); err != nil {
			t.blob = nil
			_ = t.rollback()
			return nil, fmt.Errorf("blob commit failed: %w", err)
		}
	}
	if t.meta != nil {
		if err := t.meta.Commit(); err != nil {
			t.db.markIndexStale()
			t.db.logger.Error(
				"account store committed but metadata index did not",
				"error", err,
			)
			_ = t.meta.Rollback()
			t.done = true
			return nil, fmt.Errorf("%w: %w", ErrPartialCommit, err)
		}
	}
	t.done = true
	hooks := t.onCommit
	t.onCommit = nil
	return hooks, nil
}

func (t *Txn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.onCommit = nil
	var errs []error
	if t.blob != nil {
		if err := t.blob.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("blob rollback: %w", err))
		}
	}
	if t.meta != nil {
		if err := t.meta.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("metadata rollback: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Release discards the transaction, logging instead of returning any error.
// Meant for defer
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}
