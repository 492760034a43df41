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

package types

import (
	"errors"
)

// Transaction errors
var (
	ErrTxnWrongType     = errors.New("invalid transaction type")
	ErrNilTxn           = errors.New("nil transaction")
	ErrReadOnlyTxn      = errors.New("write in read-only transaction")
	ErrNoStoreAvailable = errors.New("no store available")
	// ErrTxnConflict means a read-write transaction lost a race with another
	// committed transaction touching the same keys
	ErrTxnConflict = errors.New("transaction conflict")
)

// Storage errors
var (
	ErrBlobKeyNotFound      = errors.New("blob key not found")
	ErrBlobStoreUnavailable = errors.New("blob store unavailable")
	ErrRecordNotFound       = errors.New("record not found")
)

// Account errors
var (
	ErrInvalidAddress  = errors.New("invalid account address")
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
	// ErrAccountDataTooLarge means a write exceeds the space reserved when
	// the account was created
	ErrAccountDataTooLarge = errors.New("account data exceeds reserved space")
)

// Txn is the handle each store hands out. The database package pairs one
// from each store and commits them together
type Txn interface {
	Commit() error
	Rollback() error
}

type BlobItem interface {
	Key() []byte
	ValueCopy(dst []byte) ([]byte, error)
}

// BlobIterator walks keys in order. An item is only valid while the
// transaction that created the iterator is open
type BlobIterator interface {
	Rewind()
	Seek(prefix []byte)
	Valid() bool
	ValidForPrefix(prefix []byte) bool
	Next()
	Item() BlobItem
	Close()
	Err() error
}

type BlobIteratorOptions struct {
	Prefix  []byte
	Reverse bool
}
