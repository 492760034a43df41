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

	"github.com/blinklabs-io/degree/database/types"
	"github.com/blinklabs-io/gouroboros/cbor"
)

// Account is the stored form of a program-owned account. Space is fixed when
// the account is created and bounds every later write of Data
type Account struct {
	cbor.StructAsArray
	Owner []byte
	Space uint32
	Data  []byte
}

func validateAddress(address []byte) error {
	if len(address) != types.AccountAddressLength {
		return fmt.Errorf(
			"%w: expected %d bytes, got %d",
			types.ErrInvalidAddress,
			types.AccountAddressLength,
			len(address),
		)
	}
	return nil
}

// GetAccount returns the account stored at the given address. A nil txn
// reads from a fresh read-only snapshot
func (d *Database) GetAccount(address []byte, txn *Txn) (*Account, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.getAccount(address, txn)
}

func (d *Database) getAccount(address []byte, txn *Txn) (*Account, error) {
	val, err := d.Blob().Get(txn.Blob(), types.AccountBlobKey(address))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, types.ErrAccountNotFound
		}
		return nil, err
	}
	ret := &Account{}
	if _, err := cbor.Decode(val, ret); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return ret, nil
}

// CreateAccount stores a new account at an unoccupied address, reserving
// space bytes for its data
func (d *Database) CreateAccount(
	address []byte,
	owner []byte,
	space uint32,
	data []byte,
	txn *Txn,
) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	if err := validateAddress(address); err != nil {
		return err
	}
	if len(data) > int(space) {
		return types.ErrAccountDataTooLarge
	}
	_, err := d.getAccount(address, txn)
	if err == nil {
		return types.ErrAccountExists
	}
	if !errors.Is(err, types.ErrAccountNotFound) {
		return err
	}
	return d.putAccount(
		address,
		&Account{
			Owner: owner,
			Space: space,
			Data:  data,
		},
		txn,
	)
}

// UpdateAccount replaces the data of an existing account
func (d *Database) UpdateAccount(address []byte, data []byte, txn *Txn) error {
	if txn == nil {
		return types.ErrNilTxn
	}
	if err := validateAddress(address); err != nil {
		return err
	}
	account, err := d.getAccount(address, txn)
	if err != nil {
		return err
	}
	if len(data) > int(account.Space) {
		return types.ErrAccountDataTooLarge
	}
	account.Data = data
	return d.putAccount(address, account, txn)
}

func (d *Database) putAccount(address []byte, account *Account, txn *Txn) error {
	accountCbor, err := cbor.Encode(account)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	return d.Blob().Set(txn.Blob(), types.AccountBlobKey(address), accountCbor)
}

// IterateAccounts calls fn for every stored account in address order.
// Iteration stops at the first error returned by fn
func (d *Database) IterateAccounts(
	txn *Txn,
	fn func(address []byte, account *Account) error,
) error {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	prefix := []byte(types.AccountBlobKeyPrefix)
	it := d.Blob().NewIterator(
		txn.Blob(),
		types.BlobIteratorOptions{Prefix: prefix},
	)
	if it == nil {
		return types.ErrBlobStoreUnavailable
	}
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		address, ok := types.AccountAddressFromBlobKey(item.Key())
		if !ok {
			continue
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		account := &Account{}
		if _, err := cbor.Decode(val, account); err != nil {
			return fmt.Errorf("decode account %x: %w", address, err)
		}
		if err := fn(address, account); err != nil {
			return err
		}
	}
	return it.Err()
}
