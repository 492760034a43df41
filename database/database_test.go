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

package database_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/blinklabs-io/degree/database"
	"github.com/blinklabs-io/degree/database/models"
	"github.com/blinklabs-io/degree/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress(b byte) []byte {
	return bytes.Repeat([]byte{b}, types.AccountAddressLength)
}

func newTestDatabase(t *testing.T, dataDir string) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestNewDefaults(t *testing.T) {
	db := newTestDatabase(t, "")
	assert.NotNil(t, db.Blob())
	assert.NotNil(t, db.Metadata())
	assert.NotNil(t, db.Logger())
	assert.Empty(t, db.DataDir())
}

func TestNewUnknownPlugin(t *testing.T) {
	_, err := database.New(&database.Config{BlobPlugin: "tape"})
	require.Error(t, err)
	_, err = database.New(&database.Config{MetadataPlugin: "abacus"})
	require.Error(t, err)
}

func TestCreateAndGetAccount(t *testing.T) {
	db := newTestDatabase(t, "")
	addr := testAddress(0x01)
	owner := []byte("owner")
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.CreateAccount(addr, owner, 16, []byte("hello"), txn)
	})
	require.NoError(t, err)
	account, err := db.GetAccount(addr, nil)
	require.NoError(t, err)
	assert.Equal(t, owner, account.Owner)
	assert.Equal(t, uint32(16), account.Space)
	assert.Equal(t, []byte("hello"), account.Data)
}

func TestCreateAccountOccupied(t *testing.T) {
	db := newTestDatabase(t, "")
	addr := testAddress(0x02)
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.CreateAccount(addr, nil, 8, []byte("first"), txn)
	}))
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.CreateAccount(addr, nil, 8, []byte("second"), txn)
	})
	require.ErrorIs(t, err, types.ErrAccountExists)
	account, err := db.GetAccount(addr, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), account.Data)
}

func TestAccountSpace(t *testing.T) {
	db := newTestDatabase(t, "")
	addr := testAddress(0x03)
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.CreateAccount(addr, nil, 4, []byte("toolong"), txn)
	})
	require.ErrorIs(t, err, types.ErrAccountDataTooLarge)
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.CreateAccount(addr, nil, 4, []byte("ok"), txn)
	}))
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.UpdateAccount(addr, []byte("12345"), txn)
	})
	require.ErrorIs(t, err, types.ErrAccountDataTooLarge)
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.UpdateAccount(addr, []byte("1234"), txn)
	}))
	account, err := db.GetAccount(addr, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("1234"), account.Data)
}

func TestAccountErrors(t *testing.T) {
	db := newTestDatabase(t, "")
	_, err := db.GetAccount(testAddress(0x04), nil)
	require.ErrorIs(t, err, types.ErrAccountNotFound)
	_, err = db.GetAccount([]byte("short"), nil)
	require.ErrorIs(t, err, types.ErrInvalidAddress)
	require.ErrorIs(
		t,
		db.CreateAccount(testAddress(0x04), nil, 1, nil, nil),
		types.ErrNilTxn,
	)
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.UpdateAccount(testAddress(0x04), []byte("x"), txn)
	})
	require.ErrorIs(t, err, types.ErrAccountNotFound)
	txn := db.Transaction(false)
	defer txn.Release()
	err = db.CreateAccount(testAddress(0x04), nil, 1, nil, txn)
	require.ErrorIs(t, err, types.ErrReadOnlyTxn)
}

func TestTxnRollbackDiscardsBothStores(t *testing.T) {
	db := newTestDatabase(t, "")
	addr := testAddress(0x05)
	errBoom := errors.New("boom")
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := db.CreateAccount(addr, nil, 8, []byte("x"), txn); err != nil {
			return err
		}
		if err := db.SetDiploma(
			&models.Diploma{DiplomaId: "rolled-back", Address: addr, Verified: true},
			txn,
		); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	_, err = db.GetAccount(addr, nil)
	require.ErrorIs(t, err, types.ErrAccountNotFound)
	_, err = db.GetDiploma("rolled-back", nil)
	require.ErrorIs(t, err, types.ErrRecordNotFound)
}

func TestIterateAccounts(t *testing.T) {
	db := newTestDatabase(t, "")
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		for _, b := range []byte{0x30, 0x10, 0x20} {
			if err := db.CreateAccount(testAddress(b), nil, 1, []byte{b}, txn); err != nil {
				return err
			}
		}
		return nil
	}))
	var seen []byte
	err := db.IterateAccounts(nil, func(addr []byte, account *database.Account) error {
		assert.Equal(t, testAddress(account.Data[0]), addr)
		seen = append(seen, account.Data[0])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x20, 0x30}, seen)

	errStop := errors.New("stop")
	count := 0
	err = db.IterateAccounts(nil, func([]byte, *database.Account) error {
		count++
		return errStop
	})
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, 1, count)
}

func TestDiplomaIndexAndEvents(t *testing.T) {
	db := newTestDatabase(t, "")
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		for _, id := range []string{"A-1", "A-2"} {
			if err := db.SetDiploma(
				&models.Diploma{DiplomaId: id, Address: []byte(id), Verified: true, IssuedAt: 10},
				txn,
			); err != nil {
				return err
			}
			if err := db.AddRegistryEvent(
				&models.RegistryEvent{
					Type:      models.RegistryEventTypeAdd,
					DiplomaId: id,
					TxId:      []byte("add-" + id),
					Timestamp: 10,
				},
				txn,
			); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.RevokeDiploma("A-1", 20, []byte("rev"), txn)
	}))
	diploma, err := db.GetDiploma("A-1", nil)
	require.NoError(t, err)
	assert.False(t, diploma.Verified)
	assert.Equal(t, int64(20), diploma.RevokedAt)

	verified := true
	rows, total, err := db.GetDiplomas(
		models.DiplomaFilter{Verified: &verified},
		0,
		10,
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "A-2", rows[0].DiplomaId)

	events, err := db.GetRegistryEvents("A-2", nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.RegistryEventTypeAdd, events[0].Type)

	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.RevokeDiploma("missing", 20, nil, txn)
	})
	require.ErrorIs(t, err, types.ErrRecordNotFound)

	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.DeleteDiplomas(txn)
	}))
	_, total, err = db.GetDiplomas(models.DiplomaFilter{}, 0, 10, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMetadataWritesNeedReadWriteTxn(t *testing.T) {
	db := newTestDatabase(t, "")
	txn := db.Transaction(false)
	defer txn.Release()
	assert.Nil(t, txn.Metadata())
	err := db.SetDiploma(&models.Diploma{DiplomaId: "ro"}, txn)
	require.ErrorIs(t, err, types.ErrReadOnlyTxn)
	require.ErrorIs(t, db.SetDiploma(&models.Diploma{DiplomaId: "ro"}, nil), types.ErrNilTxn)
}

func TestCommitTimestampsMatch(t *testing.T) {
	db := newTestDatabase(t, "")
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.CreateAccount(testAddress(0x06), nil, 1, nil, txn)
	}))
	blobTs, err := db.Blob().GetCommitTimestamp()
	require.NoError(t, err)
	metadataTs, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Positive(t, blobTs)
	assert.Equal(t, blobTs, metadataTs)
}

func TestPersistenceAndTimestampMismatch(t *testing.T) {
	dataDir := t.TempDir()
	addr := testAddress(0x07)

	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.CreateAccount(addr, nil, 8, []byte("kept"), txn)
	}))
	require.NoError(t, db.Close())

	db, err = database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	account, err := db.GetAccount(addr, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), account.Data)

	// Move only the blob store forward
	blobTxn := db.Blob().NewTransaction(true)
	require.NoError(t, db.Blob().SetCommitTimestamp(1, blobTxn))
	require.NoError(t, blobTxn.Commit())
	require.NoError(t, db.Close())

	db, err = database.New(&database.Config{DataDir: dataDir})
	require.Error(t, err)
	require.NotNil(t, db)
	defer db.Close()
	var tsErr database.CommitTimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, int64(1), tsErr.BlobTimestamp)
	assert.True(t, db.IndexStale())

	// Any coordinated commit brings both stores back into step
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.DeleteDiplomas(txn)
	}))
	db.MarkIndexRebuilt()
	assert.False(t, db.IndexStale())
	blobTs, err := db.Blob().GetCommitTimestamp()
	require.NoError(t, err)
	metadataTs, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, blobTs, metadataTs)
}

func TestCommitTimestampsIncrease(t *testing.T) {
	db := newTestDatabase(t, "")
	var last int64
	for i := range 5 {
		require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
			return db.CreateAccount(testAddress(byte(0x10+i)), nil, 1, nil, txn)
		}))
		ts, err := db.Blob().GetCommitTimestamp()
		require.NoError(t, err)
		assert.Greater(t, ts, last)
		last = ts
	}
}

func TestOnCommitHooks(t *testing.T) {
	db := newTestDatabase(t, "")
	var calls []string
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		txn.OnCommit(func() { calls = append(calls, "first") })
		txn.OnCommit(func() { calls = append(calls, "second") })
		assert.Empty(t, calls)
		return db.CreateAccount(testAddress(0x20), nil, 1, nil, txn)
	}))
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		txn.OnCommit(func() { calls = append(calls, "dropped") })
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Empty(t, calls)

	// Hooks registered after the transaction finished never run
	txn := db.Transaction(true)
	require.NoError(t, txn.Commit())
	txn.OnCommit(func() { calls = append(calls, "late") })
	require.NoError(t, txn.Commit())
	assert.Empty(t, calls)
}
