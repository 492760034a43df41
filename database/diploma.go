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
	"github.com/blinklabs-io/degree/database/models"
	"github.com/blinklabs-io/degree/database/types"
)

func metadataTxn(txn *Txn) types.Txn {
	if txn == nil {
		return nil
	}
	return txn.Metadata()
}

func writableMetadataTxn(txn *Txn) (types.Txn, error) {
	if txn == nil {
		return nil, types.ErrNilTxn
	}
	if !txn.readWrite {
		return nil, types.ErrReadOnlyTxn
	}
	return txn.Metadata(), nil
}

// SetDiploma writes the index row for a diploma
func (d *Database) SetDiploma(diploma *models.Diploma, txn *Txn) error {
	mTxn, err := writableMetadataTxn(txn)
	if err != nil {
		return err
	}
	return d.metadata.SetDiploma(diploma, mTxn)
}

// RevokeDiploma marks the index row for a diploma as revoked
func (d *Database) RevokeDiploma(
	diplomaId string,
	revokedAt int64,
	revokeTxId []byte,
	txn *Txn,
) error {
	mTxn, err := writableMetadataTxn(txn)
	if err != nil {
		return err
	}
	return d.metadata.RevokeDiploma(
		diplomaId,
		revokedAt,
		revokeTxId,
		mTxn,
	)
}

// GetDiploma returns the index row for a diploma
func (d *Database) GetDiploma(
	diplomaId string,
	txn *Txn,
) (*models.Diploma, error) {
	return d.metadata.GetDiploma(diplomaId, metadataTxn(txn))
}

// GetDiplomas returns one page of index rows and the number of rows matching
// the filter
func (d *Database) GetDiplomas(
	filter models.DiplomaFilter,
	offset int,
	limit int,
	txn *Txn,
) ([]models.Diploma, int64, error) {
	return d.metadata.GetDiplomas(filter, offset, limit, metadataTxn(txn))
}

// DeleteDiplomas clears the diploma index
func (d *Database) DeleteDiplomas(txn *Txn) error {
	mTxn, err := writableMetadataTxn(txn)
	if err != nil {
		return err
	}
	return d.metadata.DeleteDiplomas(mTxn)
}

// AddRegistryEvent appends an entry to the audit trail
func (d *Database) AddRegistryEvent(
	event *models.RegistryEvent,
	txn *Txn,
) error {
	mTxn, err := writableMetadataTxn(txn)
	if err != nil {
		return err
	}
	return d.metadata.AddRegistryEvent(event, mTxn)
}

// GetRegistryEvents returns the audit trail for a diploma, oldest first
func (d *Database) GetRegistryEvents(
	diplomaId string,
	txn *Txn,
) ([]models.RegistryEvent, error) {
	return d.metadata.GetRegistryEvents(diplomaId, metadataTxn(txn))
}
