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

package gormstore

import (
	"errors"

	"github.com/blinklabs-io/degree/database/models"
	"github.com/blinklabs-io/degree/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SetDiploma inserts the diploma index row, replacing any row with the same id
func (s *Store) SetDiploma(diploma *models.Diploma, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "diploma_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"content_ref",
			"address",
			"authority",
			"add_tx_id",
			"revoke_tx_id",
			"issued_at",
			"revoked_at",
			"verified",
		}),
	}).Create(diploma)
	return result.Error
}

// RevokeDiploma marks the indexed diploma as revoked
func (s *Store) RevokeDiploma(
	diplomaId string,
	revokedAt int64,
	revokeTxId []byte,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Model(&models.Diploma{}).
		Where("diploma_id = ?", diplomaId).
		Updates(map[string]any{
			"verified":     false,
			"revoked_at":   revokedAt,
			"revoke_tx_id": revokeTxId,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return types.ErrRecordNotFound
	}
	return nil
}

// GetDiploma returns the indexed diploma with the given id
func (s *Store) GetDiploma(
	diplomaId string,
	txn types.Txn,
) (*models.Diploma, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Diploma{}
	result := db.Where("diploma_id = ?", diplomaId).First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, types.ErrRecordNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetDiplomas returns one page of indexed diplomas in issue order along with
// the total number of rows matching the filter
func (s *Store) GetDiplomas(
	filter models.DiplomaFilter,
	offset int,
	limit int,
	txn types.Txn,
) ([]models.Diploma, int64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, 0, err
	}
	query := db.Model(&models.Diploma{})
	if filter.Verified != nil {
		query = query.Where("verified = ?", *filter.Verified)
	}
	if len(filter.Authority) > 0 {
		query = query.Where("authority = ?", filter.Authority)
	}
	// Count and Find must not share statement state
	query = query.Session(&gorm.Session{})
	var total int64
	if result := query.Count(&total); result.Error != nil {
		return nil, 0, result.Error
	}
	var ret []models.Diploma
	result := query.
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&ret)
	if result.Error != nil {
		return nil, 0, result.Error
	}
	return ret, total, nil
}

// DeleteDiplomas removes every indexed diploma
func (s *Store) DeleteDiplomas(txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Where("1 = 1").Delete(&models.Diploma{})
	return result.Error
}
