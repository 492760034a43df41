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
	"github.com/blinklabs-io/degree/database/models"
	"github.com/blinklabs-io/degree/database/types"
)

func (s *Store) AddRegistryEvent(
	event *models.RegistryEvent,
	txn types.Txn,
) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(event).Error
}

// GetRegistryEvents returns the audit trail for a diploma, oldest first. An
// empty id selects registry-level events
func (s *Store) GetRegistryEvents(
	diplomaId string,
	txn types.Txn,
) ([]models.RegistryEvent, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.RegistryEvent
	result := db.Where("diploma_id = ?", diplomaId).
		Order("id ASC").
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
