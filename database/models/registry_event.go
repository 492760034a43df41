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

package models

const (
	RegistryEventTypeInitialize = "initialize"
	RegistryEventTypeAdd        = "add_diploma"
	RegistryEventTypeRevoke     = "revoke_diploma"
)

// RegistryEvent is one row of the audit trail, written for every successful
// instruction in the same transaction as its state change
type RegistryEvent struct {
	Type      string `gorm:"index;size:32;not null"`
	DiplomaId string `gorm:"index;size:100"`
	Signer    []byte `gorm:"size:32"`
	TxId      []byte `gorm:"uniqueIndex;size:32"`
	ID        uint   `gorm:"primarykey"`
	Timestamp int64  `gorm:"index"`
}

func (RegistryEvent) TableName() string {
	return "registry_event"
}
