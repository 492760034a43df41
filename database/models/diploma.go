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

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	DiplomaStatusActive  = "active"
	DiplomaStatusRevoked = "revoked"
)

// Diploma is the queryable mirror of a diploma account
type Diploma struct {
	DiplomaId  string `gorm:"uniqueIndex;size:100;not null"`
	ContentRef string `gorm:"size:60"`
	Address    []byte `gorm:"uniqueIndex;size:32"`
	Authority  []byte `gorm:"index;size:32"`
	AddTxId    []byte `gorm:"size:32"`
	RevokeTxId []byte `gorm:"size:32"`
	ID         uint   `gorm:"primarykey"`
	IssuedAt   int64  `gorm:"index"`
	RevokedAt  int64
	Verified   bool `gorm:"index"`
}

func (Diploma) TableName() string {
	return "diploma"
}

// Status returns the lifecycle state name of the diploma
func (d *Diploma) Status() string {
	if d.Verified {
		return DiplomaStatusActive
	}
	return DiplomaStatusRevoked
}

// AuthorityString returns the bech32-encoded issuing authority with the
// "ed25519_pk" human-readable part
func (d *Diploma) AuthorityString() (string, error) {
	if len(d.Authority) == 0 {
		return "", errors.New("authority is empty")
	}
	convData, err := bech32.ConvertBits(d.Authority, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert bits: %w", err)
	}
	encoded, err := bech32.Encode("ed25519_pk", convData)
	if err != nil {
		return "", fmt.Errorf("failed to encode bech32: %w", err)
	}
	return encoded, nil
}

// DiplomaFilter narrows a diploma listing. Nil fields match everything
type DiplomaFilter struct {
	Verified  *bool
	Authority []byte
}
