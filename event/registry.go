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

package event

const (
	RegistryInitializedEventType = EventType("registry.initialized")
	DiplomaAddedEventType        = EventType("registry.diploma_added")
	DiplomaRevokedEventType      = EventType("registry.diploma_revoked")
)

// RegistryInitializedEvent is emitted after the registry singleton is created
type RegistryInitializedEvent struct {
	// Address is the bech32 address of the singleton account
	Address string
	// Authority is the bech32 identity allowed to issue and revoke
	Authority string
	// TxId is the hex transaction id
	TxId string
}

// DiplomaAddedEvent is emitted after a diploma record is committed
type DiplomaAddedEvent struct {
	DiplomaId  string
	ContentRef string
	Address    string
	TxId       string
	CreatedAt  int64
	// Count is the number of verified diplomas after the change
	Count uint64
}

// DiplomaRevokedEvent is emitted after a diploma is revoked
type DiplomaRevokedEvent struct {
	DiplomaId string
	Address   string
	TxId      string
	RevokedAt int64
	Count     uint64
}
