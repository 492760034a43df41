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
	"bytes"
	"slices"
)

const (
	AccountBlobKeyPrefix = "a"
	CommitTimestampKey   = "metadata_commit_timestamp"
	AccountAddressLength = 32
	accountBlobKeyLength = len(AccountBlobKeyPrefix) + AccountAddressLength
)

// AccountBlobKey returns the blob key for the account stored at the given address
func AccountBlobKey(address []byte) []byte {
	return slices.Concat([]byte(AccountBlobKeyPrefix), address)
}

// AccountAddressFromBlobKey returns the address portion of an account blob key
func AccountAddressFromBlobKey(key []byte) ([]byte, bool) {
	if len(key) != accountBlobKeyLength ||
		!bytes.HasPrefix(key, []byte(AccountBlobKeyPrefix)) {
		return nil, false
	}
	return bytes.Clone(key[len(AccountBlobKeyPrefix):]), true
}
