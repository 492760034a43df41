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

package types_test

import (
	"bytes"
	"testing"

	"github.com/blinklabs-io/degree/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountBlobKeyRoundTrip(t *testing.T) {
	addr := bytes.Repeat([]byte{0xab}, types.AccountAddressLength)
	key := types.AccountBlobKey(addr)
	assert.Len(t, key, 1+types.AccountAddressLength)
	assert.Equal(t, byte('a'), key[0])

	out, ok := types.AccountAddressFromBlobKey(key)
	require.True(t, ok)
	assert.Equal(t, addr, out)
}

func TestAccountAddressFromBlobKeyRejectsForeignKeys(t *testing.T) {
	testDefs := [][]byte{
		[]byte(types.CommitTimestampKey),
		types.AccountBlobKey([]byte{0x01, 0x02}),
		append([]byte("b"), bytes.Repeat([]byte{0x00}, 32)...),
		nil,
	}
	for _, key := range testDefs {
		_, ok := types.AccountAddressFromBlobKey(key)
		assert.False(t, ok, "key %x", key)
	}
}
