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

package registry_test

import (
	"math"
	"strings"
	"testing"

	"github.com/blinklabs-io/degree/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountSpaceBounds(t *testing.T) {
	signer, err := registry.GenerateKeySigner()
	require.NoError(t, err)
	reg := &registry.Registry{
		Authority: signer.Identity(),
		Count:     math.MaxUint64,
	}
	regData, err := reg.MarshalAccount()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(regData), registry.RegistrySpace)

	diploma := &registry.Diploma{
		Authority:  signer.Identity(),
		DiplomaID:  strings.Repeat("x", registry.MaxDiplomaIDLength),
		ContentRef: strings.Repeat("Q", registry.MaxContentRefLength),
		Verified:   true,
		CreatedAt:  math.MaxInt64,
	}
	diplomaData, err := diploma.MarshalAccount()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(diplomaData), registry.DiplomaSpace)
}

func TestAccountDecode(t *testing.T) {
	signer, err := registry.GenerateKeySigner()
	require.NoError(t, err)
	diploma := &registry.Diploma{
		Authority: signer.Identity(),
		DiplomaID: "CS-2024-001",
		Verified:  true,
		CreatedAt: 1700000000,
	}
	data, err := diploma.MarshalAccount()
	require.NoError(t, err)

	var decoded registry.Diploma
	require.NoError(t, decoded.UnmarshalAccount(data))
	assert.Equal(t, *diploma, decoded)
	assert.Equal(t, "active", decoded.Status())

	// A diploma account is not a registry account
	var reg registry.Registry
	require.ErrorIs(t, reg.UnmarshalAccount(data), registry.ErrAccountDiscriminator)
	require.ErrorIs(t, reg.UnmarshalAccount(data[:4]), registry.ErrAccountDiscriminator)
}
