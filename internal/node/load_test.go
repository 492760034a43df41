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

package node

import (
	"context"
	"testing"

	"github.com/blinklabs-io/degree/internal/config"
	"github.com/blinklabs-io/degree/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoadPersists(t *testing.T) {
	cfg := &config.Config{
		DatabasePath: t.TempDir(),
		Program:      "university",
	}
	authority, err := registry.GenerateKeySigner()
	require.NoError(t, err)

	local, err := Load(cfg, nil)
	require.NoError(t, err)
	assert.Equal(
		t,
		registry.ProgramIDFromName("university"),
		local.Program.ProgramID(),
	)
	_, err = local.Program.Initialize(context.Background(), authority)
	require.NoError(t, err)
	require.NoError(t, local.Close())

	local, err = Load(cfg, nil)
	require.NoError(t, err)
	defer local.Close()
	reg, err := local.Program.GetRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authority.Identity(), reg.Authority)
}

func TestLoadUnknownPlugin(t *testing.T) {
	_, err := Load(&config.Config{BlobPlugin: "nope"}, nil)
	require.Error(t, err)
}
