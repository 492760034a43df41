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

package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func setDACL(t *testing.T, path string, sddl string) {
	t.Helper()
	sd, err := windows.SecurityDescriptorFromString(sddl)
	require.NoError(t, err)
	dacl, _, err := sd.DACL()
	require.NoError(t, err)
	err = windows.SetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
		nil, nil, dacl, nil,
	)
	require.NoError(t, err)
}

func TestInsecureDACLWindows(t *testing.T) {
	testDefs := []struct {
		sddl  string
		group string
	}{
		{sddl: "D:(A;;GR;;;WD)", group: "Everyone"},
		{sddl: "D:(A;;GR;;;BU)", group: "BUILTIN\\Users"},
		{sddl: "D:(A;;GR;;;AU)", group: "Authenticated Users"},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.group, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "authority.skey")
			require.NoError(t, os.WriteFile(path, []byte("test"), 0o600))
			setDACL(t, path, testDef.sddl)
			err := checkFilePermissions(path)
			require.ErrorIs(t, err, ErrInsecureFileMode)
			assert.Contains(t, err.Error(), testDef.group)
		})
	}
}

func TestRestrictKeyFileWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authority.skey")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, restrictKeyFile(f))
	require.NoError(t, f.Close())
	assert.NoError(t, checkFilePermissions(path))
}

func TestCheckSDDLDenyEntriesIgnored(t *testing.T) {
	assert.NoError(t, checkSDDL("x", "D:P(D;;GA;;;WD)(A;;GA;;;SY)"))
	assert.ErrorIs(t, checkSDDL("x", "O:BA"), ErrInsecureFileMode)
}
