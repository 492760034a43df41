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
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/windows"
)

// Well-known groups that must never be granted access to a signing key,
// keyed by SDDL abbreviation and full SID string
var insecureSIDs = map[string]string{
	"WD":           "Everyone",
	"S-1-1-0":      "Everyone",
	"BU":           "BUILTIN\\Users",
	"S-1-5-32-545": "BUILTIN\\Users",
	"AU":           "Authenticated Users",
	"S-1-5-11":     "Authenticated Users",
}

// checkOpenFilePermissions inspects the DACL of an open key file. NTFS does
// not allow a file held open to be replaced, so checking by name is safe here
func checkOpenFilePermissions(f *os.File) error {
	return checkFilePermissions(f.Name())
}

func checkFilePermissions(path string) error {
	// The descriptor is LocalAlloc'd by Windows. Freeing it needs
	// unsafe.Pointer, which is avoided because of go.dev/issue/73199
	sd, err := windows.GetNamedSecurityInfo(
		path,
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION,
	)
	if err != nil {
		return fmt.Errorf("failed to get security info for %q: %w", path, err)
	}
	sddl := sd.String()
	if sddl == "" {
		return fmt.Errorf("failed to read security descriptor for %q", path)
	}
	return checkSDDL(path, sddl)
}

// checkSDDL rejects a descriptor with no DACL or with an allow entry for any
// of the insecure groups
func checkSDDL(path, sddl string) error {
	daclIdx := strings.Index(sddl, "D:")
	if daclIdx < 0 {
		return fmt.Errorf(
			"key file %q has no DACL (unrestricted access): %w",
			path,
			ErrInsecureFileMode,
		)
	}
	dacl := sddl[daclIdx+2:]
	if idx := strings.Index(dacl, "S:"); idx >= 0 {
		dacl = dacl[:idx]
	}
	for _, ace := range splitACEs(dacl) {
		// type;flags;rights;object;inherit;trustee
		fields := strings.Split(ace, ";")
		if len(fields) < 6 || fields[0] != "A" {
			continue
		}
		if name, ok := insecureSIDs[fields[5]]; ok {
			return fmt.Errorf(
				"key file %q grants access to %s: %w",
				path,
				name,
				ErrInsecureFileMode,
			)
		}
	}
	return nil
}

func splitACEs(dacl string) []string {
	var ret []string
	for {
		start := strings.IndexByte(dacl, '(')
		if start < 0 {
			return ret
		}
		end := strings.IndexByte(dacl[start:], ')')
		if end < 0 {
			return ret
		}
		ret = append(ret, dacl[start+1:start+end])
		dacl = dacl[start+end+1:]
	}
}

// restrictKeyFile replaces the inherited DACL of a new key file with a
// protected one granting access to the current user only
func restrictKeyFile(f *os.File) error {
	sid, err := currentUserSID()
	if err != nil {
		return err
	}
	sd, err := windows.SecurityDescriptorFromString(
		fmt.Sprintf("D:P(A;;GA;;;%s)", sid),
	)
	if err != nil {
		return fmt.Errorf("failed to build security descriptor: %w", err)
	}
	dacl, _, err := sd.DACL()
	if err != nil {
		return fmt.Errorf("failed to read DACL: %w", err)
	}
	err = windows.SetNamedSecurityInfo(
		f.Name(),
		windows.SE_FILE_OBJECT,
		windows.DACL_SECURITY_INFORMATION|
			windows.PROTECTED_DACL_SECURITY_INFORMATION,
		nil, nil, dacl, nil,
	)
	if err != nil {
		return fmt.Errorf("failed to restrict key file %q: %w", f.Name(), err)
	}
	return nil
}

func currentUserSID() (string, error) {
	var token windows.Token
	err := windows.OpenProcessToken(
		windows.CurrentProcess(),
		windows.TOKEN_QUERY,
		&token,
	)
	if err != nil {
		return "", fmt.Errorf("failed to open process token: %w", err)
	}
	defer token.Close()
	tokenUser, err := token.GetTokenUser()
	if err != nil {
		return "", fmt.Errorf("failed to get token user: %w", err)
	}
	return tokenUser.User.Sid.String(), nil
}
