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

//go:build !windows

package keystore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const keyFileMode = 0o600

// checkOpenFilePermissions runs fstat on the open descriptor, so the file
// checked is the file read. Keys must belong to the current user and be
// closed to group and other
func checkOpenFilePermissions(f *os.File) error {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil { //nolint:gosec
		return fmt.Errorf("failed to stat key file %q: %w", f.Name(), err)
	}
	perm := st.Mode & 0o777
	if perm&0o077 != 0 {
		return fmt.Errorf(
			"key file %q has mode %04o, group/other access not permitted: %w",
			f.Name(),
			perm,
			ErrInsecureFileMode,
		)
	}
	if uid := uint32(unix.Geteuid()); st.Uid != uid && uid != 0 { //nolint:gosec
		return fmt.Errorf(
			"key file %q is owned by uid %d, not %d: %w",
			f.Name(),
			st.Uid,
			uid,
			ErrInsecureFileMode,
		)
	}
	return nil
}

// restrictKeyFile clears any bits the umask left beyond owner read/write
func restrictKeyFile(f *os.File) error {
	if err := unix.Fchmod(int(f.Fd()), keyFileMode); err != nil { //nolint:gosec
		return fmt.Errorf("failed to restrict key file %q: %w", f.Name(), err)
	}
	return nil
}
