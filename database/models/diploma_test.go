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
	"bytes"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

func TestDiploma_AuthorityString(t *testing.T) {
	tests := []struct {
		name      string
		authority []byte
		wantErr   bool
	}{
		{
			name:      "valid 32-byte key",
			authority: bytes.Repeat([]byte{0x5a}, 32),
		},
		{
			name:      "empty key",
			authority: nil,
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Diploma{Authority: tt.authority}
			got, err := d.AuthorityString()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if !strings.HasPrefix(got, "ed25519_pk1") {
				t.Fatalf("unexpected prefix: %s", got)
			}
			hrp, data, err := bech32.Decode(got)
			if err != nil {
				t.Fatalf("failed to decode: %s", err)
			}
			if hrp != "ed25519_pk" {
				t.Fatalf("unexpected hrp: %s", hrp)
			}
			raw, err := bech32.ConvertBits(data, 5, 8, false)
			if err != nil {
				t.Fatalf("failed to convert bits: %s", err)
			}
			if !bytes.Equal(raw, tt.authority) {
				t.Fatalf("round trip mismatch: %x != %x", raw, tt.authority)
			}
		})
	}
}

func TestDiploma_Status(t *testing.T) {
	d := &Diploma{Verified: true}
	if d.Status() != DiplomaStatusActive {
		t.Fatalf("expected %s, got %s", DiplomaStatusActive, d.Status())
	}
	d.Verified = false
	if d.Status() != DiplomaStatusRevoked {
		t.Fatalf("expected %s, got %s", DiplomaStatusRevoked, d.Status())
	}
}
