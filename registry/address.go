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

package registry

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/blake2b"
)

const (
	AddressSize  = 32
	IdentitySize = ed25519.PublicKeySize

	AddressHrp  = "acct"
	IdentityHrp = "ed25519_pk"

	registrySeed = "diploma-registry"
	diplomaSeed  = "diploma"
	// Separates derived addresses from every other blake2b use in the program
	addressDomainMarker = "degree/program-derived-address"
)

// DefaultProgramID is the program id used when none is configured
var DefaultProgramID = ProgramIDFromName("degree")

// Address identifies an account in the store
type Address [AddressSize]byte

// ProgramIDFromName derives a program id from a human readable name
func ProgramIDFromName(name string) Address {
	return Address(blake2b.Sum256([]byte("program:" + name)))
}

// DeriveAddress computes the account address for a program and seed list.
// Seeds are length prefixed so that different splits of the same bytes never
// collide
func DeriveAddress(programID Address, seeds ...[]byte) Address {
	// New256 only fails for oversized keys
	h, _ := blake2b.New256(nil)
	var lenBuf [binary.MaxVarintLen64]byte
	for _, seed := range seeds {
		n := binary.PutUvarint(lenBuf[:], uint64(len(seed)))
		h.Write(lenBuf[:n])
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(addressDomainMarker))
	var ret Address
	copy(ret[:], h.Sum(nil))
	return ret
}

// RegistryAddress returns the address of the registry singleton
func RegistryAddress(programID Address) Address {
	return DeriveAddress(programID, []byte(registrySeed))
}

// DiplomaAddress returns the address of the record for a diploma id
func DiplomaAddress(programID Address, diplomaID string) Address {
	return DeriveAddress(programID, []byte(diplomaSeed), []byte(diplomaID))
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) String() string {
	ret, err := bech32Encode(AddressHrp, a[:])
	if err != nil {
		return ""
	}
	return ret
}

func (a Address) MarshalText() ([]byte, error) {
	ret, err := bech32Encode(AddressHrp, a[:])
	if err != nil {
		return nil, err
	}
	return []byte(ret), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	tmp, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = tmp
	return nil
}

// ParseAddress decodes a bech32 address
func ParseAddress(s string) (Address, error) {
	var ret Address
	data, err := bech32Decode(AddressHrp, s, AddressSize)
	if err != nil {
		return ret, fmt.Errorf("invalid address: %w", err)
	}
	copy(ret[:], data)
	return ret, nil
}

// Identity is an ed25519 public key acting as signer or authority
type Identity [IdentitySize]byte

// IdentityFromPublicKey converts an ed25519 public key
func IdentityFromPublicKey(pub ed25519.PublicKey) (Identity, error) {
	var ret Identity
	if len(pub) != IdentitySize {
		return ret, fmt.Errorf(
			"invalid public key length: expected %d, got %d",
			IdentitySize,
			len(pub),
		)
	}
	copy(ret[:], pub)
	return ret, nil
}

func (i Identity) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(i[:])
}

func (i Identity) Bytes() []byte {
	return i[:]
}

func (i Identity) IsZero() bool {
	return i == Identity{}
}

func (i Identity) String() string {
	ret, err := bech32Encode(IdentityHrp, i[:])
	if err != nil {
		return ""
	}
	return ret
}

func (i Identity) MarshalText() ([]byte, error) {
	ret, err := bech32Encode(IdentityHrp, i[:])
	if err != nil {
		return nil, err
	}
	return []byte(ret), nil
}

func (i *Identity) UnmarshalText(text []byte) error {
	tmp, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*i = tmp
	return nil
}

// ParseIdentity decodes a bech32 identity
func ParseIdentity(s string) (Identity, error) {
	var ret Identity
	data, err := bech32Decode(IdentityHrp, s, IdentitySize)
	if err != nil {
		return ret, fmt.Errorf("invalid identity: %w", err)
	}
	copy(ret[:], data)
	return ret, nil
}

func bech32Encode(hrp string, data []byte) (string, error) {
	convData, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert bits: %w", err)
	}
	return bech32.Encode(hrp, convData)
}

func bech32Decode(hrp string, s string, size int) ([]byte, error) {
	gotHrp, data, err := bech32.Decode(s)
	if err != nil {
		return nil, err
	}
	if gotHrp != hrp {
		return nil, fmt.Errorf("expected prefix %q, got %q", hrp, gotHrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, err
	}
	if len(decoded) != size {
		return nil, errors.New("wrong length")
	}
	return decoded, nil
}
