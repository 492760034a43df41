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
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blinklabs-io/degree/keystore/sops"
	"github.com/blinklabs-io/degree/registry"
	"github.com/blinklabs-io/gouroboros/cbor"
)

const (
	SigningKeyType      = "AuthoritySigningKey_ed25519"
	VerificationKeyType = "AuthorityVerificationKey_ed25519"

	signingKeyDescription      = "Diploma Registry Authority Signing Key"
	verificationKeyDescription = "Diploma Registry Authority Verification Key"

	// Valid key files are well under this size, sealed or not
	maxKeyFileSize = 1 << 20
)

// keyFileEnvelope is the JSON text envelope used for key files
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// LoadSigningKey reads an authority signing key file. The file must not be
// readable by group or other. SOPS sealed files are opened transparently.
//
// The file is opened first and permissions are checked on the open handle to
// avoid a race between the permission check and the read.
func LoadSigningKey(path string) (*registry.KeySigner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()
	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	if sops.IsEncrypted(data) {
		data, err = sops.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt key file %q: %w", path, err)
		}
	}
	keyBytes, err := parseKeyEnvelope(data, SigningKeyType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	if len(keyBytes) != ed25519.SeedSize {
		return nil, fmt.Errorf(
			"invalid signing key in %q: expected %d bytes, got %d",
			path,
			ed25519.SeedSize,
			len(keyBytes),
		)
	}
	return registry.NewKeySigner(ed25519.NewKeyFromSeed(keyBytes))
}

// LoadVerificationKey reads an authority verification key file. It holds
// public data only, so permissions are not checked
func LoadVerificationKey(path string) (registry.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return registry.Identity{}, fmt.Errorf(
			"failed to read key file %q: %w",
			path,
			err,
		)
	}
	keyBytes, err := parseKeyEnvelope(data, VerificationKeyType)
	if err != nil {
		return registry.Identity{}, fmt.Errorf(
			"failed to parse key file %q: %w",
			path,
			err,
		)
	}
	return registry.IdentityFromPublicKey(keyBytes)
}

// WriteSigningKey writes the signer's key seed to a new file readable only by
// the owner. With encrypt set the file is sealed with SOPS first
func WriteSigningKey(path string, signer *registry.KeySigner, encrypt bool) error {
	data, err := buildKeyEnvelope(
		SigningKeyType,
		signingKeyDescription,
		signer.PrivateKey().Seed(),
	)
	if err != nil {
		return err
	}
	if encrypt {
		data, err = sops.Encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt signing key: %w", err)
		}
	}
	return writeKeyFile(path, data, 0o600)
}

// WriteVerificationKey writes the public half of an authority key
func WriteVerificationKey(path string, identity registry.Identity) error {
	data, err := buildKeyEnvelope(
		VerificationKeyType,
		verificationKeyDescription,
		identity.Bytes(),
	)
	if err != nil {
		return err
	}
	return writeKeyFile(path, data, 0o644)
}

func writeKeyFile(path string, data []byte, perm os.FileMode) error {
	// Never replace an existing key
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create key file %q: %w", path, err)
	}
	if perm&0o077 == 0 {
		if err := restrictKeyFile(f); err != nil {
			f.Close()
			return err
		}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	return f.Close()
}

func buildKeyEnvelope(keyType string, description string, key []byte) ([]byte, error) {
	keyCbor, err := cbor.Encode(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key: %w", err)
	}
	return json.MarshalIndent(
		keyFileEnvelope{
			Type:        keyType,
			Description: description,
			CborHex:     hex.EncodeToString(keyCbor),
		},
		"",
		"    ",
	)
}

func parseKeyEnvelope(fileBytes []byte, expectedType string) ([]byte, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	if env.Type != expectedType {
		return nil, fmt.Errorf(
			"%w: expected %s, got %s",
			ErrWrongKeyType,
			expectedType,
			env.Type,
		)
	}
	cborData, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	var keyBytes []byte
	if _, err := cbor.Decode(cborData, &keyBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key CBOR: %w", err)
	}
	if len(keyBytes) == 0 {
		return nil, errors.New("empty key")
	}
	return keyBytes, nil
}
