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
	"crypto/rand"
	"fmt"
)

// Signer produces ed25519 signatures for an identity
type Signer interface {
	Identity() Identity
	Sign(message []byte) ([]byte, error)
}

// KeySigner signs with an in-memory ed25519 private key
type KeySigner struct {
	key      ed25519.PrivateKey
	identity Identity
}

// NewKeySigner wraps an ed25519 private key
func NewKeySigner(key ed25519.PrivateKey) (*KeySigner, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf(
			"invalid private key length: expected %d, got %d",
			ed25519.PrivateKeySize,
			len(key),
		)
	}
	identity, err := IdentityFromPublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &KeySigner{
		key:      key,
		identity: identity,
	}, nil
}

// GenerateKeySigner creates a signer with a fresh random key
func GenerateKeySigner() (*KeySigner, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewKeySigner(key)
}

func (s *KeySigner) Identity() Identity {
	return s.identity
}

func (s *KeySigner) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(s.key, message), nil
}

// PrivateKey returns the wrapped key
func (s *KeySigner) PrivateKey() ed25519.PrivateKey {
	return s.key
}
