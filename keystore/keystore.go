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

// Package keystore manages the registry authority signing key. Keys live in
// JSON text envelope files that may be sealed with SOPS.
package keystore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/degree/registry"
)

var (
	ErrKeysNotLoaded    = errors.New("keys not loaded")
	ErrInsecureFileMode = errors.New("insecure file permissions")
	ErrWrongKeyType     = errors.New("wrong key file type")
)

// KeyStoreConfig holds configuration for the KeyStore.
type KeyStoreConfig struct {
	// SigningKeyPath is the path to the authority signing key file
	SigningKeyPath string
	Logger         *slog.Logger
}

// KeyStore holds the authority key used to sign registry instructions
type KeyStore struct {
	config KeyStoreConfig
	logger *slog.Logger
	signer *registry.KeySigner
	mu     sync.RWMutex
}

// NewKeyStore creates a new KeyStore with the given configuration.
func NewKeyStore(config KeyStoreConfig) *KeyStore {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &KeyStore{
		config: config,
		logger: config.Logger.With("component", "keystore"),
	}
}

// Load reads the configured signing key file
func (ks *KeyStore) Load() error {
	if ks.config.SigningKeyPath == "" {
		return errors.New("no signing key path configured")
	}
	signer, err := LoadSigningKey(ks.config.SigningKeyPath)
	if err != nil {
		return fmt.Errorf("failed to load authority signing key: %w", err)
	}
	ks.mu.Lock()
	ks.signer = signer
	ks.mu.Unlock()
	ks.logger.Info(
		"authority key loaded",
		"identity", signer.Identity().String(),
	)
	return nil
}

// IsLoaded reports whether a signing key is available
func (ks *KeyStore) IsLoaded() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.signer != nil
}

// Signer returns the loaded authority signer
func (ks *KeyStore) Signer() (registry.Signer, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.signer == nil {
		return nil, ErrKeysNotLoaded
	}
	return ks.signer, nil
}

// Identity returns the public identity of the loaded key
func (ks *KeyStore) Identity() (registry.Identity, error) {
	signer, err := ks.Signer()
	if err != nil {
		return registry.Identity{}, err
	}
	return signer.Identity(), nil
}

// Generate creates a new authority key pair and writes it to the given
// paths. The verification key is skipped when vkeyPath is empty
func Generate(skeyPath string, vkeyPath string, encrypt bool) (*registry.KeySigner, error) {
	signer, err := registry.GenerateKeySigner()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := WriteSigningKey(skeyPath, signer, encrypt); err != nil {
		return nil, err
	}
	if vkeyPath != "" {
		if err := WriteVerificationKey(vkeyPath, signer.Identity()); err != nil {
			return nil, err
		}
	}
	return signer, nil
}
