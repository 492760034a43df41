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

// Package sops seals and opens key material with SOPS using cloud KMS or age
// recipients taken from the environment
package sops

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	sopsapi "github.com/getsops/sops/v3"
	"github.com/getsops/sops/v3/aes"
	"github.com/getsops/sops/v3/age"
	scommon "github.com/getsops/sops/v3/cmd/sops/common"
	"github.com/getsops/sops/v3/config"
	"github.com/getsops/sops/v3/decrypt"
	"github.com/getsops/sops/v3/gcpkms"
	skeys "github.com/getsops/sops/v3/keys"
	awskms "github.com/getsops/sops/v3/kms"
	jsonstore "github.com/getsops/sops/v3/stores/json"
	"github.com/getsops/sops/v3/version"
)

const (
	EnvGcpKmsResourceId = "DEGREE_GCP_KMS_RESOURCE_ID"
	EnvAwsKmsKeyArns    = "DEGREE_AWS_KMS_KEY_ARNS"
	EnvAwsKmsProfile    = "DEGREE_AWS_KMS_PROFILE"
	EnvAgeRecipients    = "DEGREE_SOPS_AGE_RECIPIENTS"
)

// binaryFormat wraps opaque bytes in a single "data" field
const binaryFormat = "binary"

var (
	// ErrAlreadyEncrypted is returned when sealing a SOPS document again
	ErrAlreadyEncrypted = errors.New("already encrypted")
	// ErrNotEncrypted is returned when opening data without SOPS metadata
	ErrNotEncrypted = errors.New("not a sops document")
)

// keySource builds one key group from the value of an env var
type keySource struct {
	env  string
	keys func(value string) ([]skeys.MasterKey, error)
}

// Each configured source becomes its own key group, so any one of them can
// open the document
var keySources = []keySource{
	{
		env: EnvGcpKmsResourceId,
		keys: func(rid string) ([]skeys.MasterKey, error) {
			return masterKeys(gcpkms.MasterKeysFromResourceIDString(rid)), nil
		},
	},
	{
		env: EnvAwsKmsKeyArns,
		keys: func(arns string) ([]skeys.MasterKey, error) {
			profile := os.Getenv(EnvAwsKmsProfile)
			return masterKeys(awskms.MasterKeysFromArnString(arns, nil, profile)), nil
		},
	},
	{
		env: EnvAgeRecipients,
		keys: func(recipients string) ([]skeys.MasterKey, error) {
			ageKeys, err := age.MasterKeysFromRecipients(recipients)
			if err != nil {
				return nil, fmt.Errorf("invalid age recipients: %w", err)
			}
			return masterKeys(ageKeys), nil
		},
	},
}

func masterKeys[K skeys.MasterKey](in []K) []skeys.MasterKey {
	ret := make([]skeys.MasterKey, 0, len(in))
	for _, k := range in {
		ret = append(ret, k)
	}
	return ret
}

// IsEncrypted reports whether data is a SOPS document
func IsEncrypted(data []byte) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	_, ok := doc["sops"]
	return ok
}

// Decrypt opens a document produced by Encrypt. The decryption keys come
// from the usual SOPS sources (SOPS_AGE_KEY, cloud credentials)
func Decrypt(data []byte) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, ErrNotEncrypted
	}
	ret, err := decrypt.Data(data, binaryFormat)
	if err != nil {
		return nil, fmt.Errorf("sops decrypt: %w", err)
	}
	return ret, nil
}

// Encrypt seals data for every master key configured in the environment
func Encrypt(data []byte) ([]byte, error) {
	if IsEncrypted(data) {
		return nil, ErrAlreadyEncrypted
	}
	keyGroups, err := keyGroupsFromEnv()
	if err != nil {
		return nil, err
	}
	store := jsonstore.NewBinaryStore(&config.JSONBinaryStoreConfig{})
	branches, err := store.LoadPlainFile(data)
	if err != nil {
		return nil, fmt.Errorf("sops load: %w", err)
	}
	tree := sopsapi.Tree{
		Branches: branches,
		Metadata: sopsapi.Metadata{
			KeyGroups: keyGroups,
			Version:   version.Version,
		},
	}
	dataKey, errs := tree.GenerateDataKey()
	if len(errs) > 0 {
		return nil, fmt.Errorf("sops data key: %w", errors.Join(errs...))
	}
	err = scommon.EncryptTree(scommon.EncryptTreeOpts{
		DataKey: dataKey,
		Tree:    &tree,
		Cipher:  aes.NewCipher(),
	})
	if err != nil {
		return nil, fmt.Errorf("sops encrypt: %w", err)
	}
	return store.EmitEncryptedFile(tree)
}

func keyGroupsFromEnv() ([]sopsapi.KeyGroup, error) {
	var groups []sopsapi.KeyGroup
	envNames := make([]string, 0, len(keySources))
	for _, src := range keySources {
		envNames = append(envNames, src.env)
		value := os.Getenv(src.env)
		if value == "" {
			continue
		}
		keys, err := src.keys(value)
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			groups = append(groups, keys)
		}
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf(
			"SOPS requires at least one master key to encrypt: set one of %v",
			envNames,
		)
	}
	return groups, nil
}
