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
	"bytes"
	"fmt"

	"github.com/blinklabs-io/degree/database/models"
	"github.com/blinklabs-io/gouroboros/cbor"
	"golang.org/x/crypto/blake2b"
)

const (
	DiscriminatorSize   = 8
	MaxDiplomaIDLength  = 100
	MaxContentRefLength = 60

	// Upper bounds of each CBOR item in an account body
	cborArrayHeaderSize = 1
	cborBytes32Size     = 2 + 32
	cborUint64Size      = 9
	cborBoolSize        = 1

	RegistrySpace = DiscriminatorSize +
		cborArrayHeaderSize +
		cborBytes32Size + // authority
		cborUint64Size // count
	DiplomaSpace = DiscriminatorSize +
		cborArrayHeaderSize +
		cborBytes32Size + // authority
		2 + MaxDiplomaIDLength + // diploma id
		2 + MaxContentRefLength + // content ref
		cborBoolSize + // verified
		cborUint64Size // created at
)

var (
	registryDiscriminator = accountDiscriminator("Registry")
	diplomaDiscriminator  = accountDiscriminator("Diploma")
)

func accountDiscriminator(name string) []byte {
	sum := blake2b.Sum256([]byte("account:" + name))
	return sum[:DiscriminatorSize]
}

// Registry is the singleton account holding the issuing authority and the
// number of verified diplomas
type Registry struct {
	Address   Address  `json:"address"`
	Authority Identity `json:"authority"`
	Count     uint64   `json:"count"`
}

// Diploma is the account recording one issued credential. Revocation clears
// Verified and nothing else
type Diploma struct {
	DiplomaID  string   `json:"diploma_id"`
	ContentRef string   `json:"content_ref,omitempty"`
	Address    Address  `json:"address"`
	Authority  Identity `json:"authority"`
	CreatedAt  int64    `json:"created_at"`
	Verified   bool     `json:"verified"`
}

type registryBody struct {
	cbor.StructAsArray
	Authority []byte
	Count     uint64
}

type diplomaBody struct {
	cbor.StructAsArray
	Authority  []byte
	DiplomaID  string
	ContentRef string
	Verified   bool
	CreatedAt  int64
}

func encodeAccount(discriminator []byte, body any) ([]byte, error) {
	bodyCbor, err := cbor.Encode(body)
	if err != nil {
		return nil, err
	}
	ret := make([]byte, 0, len(discriminator)+len(bodyCbor))
	ret = append(ret, discriminator...)
	return append(ret, bodyCbor...), nil
}

func decodeAccount(data []byte, discriminator []byte, body any) error {
	if len(data) < DiscriminatorSize ||
		!bytes.Equal(data[:DiscriminatorSize], discriminator) {
		return ErrAccountDiscriminator
	}
	if _, err := cbor.Decode(data[DiscriminatorSize:], body); err != nil {
		return fmt.Errorf("decode account body: %w", err)
	}
	return nil
}

func identityFromBytes(data []byte) (Identity, error) {
	var ret Identity
	if len(data) != IdentitySize {
		return ret, fmt.Errorf(
			"invalid authority length: expected %d, got %d",
			IdentitySize,
			len(data),
		)
	}
	copy(ret[:], data)
	return ret, nil
}

// MarshalAccount returns the stored form of the registry account
func (r *Registry) MarshalAccount() ([]byte, error) {
	return encodeAccount(
		registryDiscriminator,
		&registryBody{
			Authority: r.Authority[:],
			Count:     r.Count,
		},
	)
}

// UnmarshalAccount decodes the stored form of the registry account
func (r *Registry) UnmarshalAccount(data []byte) error {
	var body registryBody
	if err := decodeAccount(data, registryDiscriminator, &body); err != nil {
		return err
	}
	authority, err := identityFromBytes(body.Authority)
	if err != nil {
		return err
	}
	r.Authority = authority
	r.Count = body.Count
	return nil
}

// MarshalAccount returns the stored form of the diploma account
func (d *Diploma) MarshalAccount() ([]byte, error) {
	return encodeAccount(
		diplomaDiscriminator,
		&diplomaBody{
			Authority:  d.Authority[:],
			DiplomaID:  d.DiplomaID,
			ContentRef: d.ContentRef,
			Verified:   d.Verified,
			CreatedAt:  d.CreatedAt,
		},
	)
}

// UnmarshalAccount decodes the stored form of the diploma account
func (d *Diploma) UnmarshalAccount(data []byte) error {
	var body diplomaBody
	if err := decodeAccount(data, diplomaDiscriminator, &body); err != nil {
		return err
	}
	authority, err := identityFromBytes(body.Authority)
	if err != nil {
		return err
	}
	d.Authority = authority
	d.DiplomaID = body.DiplomaID
	d.ContentRef = body.ContentRef
	d.Verified = body.Verified
	d.CreatedAt = body.CreatedAt
	return nil
}

// Status returns the lifecycle state name
func (d *Diploma) Status() string {
	if d.Verified {
		return models.DiplomaStatusActive
	}
	return models.DiplomaStatusRevoked
}
