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
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"golang.org/x/crypto/blake2b"
)

type InstructionTag uint8

const (
	InstructionInitialize InstructionTag = iota + 1
	InstructionAddDiploma
	InstructionRevokeDiploma
)

var instructionTagNames = map[InstructionTag]string{
	InstructionInitialize:    "initialize",
	InstructionAddDiploma:    "add_diploma",
	InstructionRevokeDiploma: "revoke_diploma",
}

func (t InstructionTag) String() string {
	if name, ok := instructionTagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

func (t InstructionTag) MarshalText() ([]byte, error) {
	if _, ok := instructionTagNames[t]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInstruction, t)
	}
	return []byte(t.String()), nil
}

func (t *InstructionTag) UnmarshalText(text []byte) error {
	tmp, err := ParseInstructionTag(string(text))
	if err != nil {
		return err
	}
	*t = tmp
	return nil
}

// ParseInstructionTag maps an instruction name to its tag
func ParseInstructionTag(name string) (InstructionTag, error) {
	for tag, tagName := range instructionTagNames {
		if tagName == name {
			return tag, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidInstruction, name)
}

// Instruction is one registry operation and its arguments. A nil ContentRef
// means no content reference was supplied
type Instruction struct {
	ContentRef *string        `json:"content_ref,omitempty"`
	DiplomaID  string         `json:"diploma_id,omitempty"`
	Tag        InstructionTag `json:"type"`
}

func NewInitialize() Instruction {
	return Instruction{Tag: InstructionInitialize}
}

func NewAddDiploma(diplomaID string, contentRef *string) Instruction {
	return Instruction{
		Tag:        InstructionAddDiploma,
		DiplomaID:  diplomaID,
		ContentRef: contentRef,
	}
}

func NewRevokeDiploma(diplomaID string) Instruction {
	return Instruction{
		Tag:       InstructionRevokeDiploma,
		DiplomaID: diplomaID,
	}
}

// Validate runs the argument checks that need no stored state
func (i Instruction) Validate() error {
	switch i.Tag {
	case InstructionInitialize, InstructionRevokeDiploma:
		if i.ContentRef != nil {
			return fmt.Errorf(
				"%w: content reference on %s",
				ErrInvalidInstruction,
				i.Tag,
			)
		}
		return nil
	case InstructionAddDiploma:
		if len(i.DiplomaID) == 0 {
			return ErrEmptyIdentifier
		}
		if len(i.DiplomaID) > MaxDiplomaIDLength {
			return ErrIdentifierTooLong
		}
		if i.ContentRef != nil {
			if len(*i.ContentRef) == 0 {
				return ErrEmptyContentReference
			}
			if len(*i.ContentRef) > MaxContentRefLength {
				return ErrContentReferenceTooLong
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidInstruction, i.Tag)
	}
}

type signingPayload struct {
	cbor.StructAsArray
	ProgramID  []byte
	Tag        uint8
	DiplomaID  string
	ContentRef *string
}

// SigningPayload returns the bytes a signer commits to. The program id binds
// a signature to one deployment
func (i Instruction) SigningPayload(programID Address) ([]byte, error) {
	return cbor.Encode(
		&signingPayload{
			ProgramID:  programID[:],
			Tag:        uint8(i.Tag),
			DiplomaID:  i.DiplomaID,
			ContentRef: i.ContentRef,
		},
	)
}

// TxID identifies a signed transaction
type TxID [blake2b.Size256]byte

func (t TxID) Bytes() []byte {
	return t[:]
}

func (t TxID) String() string {
	return hex.EncodeToString(t[:])
}

func (t TxID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TxID) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != len(t) {
		return fmt.Errorf("invalid tx id length %d", len(text))
	}
	_, err := hex.Decode(t[:], text)
	return err
}

// SignedTransaction is an instruction together with its signer and signature
type SignedTransaction struct {
	Signature   []byte
	Instruction Instruction
	Signer      Identity
}

type signedTransactionJSON struct {
	Instruction Instruction `json:"instruction"`
	Signer      Identity    `json:"signer"`
	Signature   string      `json:"signature"`
}

func (tx SignedTransaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(
		signedTransactionJSON{
			Instruction: tx.Instruction,
			Signer:      tx.Signer,
			Signature:   hex.EncodeToString(tx.Signature),
		},
	)
}

func (tx *SignedTransaction) UnmarshalJSON(data []byte) error {
	var tmp signedTransactionJSON
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	sig, err := hex.DecodeString(tmp.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	tx.Instruction = tmp.Instruction
	tx.Signer = tmp.Signer
	tx.Signature = sig
	return nil
}

// Sign builds a signed transaction for the given program
func Sign(
	programID Address,
	instruction Instruction,
	signer Signer,
) (*SignedTransaction, error) {
	payload, err := instruction.SigningPayload(programID)
	if err != nil {
		return nil, fmt.Errorf("encode signing payload: %w", err)
	}
	sig, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return &SignedTransaction{
		Instruction: instruction,
		Signer:      signer.Identity(),
		Signature:   sig,
	}, nil
}

// Verify checks the signature against the signing payload for the given program
func (tx *SignedTransaction) Verify(programID Address) error {
	if len(tx.Signature) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	payload, err := tx.Instruction.SigningPayload(programID)
	if err != nil {
		return fmt.Errorf("encode signing payload: %w", err)
	}
	if !ed25519.Verify(tx.Signer.PublicKey(), payload, tx.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// ID returns the transaction id for the given program
func (tx *SignedTransaction) ID(programID Address) (TxID, error) {
	payload, err := tx.Instruction.SigningPayload(programID)
	if err != nil {
		return TxID{}, err
	}
	h, _ := blake2b.New256(nil)
	h.Write(payload)
	h.Write(tx.Signature)
	var ret TxID
	copy(ret[:], h.Sum(nil))
	return ret, nil
}
