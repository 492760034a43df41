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
	"errors"
	"fmt"
)

// Error is a registry failure with a stable name and numeric code
type Error struct {
	Name    string
	Message string
	Code    uint32
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code uint32, name string, message string) *Error {
	return &Error{
		Code:    code,
		Name:    name,
		Message: message,
	}
}

var (
	ErrEmptyIdentifier = newError(
		6000,
		"EmptyIdentifier",
		"diploma id cannot be empty",
	)
	ErrIdentifierTooLong = newError(
		6001,
		"IdentifierTooLong",
		fmt.Sprintf("diploma id is longer than %d bytes", MaxDiplomaIDLength),
	)
	ErrEmptyContentReference = newError(
		6002,
		"EmptyContentReference",
		"content reference cannot be empty",
	)
	ErrContentReferenceTooLong = newError(
		6003,
		"ContentReferenceTooLong",
		fmt.Sprintf(
			"content reference is longer than %d bytes",
			MaxContentRefLength,
		),
	)
	ErrAlreadyRevoked = newError(
		6004,
		"AlreadyRevoked",
		"diploma is already revoked",
	)
	ErrUnauthorized = newError(
		6005,
		"Unauthorized",
		"signer is not the registry authority",
	)
	ErrAddressAlreadyOccupied = newError(
		6006,
		"AddressAlreadyOccupied",
		"address already occupied",
	)
	ErrAddressNotFound = newError(
		6007,
		"AddressNotFound",
		"address not found",
	)
	ErrInvalidSignature = newError(
		6008,
		"InvalidSignature",
		"invalid transaction signature",
	)
	ErrAccountDiscriminator = newError(
		6009,
		"AccountDiscriminatorMismatch",
		"account discriminator mismatch",
	)
	ErrCounterUnderflow = newError(
		6010,
		"CounterUnderflow",
		"diploma count would drop below zero",
	)
	ErrInvalidInstruction = newError(
		6011,
		"InvalidInstruction",
		"unknown instruction",
	)
)

// ErrorNameInternal labels failures that did not come from the registry
// taxonomy, such as storage faults
const ErrorNameInternal = "Internal"

// ErrorName returns the stable name of a registry error, ErrorNameInternal for
// any other error, and an empty string for nil
func ErrorName(err error) string {
	if err == nil {
		return ""
	}
	var regErr *Error
	if errors.As(err, &regErr) {
		return regErr.Name
	}
	return ErrorNameInternal
}

// ErrorCode returns the numeric code of a registry error
func ErrorCode(err error) (uint32, bool) {
	var regErr *Error
	if errors.As(err, &regErr) {
		return regErr.Code, true
	}
	return 0, false
}
