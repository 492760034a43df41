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

package api

import (
	"context"

	"github.com/blinklabs-io/degree/registry"
)

// RegistryNode is what the API server needs from the registry program. It is
// satisfied by *registry.Program
type RegistryNode interface {
	ProgramID() registry.Address
	GetRegistry(ctx context.Context) (*registry.Registry, error)
	GetDiploma(ctx context.Context, diplomaID string) (*registry.Diploma, error)
	ListDiplomas(
		ctx context.Context,
		opts registry.ListOptions,
	) (*registry.DiplomaPage, error)
	DiplomaHistory(
		ctx context.Context,
		diplomaID string,
	) ([]registry.HistoryEntry, error)
	Execute(
		ctx context.Context,
		tx *registry.SignedTransaction,
	) (*registry.Receipt, error)
}

var _ RegistryNode = (*registry.Program)(nil)
