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

package blob

import (
	"fmt"

	"github.com/blinklabs-io/degree/database/plugin"
	"github.com/blinklabs-io/degree/database/types"
)

// BlobReader is the read side of the account store
type BlobReader interface {
	Get(types.Txn, []byte) ([]byte, error)
	NewIterator(types.Txn, types.BlobIteratorOptions) types.BlobIterator
}

// BlobWriter is the write side of the account store. Writes only succeed
// inside a read-write transaction
type BlobWriter interface {
	Set(types.Txn, []byte, []byte) error
	Delete(types.Txn, []byte) error
}

// BlobStore is a transactional key/value store holding account records and
// the coordinated commit stamp
type BlobStore interface {
	BlobReader
	BlobWriter
	NewTransaction(readWrite bool) types.Txn
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Close() error
}

// New starts the named blob plugin
func New(pluginName string) (BlobStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeBlob, pluginName)
	if err != nil {
		return nil, err
	}
	if store, ok := p.(BlobStore); ok {
		return store, nil
	}
	_ = p.Stop()
	return nil, fmt.Errorf("blob plugin %q is not an account store", pluginName)
}
