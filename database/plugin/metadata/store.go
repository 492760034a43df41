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

package metadata

import (
	"fmt"

	"github.com/blinklabs-io/degree/database/models"
	"github.com/blinklabs-io/degree/database/plugin"
	"github.com/blinklabs-io/degree/database/types"
	"gorm.io/gorm"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Diploma index
	SetDiploma(*models.Diploma, types.Txn) error
	RevokeDiploma(
		string, // diplomaId
		int64, // revokedAt
		[]byte, // revokeTxId
		types.Txn,
	) error
	GetDiploma(string, types.Txn) (*models.Diploma, error)
	GetDiplomas(
		models.DiplomaFilter,
		int, // offset
		int, // limit
		types.Txn,
	) ([]models.Diploma, int64, error)
	DeleteDiplomas(types.Txn) error

	// Audit trail
	AddRegistryEvent(*models.RegistryEvent, types.Txn) error
	GetRegistryEvents(string, types.Txn) ([]models.RegistryEvent, error)
}

// New returns the started metadata plugin selected by name
func New(pluginName string) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
