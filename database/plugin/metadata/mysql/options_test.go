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

package mysql

import (
	"strings"
	"testing"

	"github.com/blinklabs-io/degree/database/plugin/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOptionsDefaults(t *testing.T) {
	m, err := NewWithOptions()
	require.NoError(t, err)
	assert.Equal(t, DefaultConnConfig, m.conn)
	assert.NotNil(t, m.logger)
	require.NoError(t, m.Close())
}

func TestDSNFromSettings(t *testing.T) {
	m, err := NewWithOptions(
		WithConnection(metadata.ConnConfig{
			Host:     "db.local",
			Port:     3307,
			User:     "registrar",
			Password: "secret",
			Database: "diplomas",
			SSLMode:  "skip-verify",
		}),
	)
	require.NoError(t, err)
	dsn, dbName := m.dsn()
	assert.Equal(t, "diplomas", dbName)
	assert.True(
		t,
		strings.HasPrefix(dsn, "registrar:secret@tcp(db.local:3307)/diplomas?"),
		dsn,
	)
	assert.Contains(t, dsn, "tls=skip-verify")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestDSNOverride(t *testing.T) {
	testDefs := []struct {
		dsn    string
		want   string
		dbName string
	}{
		{
			dsn:    " user:pw@tcp(h:3306)/registry?charset=utf8mb4 ",
			want:   "user:pw@tcp(h:3306)/registry?charset=utf8mb4",
			dbName: "registry",
		},
		{
			dsn:  "user:pw@tcp(h:3306)/",
			want: "user:pw@tcp(h:3306)/",
		},
		{
			// Unparseable DSNs are handed to the driver unchanged
			dsn:  "garbage",
			want: "garbage",
		},
	}
	for _, testDef := range testDefs {
		m, err := NewWithOptions(
			WithConnection(metadata.ConnConfig{DSN: testDef.dsn}),
		)
		require.NoError(t, err)
		dsn, dbName := m.dsn()
		assert.Equal(t, testDef.want, dsn)
		assert.Equal(t, testDef.dbName, dbName, testDef.dsn)
	}
}

func TestCreateDatabaseNeedsName(t *testing.T) {
	require.Error(t, createDatabase("user:pw@tcp(h:3306)/", ""))
}
