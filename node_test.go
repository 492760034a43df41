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

package degree

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/blinklabs-io/degree/database"
	"github.com/blinklabs-io/degree/event"
	"github.com/blinklabs-io/degree/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewConfigValidate(t *testing.T) {
	_, err := New(NewConfig(WithProgramID(registry.Address{})))
	require.Error(t, err)
	_, err = New(NewConfig(WithShutdownTimeout(-time.Second)))
	require.Error(t, err)
}

func TestNodeServesRegistry(t *testing.T) {
	n, err := New(NewConfig(
		WithApiListenAddress("127.0.0.1:0"),
		WithPrometheusRegistry(prometheus.NewRegistry()),
		WithShutdownTimeout(5*time.Second),
	))
	require.NoError(t, err)
	runErr := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		runErr <- n.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		return n.ApiAddr() != ""
	}, 5*time.Second, 10*time.Millisecond)

	added := make(chan event.Event, 1)
	n.EventBus().SubscribeFunc(
		event.DiplomaAddedEventType,
		func(evt event.Event) { added <- evt },
	)

	authority, err := registry.GenerateKeySigner()
	require.NoError(t, err)
	program := n.Program()
	require.NotNil(t, program)
	_, err = program.Initialize(ctx, authority)
	require.NoError(t, err)
	_, err = program.AddDiploma(ctx, authority, "CS-2024-001", nil)
	require.NoError(t, err)

	select {
	case evt := <-added:
		data, ok := evt.Data.(event.DiplomaAddedEvent)
		require.True(t, ok)
		assert.Equal(t, "CS-2024-001", data.DiplomaId)
	case <-time.After(5 * time.Second):
		t.Fatal("no diploma added event")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + n.ApiAddr() + "/v1/registry")
	require.NoError(t, err)
	var reg registry.Registry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reg))
	require.NoError(t, resp.Body.Close())
	client.CloseIdleConnections()
	assert.Equal(t, uint64(1), reg.Count)
	assert.Equal(t, authority.Identity(), reg.Authority)

	require.NoError(t, n.Stop())
	require.NoError(t, <-runErr)
	require.NoError(t, n.Stop())
	assert.ErrorIs(t, n.Start(ctx), ErrNodeStarted)
}

func TestNodeRecoversIndex(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	n, err := New(NewConfig(WithDatabasePath(dataDir)))
	require.NoError(t, err)
	require.NoError(t, n.Start(ctx))
	authority, err := registry.GenerateKeySigner()
	require.NoError(t, err)
	_, err = n.Program().Initialize(ctx, authority)
	require.NoError(t, err)
	for _, id := range []string{"A-1", "A-2"} {
		_, err = n.Program().AddDiploma(ctx, authority, id, nil)
		require.NoError(t, err)
	}
	require.NoError(t, n.Stop())

	// Lose the index, then leave the stores out of step
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.DeleteDiplomas(txn)
	}))
	blobTxn := db.Blob().NewTransaction(true)
	require.NoError(t, db.Blob().SetCommitTimestamp(1, blobTxn))
	require.NoError(t, blobTxn.Commit())
	require.NoError(t, db.Close())

	// Without auto reindex the node refuses to start on the stale index
	n, err = New(NewConfig(WithDatabasePath(dataDir), WithAutoReindex(false)))
	require.NoError(t, err)
	err = n.Start(ctx)
	var tsErr database.CommitTimestampError
	require.ErrorAs(t, err, &tsErr)
	require.NoError(t, n.Stop())

	n, err = New(NewConfig(WithDatabasePath(dataDir)))
	require.NoError(t, err)
	require.NoError(t, n.Start(ctx))
	defer n.Stop()
	assert.False(t, n.db.IndexStale())
	page, err := n.Program().ListDiplomas(ctx, registry.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	reg, err := n.Program().GetRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), reg.Count)
}
