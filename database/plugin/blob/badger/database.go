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

package badger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/degree/database/types"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/prometheus/client_golang/prometheus"
)

// gcDiscardRatio is the share of stale data a value log file must hold
// before GC rewrites it
const gcDiscardRatio = 0.5

// BlobStoreBadger keeps registry accounts in badger. With no data dir the
// store is in-memory and nothing is persisted
type BlobStoreBadger struct {
	promRegistry   prometheus.Registerer
	txnConflicts   prometheus.Counter
	gcRewrites     prometheus.Counter
	db             *badger.DB
	logger         *slog.Logger
	gcCancel       context.CancelFunc
	gcDone         chan struct{}
	dataDir        string
	blockCacheSize uint64
	indexCacheSize uint64
	gcInterval     time.Duration
	gcEnabled      bool
	syncWrites     bool
}

// New opens the store described by opts
func New(opts ...BlobStoreBadgerOptionFunc) (*BlobStoreBadger, error) {
	d := &BlobStoreBadger{
		gcEnabled:      true,
		syncWrites:     true,
		gcInterval:     DefaultGcInterval,
		blockCacheSize: DefaultBlockCacheSize,
		indexCacheSize: DefaultIndexCacheSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	badgerOpts, err := d.badgerOptions()
	if err != nil {
		return nil, err
	}
	d.db, err = badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	if d.promRegistry != nil {
		d.registerBlobMetrics()
	}
	if d.gcEnabled {
		d.startGc()
	}
	return d, nil
}

func (d *BlobStoreBadger) badgerOptions() (badger.Options, error) {
	var opts badger.Options
	if d.dataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
		// There is no value log to collect
		d.gcEnabled = false
	} else {
		if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
			return opts, fmt.Errorf("failed to create data dir: %w", err)
		}
		opts = badger.DefaultOptions(filepath.Join(d.dataDir, "blob")).
			WithBlockCacheSize(int64(d.blockCacheSize)). //nolint:gosec
			WithIndexCacheSize(int64(d.indexCacheSize)). //nolint:gosec
			WithCompression(options.Snappy).
			WithSyncWrites(d.syncWrites)
	}
	return opts.
		WithLogger(NewBadgerLogger(d.logger)).
		WithLoggingLevel(badger.WARNING), nil
}

func (d *BlobStoreBadger) startGc() {
	ctx, cancel := context.WithCancel(context.Background())
	d.gcCancel = cancel
	d.gcDone = make(chan struct{})
	go func() {
		defer close(d.gcDone)
		ticker := time.NewTicker(d.gcInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.collectValueLog(ctx)
			}
		}
	}()
}

// collectValueLog keeps rewriting value log files until badger reports
// nothing left worth rewriting
func (d *BlobStoreBadger) collectValueLog(ctx context.Context) {
	for ctx.Err() == nil {
		err := d.db.RunValueLogGC(gcDiscardRatio)
		if err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				d.logger.Warn("blob store value log GC failed", "error", err)
			}
			return
		}
		if d.gcRewrites != nil {
			d.gcRewrites.Inc()
		}
	}
}

func (d *BlobStoreBadger) countConflict() {
	if d.txnConflicts != nil {
		d.txnConflicts.Inc()
	}
}

// Start implements plugin.Plugin. The store is opened by New
func (d *BlobStoreBadger) Start() error {
	return nil
}

// Stop implements plugin.Plugin
func (d *BlobStoreBadger) Stop() error {
	return d.Close()
}

// Close stops value log GC and closes badger
func (d *BlobStoreBadger) Close() error {
	if d.gcCancel != nil {
		d.gcCancel()
		<-d.gcDone
		d.gcCancel = nil
	}
	return d.db.Close()
}

// DB returns the badger handle
func (d *BlobStoreBadger) DB() *badger.DB {
	return d.db
}

func (d *BlobStoreBadger) NewTransaction(readWrite bool) types.Txn {
	return &storeTxn{
		store:     d,
		tx:        d.db.NewTransaction(readWrite),
		readWrite: readWrite,
	}
}

// Get returns a copy of the value stored at key
func (d *BlobStoreBadger) Get(txn types.Txn, key []byte) ([]byte, error) {
	st, err := d.txnFor(txn, false)
	if err != nil {
		return nil, err
	}
	it, err := st.tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, types.ErrBlobKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return it.ValueCopy(nil)
}

func (d *BlobStoreBadger) Set(txn types.Txn, key, val []byte) error {
	st, err := d.txnFor(txn, true)
	if err != nil {
		return err
	}
	return st.tx.Set(key, val)
}

func (d *BlobStoreBadger) Delete(txn types.Txn, key []byte) error {
	st, err := d.txnFor(txn, true)
	if err != nil {
		return err
	}
	return st.tx.Delete(key)
}

// NewIterator walks keys under opts.Prefix. Items are only valid while txn
// is open
func (d *BlobStoreBadger) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	st, err := d.txnFor(txn, false)
	if err != nil {
		return failedIterator{err: err}
	}
	iterOpts := badger.DefaultIteratorOptions
	iterOpts.Prefix = opts.Prefix
	iterOpts.Reverse = opts.Reverse
	return iterator{it: st.tx.NewIterator(iterOpts)}
}
