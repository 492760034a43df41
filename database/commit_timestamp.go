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

package database

import (
	"fmt"
	"time"
)

// CommitTimestampError reports an account store and metadata index that were
// last committed by different transactions. Rebuilding the index clears it
type CommitTimestampError struct {
	MetadataTimestamp int64
	BlobTimestamp     int64
}

func (e CommitTimestampError) Error() string {
	return fmt.Sprintf(
		"commit timestamp mismatch: %d (metadata) != %d (blob)",
		e.MetadataTimestamp,
		e.BlobTimestamp,
	)
}

// IndexStale reports whether the metadata index may disagree with the
// account store, either from a mismatch found at open or a partial commit
func (d *Database) IndexStale() bool {
	return d.indexStale.Load()
}

// MarkIndexRebuilt clears the stale flag after the index has been rebuilt
// and committed
func (d *Database) MarkIndexRebuilt() {
	if d.indexStale.Swap(false) {
		d.logger.Info("metadata index marked consistent")
	}
}

func (d *Database) markIndexStale() {
	d.indexStale.Store(true)
}

func (d *Database) checkCommitTimestamp() error {
	metaTs, err := d.Metadata().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("failed to read metadata commit timestamp: %w", err)
	}
	blobTs, err := d.Blob().GetCommitTimestamp()
	if err != nil {
		return fmt.Errorf("failed to read blob commit timestamp: %w", err)
	}
	d.lastCommit.Store(max(metaTs, blobTs))
	// An empty metadata store next to existing accounts also needs a rebuild
	if metaTs == blobTs {
		return nil
	}
	d.markIndexStale()
	return CommitTimestampError{
		MetadataTimestamp: metaTs,
		BlobTimestamp:     blobTs,
	}
}

// nextCommitTimestamp returns the current time in milliseconds, bumped past
// the previous stamp so that stamps never repeat or go backwards
func (d *Database) nextCommitTimestamp() int64 {
	for {
		prev := d.lastCommit.Load()
		next := max(time.Now().UnixMilli(), prev+1)
		if d.lastCommit.CompareAndSwap(prev, next) {
			return next
		}
	}
}

func (d *Database) stampCommit(txn *Txn) error {
	ts := d.nextCommitTimestamp()
	if err := d.Metadata().SetCommitTimestamp(ts, txn.Metadata()); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if err := d.Blob().SetCommitTimestamp(ts, txn.Blob()); err != nil {
		return fmt.Errorf("blob: %w", err)
	}
	return nil
}
