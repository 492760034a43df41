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
	"context"
	"errors"
	"fmt"

	"github.com/blinklabs-io/degree/database"
	"github.com/blinklabs-io/degree/database/models"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ListOptions narrows and pages a diploma listing. Nil fields match everything
type ListOptions struct {
	Verified  *bool
	Authority *Identity
	Offset    int
	Limit     int
}

// DiplomaPage is one page of a diploma listing
type DiplomaPage struct {
	Diplomas []Diploma `json:"diplomas"`
	Total    int64     `json:"total"`
	Offset   int       `json:"offset"`
	Limit    int       `json:"limit"`
}

// HistoryEntry is one committed instruction in the audit trail
type HistoryEntry struct {
	Signer      Identity       `json:"signer"`
	TxID        TxID           `json:"tx_id"`
	Timestamp   int64          `json:"timestamp"`
	Instruction InstructionTag `json:"instruction"`
}

// GetRegistry returns the registry singleton
func (p *Program) GetRegistry(ctx context.Context) (*Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.loadRegistry(nil)
}

// GetDiploma returns the diploma record for an id, revoked or not
func (p *Program) GetDiploma(
	ctx context.Context,
	diplomaID string,
) (*Diploma, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.loadDiploma(DiplomaAddress(p.programID, diplomaID), diplomaID, nil)
}

// ListDiplomas returns diplomas in issue order from the metadata index
func (p *Program) ListDiplomas(
	ctx context.Context,
	opts ListOptions,
) (*DiplomaPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Offset < 0 {
		return nil, fmt.Errorf("invalid offset %d", opts.Offset)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	filter := models.DiplomaFilter{
		Verified: opts.Verified,
	}
	if opts.Authority != nil {
		filter.Authority = opts.Authority[:]
	}
	rows, total, err := p.db.GetDiplomas(filter, opts.Offset, limit, nil)
	if err != nil {
		return nil, err
	}
	ret := &DiplomaPage{
		Diplomas: make([]Diploma, 0, len(rows)),
		Total:    total,
		Offset:   opts.Offset,
		Limit:    limit,
	}
	for _, row := range rows {
		diploma, err := diplomaFromModel(&row)
		if err != nil {
			return nil, err
		}
		ret.Diplomas = append(ret.Diplomas, diploma)
	}
	return ret, nil
}

func diplomaFromModel(row *models.Diploma) (Diploma, error) {
	ret := Diploma{
		DiplomaID:  row.DiplomaId,
		ContentRef: row.ContentRef,
		CreatedAt:  row.IssuedAt,
		Verified:   row.Verified,
	}
	if len(row.Address) != AddressSize {
		return ret, fmt.Errorf(
			"diploma %q: invalid indexed address length %d",
			row.DiplomaId,
			len(row.Address),
		)
	}
	copy(ret.Address[:], row.Address)
	authority, err := identityFromBytes(row.Authority)
	if err != nil {
		return ret, fmt.Errorf("diploma %q: %w", row.DiplomaId, err)
	}
	ret.Authority = authority
	return ret, nil
}

// DiplomaHistory returns the committed instructions that touched a diploma,
// oldest first
func (p *Program) DiplomaHistory(
	ctx context.Context,
	diplomaID string,
) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	events, err := p.db.GetRegistryEvents(diplomaID, nil)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		// Distinguish an unknown diploma from one with no recorded history
		if _, err := p.GetDiploma(ctx, diplomaID); err != nil {
			return nil, err
		}
	}
	ret := make([]HistoryEntry, 0, len(events))
	for _, evt := range events {
		entry, err := historyEntryFromModel(&evt)
		if err != nil {
			return nil, err
		}
		ret = append(ret, entry)
	}
	return ret, nil
}

func historyEntryFromModel(evt *models.RegistryEvent) (HistoryEntry, error) {
	var ret HistoryEntry
	tag, err := ParseInstructionTag(evt.Type)
	if err != nil {
		return ret, err
	}
	signer, err := identityFromBytes(evt.Signer)
	if err != nil {
		return ret, err
	}
	if len(evt.TxId) != len(ret.TxID) {
		return ret, fmt.Errorf("invalid tx id length %d", len(evt.TxId))
	}
	ret.Instruction = tag
	ret.Signer = signer
	ret.Timestamp = evt.Timestamp
	copy(ret.TxID[:], evt.TxId)
	return ret, nil
}

// Reindex rebuilds the diploma index from the account store. Revocation
// details come from the audit trail when it has them
func (p *Program) Reindex(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "registry.reindex")
	defer span.End()
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count, err := p.reindex()
	if err != nil {
		span.RecordError(err)
	}
	return count, err
}

// reindex does the work of Reindex. Callers hold the writer lock
func (p *Program) reindex() (int, error) {
	count := 0
	err := p.db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := p.db.DeleteDiplomas(txn); err != nil {
			return err
		}
		return p.db.IterateAccounts(
			txn,
			func(address []byte, account *database.Account) error {
				if !bytes.Equal(account.Owner, p.programID[:]) {
					return nil
				}
				diploma := &Diploma{}
				if err := diploma.UnmarshalAccount(account.Data); err != nil {
					if errors.Is(err, ErrAccountDiscriminator) {
						// Registry singleton
						return nil
					}
					return fmt.Errorf("account %x: %w", address, err)
				}
				copy(diploma.Address[:], address)
				row := diplomaModel(diploma)
				events, err := p.db.GetRegistryEvents(diploma.DiplomaID, txn)
				if err != nil {
					return err
				}
				for _, evt := range events {
					switch evt.Type {
					case models.RegistryEventTypeAdd:
						row.AddTxId = evt.TxId
					case models.RegistryEventTypeRevoke:
						row.RevokeTxId = evt.TxId
						row.RevokedAt = evt.Timestamp
					}
				}
				if err := p.db.SetDiploma(row, txn); err != nil {
					return err
				}
				count++
				return nil
			},
		)
	})
	if err != nil {
		return 0, err
	}
	p.db.MarkIndexRebuilt()
	if reg, err := p.loadRegistry(nil); err == nil {
		p.setActiveDiplomas(reg.Count)
	} else if !errors.Is(err, ErrAddressNotFound) {
		return count, err
	}
	p.logger.Info("rebuilt diploma index", "diplomas", count)
	return count, nil
}
