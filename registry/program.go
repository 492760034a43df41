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
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/degree/database"
	"github.com/blinklabs-io/degree/database/models"
	"github.com/blinklabs-io/degree/database/types"
	"github.com/blinklabs-io/degree/event"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blinklabs-io/degree/registry"

// Receipt describes a committed instruction
type Receipt struct {
	DiplomaID   string         `json:"diploma_id,omitempty"`
	ContentRef  string         `json:"content_ref,omitempty"`
	TxID        TxID           `json:"tx_id"`
	Address     Address        `json:"address"`
	Count       uint64         `json:"count"`
	Timestamp   int64          `json:"timestamp"`
	Instruction InstructionTag `json:"instruction"`
}

// Program executes registry instructions against the account store. Mutating
// instructions are applied one at a time in the order they take the writer
// lock; reads use snapshots and never wait on writers
type Program struct {
	db             *database.Database
	eventBus       *event.EventBus
	logger         *slog.Logger
	promRegistry   prometheus.Registerer
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	metrics        *programMetrics
	now            func() time.Time
	mu             sync.Mutex
	programID      Address
}

func New(opts ...ProgramOptionFunc) (*Program, error) {
	p := &Program{
		programID: DefaultProgramID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.db == nil {
		return nil, errors.New("registry: no database configured")
	}
	if p.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		p.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	p.logger = p.logger.With("component", "registry")
	if p.tracerProvider == nil {
		p.tracerProvider = otel.GetTracerProvider()
	}
	p.tracer = p.tracerProvider.Tracer(tracerName)
	p.initMetrics()
	if reg, err := p.GetRegistry(context.Background()); err == nil {
		p.setActiveDiplomas(reg.Count)
	}
	return p, nil
}

// ProgramID returns the id all account addresses derive from
func (p *Program) ProgramID() Address {
	return p.programID
}

// Execute verifies and applies a signed transaction. Either every effect of
// the instruction is committed or none is
func (p *Program) Execute(
	ctx context.Context,
	tx *SignedTransaction,
) (*Receipt, error) {
	if tx == nil {
		return nil, errors.New("nil transaction")
	}
	tag := tx.Instruction.Tag
	ctx, span := p.tracer.Start(
		ctx,
		"registry."+tag.String(),
		trace.WithAttributes(
			attribute.String("registry.instruction", tag.String()),
			attribute.String("registry.diploma_id", tx.Instruction.DiplomaID),
			attribute.String("registry.signer", tx.Signer.String()),
		),
	)
	defer span.End()
	start := time.Now()
	receipt, err := p.execute(ctx, tx)
	p.observeInstruction(tag, err, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorName(err))
		p.logger.Debug(
			"instruction rejected",
			"instruction", tag.String(),
			"diploma_id", tx.Instruction.DiplomaID,
			"signer", tx.Signer.String(),
			"error", ErrorName(err),
			"reason", err.Error(),
		)
		return nil, err
	}
	span.SetAttributes(attribute.String("registry.tx_id", receipt.TxID.String()))
	return receipt, nil
}

func (p *Program) execute(
	ctx context.Context,
	tx *SignedTransaction,
) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tx.Verify(p.programID); err != nil {
		return nil, err
	}
	if err := tx.Instruction.Validate(); err != nil {
		return nil, err
	}
	txID, err := tx.ID(p.programID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// The context may have expired while waiting for the writer lock
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := p.now()
	var receipt *Receipt
	err = p.db.Transaction(true).Do(func(txn *database.Txn) error {
		var err error
		switch tx.Instruction.Tag {
		case InstructionInitialize:
			receipt, err = p.initialize(txn, tx.Signer, txID, now)
		case InstructionAddDiploma:
			receipt, err = p.addDiploma(
				txn,
				tx.Signer,
				tx.Instruction.DiplomaID,
				tx.Instruction.ContentRef,
				txID,
				now,
			)
		case InstructionRevokeDiploma:
			receipt, err = p.revokeDiploma(
				txn,
				tx.Signer,
				tx.Instruction.DiplomaID,
				txID,
				now,
			)
		default:
			err = fmt.Errorf(
				"%w: %d",
				ErrInvalidInstruction,
				tx.Instruction.Tag,
			)
		}
		if err != nil {
			return err
		}
		// Published under the writer lock so subscribers see commit order
		txn.OnCommit(func() { p.afterCommit(receipt, tx.Signer) })
		return nil
	})
	if errors.Is(err, database.ErrPartialCommit) {
		// The accounts are written, only the index lags behind them
		p.logger.Error(
			"rebuilding diploma index after partial commit",
			"tx_id", txID.String(),
			"error", err,
		)
		if _, rerr := p.reindex(); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		p.afterCommit(receipt, tx.Signer)
		return receipt, nil
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Initialize creates the registry singleton with the signer as authority
func (p *Program) Initialize(
	ctx context.Context,
	signer Signer,
) (*Receipt, error) {
	return p.signAndExecute(ctx, signer, NewInitialize())
}

// AddDiploma records a new verified diploma. A nil contentRef stores no
// content reference
func (p *Program) AddDiploma(
	ctx context.Context,
	signer Signer,
	diplomaID string,
	contentRef *string,
) (*Receipt, error) {
	return p.signAndExecute(ctx, signer, NewAddDiploma(diplomaID, contentRef))
}

// RevokeDiploma marks a diploma as no longer verified
func (p *Program) RevokeDiploma(
	ctx context.Context,
	signer Signer,
	diplomaID string,
) (*Receipt, error) {
	return p.signAndExecute(ctx, signer, NewRevokeDiploma(diplomaID))
}

func (p *Program) signAndExecute(
	ctx context.Context,
	signer Signer,
	instruction Instruction,
) (*Receipt, error) {
	tx, err := Sign(p.programID, instruction, signer)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, tx)
}

func (p *Program) initialize(
	txn *database.Txn,
	signer Identity,
	txID TxID,
	now time.Time,
) (*Receipt, error) {
	addr := RegistryAddress(p.programID)
	reg := &Registry{
		Address:   addr,
		Authority: signer,
	}
	data, err := reg.MarshalAccount()
	if err != nil {
		return nil, err
	}
	if err := p.db.CreateAccount(
		addr[:],
		p.programID[:],
		RegistrySpace,
		data,
		txn,
	); err != nil {
		return nil, storageError(err, "registry "+addr.String())
	}
	if err := p.db.AddRegistryEvent(
		&models.RegistryEvent{
			Type:      models.RegistryEventTypeInitialize,
			Signer:    signer[:],
			TxId:      txID[:],
			Timestamp: now.Unix(),
		},
		txn,
	); err != nil {
		return nil, err
	}
	return &Receipt{
		Instruction: InstructionInitialize,
		TxID:        txID,
		Address:     addr,
		Timestamp:   now.Unix(),
	}, nil
}

func (p *Program) addDiploma(
	txn *database.Txn,
	signer Identity,
	diplomaID string,
	contentRef *string,
	txID TxID,
	now time.Time,
) (*Receipt, error) {
	reg, err := p.loadAuthorizedRegistry(txn, signer)
	if err != nil {
		return nil, err
	}
	addr := DiplomaAddress(p.programID, diplomaID)
	diploma := &Diploma{
		Address:   addr,
		Authority: signer,
		DiplomaID: diplomaID,
		Verified:  true,
		CreatedAt: now.Unix(),
	}
	if contentRef != nil {
		diploma.ContentRef = *contentRef
	}
	data, err := diploma.MarshalAccount()
	if err != nil {
		return nil, err
	}
	if err := p.db.CreateAccount(
		addr[:],
		p.programID[:],
		DiplomaSpace,
		data,
		txn,
	); err != nil {
		return nil, storageError(err, fmt.Sprintf("diploma %q", diplomaID))
	}
	reg.Count++
	if err := p.storeRegistry(reg, txn); err != nil {
		return nil, err
	}
	if err := p.db.SetDiploma(
		&models.Diploma{
			DiplomaId:  diploma.DiplomaID,
			ContentRef: diploma.ContentRef,
			Address:    addr[:],
			Authority:  signer[:],
			AddTxId:    txID[:],
			IssuedAt:   diploma.CreatedAt,
			Verified:   true,
		},
		txn,
	); err != nil {
		return nil, err
	}
	if err := p.db.AddRegistryEvent(
		&models.RegistryEvent{
			Type:      models.RegistryEventTypeAdd,
			DiplomaId: diplomaID,
			Signer:    signer[:],
			TxId:      txID[:],
			Timestamp: now.Unix(),
		},
		txn,
	); err != nil {
		return nil, err
	}
	return &Receipt{
		Instruction: InstructionAddDiploma,
		DiplomaID:   diplomaID,
		ContentRef:  diploma.ContentRef,
		TxID:        txID,
		Address:     addr,
		Count:       reg.Count,
		Timestamp:   diploma.CreatedAt,
	}, nil
}

func (p *Program) revokeDiploma(
	txn *database.Txn,
	signer Identity,
	diplomaID string,
	txID TxID,
	now time.Time,
) (*Receipt, error) {
	reg, err := p.loadAuthorizedRegistry(txn, signer)
	if err != nil {
		return nil, err
	}
	addr := DiplomaAddress(p.programID, diplomaID)
	diploma, err := p.loadDiploma(addr, diplomaID, txn)
	if err != nil {
		return nil, err
	}
	if !diploma.Verified {
		return nil, fmt.Errorf("diploma %q: %w", diplomaID, ErrAlreadyRevoked)
	}
	if reg.Count == 0 {
		return nil, ErrCounterUnderflow
	}
	diploma.Verified = false
	data, err := diploma.MarshalAccount()
	if err != nil {
		return nil, err
	}
	if err := p.db.UpdateAccount(addr[:], data, txn); err != nil {
		return nil, storageError(err, fmt.Sprintf("diploma %q", diplomaID))
	}
	reg.Count--
	if err := p.storeRegistry(reg, txn); err != nil {
		return nil, err
	}
	err = p.db.RevokeDiploma(diplomaID, now.Unix(), txID[:], txn)
	if errors.Is(err, types.ErrRecordNotFound) {
		// Index row missing, rebuild it from the account
		row := diplomaModel(diploma)
		row.RevokedAt = now.Unix()
		row.RevokeTxId = txID[:]
		err = p.db.SetDiploma(row, txn)
	}
	if err != nil {
		return nil, err
	}
	if err := p.db.AddRegistryEvent(
		&models.RegistryEvent{
			Type:      models.RegistryEventTypeRevoke,
			DiplomaId: diplomaID,
			Signer:    signer[:],
			TxId:      txID[:],
			Timestamp: now.Unix(),
		},
		txn,
	); err != nil {
		return nil, err
	}
	return &Receipt{
		Instruction: InstructionRevokeDiploma,
		DiplomaID:   diplomaID,
		TxID:        txID,
		Address:     addr,
		Count:       reg.Count,
		Timestamp:   now.Unix(),
	}, nil
}

func (p *Program) loadAuthorizedRegistry(
	txn *database.Txn,
	signer Identity,
) (*Registry, error) {
	reg, err := p.loadRegistry(txn)
	if err != nil {
		return nil, err
	}
	if reg.Authority != signer {
		return nil, fmt.Errorf("signer %s: %w", signer, ErrUnauthorized)
	}
	return reg, nil
}

func (p *Program) loadRegistry(txn *database.Txn) (*Registry, error) {
	addr := RegistryAddress(p.programID)
	account, err := p.loadAccount(addr, txn)
	if err != nil {
		return nil, storageError(err, "registry "+addr.String())
	}
	reg := &Registry{Address: addr}
	if err := reg.UnmarshalAccount(account.Data); err != nil {
		return nil, err
	}
	return reg, nil
}

func (p *Program) loadDiploma(
	addr Address,
	diplomaID string,
	txn *database.Txn,
) (*Diploma, error) {
	account, err := p.loadAccount(addr, txn)
	if err != nil {
		return nil, storageError(err, fmt.Sprintf("diploma %q", diplomaID))
	}
	diploma := &Diploma{Address: addr}
	if err := diploma.UnmarshalAccount(account.Data); err != nil {
		return nil, err
	}
	return diploma, nil
}

func (p *Program) loadAccount(
	addr Address,
	txn *database.Txn,
) (*database.Account, error) {
	account, err := p.db.GetAccount(addr[:], txn)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(account.Owner, p.programID[:]) {
		return nil, fmt.Errorf(
			"account %s is not owned by this program: %w",
			addr,
			ErrAccountDiscriminator,
		)
	}
	return account, nil
}

func (p *Program) storeRegistry(reg *Registry, txn *database.Txn) error {
	data, err := reg.MarshalAccount()
	if err != nil {
		return err
	}
	if err := p.db.UpdateAccount(reg.Address[:], data, txn); err != nil {
		return storageError(err, "registry "+reg.Address.String())
	}
	return nil
}

// storageError maps account store failures onto registry errors
func storageError(err error, what string) error {
	switch {
	case errors.Is(err, types.ErrAccountExists):
		return fmt.Errorf("%s: %w", what, ErrAddressAlreadyOccupied)
	case errors.Is(err, types.ErrAccountNotFound):
		return fmt.Errorf("%s: %w", what, ErrAddressNotFound)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func diplomaModel(diploma *Diploma) *models.Diploma {
	return &models.Diploma{
		DiplomaId:  diploma.DiplomaID,
		ContentRef: diploma.ContentRef,
		Address:    bytes.Clone(diploma.Address[:]),
		Authority:  bytes.Clone(diploma.Authority[:]),
		IssuedAt:   diploma.CreatedAt,
		Verified:   diploma.Verified,
	}
}

func (p *Program) afterCommit(receipt *Receipt, signer Identity) {
	var evt event.Event
	switch receipt.Instruction {
	case InstructionInitialize:
		p.logger.Info(
			"registry initialized",
			"authority", signer.String(),
			"address", receipt.Address.String(),
			"tx_id", receipt.TxID.String(),
		)
		evt = event.NewEvent(
			event.RegistryInitializedEventType,
			event.RegistryInitializedEvent{
				Address:   receipt.Address.String(),
				Authority: signer.String(),
				TxId:      receipt.TxID.String(),
			},
		)
	case InstructionAddDiploma:
		p.logger.Info(
			"diploma added",
			"diploma_id", receipt.DiplomaID,
			"content_ref", receipt.ContentRef,
			"count", receipt.Count,
			"tx_id", receipt.TxID.String(),
		)
		evt = event.NewEvent(
			event.DiplomaAddedEventType,
			event.DiplomaAddedEvent{
				DiplomaId:  receipt.DiplomaID,
				ContentRef: receipt.ContentRef,
				Address:    receipt.Address.String(),
				TxId:       receipt.TxID.String(),
				CreatedAt:  receipt.Timestamp,
				Count:      receipt.Count,
			},
		)
	case InstructionRevokeDiploma:
		p.logger.Info(
			"diploma revoked",
			"diploma_id", receipt.DiplomaID,
			"count", receipt.Count,
			"tx_id", receipt.TxID.String(),
		)
		evt = event.NewEvent(
			event.DiplomaRevokedEventType,
			event.DiplomaRevokedEvent{
				DiplomaId: receipt.DiplomaID,
				Address:   receipt.Address.String(),
				TxId:      receipt.TxID.String(),
				RevokedAt: receipt.Timestamp,
				Count:     receipt.Count,
			},
		)
	default:
		return
	}
	p.setActiveDiplomas(receipt.Count)
	if p.eventBus != nil {
		p.eventBus.Publish(evt.Type, evt)
	}
}
