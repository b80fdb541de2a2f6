// Package projector contains the event-driven state projection: each
// handler consumes one decoded event or call trace and deterministically
// updates the entity store. Events referencing rows the store has never
// seen are dropped silently; the projector may start from a checkpoint or
// index only a subset of frameworks, so gaps in history are expected.
// Store-write failures are the only errors that propagate, so the ingestion
// host can redeliver the event.
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"pactindex/entity"
	"pactindex/events"
	"pactindex/metadata"
	"pactindex/store"
)

// Position status codes emitted by AgreementPositionUpdated. Any other
// value, including 1, maps to Joined.
const (
	positionCodeFinalized = 2
	positionCodeWithdrawn = 3
	positionCodeDisputed  = 4
)

// AgreementProjector owns the Agreement, AgreementPosition, and Dispute
// lifecycles driven by the framework contract's events and its setup trace.
type AgreementProjector struct {
	store    store.Store
	metadata *metadata.Resolver
	log      *slog.Logger
}

// NewAgreementProjector wires the projector to its store and metadata
// resolver.
func NewAgreementProjector(st store.Store, md *metadata.Resolver, log *slog.Logger) *AgreementProjector {
	if log == nil {
		log = slog.Default()
	}
	return &AgreementProjector{store: st, metadata: md, log: log}
}

// HandleAgreementCreated writes the agreement row and, when the metadata
// document names resolvers, pre-creates their positions in Pending status.
// The row is built with safe defaults before the metadata fetch so a
// timed-out fetch degrades to the default title rather than a half-written
// agreement.
func (p *AgreementProjector) HandleAgreementCreated(ctx context.Context, evt events.AgreementCreated) error {
	agreementID := entity.HashKey(evt.ID)
	agreement := &entity.Agreement{
		ID:          agreementID,
		Framework:   entity.AddressKey(evt.Address),
		TermsHash:   entity.HashKey(evt.TermsHash),
		Criteria:    evt.Criteria,
		MetadataURI: evt.MetadataURI,
		Title:       entity.DefaultAgreementTitle,
		Token:       entity.AddressKey(evt.Token),
		Status:      entity.AgreementCreated,
		CreatedAt:   evt.Timestamp,
	}

	doc := p.metadata.Resolve(ctx, evt.MetadataURI)
	if doc != nil && doc.HasTitle {
		agreement.Title = doc.Title
	}

	if err := p.store.PutAgreement(ctx, agreement); err != nil {
		return fmt.Errorf("projector: save agreement: %w", err)
	}

	if doc == nil {
		return nil
	}
	for _, resolver := range doc.Resolvers {
		position := &entity.AgreementPosition{
			ID:                 entity.PositionKey(agreementID, resolver.Party),
			Agreement:          agreementID,
			Party:              entity.AddressKey(resolver.Party),
			RequiredCollateral: resolver.Balance,
			Collateral:         big.NewInt(0),
			Deposit:            big.NewInt(0),
			Status:             entity.PositionPending,
		}
		if err := p.store.PutPosition(ctx, position); err != nil {
			return fmt.Errorf("projector: save pending position: %w", err)
		}
	}
	return nil
}

// HandleFrameworkSetup upserts the framework row from the contract's setUp
// call trace. It is independent of any agreement and may arrive before or
// after the framework's creation events.
func (p *AgreementProjector) HandleFrameworkSetup(ctx context.Context, evt events.FrameworkSetup) error {
	id := entity.AddressKey(evt.Address)
	framework, err := p.store.Framework(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		framework = &entity.AgreementFramework{ID: id}
	} else if err != nil {
		return fmt.Errorf("projector: load framework: %w", err)
	}

	framework.Arbitrator = entity.AddressKey(evt.Arbitrator)
	framework.RequiredDeposit = evt.DepositAmount
	if err := p.store.PutFramework(ctx, framework); err != nil {
		return fmt.Errorf("projector: save framework: %w", err)
	}
	return nil
}

// HandleAgreementJoined records a party's collateral. An existing position
// row (typically pre-created Pending from metadata) is upgraded in place; a
// missing one is created outright. A first join advances the agreement from
// Created to Ongoing, and only that way.
func (p *AgreementProjector) HandleAgreementJoined(ctx context.Context, evt events.AgreementJoined) error {
	requiredDeposit := big.NewInt(0)
	framework, err := p.store.Framework(ctx, entity.AddressKey(evt.Address))
	switch {
	case err == nil:
		if framework.RequiredDeposit != nil {
			requiredDeposit = framework.RequiredDeposit
		}
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("projector: load framework: %w", err)
	}

	agreementID := entity.HashKey(evt.ID)
	positionID := entity.PositionKey(agreementID, evt.Party)
	position, err := p.store.Position(ctx, positionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		position = &entity.AgreementPosition{
			ID:                 positionID,
			Agreement:          agreementID,
			Party:              entity.AddressKey(evt.Party),
			RequiredCollateral: evt.Balance,
			Collateral:         evt.Balance,
			Deposit:            requiredDeposit,
			Status:             entity.PositionJoined,
		}
	case err != nil:
		return fmt.Errorf("projector: load position: %w", err)
	default:
		position.Collateral = evt.Balance
		position.Deposit = requiredDeposit
		position.Status = entity.PositionJoined
	}
	if err := p.store.PutPosition(ctx, position); err != nil {
		return fmt.Errorf("projector: save position: %w", err)
	}

	agreement, err := p.store.Agreement(ctx, agreementID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("projector: load agreement: %w", err)
	}
	if agreement.AdvanceToOngoing() {
		if err := p.store.PutAgreement(ctx, agreement); err != nil {
			return fmt.Errorf("projector: save agreement: %w", err)
		}
	}
	return nil
}

// HandleAgreementPositionUpdated overwrites a position's collateral and
// status from the contract's status code. The contract is the source of
// truth for transition legality; the projector does not re-validate against
// the prior status. Withdrawn and Disputed both release the deposit.
func (p *AgreementProjector) HandleAgreementPositionUpdated(ctx context.Context, evt events.AgreementPositionUpdated) error {
	positionID := entity.PositionKey(entity.HashKey(evt.ID), evt.Party)
	position, err := p.store.Position(ctx, positionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("projector: load position: %w", err)
	}

	position.Collateral = evt.Balance
	switch evt.Status {
	case positionCodeFinalized:
		position.Status = entity.PositionFinalized
	case positionCodeWithdrawn:
		position.Deposit = big.NewInt(0)
		position.Status = entity.PositionWithdrawn
	case positionCodeDisputed:
		position.Deposit = big.NewInt(0)
		position.Status = entity.PositionDisputed
	default:
		position.Status = entity.PositionJoined
	}

	if err := p.store.PutPosition(ctx, position); err != nil {
		return fmt.Errorf("projector: save position: %w", err)
	}
	return nil
}

// HandleAgreementFinalized marks the agreement Finalized, whatever its
// prior status.
func (p *AgreementProjector) HandleAgreementFinalized(ctx context.Context, evt events.AgreementFinalized) error {
	agreement, err := p.store.Agreement(ctx, entity.HashKey(evt.ID))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("projector: load agreement: %w", err)
	}

	agreement.Status = entity.AgreementFinalized
	if err := p.store.PutAgreement(ctx, agreement); err != nil {
		return fmt.Errorf("projector: save agreement: %w", err)
	}
	return nil
}

// HandleAgreementDisputed lazily creates the dispute row sharing the
// agreement's id and marks the agreement Disputed. The dispute row is saved
// even when the agreement was never indexed, to tolerate partial event
// history.
func (p *AgreementProjector) HandleAgreementDisputed(ctx context.Context, evt events.AgreementDisputed) error {
	id := entity.HashKey(evt.ID)

	dispute, err := p.store.Dispute(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		dispute = &entity.Dispute{ID: id, CreatedAt: evt.Timestamp}
	} else if err != nil {
		return fmt.Errorf("projector: load dispute: %w", err)
	}

	agreement, err := p.store.Agreement(ctx, id)
	switch {
	case err == nil:
		dispute.Agreement = agreement.ID
		agreement.Status = entity.AgreementDisputed
		if err := p.store.PutAgreement(ctx, agreement); err != nil {
			return fmt.Errorf("projector: save agreement: %w", err)
		}
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("projector: load agreement: %w", err)
	}

	if err := p.store.PutDispute(ctx, dispute); err != nil {
		return fmt.Errorf("projector: save dispute: %w", err)
	}
	return nil
}
