package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"pactindex/entity"
	"pactindex/events"
	"pactindex/store"
)

// ArbitrationProjector owns the Settlement lifecycle and its link back to
// the dispute it resolves.
type ArbitrationProjector struct {
	store store.Store
	log   *slog.Logger
}

// NewArbitrationProjector wires the projector to its store.
func NewArbitrationProjector(st store.Store, log *slog.Logger) *ArbitrationProjector {
	if log == nil {
		log = slog.Default()
	}
	return &ArbitrationProjector{store: st, log: log}
}

// HandleResolutionSubmitted records a proposed settlement. Submissions for
// disputes the projector has never seen are dropped entirely. The dispute's
// resolution is frozen to the first submission, while its settlement
// pointer always tracks the most recent one.
func (p *ArbitrationProjector) HandleResolutionSubmitted(ctx context.Context, evt events.ResolutionSubmitted) error {
	disputeID := entity.HashKey(evt.Dispute)
	dispute, err := p.store.Dispute(ctx, disputeID)
	if errors.Is(err, store.ErrNotFound) {
		p.log.Debug("resolution for unknown dispute dropped", "dispute", disputeID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("projector: load dispute: %w", err)
	}

	settlementID := entity.HashKey(evt.Settlement)
	settlement, err := p.store.Settlement(ctx, settlementID)
	if errors.Is(err, store.ErrNotFound) {
		settlement = &entity.Settlement{ID: settlementID}
	} else if err != nil {
		return fmt.Errorf("projector: load settlement: %w", err)
	}

	settlement.SubmittedAt = evt.Timestamp
	settlement.Status = entity.SettlementSubmitted
	settlement.Dispute = dispute.ID
	if err := p.store.PutSettlement(ctx, settlement); err != nil {
		return fmt.Errorf("projector: save settlement: %w", err)
	}

	dispute.SetResolution(entity.HashKey(evt.Resolution))
	dispute.Settlement = settlement.ID
	if err := p.store.PutDispute(ctx, dispute); err != nil {
		return fmt.Errorf("projector: save dispute: %w", err)
	}
	return nil
}

// HandleResolutionAppealed marks the settlement Appealed.
func (p *ArbitrationProjector) HandleResolutionAppealed(ctx context.Context, evt events.ResolutionAppealed) error {
	return p.setSettlementStatus(ctx, evt.Settlement, entity.SettlementAppealed)
}

// HandleResolutionEndorsed marks the settlement Endorsed.
func (p *ArbitrationProjector) HandleResolutionEndorsed(ctx context.Context, evt events.ResolutionEndorsed) error {
	return p.setSettlementStatus(ctx, evt.Settlement, entity.SettlementEndorsed)
}

// HandleResolutionExecuted marks the settlement Executed.
func (p *ArbitrationProjector) HandleResolutionExecuted(ctx context.Context, evt events.ResolutionExecuted) error {
	return p.setSettlementStatus(ctx, evt.Settlement, entity.SettlementExecuted)
}

// setSettlementStatus overwrites the settlement's status, trusting event
// ordering from the source; unknown settlements are ignored.
func (p *ArbitrationProjector) setSettlementStatus(ctx context.Context, id common.Hash, status entity.SettlementStatus) error {
	settlement, err := p.store.Settlement(ctx, entity.HashKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("projector: load settlement: %w", err)
	}

	settlement.Status = status
	if err := p.store.PutSettlement(ctx, settlement); err != nil {
		return fmt.Errorf("projector: save settlement: %w", err)
	}
	return nil
}
