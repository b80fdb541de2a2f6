package ingest

import (
	"context"
	"fmt"

	"pactindex/events"
	"pactindex/projector"
)

// Dispatcher routes each decoded event to exactly one projector handler.
// It holds no state of its own.
type Dispatcher struct {
	agreements  *projector.AgreementProjector
	arbitration *projector.ArbitrationProjector
}

// NewDispatcher builds the dispatch table over both projectors.
func NewDispatcher(agreements *projector.AgreementProjector, arbitration *projector.ArbitrationProjector) *Dispatcher {
	return &Dispatcher{agreements: agreements, arbitration: arbitration}
}

// Dispatch runs the handler for evt to completion. A returned error means
// the store write failed and the host should redeliver the event.
func (d *Dispatcher) Dispatch(ctx context.Context, evt events.Event) error {
	switch e := evt.(type) {
	case events.AgreementCreated:
		return d.agreements.HandleAgreementCreated(ctx, e)
	case events.AgreementJoined:
		return d.agreements.HandleAgreementJoined(ctx, e)
	case events.AgreementPositionUpdated:
		return d.agreements.HandleAgreementPositionUpdated(ctx, e)
	case events.AgreementFinalized:
		return d.agreements.HandleAgreementFinalized(ctx, e)
	case events.AgreementDisputed:
		return d.agreements.HandleAgreementDisputed(ctx, e)
	case events.FrameworkSetup:
		return d.agreements.HandleFrameworkSetup(ctx, e)
	case events.ResolutionSubmitted:
		return d.arbitration.HandleResolutionSubmitted(ctx, e)
	case events.ResolutionAppealed:
		return d.arbitration.HandleResolutionAppealed(ctx, e)
	case events.ResolutionEndorsed:
		return d.arbitration.HandleResolutionEndorsed(ctx, e)
	case events.ResolutionExecuted:
		return d.arbitration.HandleResolutionExecuted(ctx, e)
	}
	return fmt.Errorf("ingest: no handler for event %T", evt)
}
