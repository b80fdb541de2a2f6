// Package store defines the entity store the projectors write to and the
// query API reads from: load-by-id and full-row upsert per entity kind, no
// partial updates and no cross-table transactions. Handlers load a row,
// mutate it in place, and write it back.
package store

import (
	"context"
	"errors"

	"pactindex/entity"
)

// ErrNotFound indicates a requested row is missing. Projector handlers
// treat it as "ignore this event", not as a failure.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract shared by the Postgres and in-memory
// implementations.
type Store interface {
	Framework(ctx context.Context, id string) (*entity.AgreementFramework, error)
	PutFramework(ctx context.Context, framework *entity.AgreementFramework) error

	Agreement(ctx context.Context, id string) (*entity.Agreement, error)
	PutAgreement(ctx context.Context, agreement *entity.Agreement) error

	Position(ctx context.Context, id string) (*entity.AgreementPosition, error)
	PutPosition(ctx context.Context, position *entity.AgreementPosition) error

	Dispute(ctx context.Context, id string) (*entity.Dispute, error)
	PutDispute(ctx context.Context, dispute *entity.Dispute) error

	Settlement(ctx context.Context, id string) (*entity.Settlement, error)
	PutSettlement(ctx context.Context, settlement *entity.Settlement) error

	// Counts reports per-kind row counts for downstream readers.
	Counts(ctx context.Context) (Counts, error)
}

// Counts is the per-kind row count snapshot exposed to downstream readers.
type Counts struct {
	Frameworks  int
	Agreements  int
	Positions   int
	Disputes    int
	Settlements int
}
