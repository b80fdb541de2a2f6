package store

import (
	"context"
	"math/big"
	"sync"

	"pactindex/entity"
)

// Memory is an in-memory Store. It backs unit tests and ephemeral runs and
// mirrors the Postgres store's semantics: copies in, copies out, so callers
// never alias stored rows.
type Memory struct {
	mu          sync.RWMutex
	frameworks  map[string]entity.AgreementFramework
	agreements  map[string]entity.Agreement
	positions   map[string]entity.AgreementPosition
	disputes    map[string]entity.Dispute
	settlements map[string]entity.Settlement
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		frameworks:  make(map[string]entity.AgreementFramework),
		agreements:  make(map[string]entity.Agreement),
		positions:   make(map[string]entity.AgreementPosition),
		disputes:    make(map[string]entity.Dispute),
		settlements: make(map[string]entity.Settlement),
	}
}

func cloneInt(n *big.Int) *big.Int {
	if n == nil {
		return nil
	}
	return new(big.Int).Set(n)
}

func (m *Memory) Framework(ctx context.Context, id string) (*entity.AgreementFramework, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.frameworks[id]
	if !ok {
		return nil, ErrNotFound
	}
	row.RequiredDeposit = cloneInt(row.RequiredDeposit)
	return &row, nil
}

func (m *Memory) PutFramework(ctx context.Context, framework *entity.AgreementFramework) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *framework
	row.RequiredDeposit = cloneInt(row.RequiredDeposit)
	m.frameworks[row.ID] = row
	return nil
}

func (m *Memory) Agreement(ctx context.Context, id string) (*entity.Agreement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.agreements[id]
	if !ok {
		return nil, ErrNotFound
	}
	row.Criteria = cloneInt(row.Criteria)
	row.CreatedAt = cloneInt(row.CreatedAt)
	return &row, nil
}

func (m *Memory) PutAgreement(ctx context.Context, agreement *entity.Agreement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *agreement
	row.Criteria = cloneInt(row.Criteria)
	row.CreatedAt = cloneInt(row.CreatedAt)
	m.agreements[row.ID] = row
	return nil
}

func (m *Memory) Position(ctx context.Context, id string) (*entity.AgreementPosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.positions[id]
	if !ok {
		return nil, ErrNotFound
	}
	row.RequiredCollateral = cloneInt(row.RequiredCollateral)
	row.Collateral = cloneInt(row.Collateral)
	row.Deposit = cloneInt(row.Deposit)
	return &row, nil
}

func (m *Memory) PutPosition(ctx context.Context, position *entity.AgreementPosition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *position
	row.RequiredCollateral = cloneInt(row.RequiredCollateral)
	row.Collateral = cloneInt(row.Collateral)
	row.Deposit = cloneInt(row.Deposit)
	m.positions[row.ID] = row
	return nil
}

func (m *Memory) Dispute(ctx context.Context, id string) (*entity.Dispute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.disputes[id]
	if !ok {
		return nil, ErrNotFound
	}
	row.CreatedAt = cloneInt(row.CreatedAt)
	return &row, nil
}

func (m *Memory) PutDispute(ctx context.Context, dispute *entity.Dispute) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *dispute
	row.CreatedAt = cloneInt(row.CreatedAt)
	m.disputes[row.ID] = row
	return nil
}

func (m *Memory) Settlement(ctx context.Context, id string) (*entity.Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.settlements[id]
	if !ok {
		return nil, ErrNotFound
	}
	row.SubmittedAt = cloneInt(row.SubmittedAt)
	return &row, nil
}

func (m *Memory) PutSettlement(ctx context.Context, settlement *entity.Settlement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *settlement
	row.SubmittedAt = cloneInt(row.SubmittedAt)
	m.settlements[row.ID] = row
	return nil
}

func (m *Memory) Counts(ctx context.Context) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Counts{
		Frameworks:  len(m.frameworks),
		Agreements:  len(m.agreements),
		Positions:   len(m.positions),
		Disputes:    len(m.disputes),
		Settlements: len(m.settlements),
	}, nil
}
