package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pactindex/entity"
)

// Postgres is the pgx-backed Store. One table per entity kind; every write
// is a full-row upsert keyed by id, so redelivered events converge on the
// same end state. Chain integers live in NUMERIC(78,0) columns and travel
// as decimal strings.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func numParam(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func numValue(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("store: malformed numeric %q", s)
	}
	return n, nil
}

func (p *Postgres) Framework(ctx context.Context, id string) (*entity.AgreementFramework, error) {
	const query = `
		SELECT id, arbitrator, required_deposit::text
		FROM agreement_frameworks
		WHERE id = $1
	`
	var (
		row     entity.AgreementFramework
		deposit string
	)
	err := p.pool.QueryRow(ctx, query, id).Scan(&row.ID, &row.Arbitrator, &deposit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load framework: %w", err)
	}
	if row.RequiredDeposit, err = numValue(deposit); err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *Postgres) PutFramework(ctx context.Context, framework *entity.AgreementFramework) error {
	const query = `
		INSERT INTO agreement_frameworks (id, arbitrator, required_deposit)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (id) DO UPDATE
		SET arbitrator = EXCLUDED.arbitrator,
		    required_deposit = EXCLUDED.required_deposit
	`
	_, err := p.pool.Exec(ctx, query, framework.ID, framework.Arbitrator, numParam(framework.RequiredDeposit))
	if err != nil {
		return fmt.Errorf("store: upsert framework: %w", err)
	}
	return nil
}

func (p *Postgres) Agreement(ctx context.Context, id string) (*entity.Agreement, error) {
	const query = `
		SELECT id, framework, terms_hash, criteria::text, metadata_uri, title, token, status, created_at::text
		FROM agreements
		WHERE id = $1
	`
	var (
		row                 entity.Agreement
		criteria, createdAt string
	)
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&row.ID, &row.Framework, &row.TermsHash, &criteria,
		&row.MetadataURI, &row.Title, &row.Token, &row.Status, &createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load agreement: %w", err)
	}
	if row.Criteria, err = numValue(criteria); err != nil {
		return nil, err
	}
	if row.CreatedAt, err = numValue(createdAt); err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *Postgres) PutAgreement(ctx context.Context, agreement *entity.Agreement) error {
	const query = `
		INSERT INTO agreements (id, framework, terms_hash, criteria, metadata_uri, title, token, status, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9::numeric)
		ON CONFLICT (id) DO UPDATE
		SET framework = EXCLUDED.framework,
		    terms_hash = EXCLUDED.terms_hash,
		    criteria = EXCLUDED.criteria,
		    metadata_uri = EXCLUDED.metadata_uri,
		    title = EXCLUDED.title,
		    token = EXCLUDED.token,
		    status = EXCLUDED.status,
		    created_at = EXCLUDED.created_at
	`
	_, err := p.pool.Exec(ctx, query,
		agreement.ID, agreement.Framework, agreement.TermsHash, numParam(agreement.Criteria),
		agreement.MetadataURI, agreement.Title, agreement.Token, string(agreement.Status),
		numParam(agreement.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("store: upsert agreement: %w", err)
	}
	return nil
}

func (p *Postgres) Position(ctx context.Context, id string) (*entity.AgreementPosition, error) {
	const query = `
		SELECT id, agreement, party, required_collateral::text, collateral::text, deposit::text, status
		FROM agreement_positions
		WHERE id = $1
	`
	var (
		row                           entity.AgreementPosition
		required, collateral, deposit string
	)
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&row.ID, &row.Agreement, &row.Party, &required, &collateral, &deposit, &row.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load position: %w", err)
	}
	if row.RequiredCollateral, err = numValue(required); err != nil {
		return nil, err
	}
	if row.Collateral, err = numValue(collateral); err != nil {
		return nil, err
	}
	if row.Deposit, err = numValue(deposit); err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *Postgres) PutPosition(ctx context.Context, position *entity.AgreementPosition) error {
	const query = `
		INSERT INTO agreement_positions (id, agreement, party, required_collateral, collateral, deposit, status)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7)
		ON CONFLICT (id) DO UPDATE
		SET agreement = EXCLUDED.agreement,
		    party = EXCLUDED.party,
		    required_collateral = EXCLUDED.required_collateral,
		    collateral = EXCLUDED.collateral,
		    deposit = EXCLUDED.deposit,
		    status = EXCLUDED.status
	`
	_, err := p.pool.Exec(ctx, query,
		position.ID, position.Agreement, position.Party,
		numParam(position.RequiredCollateral), numParam(position.Collateral), numParam(position.Deposit),
		string(position.Status),
	)
	if err != nil {
		return fmt.Errorf("store: upsert position: %w", err)
	}
	return nil
}

func (p *Postgres) Dispute(ctx context.Context, id string) (*entity.Dispute, error) {
	const query = `
		SELECT id, agreement, resolution, settlement, created_at::text
		FROM disputes
		WHERE id = $1
	`
	var (
		row       entity.Dispute
		createdAt string
	)
	err := p.pool.QueryRow(ctx, query, id).Scan(&row.ID, &row.Agreement, &row.Resolution, &row.Settlement, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load dispute: %w", err)
	}
	if row.CreatedAt, err = numValue(createdAt); err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *Postgres) PutDispute(ctx context.Context, dispute *entity.Dispute) error {
	const query = `
		INSERT INTO disputes (id, agreement, resolution, settlement, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric)
		ON CONFLICT (id) DO UPDATE
		SET agreement = EXCLUDED.agreement,
		    resolution = EXCLUDED.resolution,
		    settlement = EXCLUDED.settlement,
		    created_at = EXCLUDED.created_at
	`
	_, err := p.pool.Exec(ctx, query,
		dispute.ID, dispute.Agreement, dispute.Resolution, dispute.Settlement, numParam(dispute.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("store: upsert dispute: %w", err)
	}
	return nil
}

func (p *Postgres) Settlement(ctx context.Context, id string) (*entity.Settlement, error) {
	const query = `
		SELECT id, dispute, status, submitted_at::text
		FROM settlements
		WHERE id = $1
	`
	var (
		row         entity.Settlement
		submittedAt string
	)
	err := p.pool.QueryRow(ctx, query, id).Scan(&row.ID, &row.Dispute, &row.Status, &submittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load settlement: %w", err)
	}
	if row.SubmittedAt, err = numValue(submittedAt); err != nil {
		return nil, err
	}
	return &row, nil
}

func (p *Postgres) PutSettlement(ctx context.Context, settlement *entity.Settlement) error {
	const query = `
		INSERT INTO settlements (id, dispute, status, submitted_at)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (id) DO UPDATE
		SET dispute = EXCLUDED.dispute,
		    status = EXCLUDED.status,
		    submitted_at = EXCLUDED.submitted_at
	`
	_, err := p.pool.Exec(ctx, query,
		settlement.ID, settlement.Dispute, string(settlement.Status), numParam(settlement.SubmittedAt),
	)
	if err != nil {
		return fmt.Errorf("store: upsert settlement: %w", err)
	}
	return nil
}

func (p *Postgres) Counts(ctx context.Context) (Counts, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM agreement_frameworks),
			(SELECT COUNT(*) FROM agreements),
			(SELECT COUNT(*) FROM agreement_positions),
			(SELECT COUNT(*) FROM disputes),
			(SELECT COUNT(*) FROM settlements)
	`
	var counts Counts
	err := p.pool.QueryRow(ctx, query).Scan(
		&counts.Frameworks, &counts.Agreements, &counts.Positions, &counts.Disputes, &counts.Settlements,
	)
	if err != nil {
		return Counts{}, fmt.Errorf("store: counts: %w", err)
	}
	return counts, nil
}
