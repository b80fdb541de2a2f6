package entity

import "math/big"

// DefaultAgreementTitle is used when agreement metadata is missing or
// carries no usable title.
const DefaultAgreementTitle = "Agreement"

// AgreementStatus represents the lifecycle of an indexed agreement.
type AgreementStatus string

const (
	AgreementCreated   AgreementStatus = "Created"
	AgreementOngoing   AgreementStatus = "Ongoing"
	AgreementFinalized AgreementStatus = "Finalized"
	AgreementDisputed  AgreementStatus = "Disputed"
)

// PositionStatus represents the lifecycle of a party's position within an
// agreement.
type PositionStatus string

const (
	PositionPending   PositionStatus = "Pending"
	PositionJoined    PositionStatus = "Joined"
	PositionFinalized PositionStatus = "Finalized"
	PositionWithdrawn PositionStatus = "Withdrawn"
	PositionDisputed  PositionStatus = "Disputed"
)

// SettlementStatus represents the lifecycle of an arbitrator settlement.
type SettlementStatus string

const (
	SettlementSubmitted SettlementStatus = "Submitted"
	SettlementAppealed  SettlementStatus = "Appealed"
	SettlementEndorsed  SettlementStatus = "Endorsed"
	SettlementExecuted  SettlementStatus = "Executed"
)

// AgreementFramework mirrors one deployed framework contract. Rows are
// written only by the contract setup trace, never deleted.
type AgreementFramework struct {
	ID              string // contract address key
	Arbitrator      string
	RequiredDeposit *big.Int
}

// Agreement is the denormalized view of one on-chain agreement.
// Address and hash fields are stored as lowercase 0x-prefixed hex so they
// can double as lookup keys.
type Agreement struct {
	ID          string
	Framework   string // emitting framework address key; empty for standalone contracts
	TermsHash   string
	Criteria    *big.Int
	MetadataURI string
	Title       string
	Token       string
	Status      AgreementStatus
	CreatedAt   *big.Int // block timestamp, seconds
}

// AdvanceToOngoing moves the agreement from Created to Ongoing. The
// transition is one-way: any later status is left untouched. It reports
// whether the status changed.
func (a *Agreement) AdvanceToOngoing() bool {
	if a.Status != AgreementCreated {
		return false
	}
	a.Status = AgreementOngoing
	return true
}

// AgreementPosition is one party's stake within an agreement. Its identity
// is the agreement key concatenated with the party key, so re-joins update
// the existing row instead of creating a duplicate.
type AgreementPosition struct {
	ID                 string
	Agreement          string
	Party              string
	RequiredCollateral *big.Int
	Collateral         *big.Int
	Deposit            *big.Int
	Status             PositionStatus
}

// Dispute shares its identifier space with the agreement it was raised
// against: at most one dispute row per agreement, created lazily by the
// first dispute-related event.
type Dispute struct {
	ID         string
	Agreement  string
	Resolution string // frozen to the first submitted resolution
	Settlement string // tracks the most recently submitted settlement
	CreatedAt  *big.Int
}

// SetResolution records the resolution if none has been recorded yet.
// First writer wins; it reports whether the value was set.
func (d *Dispute) SetResolution(resolution string) bool {
	if d.Resolution != "" {
		return false
	}
	d.Resolution = resolution
	return true
}

// Settlement is one proposed resolution outcome for a dispute.
type Settlement struct {
	ID          string
	Dispute     string
	Status      SettlementStatus
	SubmittedAt *big.Int
}
