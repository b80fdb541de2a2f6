// Package events defines the decoded contract events and call traces the
// projectors consume. Decoding from raw logs happens upstream in the
// indexing host; these types carry already-decoded parameters plus the
// envelope context (emitting contract, block timestamp) the handlers need.
package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind identifies the kind of a decoded event or call trace on the wire.
type Kind string

const (
	KindAgreementCreated         Kind = "agreement.created"
	KindAgreementJoined          Kind = "agreement.joined"
	KindAgreementPositionUpdated Kind = "agreement.position_updated"
	KindAgreementFinalized       Kind = "agreement.finalized"
	KindAgreementDisputed        Kind = "agreement.disputed"
	KindFrameworkSetup           Kind = "framework.setup"
	KindResolutionSubmitted      Kind = "resolution.submitted"
	KindResolutionAppealed       Kind = "resolution.appealed"
	KindResolutionEndorsed       Kind = "resolution.endorsed"
	KindResolutionExecuted       Kind = "resolution.executed"
)

// Event is implemented by every decoded event and call trace.
type Event interface {
	Kind() Kind
}

// Meta carries the envelope context shared by every decoded event: the
// emitting contract (the call target for traces) and the block timestamp.
type Meta struct {
	Address   common.Address
	Timestamp *big.Int
}

// AgreementCreated is emitted once per agreement by the framework contract.
type AgreementCreated struct {
	Meta
	ID          common.Hash
	TermsHash   common.Hash
	Criteria    *big.Int
	MetadataURI string
	Token       common.Address
}

// AgreementJoined is emitted when a party joins an agreement with collateral.
type AgreementJoined struct {
	Meta
	ID      common.Hash
	Party   common.Address
	Balance *big.Int
}

// AgreementPositionUpdated is emitted when a party's position changes.
// Status carries the raw contract status code; see the projector for the
// code-to-status mapping.
type AgreementPositionUpdated struct {
	Meta
	ID      common.Hash
	Party   common.Address
	Balance *big.Int
	Status  uint8
}

// AgreementFinalized is emitted when all parties finalize an agreement.
type AgreementFinalized struct {
	Meta
	ID common.Hash
}

// AgreementDisputed is emitted when a party raises a dispute.
type AgreementDisputed struct {
	Meta
	ID    common.Hash
	Party common.Address
}

// FrameworkSetup is a contract-call trace, not an event: the framework's
// setUp call naming the arbitrator and the deposit policy. Meta.Address is
// the call target, i.e. the framework address.
type FrameworkSetup struct {
	Meta
	Arbitrator       common.Address
	DepositToken     common.Address
	DepositAmount    *big.Int
	DepositRecipient common.Address
}

// ResolutionSubmitted is emitted by the arbitrator when a resolution is
// proposed for a dispute.
type ResolutionSubmitted struct {
	Meta
	Framework  common.Address
	Dispute    common.Hash
	Resolution common.Hash
	Settlement common.Hash
}

// ResolutionAppealed is emitted when a party appeals a submitted settlement.
type ResolutionAppealed struct {
	Meta
	Resolution common.Hash
	Settlement common.Hash
	Account    common.Address
}

// ResolutionEndorsed is emitted when the arbitrator endorses a settlement.
type ResolutionEndorsed struct {
	Meta
	Resolution common.Hash
	Settlement common.Hash
}

// ResolutionExecuted is emitted when a settlement is executed on-chain.
type ResolutionExecuted struct {
	Meta
	Resolution common.Hash
	Settlement common.Hash
}

func (AgreementCreated) Kind() Kind         { return KindAgreementCreated }
func (AgreementJoined) Kind() Kind          { return KindAgreementJoined }
func (AgreementPositionUpdated) Kind() Kind { return KindAgreementPositionUpdated }
func (AgreementFinalized) Kind() Kind       { return KindAgreementFinalized }
func (AgreementDisputed) Kind() Kind        { return KindAgreementDisputed }
func (FrameworkSetup) Kind() Kind           { return KindFrameworkSetup }
func (ResolutionSubmitted) Kind() Kind      { return KindResolutionSubmitted }
func (ResolutionAppealed) Kind() Kind       { return KindResolutionAppealed }
func (ResolutionEndorsed) Kind() Kind       { return KindResolutionEndorsed }
func (ResolutionExecuted) Kind() Kind       { return KindResolutionExecuted }
