package projector

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"pactindex/entity"
	"pactindex/events"
	"pactindex/metadata"
	"pactindex/store"
)

var (
	frameworkAddr = common.HexToAddress("0x5615deb798bb3e4dfa0139dfa1b3d433cc23b72f")
	tokenAddr     = common.HexToAddress("0x333c3310824b7c685133f2bedb2ca4b8b4df633d")
	partyOne      = common.HexToAddress("0x0000000000000000000000000000000000000001")
	partyTwo      = common.HexToAddress("0x0000000000000000000000000000000000000002")
	agreementID   = common.HexToHash("0xc8")
	termsHash     = common.HexToHash("0x1337")
)

type stubFetcher struct {
	docs map[string][]byte
}

func (f *stubFetcher) Fetch(ctx context.Context, cid string) ([]byte, error) {
	doc, ok := f.docs[cid]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return doc, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAgreementProjector(st store.Store, docs map[string][]byte) *AgreementProjector {
	resolver := metadata.NewResolver(&stubFetcher{docs: docs}, quietLogger())
	return NewAgreementProjector(st, resolver, quietLogger())
}

func createdEvent(uri string) events.AgreementCreated {
	return events.AgreementCreated{
		Meta:        events.Meta{Address: frameworkAddr, Timestamp: big.NewInt(1000)},
		ID:          agreementID,
		TermsHash:   termsHash,
		Criteria:    big.NewInt(1000),
		MetadataURI: uri,
		Token:       tokenAddr,
	}
}

func TestHandleAgreementCreated_TitleFromMetadata(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, map[string][]byte{
		"Metadata": []byte(`{"title":"Agreement Test"}`),
	})

	if err := p.HandleAgreementCreated(context.Background(), createdEvent("Metadata")); err != nil {
		t.Fatalf("handle created: %v", err)
	}

	agreement, err := st.Agreement(context.Background(), entity.HashKey(agreementID))
	if err != nil {
		t.Fatalf("load agreement: %v", err)
	}
	if agreement.Status != entity.AgreementCreated {
		t.Errorf("status = %s, want Created", agreement.Status)
	}
	if agreement.Title != "Agreement Test" {
		t.Errorf("title = %q, want %q", agreement.Title, "Agreement Test")
	}
	if agreement.Framework != entity.AddressKey(frameworkAddr) {
		t.Errorf("framework = %q, want emitting address", agreement.Framework)
	}
	if agreement.Criteria.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("criteria = %s, want 1000", agreement.Criteria)
	}
	if agreement.CreatedAt.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("createdAt = %s, want 1000", agreement.CreatedAt)
	}
}

func TestHandleAgreementCreated_DefaultTitleWhenMetadataAbsent(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, nil)

	if err := p.HandleAgreementCreated(context.Background(), createdEvent("ipfs://QmMissing")); err != nil {
		t.Fatalf("handle created: %v", err)
	}

	agreement, err := st.Agreement(context.Background(), entity.HashKey(agreementID))
	if err != nil {
		t.Fatalf("load agreement: %v", err)
	}
	if agreement.Title != entity.DefaultAgreementTitle {
		t.Errorf("title = %q, want default %q", agreement.Title, entity.DefaultAgreementTitle)
	}
}

func TestHandleAgreementCreated_PendingPositionsFromResolvers(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, map[string][]byte{
		"QmResolvers": []byte(`{
			"title": "With Resolvers",
			"resolvers": {
				"0x0000000000000000000000000000000000000001": {"balance": "1050"},
				"0x0000000000000000000000000000000000000002": {}
			}
		}`),
	})

	if err := p.HandleAgreementCreated(context.Background(), createdEvent("ipfs://QmResolvers")); err != nil {
		t.Fatalf("handle created: %v", err)
	}

	key := entity.HashKey(agreementID)
	position, err := st.Position(context.Background(), entity.PositionKey(key, partyOne))
	if err != nil {
		t.Fatalf("load position one: %v", err)
	}
	if position.Status != entity.PositionPending {
		t.Errorf("status = %s, want Pending", position.Status)
	}
	if position.RequiredCollateral.Cmp(big.NewInt(1050)) != 0 {
		t.Errorf("requiredCollateral = %s, want 1050", position.RequiredCollateral)
	}
	if position.Collateral.Sign() != 0 || position.Deposit.Sign() != 0 {
		t.Errorf("collateral/deposit = %s/%s, want 0/0", position.Collateral, position.Deposit)
	}

	position, err = st.Position(context.Background(), entity.PositionKey(key, partyTwo))
	if err != nil {
		t.Fatalf("load position two: %v", err)
	}
	if position.RequiredCollateral.Sign() != 0 {
		t.Errorf("defaulted requiredCollateral = %s, want 0", position.RequiredCollateral)
	}

	counts, err := st.Counts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Agreements != 1 || counts.Positions != 2 {
		t.Errorf("counts = %+v, want 1 agreement, 2 positions", counts)
	}
}

func TestHandleFrameworkSetup_UpsertsFramework(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, nil)

	arbitrator := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	setup := events.FrameworkSetup{
		Meta:          events.Meta{Address: frameworkAddr, Timestamp: big.NewInt(900)},
		Arbitrator:    arbitrator,
		DepositToken:  tokenAddr,
		DepositAmount: big.NewInt(42),
	}
	if err := p.HandleFrameworkSetup(context.Background(), setup); err != nil {
		t.Fatalf("handle setup: %v", err)
	}

	framework, err := st.Framework(context.Background(), entity.AddressKey(frameworkAddr))
	if err != nil {
		t.Fatalf("load framework: %v", err)
	}
	if framework.Arbitrator != entity.AddressKey(arbitrator) {
		t.Errorf("arbitrator = %q", framework.Arbitrator)
	}
	if framework.RequiredDeposit.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("requiredDeposit = %s, want 42", framework.RequiredDeposit)
	}

	// Replayed setup with new deposit policy updates the same row.
	setup.DepositAmount = big.NewInt(100)
	if err := p.HandleFrameworkSetup(context.Background(), setup); err != nil {
		t.Fatalf("handle setup replay: %v", err)
	}
	framework, err = st.Framework(context.Background(), entity.AddressKey(frameworkAddr))
	if err != nil {
		t.Fatalf("reload framework: %v", err)
	}
	if framework.RequiredDeposit.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("requiredDeposit after replay = %s, want 100", framework.RequiredDeposit)
	}

	counts, _ := st.Counts(context.Background())
	if counts.Frameworks != 1 {
		t.Errorf("frameworks = %d, want 1", counts.Frameworks)
	}
}

func TestHandleAgreementJoined_CreatesPositionAndAdvancesAgreement(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, map[string][]byte{
		"Metadata": []byte(`{"title":"Agreement Test"}`),
	})
	ctx := context.Background()

	if err := p.HandleAgreementCreated(ctx, createdEvent("Metadata")); err != nil {
		t.Fatalf("handle created: %v", err)
	}

	joined := events.AgreementJoined{
		Meta:    events.Meta{Address: frameworkAddr, Timestamp: big.NewInt(1001)},
		ID:      agreementID,
		Party:   partyOne,
		Balance: big.NewInt(1050),
	}
	if err := p.HandleAgreementJoined(ctx, joined); err != nil {
		t.Fatalf("handle joined: %v", err)
	}

	key := entity.HashKey(agreementID)
	position, err := st.Position(ctx, entity.PositionKey(key, partyOne))
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if position.Status != entity.PositionJoined {
		t.Errorf("status = %s, want Joined", position.Status)
	}
	if position.Collateral.Cmp(big.NewInt(1050)) != 0 {
		t.Errorf("collateral = %s, want 1050", position.Collateral)
	}
	if position.RequiredCollateral.Cmp(big.NewInt(1050)) != 0 {
		t.Errorf("requiredCollateral = %s, want 1050", position.RequiredCollateral)
	}
	// No framework row indexed: deposit defaults to zero.
	if position.Deposit.Sign() != 0 {
		t.Errorf("deposit = %s, want 0", position.Deposit)
	}

	agreement, err := st.Agreement(ctx, key)
	if err != nil {
		t.Fatalf("load agreement: %v", err)
	}
	if agreement.Status != entity.AgreementOngoing {
		t.Errorf("agreement status = %s, want Ongoing", agreement.Status)
	}
}

func TestHandleAgreementJoined_UpgradesPendingPosition(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, map[string][]byte{
		"QmResolvers": []byte(`{"resolvers":{"0x0000000000000000000000000000000000000001":{"balance":"1050"}}}`),
	})
	ctx := context.Background()

	if err := p.HandleAgreementCreated(ctx, createdEvent("ipfs://QmResolvers")); err != nil {
		t.Fatalf("handle created: %v", err)
	}
	if err := p.HandleFrameworkSetup(ctx, events.FrameworkSetup{
		Meta:          events.Meta{Address: frameworkAddr},
		Arbitrator:    common.HexToAddress("0xaa"),
		DepositAmount: big.NewInt(7),
	}); err != nil {
		t.Fatalf("handle setup: %v", err)
	}

	joined := events.AgreementJoined{
		Meta:    events.Meta{Address: frameworkAddr, Timestamp: big.NewInt(1001)},
		ID:      agreementID,
		Party:   partyOne,
		Balance: big.NewInt(2000),
	}
	if err := p.HandleAgreementJoined(ctx, joined); err != nil {
		t.Fatalf("handle joined: %v", err)
	}

	key := entity.HashKey(agreementID)
	position, err := st.Position(ctx, entity.PositionKey(key, partyOne))
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if position.Status != entity.PositionJoined {
		t.Errorf("status = %s, want Joined", position.Status)
	}
	// The pre-created row is upgraded: requiredCollateral keeps the
	// metadata value, collateral takes the joined balance.
	if position.RequiredCollateral.Cmp(big.NewInt(1050)) != 0 {
		t.Errorf("requiredCollateral = %s, want 1050", position.RequiredCollateral)
	}
	if position.Collateral.Cmp(big.NewInt(2000)) != 0 {
		t.Errorf("collateral = %s, want 2000", position.Collateral)
	}
	if position.Deposit.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("deposit = %s, want framework deposit 7", position.Deposit)
	}

	counts, _ := st.Counts(ctx)
	if counts.Positions != 1 {
		t.Errorf("positions = %d, want 1 (no duplicate row)", counts.Positions)
	}
}

func TestHandleAgreementJoined_SamePartyTwiceKeepsOneRow(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, nil)
	ctx := context.Background()

	if err := p.HandleAgreementCreated(ctx, createdEvent("ipfs://QmMissing")); err != nil {
		t.Fatalf("handle created: %v", err)
	}
	for _, balance := range []int64{1000, 1500} {
		joined := events.AgreementJoined{
			Meta:    events.Meta{Address: frameworkAddr},
			ID:      agreementID,
			Party:   partyOne,
			Balance: big.NewInt(balance),
		}
		if err := p.HandleAgreementJoined(ctx, joined); err != nil {
			t.Fatalf("handle joined with balance %d: %v", balance, err)
		}
	}

	counts, _ := st.Counts(ctx)
	if counts.Positions != 1 {
		t.Fatalf("positions = %d, want 1 after rejoin", counts.Positions)
	}
	position, err := st.Position(ctx, entity.PositionKey(entity.HashKey(agreementID), partyOne))
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if position.Collateral.Cmp(big.NewInt(1500)) != 0 {
		t.Errorf("collateral = %s, want second join's 1500", position.Collateral)
	}
}

func TestHandleAgreementJoined_NeverRevertsOngoing(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, nil)
	ctx := context.Background()

	if err := p.HandleAgreementCreated(ctx, createdEvent("ipfs://QmMissing")); err != nil {
		t.Fatalf("handle created: %v", err)
	}
	for _, party := range []common.Address{partyOne, partyTwo} {
		joined := events.AgreementJoined{
			Meta:    events.Meta{Address: frameworkAddr},
			ID:      agreementID,
			Party:   party,
			Balance: big.NewInt(500),
		}
		if err := p.HandleAgreementJoined(ctx, joined); err != nil {
			t.Fatalf("handle joined %s: %v", party, err)
		}
	}

	agreement, err := st.Agreement(ctx, entity.HashKey(agreementID))
	if err != nil {
		t.Fatalf("load agreement: %v", err)
	}
	if agreement.Status != entity.AgreementOngoing {
		t.Errorf("agreement status = %s, want Ongoing after second join", agreement.Status)
	}
}

func TestHandleAgreementPositionUpdated_StatusCodes(t *testing.T) {
	cases := []struct {
		code        uint8
		want        entity.PositionStatus
		wantDeposit int64
	}{
		{0, entity.PositionJoined, 7},
		{1, entity.PositionJoined, 7},
		{2, entity.PositionFinalized, 7},
		{3, entity.PositionWithdrawn, 0},
		{4, entity.PositionDisputed, 0},
		{9, entity.PositionJoined, 7},
	}
	for _, tc := range cases {
		st := store.NewMemory()
		p := newAgreementProjector(st, nil)
		ctx := context.Background()

		key := entity.HashKey(agreementID)
		seed := &entity.AgreementPosition{
			ID:                 entity.PositionKey(key, partyOne),
			Agreement:          key,
			Party:              entity.AddressKey(partyOne),
			RequiredCollateral: big.NewInt(1000),
			Collateral:         big.NewInt(1000),
			Deposit:            big.NewInt(7),
			Status:             entity.PositionJoined,
		}
		if err := st.PutPosition(ctx, seed); err != nil {
			t.Fatalf("seed position: %v", err)
		}

		updated := events.AgreementPositionUpdated{
			Meta:    events.Meta{Address: frameworkAddr},
			ID:      agreementID,
			Party:   partyOne,
			Balance: big.NewInt(1050),
			Status:  tc.code,
		}
		if err := p.HandleAgreementPositionUpdated(ctx, updated); err != nil {
			t.Fatalf("code %d: handle update: %v", tc.code, err)
		}

		position, err := st.Position(ctx, seed.ID)
		if err != nil {
			t.Fatalf("code %d: load position: %v", tc.code, err)
		}
		if position.Status != tc.want {
			t.Errorf("code %d: status = %s, want %s", tc.code, position.Status, tc.want)
		}
		if position.Collateral.Cmp(big.NewInt(1050)) != 0 {
			t.Errorf("code %d: collateral = %s, want 1050", tc.code, position.Collateral)
		}
		if position.Deposit.Cmp(big.NewInt(tc.wantDeposit)) != 0 {
			t.Errorf("code %d: deposit = %s, want %d", tc.code, position.Deposit, tc.wantDeposit)
		}
	}
}

func TestHandleAgreementPositionUpdated_UnknownPositionIgnored(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, nil)

	updated := events.AgreementPositionUpdated{
		Meta:    events.Meta{Address: frameworkAddr},
		ID:      agreementID,
		Party:   partyOne,
		Balance: big.NewInt(1),
		Status:  4,
	}
	if err := p.HandleAgreementPositionUpdated(context.Background(), updated); err != nil {
		t.Fatalf("handle update: %v", err)
	}

	counts, _ := st.Counts(context.Background())
	if counts.Positions != 0 {
		t.Errorf("positions = %d, want 0", counts.Positions)
	}
}

func TestHandleAgreementFinalized(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, nil)
	ctx := context.Background()

	// Unknown agreement: silent no-op.
	if err := p.HandleAgreementFinalized(ctx, events.AgreementFinalized{ID: agreementID}); err != nil {
		t.Fatalf("handle finalized on unknown: %v", err)
	}

	if err := p.HandleAgreementCreated(ctx, createdEvent("ipfs://QmMissing")); err != nil {
		t.Fatalf("handle created: %v", err)
	}
	if err := p.HandleAgreementFinalized(ctx, events.AgreementFinalized{ID: agreementID}); err != nil {
		t.Fatalf("handle finalized: %v", err)
	}

	agreement, err := st.Agreement(ctx, entity.HashKey(agreementID))
	if err != nil {
		t.Fatalf("load agreement: %v", err)
	}
	if agreement.Status != entity.AgreementFinalized {
		t.Errorf("status = %s, want Finalized", agreement.Status)
	}
}

func TestHandleAgreementDisputed(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, nil)
	ctx := context.Background()

	if err := p.HandleAgreementCreated(ctx, createdEvent("ipfs://QmMissing")); err != nil {
		t.Fatalf("handle created: %v", err)
	}

	disputed := events.AgreementDisputed{
		Meta:  events.Meta{Address: frameworkAddr, Timestamp: big.NewInt(1100)},
		ID:    agreementID,
		Party: partyOne,
	}
	if err := p.HandleAgreementDisputed(ctx, disputed); err != nil {
		t.Fatalf("handle disputed: %v", err)
	}

	key := entity.HashKey(agreementID)
	dispute, err := st.Dispute(ctx, key)
	if err != nil {
		t.Fatalf("load dispute: %v", err)
	}
	if dispute.Agreement != key {
		t.Errorf("dispute agreement = %q, want %q", dispute.Agreement, key)
	}
	if dispute.CreatedAt.Cmp(big.NewInt(1100)) != 0 {
		t.Errorf("dispute createdAt = %s, want 1100", dispute.CreatedAt)
	}

	agreement, err := st.Agreement(ctx, key)
	if err != nil {
		t.Fatalf("load agreement: %v", err)
	}
	if agreement.Status != entity.AgreementDisputed {
		t.Errorf("agreement status = %s, want Disputed", agreement.Status)
	}

	// A second dispute event reuses the existing row: createdAt is frozen.
	disputed.Timestamp = big.NewInt(2200)
	if err := p.HandleAgreementDisputed(ctx, disputed); err != nil {
		t.Fatalf("handle disputed again: %v", err)
	}
	dispute, err = st.Dispute(ctx, key)
	if err != nil {
		t.Fatalf("reload dispute: %v", err)
	}
	if dispute.CreatedAt.Cmp(big.NewInt(1100)) != 0 {
		t.Errorf("dispute createdAt after replay = %s, want 1100", dispute.CreatedAt)
	}
	counts, _ := st.Counts(ctx)
	if counts.Disputes != 1 {
		t.Errorf("disputes = %d, want 1", counts.Disputes)
	}
}

func TestHandleAgreementDisputed_WithoutAgreementStillSavesDispute(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, nil)
	ctx := context.Background()

	disputed := events.AgreementDisputed{
		Meta:  events.Meta{Address: frameworkAddr, Timestamp: big.NewInt(1100)},
		ID:    agreementID,
		Party: partyOne,
	}
	if err := p.HandleAgreementDisputed(ctx, disputed); err != nil {
		t.Fatalf("handle disputed: %v", err)
	}

	dispute, err := st.Dispute(ctx, entity.HashKey(agreementID))
	if err != nil {
		t.Fatalf("load dispute: %v", err)
	}
	if dispute.Agreement != "" {
		t.Errorf("dispute agreement = %q, want empty", dispute.Agreement)
	}
}

// Mirrors the lifecycle exercised against the deployed contracts: create,
// join, dispute the position, then dispute the agreement.
func TestAgreementLifecycleScenario(t *testing.T) {
	st := store.NewMemory()
	p := newAgreementProjector(st, map[string][]byte{
		"Metadata": []byte(`{"title":"Agreement Test"}`),
	})
	ctx := context.Background()

	if err := p.HandleAgreementCreated(ctx, createdEvent("Metadata")); err != nil {
		t.Fatalf("created: %v", err)
	}
	key := entity.HashKey(agreementID)
	agreement, _ := st.Agreement(ctx, key)
	if agreement.Status != entity.AgreementCreated || agreement.Title != "Agreement Test" {
		t.Fatalf("after create: status=%s title=%q", agreement.Status, agreement.Title)
	}

	joined := events.AgreementJoined{
		Meta:    events.Meta{Address: frameworkAddr},
		ID:      agreementID,
		Party:   partyOne,
		Balance: big.NewInt(1050),
	}
	if err := p.HandleAgreementJoined(ctx, joined); err != nil {
		t.Fatalf("joined: %v", err)
	}
	agreement, _ = st.Agreement(ctx, key)
	if agreement.Status != entity.AgreementOngoing {
		t.Fatalf("after join: status=%s", agreement.Status)
	}

	updated := events.AgreementPositionUpdated{
		Meta:    events.Meta{Address: frameworkAddr},
		ID:      agreementID,
		Party:   partyOne,
		Balance: big.NewInt(1050),
		Status:  4,
	}
	if err := p.HandleAgreementPositionUpdated(ctx, updated); err != nil {
		t.Fatalf("position updated: %v", err)
	}
	position, _ := st.Position(ctx, entity.PositionKey(key, partyOne))
	if position.Status != entity.PositionDisputed || position.Deposit.Sign() != 0 {
		t.Fatalf("after update: status=%s deposit=%s", position.Status, position.Deposit)
	}

	disputed := events.AgreementDisputed{
		Meta:  events.Meta{Address: frameworkAddr, Timestamp: big.NewInt(1200)},
		ID:    agreementID,
		Party: partyOne,
	}
	if err := p.HandleAgreementDisputed(ctx, disputed); err != nil {
		t.Fatalf("disputed: %v", err)
	}
	agreement, _ = st.Agreement(ctx, key)
	if agreement.Status != entity.AgreementDisputed {
		t.Fatalf("after dispute: status=%s", agreement.Status)
	}
	dispute, err := st.Dispute(ctx, key)
	if err != nil {
		t.Fatalf("load dispute: %v", err)
	}
	if dispute.Agreement != key {
		t.Fatalf("dispute agreement=%q", dispute.Agreement)
	}
}
