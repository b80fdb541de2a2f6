// Package actors contains the concurrent event producers for the replay
// stress test. Each actor loops until stopped, dispatching one kind of
// event for a shared, deliberately small set of agreement ids so writers
// contend on the same rows. Dispatch failures are treated as redeliverable
// and retried on the next tick.
package actors

import (
	"context"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"pactindex/events"
	"pactindex/ingest"
)

// Shared id spaces. Small on purpose: contention is the point.
var (
	framework = common.HexToAddress("0x5615deb798bb3e4dfa0139dfa1b3d433cc23b72f")
	token     = common.HexToAddress("0x333c3310824b7c685133f2bedb2ca4b8b4df633d")
)

func agreementID(n int) common.Hash {
	return common.BigToHash(big.NewInt(int64(200 + n)))
}

func party(n int) common.Address {
	return common.BigToAddress(big.NewInt(int64(1 + n)))
}

func settlementID(n int) common.Hash {
	return common.BigToHash(big.NewInt(int64(48000 + n)))
}

func now() *big.Int {
	return big.NewInt(time.Now().Unix())
}

func sleep(ctx context.Context, base, jitter int) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Duration(base+rand.Intn(jitter)) * time.Millisecond):
		return true
	}
}

// Creator emits framework setup and agreement creation events, repeatedly
// re-creating the same agreements to exercise upsert idempotency.
func Creator(ctx context.Context, d *ingest.Dispatcher, agreements int, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_ = d.Dispatch(ctx, events.FrameworkSetup{
			Meta:          events.Meta{Address: framework, Timestamp: now()},
			Arbitrator:    party(99),
			DepositToken:  token,
			DepositAmount: big.NewInt(int64(rand.Intn(100))),
		})
		_ = d.Dispatch(ctx, events.AgreementCreated{
			Meta:        events.Meta{Address: framework, Timestamp: now()},
			ID:          agreementID(rand.Intn(agreements)),
			TermsHash:   common.BigToHash(big.NewInt(0x1337)),
			Criteria:    big.NewInt(1000),
			MetadataURI: "ipfs://QmUnreachable",
			Token:       token,
		})
		if !sleep(ctx, 10, 20) {
			return ctx.Err()
		}
	}
}

// Joiner joins random parties to random agreements.
func Joiner(ctx context.Context, d *ingest.Dispatcher, agreements, parties int, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_ = d.Dispatch(ctx, events.AgreementJoined{
			Meta:    events.Meta{Address: framework, Timestamp: now()},
			ID:      agreementID(rand.Intn(agreements)),
			Party:   party(rand.Intn(parties)),
			Balance: big.NewInt(int64(1000 + rand.Intn(100))),
		})
		if !sleep(ctx, 10, 30) {
			return ctx.Err()
		}
	}
}

// Updater fires position updates across the whole contract status code
// range, including codes the indexer maps to the fallback status.
func Updater(ctx context.Context, d *ingest.Dispatcher, agreements, parties int, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_ = d.Dispatch(ctx, events.AgreementPositionUpdated{
			Meta:    events.Meta{Address: framework, Timestamp: now()},
			ID:      agreementID(rand.Intn(agreements)),
			Party:   party(rand.Intn(parties)),
			Balance: big.NewInt(int64(rand.Intn(2000))),
			Status:  uint8(rand.Intn(6)),
		})
		if !sleep(ctx, 15, 30) {
			return ctx.Err()
		}
	}
}

// Disputer raises disputes against random agreements and finalizes others.
func Disputer(ctx context.Context, d *ingest.Dispatcher, agreements int, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		id := agreementID(rand.Intn(agreements))
		if rand.Intn(2) == 0 {
			_ = d.Dispatch(ctx, events.AgreementDisputed{
				Meta:  events.Meta{Address: framework, Timestamp: now()},
				ID:    id,
				Party: party(0),
			})
		} else {
			_ = d.Dispatch(ctx, events.AgreementFinalized{
				Meta: events.Meta{Address: framework, Timestamp: now()},
				ID:   id,
			})
		}
		if !sleep(ctx, 20, 40) {
			return ctx.Err()
		}
	}
}

// Arbiter submits, appeals, endorses, and executes settlements against
// whatever disputes the other actors have raised.
func Arbiter(ctx context.Context, d *ingest.Dispatcher, agreements, settlements int, stop <-chan struct{}) error {
	arbitrator := party(99)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		dispute := agreementID(rand.Intn(agreements))
		settlement := settlementID(rand.Intn(settlements))
		resolution := common.BigToHash(big.NewInt(int64(1 + rand.Intn(4))))
		meta := events.Meta{Address: arbitrator, Timestamp: now()}

		switch rand.Intn(4) {
		case 0:
			_ = d.Dispatch(ctx, events.ResolutionSubmitted{
				Meta:       meta,
				Framework:  framework,
				Dispute:    dispute,
				Resolution: resolution,
				Settlement: settlement,
			})
		case 1:
			_ = d.Dispatch(ctx, events.ResolutionAppealed{
				Meta:       meta,
				Resolution: resolution,
				Settlement: settlement,
				Account:    party(0),
			})
		case 2:
			_ = d.Dispatch(ctx, events.ResolutionEndorsed{
				Meta:       meta,
				Resolution: resolution,
				Settlement: settlement,
			})
		default:
			_ = d.Dispatch(ctx, events.ResolutionExecuted{
				Meta:       meta,
				Resolution: resolution,
				Settlement: settlement,
			})
		}
		if !sleep(ctx, 20, 40) {
			return ctx.Err()
		}
	}
}
