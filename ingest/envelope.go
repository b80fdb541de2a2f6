// Package ingest adapts the delivery host to the projectors: source
// adapters read JSON envelopes carrying already-decoded events, and the
// dispatcher routes each one to exactly one handler. No retries, no
// reordering, no batching.
package ingest

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"pactindex/events"
)

// Envelope is the wire form of one decoded event or call trace.
type Envelope struct {
	Kind       events.Kind     `json:"kind"`
	DeliveryID string          `json:"deliveryId,omitempty"`
	Address    string          `json:"address"`
	Timestamp  json.Number     `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

// ParseEnvelope decodes one envelope and stamps a delivery id when the
// producer didn't set one, so redeliveries stay correlatable in logs.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("ingest: parse envelope: %w", err)
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("ingest: envelope missing kind")
	}
	if env.DeliveryID == "" {
		env.DeliveryID = uuid.NewString()
	}
	return env, nil
}

func (e Envelope) meta() (events.Meta, error) {
	meta := events.Meta{Address: common.HexToAddress(e.Address)}
	ts, err := parseBig(e.Timestamp)
	if err != nil {
		return events.Meta{}, fmt.Errorf("ingest: envelope timestamp: %w", err)
	}
	meta.Timestamp = ts
	return meta, nil
}

func parseBig(n json.Number) (*big.Int, error) {
	s := n.String()
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed integer %q", s)
	}
	return v, nil
}

// Decode converts the envelope into its typed event.
func (e Envelope) Decode() (events.Event, error) {
	meta, err := e.meta()
	if err != nil {
		return nil, err
	}

	switch e.Kind {
	case events.KindAgreementCreated:
		var p struct {
			ID          string      `json:"id"`
			TermsHash   string      `json:"termsHash"`
			Criteria    json.Number `json:"criteria"`
			MetadataURI string      `json:"metadataURI"`
			Token       string      `json:"token"`
		}
		if err := e.unmarshalPayload(&p); err != nil {
			return nil, err
		}
		criteria, err := parseBig(p.Criteria)
		if err != nil {
			return nil, fmt.Errorf("ingest: %s criteria: %w", e.Kind, err)
		}
		return events.AgreementCreated{
			Meta:        meta,
			ID:          common.HexToHash(p.ID),
			TermsHash:   common.HexToHash(p.TermsHash),
			Criteria:    criteria,
			MetadataURI: p.MetadataURI,
			Token:       common.HexToAddress(p.Token),
		}, nil

	case events.KindAgreementJoined:
		var p struct {
			ID      string      `json:"id"`
			Party   string      `json:"party"`
			Balance json.Number `json:"balance"`
		}
		if err := e.unmarshalPayload(&p); err != nil {
			return nil, err
		}
		balance, err := parseBig(p.Balance)
		if err != nil {
			return nil, fmt.Errorf("ingest: %s balance: %w", e.Kind, err)
		}
		return events.AgreementJoined{
			Meta:    meta,
			ID:      common.HexToHash(p.ID),
			Party:   common.HexToAddress(p.Party),
			Balance: balance,
		}, nil

	case events.KindAgreementPositionUpdated:
		var p struct {
			ID      string      `json:"id"`
			Party   string      `json:"party"`
			Balance json.Number `json:"balance"`
			Status  uint8       `json:"status"`
		}
		if err := e.unmarshalPayload(&p); err != nil {
			return nil, err
		}
		balance, err := parseBig(p.Balance)
		if err != nil {
			return nil, fmt.Errorf("ingest: %s balance: %w", e.Kind, err)
		}
		return events.AgreementPositionUpdated{
			Meta:    meta,
			ID:      common.HexToHash(p.ID),
			Party:   common.HexToAddress(p.Party),
			Balance: balance,
			Status:  p.Status,
		}, nil

	case events.KindAgreementFinalized:
		var p struct {
			ID string `json:"id"`
		}
		if err := e.unmarshalPayload(&p); err != nil {
			return nil, err
		}
		return events.AgreementFinalized{Meta: meta, ID: common.HexToHash(p.ID)}, nil

	case events.KindAgreementDisputed:
		var p struct {
			ID    string `json:"id"`
			Party string `json:"party"`
		}
		if err := e.unmarshalPayload(&p); err != nil {
			return nil, err
		}
		return events.AgreementDisputed{
			Meta:  meta,
			ID:    common.HexToHash(p.ID),
			Party: common.HexToAddress(p.Party),
		}, nil

	case events.KindFrameworkSetup:
		var p struct {
			Arbitrator string `json:"arbitrator"`
			Deposits   struct {
				Token      string      `json:"token"`
				Amount     json.Number `json:"amount"`
				Arbitrator string      `json:"arbitrator"`
			} `json:"deposits"`
		}
		if err := e.unmarshalPayload(&p); err != nil {
			return nil, err
		}
		amount, err := parseBig(p.Deposits.Amount)
		if err != nil {
			return nil, fmt.Errorf("ingest: %s deposit amount: %w", e.Kind, err)
		}
		return events.FrameworkSetup{
			Meta:             meta,
			Arbitrator:       common.HexToAddress(p.Arbitrator),
			DepositToken:     common.HexToAddress(p.Deposits.Token),
			DepositAmount:    amount,
			DepositRecipient: common.HexToAddress(p.Deposits.Arbitrator),
		}, nil

	case events.KindResolutionSubmitted:
		var p struct {
			Framework  string `json:"framework"`
			Dispute    string `json:"dispute"`
			Resolution string `json:"resolution"`
			Settlement string `json:"settlement"`
		}
		if err := e.unmarshalPayload(&p); err != nil {
			return nil, err
		}
		return events.ResolutionSubmitted{
			Meta:       meta,
			Framework:  common.HexToAddress(p.Framework),
			Dispute:    common.HexToHash(p.Dispute),
			Resolution: common.HexToHash(p.Resolution),
			Settlement: common.HexToHash(p.Settlement),
		}, nil

	case events.KindResolutionAppealed:
		var p struct {
			Resolution string `json:"resolution"`
			Settlement string `json:"settlement"`
			Account    string `json:"account"`
		}
		if err := e.unmarshalPayload(&p); err != nil {
			return nil, err
		}
		return events.ResolutionAppealed{
			Meta:       meta,
			Resolution: common.HexToHash(p.Resolution),
			Settlement: common.HexToHash(p.Settlement),
			Account:    common.HexToAddress(p.Account),
		}, nil

	case events.KindResolutionEndorsed:
		var p struct {
			Resolution string `json:"resolution"`
			Settlement string `json:"settlement"`
		}
		if err := e.unmarshalPayload(&p); err != nil {
			return nil, err
		}
		return events.ResolutionEndorsed{
			Meta:       meta,
			Resolution: common.HexToHash(p.Resolution),
			Settlement: common.HexToHash(p.Settlement),
		}, nil

	case events.KindResolutionExecuted:
		var p struct {
			Resolution string `json:"resolution"`
			Settlement string `json:"settlement"`
		}
		if err := e.unmarshalPayload(&p); err != nil {
			return nil, err
		}
		return events.ResolutionExecuted{
			Meta:       meta,
			Resolution: common.HexToHash(p.Resolution),
			Settlement: common.HexToHash(p.Settlement),
		}, nil
	}

	return nil, fmt.Errorf("ingest: unknown event kind %q", e.Kind)
}

func (e Envelope) unmarshalPayload(target any) error {
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("ingest: decode %s payload: %w", e.Kind, err)
	}
	return nil
}
