package entity

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestAddressKeyIsLowercase(t *testing.T) {
	addr := common.HexToAddress("0x5615dEB798BB3E4dFa0139dFa1b3D433Cc23b72f")
	key := AddressKey(addr)
	if key != "0x5615deb798bb3e4dfa0139dfa1b3d433cc23b72f" {
		t.Errorf("unexpected address key %q", key)
	}
}

func TestPositionKeyConcatenatesPrefixedHex(t *testing.T) {
	agreementID := HashKey(common.HexToHash("0xc8"))
	party := common.HexToAddress("0x0000000000000000000000000000000000000001")

	key := PositionKey(agreementID, party)
	want := agreementID + "0x0000000000000000000000000000000000000001"
	if key != want {
		t.Errorf("position key = %q, want %q", key, want)
	}
}

func TestAdvanceToOngoing(t *testing.T) {
	cases := []struct {
		from     AgreementStatus
		advanced bool
		want     AgreementStatus
	}{
		{AgreementCreated, true, AgreementOngoing},
		{AgreementOngoing, false, AgreementOngoing},
		{AgreementFinalized, false, AgreementFinalized},
		{AgreementDisputed, false, AgreementDisputed},
	}
	for _, tc := range cases {
		agreement := Agreement{Status: tc.from}
		if got := agreement.AdvanceToOngoing(); got != tc.advanced {
			t.Errorf("AdvanceToOngoing from %s = %v, want %v", tc.from, got, tc.advanced)
		}
		if agreement.Status != tc.want {
			t.Errorf("status after advance from %s = %s, want %s", tc.from, agreement.Status, tc.want)
		}
	}
}

func TestSetResolutionFirstWriterWins(t *testing.T) {
	var dispute Dispute

	if !dispute.SetResolution("0xaa") {
		t.Fatal("expected first SetResolution to succeed")
	}
	if dispute.SetResolution("0xbb") {
		t.Error("expected second SetResolution to be rejected")
	}
	if dispute.Resolution != "0xaa" {
		t.Errorf("resolution = %q, want %q", dispute.Resolution, "0xaa")
	}
}
