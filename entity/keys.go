package entity

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Storage keys are lowercase 0x-prefixed hex. Address keys deliberately
// avoid the EIP-55 checksum casing of common.Address.Hex so that keys built
// from events and keys built from metadata strings always agree.

// AddressKey renders an account or contract address as a storage key.
func AddressKey(addr common.Address) string {
	return hexutil.Encode(addr.Bytes())
}

// HashKey renders a 32-byte identifier (agreement ids, terms hashes,
// resolution and settlement ids) as a storage key.
func HashKey(h common.Hash) string {
	return h.Hex()
}

// PositionKey builds the composite identity of a party's position: the
// agreement key immediately followed by the party key.
func PositionKey(agreementID string, party common.Address) string {
	return agreementID + AddressKey(party)
}
