package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SchemePrefix is the only URI scheme the resolver understands. It is
// stripped before the gateway fetch.
const SchemePrefix = "ipfs://"

// Document is the parsed-or-defaulted agreement metadata. HasTitle
// distinguishes "title present and usable" from the default path; Resolvers
// preserves the declared key order of the source document.
type Document struct {
	Title     string
	HasTitle  bool
	Resolvers []PartyResolver
}

// PartyResolver is one entry of the metadata "resolvers" object: a party
// and the collateral the document requires of it.
type PartyResolver struct {
	Party   common.Address
	Balance *big.Int
}

// Resolver fetches and parses agreement metadata.
type Resolver struct {
	fetcher Fetcher
	log     *slog.Logger
}

// NewResolver builds a resolver on top of the given fetcher.
func NewResolver(fetcher Fetcher, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{fetcher: fetcher, log: log}
}

// Resolve fetches and parses the document behind uri. It returns nil when
// the document is unreachable, missing, or not parseable as JSON; callers
// proceed with defaults.
func (r *Resolver) Resolve(ctx context.Context, uri string) *Document {
	cid := strings.TrimPrefix(uri, SchemePrefix)
	if cid == "" {
		return nil
	}

	data, err := r.fetcher.Fetch(ctx, cid)
	if err != nil {
		r.log.Debug("metadata unavailable", "uri", uri, "err", err)
		return nil
	}

	doc, err := Parse(data)
	if err != nil {
		r.log.Debug("metadata unparseable", "uri", uri, "err", err)
		return nil
	}
	return doc
}

// Parse decodes a metadata document. Recognized keys are "title" (string)
// and "resolvers" (object of party address to {"balance": string-integer}).
// A key that is absent and a key that is present with the wrong type both
// collapse to the same default: no title, zero balance, skipped entry.
func Parse(data []byte) (*Document, error) {
	var raw struct {
		Title     json.RawMessage `json:"title"`
		Resolvers json.RawMessage `json:"resolvers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	doc := &Document{}
	if len(raw.Title) > 0 {
		var title string
		if err := json.Unmarshal(raw.Title, &title); err == nil {
			doc.Title = title
			doc.HasTitle = true
		}
	}
	if len(raw.Resolvers) > 0 {
		doc.Resolvers = parseResolvers(raw.Resolvers)
	}
	return doc, nil
}

// parseResolvers walks the resolvers object token by token. encoding/json
// maps do not preserve key order, and the order of pre-created positions
// must follow the document, so the object is consumed with a Decoder.
func parseResolvers(raw json.RawMessage) []PartyResolver {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}

	var out []PartyResolver
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		key, ok := tok.(string)
		if !ok {
			return out
		}

		var rawValue json.RawMessage
		if err := dec.Decode(&rawValue); err != nil {
			return out
		}

		if !common.IsHexAddress(key) {
			continue
		}
		var value struct {
			Balance json.RawMessage `json:"balance"`
		}
		if err := json.Unmarshal(rawValue, &value); err != nil {
			// Entry value is not an object; treat like an absent balance.
			value.Balance = nil
		}
		out = append(out, PartyResolver{
			Party:   common.HexToAddress(key),
			Balance: parseBalance(value.Balance),
		})
	}
	return out
}

func parseBalance(raw json.RawMessage) *big.Int {
	if len(raw) == 0 {
		return big.NewInt(0)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Tolerate documents that encode the balance as a bare number.
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return big.NewInt(0)
		}
		s = n.String()
	}
	balance, ok := new(big.Int).SetString(s, 10)
	if !ok || balance.Sign() < 0 {
		return big.NewInt(0)
	}
	return balance
}
