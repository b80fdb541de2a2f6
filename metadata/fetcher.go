// Package metadata resolves off-chain agreement metadata: a content URI is
// fetched from an IPFS gateway and parsed into a typed document. Every
// failure mode (unreachable gateway, timeout, malformed JSON, wrong field
// types) degrades to defaults; the on-chain write never waits on or fails
// because of metadata.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound indicates the content behind a URI does not exist.
var ErrNotFound = errors.New("metadata: not found")

// Fetcher retrieves the raw bytes behind a content identifier.
type Fetcher interface {
	Fetch(ctx context.Context, cid string) ([]byte, error)
}

const maxDocumentSize = 1 << 20 // metadata documents are small; cap reads at 1 MiB

// GatewayFetcher fetches content-addressed documents over an HTTP IPFS
// gateway (e.g. https://ipfs.io/ipfs).
type GatewayFetcher struct {
	base   string
	client *http.Client
}

// NewGatewayFetcher builds a fetcher for the given gateway base URL. The
// timeout bounds the whole fetch; a stalled gateway degrades to absent
// metadata instead of stalling the projector.
func NewGatewayFetcher(base string, timeout time.Duration) *GatewayFetcher {
	return &GatewayFetcher{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

func (f *GatewayFetcher) Fetch(ctx context.Context, cid string) ([]byte, error) {
	target := f.base + "/" + url.PathEscape(cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("metadata: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata: fetch %s: %w", cid, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("metadata: fetch %s: unexpected status %d", cid, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("metadata: read %s: %w", cid, err)
	}
	return data, nil
}
