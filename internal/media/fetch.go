package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adscope/internal/domain"
)

// Fetcher downloads source media over HTTP with a hard size cap. The bytes it
// returns are exactly what the analysis (and therefore the dedup hash) sees;
// no transforms happen between download and hashing.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher builds a Fetcher. A nil client gets a default with a generous
// timeout suited to large video downloads.
func NewFetcher(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = 100 * 1024 * 1024
	}
	return &Fetcher{client: client, maxBytes: maxBytes}
}

// Fetch retrieves the raw bytes at mediaURL.
func (f *Fetcher) Fetch(ctx context.Context, mediaURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(mediaURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMediaURL, mediaURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download media: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("media exceeds %d byte limit", f.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("media body is empty")
	}
	return data, nil
}

// Hash computes the content fingerprint over the exact downloaded bytes.
// It is the dedup key together with the prompt version.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
