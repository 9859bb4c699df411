package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"adscope/internal/domain"
	"adscope/internal/infra"
	"adscope/internal/media"
)

// CacheTTL is how long a cached analysis stays servable. Expiry is applied at
// read time by the store.
const CacheTTL = 30 * 24 * time.Hour

// configuredProvider lets the gateway probe whether a vendor has credentials
// without attempting a call.
type configuredProvider interface {
	Provider
	Configured() bool
}

// Gateway routes analysis requests to the primary provider, falling back to
// the secondary when the primary is unconfigured, and fronts single-image
// calls with the content-addressed cache.
type Gateway struct {
	primary  configuredProvider
	fallback configuredProvider
	cache    domain.AnalysisCacheStore
	logger   infra.Logger
}

func NewGateway(primary, fallback configuredProvider, cache domain.AnalysisCacheStore, logger infra.Logger) *Gateway {
	return &Gateway{primary: primary, fallback: fallback, cache: cache, logger: logger}
}

// Result carries the raw payload plus the provenance downstream stamping needs.
type Result struct {
	Raw      json.RawMessage
	Model    string
	CacheHit bool
}

// Analyze resolves a provider and returns its parsed JSON payload.
//
// Only single-input (single-image) requests consult the cache: a multi-frame
// key would have to fingerprint a set of frames, which this design does not
// attempt. Cache read/write failures are logged and never fail the call.
func (g *Gateway) Analyze(ctx context.Context, req Request) (*Result, error) {
	provider, err := g.selectProvider()
	if err != nil {
		return nil, err
	}

	cacheable := len(req.Inputs) == 1 && g.cache != nil
	var contentHash string
	if cacheable {
		contentHash = media.Hash(req.Inputs[0].Data)
		cached, err := g.cache.Get(ctx, contentHash, provider.Model(), req.PromptVersion, CacheTTL)
		if err == nil {
			g.logger.Info().
				Str("content_hash", contentHash).
				Str("model", provider.Model()).
				Msg("analysis: cache hit")
			return &Result{Raw: cached, Model: provider.Model(), CacheHit: true}, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.Warn().Err(err).Msg("analysis: cache lookup failed, proceeding to provider")
		}
	}

	raw, err := provider.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if err := g.cache.Put(ctx, contentHash, provider.Model(), req.PromptVersion, raw); err != nil {
			g.logger.Warn().Err(err).Msg("analysis: cache store failed")
		}
	}
	return &Result{Raw: raw, Model: provider.Model()}, nil
}

func (g *Gateway) selectProvider() (configuredProvider, error) {
	if g.primary != nil && g.primary.Configured() {
		return g.primary, nil
	}
	if g.fallback != nil && g.fallback.Configured() {
		g.logger.Debug().Msg("analysis: primary provider unconfigured, using fallback")
		return g.fallback, nil
	}
	return nil, &ProviderError{Provider: "gateway", Reason: ReasonNoProvider}
}
