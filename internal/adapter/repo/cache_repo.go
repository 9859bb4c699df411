package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"adscope/internal/domain"
	"adscope/internal/infra"
	"adscope/internal/sqlinline"
)

// AnalysisCachePG stores raw model outputs keyed by
// (image_hash, model_used, prompt_version). Expiry is a read-time filter so
// stale rows keep their hit history without a reaper.
type AnalysisCachePG struct {
	db infra.SQLExecutor
}

func NewAnalysisCache(db infra.SQLExecutor) *AnalysisCachePG {
	return &AnalysisCachePG{db: db}
}

// Get returns the cached result and increments hit_count, or
// domain.ErrNotFound on miss (including logically expired entries).
func (c *AnalysisCachePG) Get(ctx context.Context, hash, model, promptVersion string, maxAge time.Duration) (json.RawMessage, error) {
	row := c.db.QueryRow(ctx, sqlinline.QCacheLookup, hash, model, promptVersion, pgInterval(maxAge))
	var result json.RawMessage
	if err := row.Scan(&result); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	return append(json.RawMessage(nil), result...), nil
}

func (c *AnalysisCachePG) Put(ctx context.Context, hash, model, promptVersion string, result json.RawMessage) error {
	if _, err := c.db.Exec(ctx, sqlinline.QCacheStore, hash, model, promptVersion, result); err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

var _ domain.AnalysisCacheStore = (*AnalysisCachePG)(nil)
