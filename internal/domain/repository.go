package domain

import (
	"context"
	"encoding/json"
	"time"
)

// JobQueue exposes the claim/requeue contract over the durable job store.
// Claim atomicity lives in the store, not in process memory.
type JobQueue interface {
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
	ClaimBatch(ctx context.Context, n int) ([]Job, error)
	Requeue(ctx context.Context, ids []string) error
	MarkProcessed(ctx context.Context, id, mediaHash, brand string, digest json.RawMessage) error
	MarkFailed(ctx context.Context, id string, status JobStatus, digest json.RawMessage) error
	FindProcessedDuplicate(ctx context.Context, mediaHash, promptVersion, excludeID string) (*Job, error)
	RecentBrandDigests(ctx context.Context, brand, excludeID string, limit int) ([]Job, error)
}

// AnalysisCacheStore persists content-addressed model outputs.
type AnalysisCacheStore interface {
	Get(ctx context.Context, hash, model, promptVersion string, maxAge time.Duration) (json.RawMessage, error)
	Put(ctx context.Context, hash, model, promptVersion string, result json.RawMessage) error
}

// WebhookRepository lists delivery targets; subscriptions are owned elsewhere.
type WebhookRepository interface {
	ListActive(ctx context.Context) ([]WebhookSubscription, error)
}

// UsageRecorder accounts processed jobs against the owning user.
type UsageRecorder interface {
	RecordJob(ctx context.Context, userID, jobID, eventType string, success bool, latency time.Duration) error
}
