package domain

import (
	"encoding/json"
	"time"
)

// MediaKind enumerates supported ad media categories.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusProcessed   JobStatus = "processed"
	JobStatusNeedsReview JobStatus = "needs_review"
	JobStatusError       JobStatus = "error"
)

// Job is one queued ad analysis unit. A job is created queued by the ingest
// endpoint and only ever enters processing through the atomic claim query.
type Job struct {
	ID            string
	UserID        string
	MediaURL      string
	MediaKind     MediaKind
	PromptVersion string
	Status        JobStatus
	MediaHash     string
	Digest        json.RawMessage
	Brand         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Embedding is the unit-length vector derived from a digest's salient text.
// Vectors are compared, never mutated in place.
type Embedding []float64

// AnomalyDecision is the transient per-job pattern-shift verdict. It is
// attached to the persisted digest and routed to a handler, not stored as a
// first-class row.
type AnomalyDecision struct {
	IsAnomaly bool    `json:"is_anomaly"`
	Score     float64 `json:"anomaly_score"`
	Reason    string  `json:"reason,omitempty"`
	Severity  string  `json:"severity,omitempty"`
	Dimension string  `json:"dimension,omitempty"`
}

// Severity levels for anomaly decisions.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// WebhookSubscription is external configuration, read-only to the pipeline.
type WebhookSubscription struct {
	ID         string
	URL        string
	EventTypes []string
	Secret     string
	IsActive   bool
}

// Webhook event names fired by the pipeline.
const (
	EventAnalysisComplete = "analysis_complete"
	EventStrategicAnomaly = "strategic_anomaly"
)

// WantsEvent reports whether the subscription listens for the given event.
func (s WebhookSubscription) WantsEvent(event string) bool {
	for _, e := range s.EventTypes {
		if e == event {
			return true
		}
	}
	return false
}
