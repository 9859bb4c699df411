package digest

import (
	"encoding/json"
	"time"

	"adscope/internal/domain"
)

// SchemaVersion identifies the digest shape stamped into meta by Finalize.
const SchemaVersion = "2025-06"

// MaxListItems is the contractual cap for every list field in the digest.
// Models routinely overshoot it; Normalize truncates rather than rejects.
const MaxListItems = 8

// Digest is the structured intelligence report for one ad. The typed core is
// strict; anything experimental the model returns lands in Extensions and is
// carried through untouched.
type Digest struct {
	Classification Classification             `json:"classification"`
	Extraction     Extraction                 `json:"extraction"`
	Strategy       Strategy                   `json:"strategy"`
	Diagnostics    Diagnostics                `json:"diagnostics"`
	Neural         NeuralDeconstruction       `json:"neural_deconstruction"`
	Meta           Meta                       `json:"meta"`
	Extensions     map[string]json.RawMessage `json:"extensions,omitempty"`
}

type Classification struct {
	BrandGuess string `json:"brand_guess"`
	Industry   string `json:"industry,omitempty"`
	AdFormat   string `json:"ad_format,omitempty"`
	ClaimType  string `json:"claim_type,omitempty"`
}

type Extraction struct {
	Headline   string   `json:"headline"`
	BodyText   string   `json:"body_text,omitempty"`
	CTA        string   `json:"cta,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
	Colors     []string `json:"colors,omitempty"`
	Objects    []string `json:"objects,omitempty"`
}

type Strategy struct {
	TargetAudience       string `json:"target_audience,omitempty"`
	CompetitiveAdvantage string `json:"competitive_advantage,omitempty"`
	TriggerMechanic      string `json:"trigger_mechanic,omitempty"`
	FunnelStage          string `json:"funnel_stage,omitempty"`
	Tone                 string `json:"tone,omitempty"`
}

type Diagnostics struct {
	ClarityScore    float64  `json:"clarity_score,omitempty"`
	PersuasionScore float64  `json:"persuasion_score,omitempty"`
	Weaknesses      []string `json:"weaknesses,omitempty"`
	Suggestions     []string `json:"suggestions,omitempty"`
}

type NeuralDeconstruction struct {
	HookAnalysis    string   `json:"hook_analysis,omitempty"`
	SemioticSubtext string   `json:"semiotic_subtext,omitempty"`
	EmotionalArc    string   `json:"emotional_arc,omitempty"`
	MemoryAnchors   []string `json:"memory_anchors,omitempty"`
}

// Meta carries provenance and pipeline annotations. Provenance fields are
// written once by Finalize; anomaly and validation annotations are written by
// the same pipeline run that produced the digest.
type Meta struct {
	SchemaVersion    string                  `json:"schema_version"`
	PromptVersion    string                  `json:"prompt_version"`
	ModelUsed        string                  `json:"model_used,omitempty"`
	GeneratedAt      time.Time               `json:"generated_at"`
	CacheHit         bool                    `json:"cache_hit,omitempty"`
	DedupOf          string                  `json:"dedup_of,omitempty"`
	Anomaly          *domain.AnomalyDecision `json:"anomaly,omitempty"`
	ValidationErrors []string                `json:"validation_errors,omitempty"`
	Error            *ErrorInfo              `json:"error,omitempty"`
}

// ErrorInfo embeds a per-job failure into the stored digest so operators can
// inspect it without log access.
type ErrorInfo struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}
