package digest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Normalize decodes a raw model payload into the typed digest and repairs
// known model misbehaviors: over-long lists are truncated to MaxListItems and
// string fields are whitespace-trimmed. It does not judge completeness; that
// is Validate's job.
func Normalize(raw json.RawMessage) (*Digest, error) {
	var d Digest
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decode digest: %w", err)
	}

	d.Classification.BrandGuess = strings.TrimSpace(d.Classification.BrandGuess)
	d.Classification.Industry = strings.TrimSpace(d.Classification.Industry)
	d.Classification.AdFormat = strings.TrimSpace(d.Classification.AdFormat)
	d.Classification.ClaimType = strings.TrimSpace(d.Classification.ClaimType)

	d.Extraction.Headline = strings.TrimSpace(d.Extraction.Headline)
	d.Extraction.BodyText = strings.TrimSpace(d.Extraction.BodyText)
	d.Extraction.CTA = strings.TrimSpace(d.Extraction.CTA)
	d.Extraction.Colors = capList(d.Extraction.Colors)
	d.Extraction.Objects = capList(d.Extraction.Objects)

	d.Diagnostics.Weaknesses = capList(d.Diagnostics.Weaknesses)
	d.Diagnostics.Suggestions = capList(d.Diagnostics.Suggestions)
	d.Diagnostics.ClarityScore = clampScore(d.Diagnostics.ClarityScore)
	d.Diagnostics.PersuasionScore = clampScore(d.Diagnostics.PersuasionScore)

	d.Neural.MemoryAnchors = capList(d.Neural.MemoryAnchors)

	return &d, nil
}

// Finalize stamps immutable provenance metadata. It is the single place these
// fields are written; call sites must not set them ad hoc. A digest already
// stamped keeps its original generation time.
func Finalize(d *Digest, promptVersion, modelUsed string) {
	if d.Meta.SchemaVersion == "" {
		d.Meta.SchemaVersion = SchemaVersion
	}
	if d.Meta.PromptVersion == "" {
		d.Meta.PromptVersion = promptVersion
	}
	if d.Meta.ModelUsed == "" {
		d.Meta.ModelUsed = modelUsed
	}
	if d.Meta.GeneratedAt.IsZero() {
		d.Meta.GeneratedAt = time.Now().UTC()
	}
}

// ErrorDigest builds the stub persisted for a job that failed at the given
// pipeline stage, so failures are inspectable alongside real digests.
func ErrorDigest(promptVersion, stage string, cause error) *Digest {
	d := &Digest{
		Meta: Meta{
			Error: &ErrorInfo{Stage: stage, Message: cause.Error()},
		},
	}
	Finalize(d, promptVersion, "")
	return d
}

// Marshal renders the digest for persistence.
func Marshal(d *Digest) (json.RawMessage, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal digest: %w", err)
	}
	return b, nil
}

func capList(items []string) []string {
	out := items[:0]
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == MaxListItems {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
