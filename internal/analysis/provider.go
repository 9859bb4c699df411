package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Tier selects the quality/cost level serving a request.
type Tier string

const (
	TierStandard Tier = "standard"
	TierDeep     Tier = "deep"
)

// Input is one image handed to a provider.
type Input struct {
	Data     []byte
	MimeType string
	Label    string
}

// Request is one analysis call. Multiple inputs mean video keyframes in
// playback order; Transcript, when present, is folded into the instruction so
// the model sees the narration alongside the frames.
type Request struct {
	Inputs        []Input
	PromptVersion string
	Tier          Tier
	Transcript    string
}

// Provider sends media plus the analysis instruction set to one model vendor
// and returns the raw structured payload.
type Provider interface {
	Analyze(ctx context.Context, req Request) (json.RawMessage, error)
	Model() string
}

// Provider failure reasons, surfaced so the worker can distinguish a missing
// configuration from a flaky network from a model talking nonsense.
const (
	ReasonNoProvider  = "no_provider"
	ReasonNetwork     = "network"
	ReasonUnparsable  = "unparsable_response"
	ReasonBadStatus   = "bad_status"
	ReasonEmptyResult = "empty_result"
)

// ProviderError is the typed failure for gateway and provider calls.
type ProviderError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// stripFences removes a Markdown code fence wrapper some providers insist on
// putting around JSON responses.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Language tag on the opening fence ("json", "JSON", ...).
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseJSONPayload strips fences and confirms the content is a JSON object,
// converting parse failures into a typed error instead of a generic one.
func parseJSONPayload(provider, content string) (json.RawMessage, error) {
	cleaned := stripFences(content)
	if cleaned == "" {
		return nil, &ProviderError{Provider: provider, Reason: ReasonEmptyResult}
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &probe); err != nil {
		return nil, &ProviderError{Provider: provider, Reason: ReasonUnparsable, Err: err}
	}
	return json.RawMessage(cleaned), nil
}
