package analysis

import "fmt"

// systemPrompt is the stable instruction prefix. It is sent first in every
// request so providers with response-prefix caching can reuse it across calls.
const systemPrompt = `You are an advertising intelligence analyst. You deconstruct the persuasion
mechanics of an advertisement from its imagery and, when provided, its spoken
narration. You respond with a single JSON object and nothing else: no prose,
no Markdown fences.`

// promptBodies maps prompt versions to the per-request instruction set. The
// version is part of the cache and dedup keys, so changing a body requires a
// new version key.
var promptBodies = map[string]string{
	"v4": `Analyze the attached ad media and produce a JSON object with this shape:
{
  "classification": {"brand_guess", "industry", "ad_format", "claim_type"},
  "extraction": {"headline", "body_text", "cta", "colors" (max 8), "objects" (max 8)},
  "strategy": {"target_audience", "competitive_advantage", "trigger_mechanic", "funnel_stage", "tone"},
  "diagnostics": {"clarity_score" (0-100), "persuasion_score" (0-100), "weaknesses" (max 8), "suggestions" (max 8)},
  "neural_deconstruction": {"hook_analysis", "semiotic_subtext", "emotional_arc", "memory_anchors" (max 8)}
}
Every string value must be specific to this ad. Use "" for anything you cannot
determine. brand_guess and headline are mandatory.`,
}

// promptFor resolves the instruction body for a version, falling back to the
// newest known body so an unknown version degrades rather than fails.
func promptFor(version string) string {
	if body, ok := promptBodies[version]; ok {
		return body
	}
	return promptBodies["v4"]
}

// userPrompt assembles the version body plus the multi-frame preamble.
func userPrompt(promptVersion string, frameCount int, transcript string) string {
	body := promptFor(promptVersion)
	if frameCount > 1 {
		body = fmt.Sprintf("The %d attached images are keyframes sampled from one video ad, in playback order.\n\n%s", frameCount, body)
	}
	if transcript != "" {
		body = fmt.Sprintf("%s\n\nSpoken narration transcript:\n%s", body, transcript)
	}
	return body
}
