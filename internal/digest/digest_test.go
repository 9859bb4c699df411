package digest

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func validRaw() json.RawMessage {
	return json.RawMessage(`{
		"classification": {"brand_guess": "Acme", "claim_type": "superiority"},
		"extraction": {"headline": "Run faster", "cta": "Buy now"},
		"strategy": {"trigger_mechanic": "scarcity", "competitive_advantage": "lighter sole"},
		"neural_deconstruction": {"hook_analysis": "speed identity", "semiotic_subtext": "freedom"},
		"diagnostics": {"clarity_score": 80, "persuasion_score": 72}
	}`)
}

func TestNormalizeTruncatesOverlongLists(t *testing.T) {
	items := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, "item")
	}
	raw, _ := json.Marshal(map[string]any{
		"classification": map[string]any{"brand_guess": "Acme"},
		"extraction":     map[string]any{"headline": "H", "objects": items},
		"diagnostics":    map[string]any{"weaknesses": items},
	})

	d, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if len(d.Extraction.Objects) != MaxListItems {
		t.Fatalf("Objects length = %d, want %d", len(d.Extraction.Objects), MaxListItems)
	}
	if len(d.Diagnostics.Weaknesses) != MaxListItems {
		t.Fatalf("Weaknesses length = %d, want %d", len(d.Diagnostics.Weaknesses), MaxListItems)
	}
}

func TestNormalizeTrimsAndClamps(t *testing.T) {
	raw := json.RawMessage(`{
		"classification": {"brand_guess": "  Acme  "},
		"extraction": {"headline": " Run faster ", "colors": ["", "  red  "]},
		"diagnostics": {"clarity_score": 150, "persuasion_score": -3}
	}`)
	d, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if d.Classification.BrandGuess != "Acme" {
		t.Fatalf("BrandGuess = %q", d.Classification.BrandGuess)
	}
	if len(d.Extraction.Colors) != 1 || d.Extraction.Colors[0] != "red" {
		t.Fatalf("Colors = %#v, want [red]", d.Extraction.Colors)
	}
	if d.Diagnostics.ClarityScore != 100 || d.Diagnostics.PersuasionScore != 0 {
		t.Fatalf("scores = %v/%v, want 100/0", d.Diagnostics.ClarityScore, d.Diagnostics.PersuasionScore)
	}
}

func TestNormalizeRejectsNonObject(t *testing.T) {
	if _, err := Normalize(json.RawMessage(`"just a string"`)); err == nil {
		t.Fatal("Normalize accepted a non-object payload")
	}
}

func TestNormalizeKeepsExtensions(t *testing.T) {
	raw := json.RawMessage(`{
		"classification": {"brand_guess": "Acme"},
		"extraction": {"headline": "H"},
		"extensions": {"experimental_axis": {"value": 3}}
	}`)
	d, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if _, ok := d.Extensions["experimental_axis"]; !ok {
		t.Fatal("extension field dropped during normalization")
	}
}

func TestFinalizeStampsOnce(t *testing.T) {
	d, err := Normalize(validRaw())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	Finalize(d, "v4", "gemini-2.5-flash")
	if d.Meta.SchemaVersion != SchemaVersion {
		t.Fatalf("SchemaVersion = %q, want %q", d.Meta.SchemaVersion, SchemaVersion)
	}
	if d.Meta.PromptVersion != "v4" || d.Meta.ModelUsed != "gemini-2.5-flash" {
		t.Fatalf("provenance = %q/%q", d.Meta.PromptVersion, d.Meta.ModelUsed)
	}
	first := d.Meta.GeneratedAt
	if first.IsZero() {
		t.Fatal("GeneratedAt not stamped")
	}

	time.Sleep(5 * time.Millisecond)
	Finalize(d, "v5", "other-model")
	if d.Meta.PromptVersion != "v4" || !d.Meta.GeneratedAt.Equal(first) {
		t.Fatal("Finalize overwrote existing provenance")
	}
}

func TestValidateAcceptsFinalizedDigest(t *testing.T) {
	d, err := Normalize(validRaw())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	Finalize(d, "v4", "gemini-2.5-flash")
	if errs := Validate(d); len(errs) != 0 {
		t.Fatalf("Validate returned errors for valid digest: %v", errs)
	}
}

func TestValidateReportsMissingRequiredFields(t *testing.T) {
	d, err := Normalize(json.RawMessage(`{"classification": {"brand_guess": ""}, "extraction": {}}`))
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	Finalize(d, "v4", "gemini-2.5-flash")
	errs := Validate(d)
	if len(errs) == 0 {
		t.Fatal("Validate passed a digest missing required fields")
	}
	joined := strings.Join(errs, "\n")
	if !strings.Contains(joined, "headline") && !strings.Contains(joined, "brand_guess") {
		t.Fatalf("validation errors do not mention missing fields: %v", errs)
	}
}

func TestErrorDigestEmbedsFailure(t *testing.T) {
	d := ErrorDigest("v4", "acquire", errors.New("media unreachable"))
	if d.Meta.Error == nil || d.Meta.Error.Stage != "acquire" {
		t.Fatalf("error info = %#v", d.Meta.Error)
	}
	if d.Meta.Error.Message != "media unreachable" {
		t.Fatalf("error message = %q", d.Meta.Error.Message)
	}
	if d.Meta.SchemaVersion != SchemaVersion || d.Meta.GeneratedAt.IsZero() {
		t.Fatal("error digest missing provenance stamp")
	}
}
