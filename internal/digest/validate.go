package digest

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaJSON declares the strict core of the digest contract. Extensions are
// deliberately unconstrained.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["classification", "extraction", "strategy", "meta"],
  "properties": {
    "classification": {
      "type": "object",
      "required": ["brand_guess"],
      "properties": {
        "brand_guess": {"type": "string", "minLength": 1},
        "industry": {"type": "string"},
        "ad_format": {"type": "string"},
        "claim_type": {"type": "string"}
      }
    },
    "extraction": {
      "type": "object",
      "required": ["headline"],
      "properties": {
        "headline": {"type": "string", "minLength": 1},
        "body_text": {"type": "string"},
        "cta": {"type": "string"},
        "transcript": {"type": "string"},
        "colors": {"type": "array", "items": {"type": "string"}, "maxItems": 8},
        "objects": {"type": "array", "items": {"type": "string"}, "maxItems": 8}
      }
    },
    "strategy": {
      "type": "object",
      "properties": {
        "target_audience": {"type": "string"},
        "competitive_advantage": {"type": "string"},
        "trigger_mechanic": {"type": "string"},
        "funnel_stage": {"type": "string"},
        "tone": {"type": "string"}
      }
    },
    "diagnostics": {
      "type": "object",
      "properties": {
        "clarity_score": {"type": "number", "minimum": 0, "maximum": 100},
        "persuasion_score": {"type": "number", "minimum": 0, "maximum": 100},
        "weaknesses": {"type": "array", "items": {"type": "string"}, "maxItems": 8},
        "suggestions": {"type": "array", "items": {"type": "string"}, "maxItems": 8}
      }
    },
    "neural_deconstruction": {
      "type": "object",
      "properties": {
        "hook_analysis": {"type": "string"},
        "semiotic_subtext": {"type": "string"},
        "emotional_arc": {"type": "string"},
        "memory_anchors": {"type": "array", "items": {"type": "string"}, "maxItems": 8}
      }
    },
    "meta": {
      "type": "object",
      "required": ["schema_version", "prompt_version", "generated_at"],
      "properties": {
        "schema_version": {"type": "string", "minLength": 1},
        "prompt_version": {"type": "string", "minLength": 1},
        "generated_at": {"type": "string"}
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiled() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("digest.json", strings.NewReader(schemaJSON)); err != nil {
			compileErr = err
			return
		}
		compiledSchema, compileErr = compiler.Compile("digest.json")
	})
	return compiledSchema, compileErr
}

// Validate runs the digest through the declared schema and returns the flat
// list of violations, empty when the digest conforms. A validation failure is
// not fatal to the job: the caller persists the best-effort digest under
// needs_review with this list retained.
func Validate(d *Digest) []string {
	schema, err := compiled()
	if err != nil {
		return []string{"schema compile: " + err.Error()}
	}

	b, err := json.Marshal(d)
	if err != nil {
		return []string{"marshal for validation: " + err.Error()}
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return []string{"unmarshal for validation: " + err.Error()}
	}

	if err := schema.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			ve = verr
		}
		if ve == nil {
			return []string{err.Error()}
		}
		return flattenValidationError(ve)
	}
	return nil
}

func flattenValidationError(ve *jsonschema.ValidationError) []string {
	var out []string
	// Leaf causes carry the actionable message; the root repeats them.
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + ve.Message}
	}
	for _, cause := range ve.Causes {
		out = append(out, flattenValidationError(cause)...)
	}
	return out
}
