package embedding

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"testing"

	"adscope/internal/digest"
	"adscope/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestSalientTextOrderAndSkips(t *testing.T) {
	d := &digest.Digest{}
	d.Classification.BrandGuess = "Acme"
	d.Classification.ClaimType = "superiority"
	d.Extraction.Headline = "  Faster than light  "
	d.Strategy.TriggerMechanic = "scarcity"
	// SemioticSubtext, CompetitiveAdvantage and HookAnalysis left empty.

	got := SalientText(d)
	want := "Acme | Faster than light | scarcity | superiority"
	if got != want {
		t.Fatalf("SalientText = %q, want %q", got, want)
	}
}

func TestSalientTextNormalizesComposition(t *testing.T) {
	composed := &digest.Digest{}
	composed.Classification.BrandGuess = "Café" // precomposed e-acute
	decomposed := &digest.Digest{}
	decomposed.Classification.BrandGuess = "Café" // e + combining acute

	if SalientText(composed) != SalientText(decomposed) {
		t.Fatal("NFC-equal inputs produced different salient text")
	}
}

func TestDetectRequiresBaseline(t *testing.T) {
	current := domain.Embedding{1, 0}
	baseline := []domain.Embedding{{0, 1}, {0, 1}}

	decision := Detect(current, baseline)
	if decision.IsAnomaly {
		t.Fatal("anomaly flagged with insufficient baseline")
	}
	if !strings.Contains(decision.Reason, "baseline too small") {
		t.Fatalf("reason = %q", decision.Reason)
	}
}

func TestDetectThresholds(t *testing.T) {
	// A baseline of three identical unit vectors means the mean is that
	// vector, so drift is exactly 1 - cos(angle to it).
	axis := domain.Embedding{1, 0}
	baseline := []domain.Embedding{axis, axis, axis}

	tests := []struct {
		name       string
		similarity float64
		isAnomaly  bool
		severity   string
	}{
		{"aligned", 0.95, false, ""},
		{"moderate drift", 0.70, true, domain.SeverityWarning},
		{"severe drift", 0.40, true, domain.SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cos := tt.similarity
			sin := math.Sqrt(1 - cos*cos)
			decision := Detect(domain.Embedding{cos, sin}, baseline)

			if decision.IsAnomaly != tt.isAnomaly {
				t.Fatalf("IsAnomaly = %v, want %v (score %.3f)", decision.IsAnomaly, tt.isAnomaly, decision.Score)
			}
			if decision.Severity != tt.severity {
				t.Fatalf("Severity = %q, want %q", decision.Severity, tt.severity)
			}
			if want := 1 - cos; math.Abs(decision.Score-want) > 1e-9 {
				t.Fatalf("Score = %v, want %v", decision.Score, want)
			}
			if decision.Dimension != "strategy" {
				t.Fatalf("Dimension = %q", decision.Dimension)
			}
		})
	}
}

func TestDetectMeanBaseline(t *testing.T) {
	// Two orthogonal pairs average to a diagonal; a vector along one axis
	// sits at drift 1 - 1/2 = 0.5 exactly, which is not above critical.
	baseline := []domain.Embedding{{1, 0}, {0, 1}, {1, 0}, {0, 1}}
	decision := Detect(domain.Embedding{1, 0}, baseline)

	if math.Abs(decision.Score-0.5) > 1e-9 {
		t.Fatalf("Score = %v, want 0.5", decision.Score)
	}
	if !decision.IsAnomaly || decision.Severity != domain.SeverityWarning {
		t.Fatalf("decision = %+v, want warning anomaly", decision)
	}
}

func TestEmbedRenormalizes(t *testing.T) {
	client := NewClient(Options{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			var req embeddingRequest
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if len(req.Input) != 1 || req.Input[0] != "Acme | headline" {
				t.Fatalf("unexpected input: %+v", req.Input)
			}
			return &http.Response{
				StatusCode: 200,
				Body:       io.NopCloser(strings.NewReader(`{"data":[{"embedding":[3,4]}]}`)),
			}, nil
		})},
	})

	vec, err := client.Embed(context.Background(), "Acme | headline")
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if n := norm(vec); math.Abs(n-1) > 1e-9 {
		t.Fatalf("vector norm = %v, want 1", n)
	}
	if math.Abs(vec[0]-0.6) > 1e-9 || math.Abs(vec[1]-0.8) > 1e-9 {
		t.Fatalf("vector = %v, want [0.6 0.8]", vec)
	}
}

func TestEmbedRejectsEmptyInput(t *testing.T) {
	client := NewClient(Options{APIKey: "dummy"})
	if _, err := client.Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty input")
	}
}
