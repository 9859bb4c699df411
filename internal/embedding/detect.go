package embedding

import (
	"fmt"

	"adscope/internal/domain"
)

const (
	// MinBaselineSize is how many prior digests a brand needs before drift
	// scoring is meaningful. Below it every ad reads as "new direction".
	MinBaselineSize = 3

	anomalyThreshold  = 0.25
	criticalThreshold = 0.5
)

// Detect scores how far the current ad drifts from the brand's strategic
// baseline. The baseline is the mean of the prior vectors; with all vectors
// unit-norm the drift score is 1 minus the dot product against that mean.
func Detect(current domain.Embedding, baseline []domain.Embedding) domain.AnomalyDecision {
	if len(baseline) < MinBaselineSize {
		return domain.AnomalyDecision{
			IsAnomaly: false,
			Reason:    fmt.Sprintf("baseline too small (%d < %d)", len(baseline), MinBaselineSize),
			Dimension: "strategy",
		}
	}

	mean := meanVector(baseline, len(current))
	score := 1 - dot(current, mean)

	decision := domain.AnomalyDecision{
		Score:     score,
		Dimension: "strategy",
	}
	switch {
	case score > criticalThreshold:
		decision.IsAnomaly = true
		decision.Severity = domain.SeverityCritical
		decision.Reason = fmt.Sprintf("strategic drift %.3f exceeds critical threshold %.2f", score, criticalThreshold)
	case score > anomalyThreshold:
		decision.IsAnomaly = true
		decision.Severity = domain.SeverityWarning
		decision.Reason = fmt.Sprintf("strategic drift %.3f exceeds threshold %.2f", score, anomalyThreshold)
	default:
		decision.Reason = fmt.Sprintf("within baseline (drift %.3f)", score)
	}
	return decision
}

func meanVector(vectors []domain.Embedding, dim int) domain.Embedding {
	mean := make(domain.Embedding, dim)
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			mean[i] += v[i]
		}
	}
	n := float64(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

func dot(a, b domain.Embedding) float64 {
	var sum float64
	for i := 0; i < len(a) && i < len(b); i++ {
		sum += a[i] * b[i]
	}
	return sum
}
