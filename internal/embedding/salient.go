package embedding

import (
	"strings"

	textnorm "golang.org/x/text/unicode/norm"

	"adscope/internal/digest"
)

// SalientText assembles the strategy-bearing fields of a digest into the
// deterministic string that gets embedded. Field order is fixed and empty
// fields are skipped, so two digests with the same strategic content embed
// identically. Text is NFC-normalized for the same reason: visually identical
// copy must not drift apart on Unicode composition.
func SalientText(d *digest.Digest) string {
	fields := []string{
		d.Classification.BrandGuess,
		d.Extraction.Headline,
		d.Neural.SemioticSubtext,
		d.Strategy.CompetitiveAdvantage,
		d.Strategy.TriggerMechanic,
		d.Classification.ClaimType,
		d.Neural.HookAnalysis,
	}

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		parts = append(parts, textnorm.NFC.String(f))
	}
	return strings.Join(parts, " | ")
}
