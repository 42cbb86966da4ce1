package citations

import (
	"strings"

	"github.com/openparl/plenumqa/internal/metrics"
	"github.com/openparl/plenumqa/internal/qa"
)

// Match ties every parsed citation to the retrieved chunks supporting it.
// A chunk supports a citation when the normalized dates are equal and the
// citation's speaker is contained case-insensitively in the chunk's recorded
// speaker; the containment direction handles speakers recorded with a
// parenthetical qualifier ("Jane Doe (Berlin)").
// Unmatched citations are flagged, never dropped.
func Match(cits []qa.Citation, results []qa.RetrievalResult) []qa.MatchedCitation {
	out := make([]qa.MatchedCitation, 0, len(cits))
	for _, c := range cits {
		mc := qa.MatchedCitation{Citation: c}
		date := qa.NormalizeDate(c.Date)
		speaker := strings.ToLower(strings.TrimSpace(c.Speaker))

		seen := make(map[string]struct{})
		for _, res := range results {
			for _, ch := range res.Chunks {
				if _, dup := seen[ch.ID]; dup {
					continue
				}
				if qa.NormalizeDate(ch.Metadata.Date) != date {
					continue
				}
				if !strings.Contains(strings.ToLower(ch.Metadata.Speaker), speaker) {
					continue
				}
				seen[ch.ID] = struct{}{}
				mc.Chunks = append(mc.Chunks, ch)
			}
		}
		mc.Matched = len(mc.Chunks) > 0
		if !mc.Matched {
			metrics.CitationsUnmatched.Inc()
		}
		out = append(out, mc)
	}
	return out
}
