// Package citations parses the trailing source list of a generated answer
// and ties each entry back to the retrieved chunks that support it.
package citations

import (
	"regexp"
	"strings"

	"github.com/openparl/plenumqa/internal/metrics"
	"github.com/openparl/plenumqa/internal/qa"
)

// tripleGroup matches "Speaker (Party), Date" with loosely formatted dates.
const tripleGroup = `([^(\n]+?)\s*\(([^)\n]+)\),?\s*(\d{4}-\d{1,2}-\d{1,2})`

// The cascade tries the most structured line shapes first: a generic bullet
// pattern would swallow "Material 3: ..." lines and lose the structure. It
// stops at the first pattern class that yields any match at all.
var lineVariants = []*regexp.Regexp{
	// 1. nested bullet with speaker sub-prefix
	regexp.MustCompile(`(?m)^[ \t]+[-*•]\s*Sprecher:\s*` + tripleGroup),
	// 2. bullet with material prefix
	regexp.MustCompile(`(?m)^[-*•]\s*Material\s+\d+:\s*` + tripleGroup),
	// 3. material prefix without bullet
	regexp.MustCompile(`(?m)^Material\s+\d+:\s*` + tripleGroup),
	// 4. speaker prefix without nesting
	regexp.MustCompile(`(?m)^Sprecher:\s*` + tripleGroup),
	// 5. nested plain bullet
	regexp.MustCompile(`(?m)^[ \t]+[-*•]\s*` + tripleGroup),
	// 6. plain bullet
	regexp.MustCompile(`(?m)^[-*•]\s*` + tripleGroup),
}

var sectionHeading = regexp.MustCompile(`(?mi)^\s*(?:Quellen|Quellenangaben|Sources)\s*:\s*$`)

// tailWindow is how far back Parse scans when no titled source section
// exists.
const tailWindow = 2000

// Parse extracts the citation list from the final answer text. Citations
// keep their in-text order; dates are normalized.
func Parse(answer string) []qa.Citation {
	section := findSection(answer)
	var out []qa.Citation
	for _, re := range lineVariants {
		matches := re.FindAllStringSubmatch(section, -1)
		if len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			out = append(out, qa.Citation{
				Speaker: strings.TrimSpace(m[1]),
				Party:   strings.TrimSpace(m[2]),
				Date:    qa.NormalizeDate(m[3]),
			})
		}
		break
	}
	metrics.CitationsParsed.Observe(float64(len(out)))
	return out
}

// findSection returns the text after the source heading, or the final
// tailWindow characters when no heading exists.
func findSection(answer string) string {
	if loc := sectionHeading.FindStringIndex(answer); loc != nil {
		return answer[loc[1]:]
	}
	runes := []rune(answer)
	if len(runes) > tailWindow {
		return string(runes[len(runes)-tailWindow:])
	}
	return answer
}
