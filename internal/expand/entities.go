package expand

import (
	"regexp"
	"strings"
)

// Rule-based entity extraction over sub-question text. Lexical query
// expansion reliably loses rare proper nouns; an exact-match query per
// entity recovers them.

var (
	// Quoted program names: German and straight quotes.
	reQuoted = regexp.MustCompile(`[„"]([^„""]{3,60})["“"]`)

	// Multi-letter acronyms (EASY, BAMF, UNHCR). Two letters upward, all caps.
	reAcronym = regexp.MustCompile(`\b[A-ZÄÖÜ]{2,}\b`)

	// Named instruments with a roman-numeral suffix (Asylpaket II).
	reRomanInstrument = regexp.MustCompile(`\b([A-ZÄÖÜ][a-zäöüß]*(?:paket|gesetz|abkommen|programm))\s+(I{1,3}|IV|V|VI{0,3}|IX|X)\b`)

	// "sichere Herkunftsstaaten" and friends.
	reSafeNoun = regexp.MustCompile(`\b[Ss]icher(?:e|er|en)\s+([A-ZÄÖÜ][a-zäöüß]+)\b`)

	// Country names by suffix.
	reCountrySuffix = regexp.MustCompile(`\b[A-ZÄÖÜ][a-zäöüß]+(?:land|stan|ien)\b`)

	// Roman numerals standing alone are instrument suffixes, not acronyms.
	reRoman = regexp.MustCompile(`^[IVX]+$`)
)

// countryNames catches the frequent country mentions the suffix patterns
// miss.
var countryNames = map[string]struct{}{
	"Türkei":      {},
	"Irak":        {},
	"Iran":        {},
	"Afghanistan": {},
	"Eritrea":     {},
	"Kosovo":      {},
	"Marokko":     {},
	"Ungarn":      {},
	"Schweiz":     {},
	"Österreich":  {},
}

// nonEntities are capitalized words the patterns would otherwise flag.
var nonEntities = map[string]struct{}{
	"Deutschland": {}, // every speech mentions it; useless as a filter
	"Jahr":        {},
	"Thema":       {},
}

// ExtractEntities returns the proper-noun entities found in text, in
// first-occurrence order, deduplicated.
func ExtractEntities(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(e string) {
		e = strings.TrimSpace(e)
		if e == "" {
			return
		}
		if _, skip := nonEntities[e]; skip {
			return
		}
		if _, dup := seen[e]; dup {
			return
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}

	for _, m := range reQuoted.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range reRomanInstrument.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range reSafeNoun.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range reCountrySuffix.FindAllString(text, -1) {
		add(m)
	}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	}) {
		if _, ok := countryNames[w]; ok {
			add(w)
		}
	}
	for _, m := range reAcronym.FindAllString(text, -1) {
		if reRoman.MatchString(m) {
			continue
		}
		add(m)
	}
	return out
}
