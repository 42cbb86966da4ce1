// Package parties provides an immutable lookup table for parliamentary party
// names. The table is constructed once and passed to the components that need
// it; there is no process-wide registry.
package parties

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// All is the sentinel meaning "no party filter": treating it as a real party
// name in a retrieval filter would return zero results.
const All = "ALL"

// WholeLegislature is the pseudo-party substituted when a question names no
// party at all.
const WholeLegislature = "Gesamtes Parlament"

// Table maps loose party spellings to canonical fraction names.
type Table struct {
	canonical map[string]string
	names     []string
}

// aliasFile is the on-disk shape of a party alias config.
type aliasFile struct {
	Parties []struct {
		Name    string   `yaml:"name"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"parties"`
}

// NewTable builds a table from canonical-name -> aliases. Lookups are
// case-insensitive on the alias side.
func NewTable(aliases map[string][]string) *Table {
	t := &Table{canonical: make(map[string]string)}
	for name, as := range aliases {
		t.names = append(t.names, name)
		t.canonical[strings.ToLower(name)] = name
		for _, a := range as {
			t.canonical[strings.ToLower(a)] = name
		}
	}
	return t
}

// DefaultTable returns the built-in table covering the fractions that appear
// in the transcript corpus.
func DefaultTable() *Table {
	return NewTable(map[string][]string{
		"CDU/CSU":               {"CDU", "CSU", "Union", "CDU CSU"},
		"SPD":                   {"Sozialdemokraten", "Sozialdemokratische Partei"},
		"BÜNDNIS 90/DIE GRÜNEN": {"Grüne", "Die Grünen", "Bündnis 90", "B90/Grüne"},
		"FDP":                   {"Freie Demokraten", "Liberale"},
		"DIE LINKE":             {"Linke", "Linkspartei", "PDS"},
		"AfD":                   {"Alternative für Deutschland"},
	})
}

// LoadTable reads a party alias YAML file and returns the resulting table.
// A missing path falls back to the defaults.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	aliases := make(map[string][]string, len(f.Parties))
	for _, p := range f.Parties {
		aliases[p.Name] = p.Aliases
	}
	return NewTable(aliases), nil
}

// Canonical resolves a loose spelling to the canonical fraction name. Unknown
// names are returned trimmed but otherwise unchanged so that speaker-supplied
// spellings still flow through filters.
func (t *Table) Canonical(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || strings.EqualFold(trimmed, All) {
		return All
	}
	if c, ok := t.canonical[strings.ToLower(trimmed)]; ok {
		return c
	}
	return trimmed
}

// CanonicalAll resolves a slice of party names, dropping duplicates while
// preserving order. An empty input yields the whole-legislature pseudo-party.
func (t *Table) CanonicalAll(names []string) []string {
	if len(names) == 0 {
		return []string{WholeLegislature}
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		c := t.Canonical(n)
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// Known reports whether the name resolves to one of the configured fractions.
func (t *Table) Known(name string) bool {
	_, ok := t.canonical[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names returns the canonical fraction names in the table.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}
