package parties

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalResolvesAliases(t *testing.T) {
	table := DefaultTable()

	assert.Equal(t, "CDU/CSU", table.Canonical("CDU"))
	assert.Equal(t, "CDU/CSU", table.Canonical("union"))
	assert.Equal(t, "BÜNDNIS 90/DIE GRÜNEN", table.Canonical("die grünen"))
	assert.Equal(t, "DIE LINKE", table.Canonical("Linkspartei"))
}

func TestCanonicalUnknownPassesThroughTrimmed(t *testing.T) {
	table := DefaultTable()
	assert.Equal(t, "Piraten", table.Canonical("  Piraten  "))
}

func TestCanonicalAllSentinel(t *testing.T) {
	table := DefaultTable()
	assert.Equal(t, All, table.Canonical("ALL"))
	assert.Equal(t, All, table.Canonical("all"))
	assert.Equal(t, All, table.Canonical(""))
}

func TestCanonicalAllEmptyYieldsWholeLegislature(t *testing.T) {
	table := DefaultTable()
	assert.Equal(t, []string{WholeLegislature}, table.CanonicalAll(nil))
}

func TestCanonicalAllDeduplicatesPreservingOrder(t *testing.T) {
	table := DefaultTable()
	got := table.CanonicalAll([]string{"SPD", "CDU", "Union", "spd", "FDP"})
	assert.Equal(t, []string{"SPD", "CDU/CSU", "FDP"}, got)
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parties.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`parties:
  - name: CDU/CSU
    aliases: [CDU, CSU]
  - name: SPD
    aliases: []
`), 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "CDU/CSU", table.Canonical("csu"))
	assert.True(t, table.Known("SPD"))
	assert.False(t, table.Known("FDP"))
}

func TestLoadTableEmptyPathFallsBack(t *testing.T) {
	table, err := LoadTable("")
	require.NoError(t, err)
	assert.True(t, table.Known("AfD"))
}
