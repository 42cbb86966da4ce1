package vectordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openparl/plenumqa/internal/parties"
)

func mustClauses(t *testing.T, f map[string]interface{}) []map[string]interface{} {
	t.Helper()
	require.NotNil(t, f)
	raw, ok := f["must"].([]map[string]interface{})
	require.True(t, ok, "filter must carry a must clause list")
	return raw
}

func TestFilterSpecEmpty(t *testing.T) {
	assert.Nil(t, FilterSpec{}.Build())
}

func TestFilterSpecSpecificYearsWinOverRange(t *testing.T) {
	// 2017 and 2019 extracted as discrete years: a range filter would
	// incorrectly pull in 2018.
	spec := FilterSpec{Years: []int{2017, 2019}, StartYear: 2017, EndYear: 2019}
	clauses := mustClauses(t, spec.Build())
	require.Len(t, clauses, 1)

	assert.Equal(t, "year", clauses[0]["key"])
	match, ok := clauses[0]["match"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{2017, 2019}, match["any"])
	assert.NotContains(t, clauses[0], "range")
}

func TestFilterSpecRange(t *testing.T) {
	clauses := mustClauses(t, FilterSpec{StartYear: 2015, EndYear: 2020}.Build())
	require.Len(t, clauses, 1)
	rng, ok := clauses[0]["range"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2015, rng["gte"])
	assert.Equal(t, 2020, rng["lte"])
}

func TestFilterSpecSingleYearRange(t *testing.T) {
	clauses := mustClauses(t, FilterSpec{StartYear: 2018}.Build())
	require.Len(t, clauses, 1)
	rng := clauses[0]["range"].(map[string]interface{})
	assert.Equal(t, 2018, rng["gte"])
	assert.Equal(t, 2018, rng["lte"])
}

func TestFilterSpecPartySentinelOmitted(t *testing.T) {
	for _, p := range []string{parties.All, parties.WholeLegislature} {
		f := FilterSpec{StartYear: 2019, Party: p}.Build()
		clauses := mustClauses(t, f)
		for _, c := range clauses {
			assert.NotEqual(t, "party", c["key"], "party clause must be omitted for %q", p)
		}
	}
}

func TestFilterSpecPartyAndSpeaker(t *testing.T) {
	spec := FilterSpec{Party: "SPD", Speaker: "Jane Doe"}
	clauses := mustClauses(t, spec.Build())
	require.Len(t, clauses, 2)

	assert.Equal(t, "party", clauses[0]["key"])
	assert.Equal(t, map[string]interface{}{"value": "SPD"}, clauses[0]["match"])
	assert.Equal(t, "speaker", clauses[1]["key"])
	assert.Equal(t, map[string]interface{}{"value": "Jane Doe"}, clauses[1]["match"])
}

func TestFilterSpecSpeakerSetWinsOverEquality(t *testing.T) {
	spec := FilterSpec{Speakers: []string{"Jane Doe", "Max Mustermann"}, Speaker: "ignoriert"}
	clauses := mustClauses(t, spec.Build())
	require.Len(t, clauses, 1)

	assert.Equal(t, "speaker", clauses[0]["key"])
	assert.Equal(t,
		map[string]interface{}{"any": []interface{}{"Jane Doe", "Max Mustermann"}},
		clauses[0]["match"])
}
