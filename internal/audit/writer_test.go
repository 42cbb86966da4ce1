package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/pipeline"
	"github.com/openparl/plenumqa/internal/qa"
)

func sampleState() *pipeline.State {
	return &pipeline.State{
		RunID:       "run-42",
		Question:    "Wie stand die SPD zur Migration?",
		FinalAnswer: "Antwort.\n\nQuellen:\n- Jane Doe (SPD), 2015-05-03",
		Trail: []pipeline.StageStep{
			{Stage: "classify", Next: "plan"},
			{Stage: "plan", Next: "decompose"},
			{Stage: "cite"},
		},
		SubQuestions: []qa.SubQuestion{{Text: "q1"}, {Text: "q2"}},
		Results: []qa.RetrievalResult{
			{Chunks: []qa.Chunk{{ID: "c1"}, {ID: "c2"}}},
			{Chunks: []qa.Chunk{{ID: "c3"}}},
		},
		Citations: []qa.MatchedCitation{
			{
				Citation: qa.Citation{Speaker: "Jane Doe", Party: "SPD", Date: "2015-05-03"},
				Chunks:   []qa.Chunk{{ID: "c1"}, {ID: "c3"}},
				Matched:  true,
			},
			{
				Citation: qa.Citation{Speaker: "Max Mustermann", Party: "FDP", Date: "2019-01-01"},
				Matched:  false,
			},
		},
	}
}

func TestWriteRunProducesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, zap.NewNop())

	require.NoError(t, w.WriteRun(sampleState(), "cite"))

	runDir := filepath.Join(dir, "run-42")
	for _, f := range []string{"transcript.md", "state.json", "state.meta.json", "analysis.md"} {
		_, err := os.Stat(filepath.Join(runDir, f))
		assert.NoError(t, err, f)
	}
}

func TestTranscriptCarriesStageTrail(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, zap.NewNop())
	require.NoError(t, w.WriteRun(sampleState(), "cite"))

	raw, err := os.ReadFile(filepath.Join(dir, "run-42", "transcript.md"))
	require.NoError(t, err)
	content := string(raw)

	assert.Contains(t, content, "## Stage: classify\n-> next: plan\n")
	assert.Contains(t, content, "## Stage: plan\n-> next: decompose\n")
	assert.Contains(t, content, "## Stage: cite\n")
	// sections come in execution order
	assert.Less(t, strings.Index(content, "## Stage: classify"), strings.Index(content, "## Stage: cite"))
}

func TestAnalysisTokenContract(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, zap.NewNop())
	require.NoError(t, w.WriteRun(sampleState(), "cite"))

	raw, err := os.ReadFile(filepath.Join(dir, "run-42", "analysis.md"))
	require.NoError(t, err)
	content := string(raw)

	// these tokens are consumed by downstream tooling, byte for byte
	assert.Contains(t, content, "SUBQUESTIONS_TOTAL: 2\n")
	assert.Contains(t, content, "CHUNKS_TOTAL: 3\n")
	assert.Contains(t, content, "CITATIONS_TOTAL: 2\n")
	assert.Contains(t, content, "CITATION 1: Jane Doe (SPD), 2015-05-03 -> [MATCHED x2]\n")
	assert.Contains(t, content, "CITATION 2: Max Mustermann (FDP), 2019-01-01 -> [UNMATCHED]\n")
}

func TestStateJSONRoundTrips(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, zap.NewNop())
	require.NoError(t, w.WriteRun(sampleState(), "cite"))

	raw, err := os.ReadFile(filepath.Join(dir, "run-42", "state.json"))
	require.NoError(t, err)

	var got pipeline.State
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "run-42", got.RunID)
	assert.Len(t, got.Citations, 2)
}

func TestMetaCounts(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, zap.NewNop())
	s := sampleState()
	s.ErrorType = pipeline.ErrNoMaterial
	require.NoError(t, w.WriteRun(s, "fail"))

	raw, err := os.ReadFile(filepath.Join(dir, "run-42", "state.meta.json"))
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "fail", m["terminal"])
	assert.Equal(t, "NO_MATERIAL", m["error_type"])
	assert.Equal(t, float64(3), m["chunks"])
}
