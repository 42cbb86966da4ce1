package citations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openparl/plenumqa/internal/qa"
)

func chunkWith(id, speaker, date string) qa.Chunk {
	return qa.Chunk{ID: id, Metadata: qa.ChunkMetadata{Speaker: speaker, Party: "SPD", Date: date}}
}

func TestMatchNormalizedDateAndSubstringSpeaker(t *testing.T) {
	// citation date is unpadded, chunk speaker carries a qualifier
	cits := []qa.Citation{{Speaker: "Jane Doe", Party: "SPD", Date: "2015-5-3"}}
	results := []qa.RetrievalResult{{
		Chunks: []qa.Chunk{
			chunkWith("c1", "Jane Doe (Berlin)", "2015-05-03"),
			chunkWith("c2", "Jane Doe (Berlin)", "2016-05-03"), // wrong date
			chunkWith("c3", "John Smith", "2015-05-03"),        // wrong speaker
		},
	}}

	matched := Match(cits, results)
	require.Len(t, matched, 1)
	assert.True(t, matched[0].Matched)
	require.Len(t, matched[0].Chunks, 1)
	assert.Equal(t, "c1", matched[0].Chunks[0].ID)
}

func TestMatchCaseInsensitive(t *testing.T) {
	cits := []qa.Citation{{Speaker: "jane doe", Date: "2015-05-03"}}
	results := []qa.RetrievalResult{{Chunks: []qa.Chunk{chunkWith("c1", "JANE DOE", "2015-05-03")}}}
	matched := Match(cits, results)
	assert.True(t, matched[0].Matched)
}

func TestMatchUnmatchedFlaggedNotDropped(t *testing.T) {
	cits := []qa.Citation{
		{Speaker: "Jane Doe", Date: "2015-05-03"},
		{Speaker: "Niemand Bekanntes", Date: "1999-01-01"},
	}
	results := []qa.RetrievalResult{{Chunks: []qa.Chunk{chunkWith("c1", "Jane Doe", "2015-05-03")}}}

	matched := Match(cits, results)
	require.Len(t, matched, 2, "unmatched citations stay in the list")
	assert.True(t, matched[0].Matched)
	assert.False(t, matched[1].Matched)
	assert.Empty(t, matched[1].Chunks)
}

func TestMatchCountsAcrossSubQuestionsWithoutDuplicates(t *testing.T) {
	shared := chunkWith("c1", "Jane Doe", "2015-05-03")
	cits := []qa.Citation{{Speaker: "Jane Doe", Date: "2015-05-03"}}
	results := []qa.RetrievalResult{
		{Chunks: []qa.Chunk{shared}},
		{Chunks: []qa.Chunk{shared, chunkWith("c2", "Jane Doe", "2015-05-03")}},
	}
	matched := Match(cits, results)
	require.Len(t, matched[0].Chunks, 2, "same chunk id counted once across sub-questions")
}
