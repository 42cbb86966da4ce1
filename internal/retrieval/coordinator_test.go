package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/expand"
	"github.com/openparl/plenumqa/internal/llmclient"
	"github.com/openparl/plenumqa/internal/qa"
	"github.com/openparl/plenumqa/internal/vectordb"
)

type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

type fakeSearcher struct {
	byQueryLen map[int][]qa.Chunk // keyed on vec[0] so each query maps to fixed results
	gotSpecs   []vectordb.FilterSpec
	gotLimits  []int
	err        error
}

func (f *fakeSearcher) Search(_ context.Context, vec []float32, spec vectordb.FilterSpec, limit int) ([]qa.Chunk, error) {
	f.gotSpecs = append(f.gotSpecs, spec)
	f.gotLimits = append(f.gotLimits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.byQueryLen[int(vec[0])], nil
}

func chunk(id string, year int) qa.Chunk {
	return qa.Chunk{ID: id, Text: "t-" + id, Metadata: qa.ChunkMetadata{Year: year}}
}

func TestRetrieveMergesFirstOccurrenceWins(t *testing.T) {
	q1, q2 := "kurze Anfrage eins", "eine andere Anfrage"
	first := chunk("a", 2017)
	first.Score = 0.9
	duplicate := chunk("a", 2017)
	duplicate.Score = 0.2

	s := &fakeSearcher{byQueryLen: map[int][]qa.Chunk{
		len(q1): {first, chunk("b", 2017)},
		len(q2): {duplicate, chunk("c", 2019)},
	}}
	c := New(Config{}, &fakeEmbedder{}, s, nil, zap.NewNop())

	exp := expand.Expansion{
		SubQuestion: qa.SubQuestion{Text: "x"},
		Variants:    []string{q1, q2},
	}
	batch, err := c.Retrieve(context.Background(), qa.Parameters{}, []expand.Expansion{exp}, 0)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)

	res := batch.Results[0]
	require.Len(t, res.Chunks, 3)
	assert.Equal(t, 0.9, res.Chunks[0].Score, "first occurrence wins over later duplicates")

	// year histogram sums to chunk count
	sum := 0
	for _, n := range res.YearDist {
		sum += n
	}
	assert.Equal(t, len(res.Chunks), sum)
	assert.Equal(t, 2, res.YearDist[2017])
	assert.Equal(t, 1, res.YearDist[2019])
	assert.False(t, batch.NoMaterial)
}

func TestRetrieveNoMaterialOnlyWhenUnionEmpty(t *testing.T) {
	q := "irgendeine Suchanfrage"
	s := &fakeSearcher{byQueryLen: map[int][]qa.Chunk{len(q): {chunk("a", 2015)}}}
	c := New(Config{}, &fakeEmbedder{}, s, nil, zap.NewNop())

	empty := expand.Expansion{SubQuestion: qa.SubQuestion{Text: "leer"}, Variants: []string{"zzz"}}
	full := expand.Expansion{SubQuestion: qa.SubQuestion{Text: "voll"}, Variants: []string{q}}

	batch, err := c.Retrieve(context.Background(), qa.Parameters{}, []expand.Expansion{empty, full}, 0)
	require.NoError(t, err)
	assert.False(t, batch.NoMaterial, "one empty sub-question must not abort the batch")
	assert.Empty(t, batch.Results[0].Chunks)
	assert.Len(t, batch.Results[1].Chunks, 1)

	s2 := &fakeSearcher{byQueryLen: map[int][]qa.Chunk{}}
	c2 := New(Config{}, &fakeEmbedder{}, s2, nil, zap.NewNop())
	batch2, err := c2.Retrieve(context.Background(), qa.Parameters{}, []expand.Expansion{empty}, 0)
	require.NoError(t, err)
	assert.True(t, batch2.NoMaterial)
}

func TestRetrieveSurvivesFailedSubQuestion(t *testing.T) {
	c := New(Config{}, &fakeEmbedder{err: errors.New("embed down")}, &fakeSearcher{}, nil, zap.NewNop())
	exp := expand.Expansion{SubQuestion: qa.SubQuestion{Text: "x"}, Variants: []string{"eine Anfrage"}}

	batch, err := c.Retrieve(context.Background(), qa.Parameters{}, []expand.Expansion{exp}, 0)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "failed", batch.Results[0].RetrievalMethod)
	assert.True(t, batch.NoMaterial)
}

func TestRetrieveTopKOverride(t *testing.T) {
	q := "eine Anfrage mit Limit"
	s := &fakeSearcher{byQueryLen: map[int][]qa.Chunk{len(q): {chunk("a", 2015)}}}
	c := New(Config{TopKPerQuery: 10}, &fakeEmbedder{}, s, nil, zap.NewNop())
	exp := expand.Expansion{SubQuestion: qa.SubQuestion{Text: "x"}, Variants: []string{q}}

	_, err := c.Retrieve(context.Background(), qa.Parameters{}, []expand.Expansion{exp}, 0)
	require.NoError(t, err)
	_, err = c.Retrieve(context.Background(), qa.Parameters{}, []expand.Expansion{exp}, 3)
	require.NoError(t, err)

	require.Len(t, s.gotLimits, 2)
	assert.Equal(t, 10, s.gotLimits[0], "configured default applies")
	assert.Equal(t, 3, s.gotLimits[1], "positive override wins")
}

func TestBuildFilterPriorities(t *testing.T) {
	// bound target year wins
	spec := buildFilter(qa.Parameters{
		TimeRange: qa.TimeRange{StartYear: 2010, EndYear: 2020},
	}, qa.SubQuestion{TargetYear: 2017, TargetParty: "SPD"})
	assert.Equal(t, []int{2017}, spec.Years)
	assert.Zero(t, spec.StartYear)
	assert.Equal(t, "SPD", spec.Party)

	// explicit discrete set wins over the range
	spec = buildFilter(qa.Parameters{
		TimeRange: qa.TimeRange{StartYear: 2017, EndYear: 2019, SpecificYears: []int{2017, 2019}},
	}, qa.SubQuestion{})
	assert.Equal(t, []int{2017, 2019}, spec.Years)
	assert.Zero(t, spec.StartYear)

	// range only as a fallback
	spec = buildFilter(qa.Parameters{
		TimeRange: qa.TimeRange{StartYear: 2015, EndYear: 2018},
	}, qa.SubQuestion{})
	assert.Empty(t, spec.Years)
	assert.Equal(t, 2015, spec.StartYear)
	assert.Equal(t, 2018, spec.EndYear)

	// single speaker becomes an equality filter
	spec = buildFilter(qa.Parameters{Speakers: []string{"Jane Doe"}}, qa.SubQuestion{})
	assert.Equal(t, "Jane Doe", spec.Speaker)
	assert.Empty(t, spec.Speakers)

	// several speakers carry the whole set
	spec = buildFilter(qa.Parameters{Speakers: []string{"Jane Doe", "Max Mustermann"}}, qa.SubQuestion{})
	assert.Empty(t, spec.Speaker)
	assert.Equal(t, []string{"Jane Doe", "Max Mustermann"}, spec.Speakers)
}

type fakeReranker struct{ ids []string }

func (f *fakeReranker) Rerank(_ context.Context, _ string, _ []llmclient.RerankDocument, _ int) ([]string, error) {
	return f.ids, nil
}

func TestRerankReordersAndKeepsTail(t *testing.T) {
	q := "eine Suchanfrage"
	s := &fakeSearcher{byQueryLen: map[int][]qa.Chunk{
		len(q): {chunk("a", 2015), chunk("b", 2015), chunk("c", 2016)},
	}}
	c := New(Config{}, &fakeEmbedder{}, s, &fakeReranker{ids: []string{"c", "a"}}, zap.NewNop())

	exp := expand.Expansion{SubQuestion: qa.SubQuestion{Text: "x"}, Variants: []string{q}}
	batch, err := c.Retrieve(context.Background(), qa.Parameters{}, []expand.Expansion{exp}, 0)
	require.NoError(t, err)

	res := batch.Results[0]
	require.Len(t, res.Chunks, 3)
	assert.Equal(t, "c", res.Chunks[0].ID)
	assert.Equal(t, "a", res.Chunks[1].ID)
	assert.Equal(t, "b", res.Chunks[2].ID, "unmentioned chunks keep relative order at the tail")
	assert.Equal(t, "vector_filtered+rerank", res.RetrievalMethod)
}

func TestReconfigureAppliesOnNextBatch(t *testing.T) {
	q := "eine Anfrage mit Limit"
	s := &fakeSearcher{byQueryLen: map[int][]qa.Chunk{len(q): {chunk("a", 2015)}}}
	c := New(Config{TopKPerQuery: 10}, &fakeEmbedder{}, s, nil, zap.NewNop())
	exp := expand.Expansion{SubQuestion: qa.SubQuestion{Text: "x"}, Variants: []string{q}}

	_, err := c.Retrieve(context.Background(), qa.Parameters{}, []expand.Expansion{exp}, 0)
	require.NoError(t, err)

	c.Reconfigure(Config{TopKPerQuery: 4})
	_, err = c.Retrieve(context.Background(), qa.Parameters{}, []expand.Expansion{exp}, 0)
	require.NoError(t, err)

	require.Len(t, s.gotLimits, 2)
	assert.Equal(t, 10, s.gotLimits[0])
	assert.Equal(t, 4, s.gotLimits[1], "swapped top-k applies to the next batch")
}
