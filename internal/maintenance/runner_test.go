package maintenance

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/parties"
	"github.com/openparl/plenumqa/internal/vectordb"
)

type fakeStore struct {
	mu       sync.Mutex
	pages    []*vectordb.ScrollResult
	pageIdx  int
	writes   map[interface{}]string
	writeErr error
}

func (f *fakeStore) Scroll(_ context.Context, _ vectordb.FilterSpec, _ int, _ interface{}) (*vectordb.ScrollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pageIdx >= len(f.pages) {
		return &vectordb.ScrollResult{}, nil
	}
	p := f.pages[f.pageIdx]
	f.pageIdx++
	return p, nil
}

func (f *fakeStore) SetPayload(_ context.Context, ids []interface{}, payload map[string]interface{}) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writes == nil {
		f.writes = make(map[interface{}]string)
	}
	for _, id := range ids {
		f.writes[id] = payload["party"].(string)
	}
	return nil
}

func point(id interface{}, party string) vectordb.Point {
	return vectordb.Point{ID: id, Payload: map[string]interface{}{"party": party}}
}

func TestNormalizePartiesRewritesAliases(t *testing.T) {
	store := &fakeStore{pages: []*vectordb.ScrollResult{
		{
			Points: []vectordb.Point{
				point("p1", "Grüne"),
				point("p2", "SPD"), // already canonical
				point("p3", "Linke"),
			},
			NextOffset: "next",
		},
		{
			Points: []vectordb.Point{point("p4", "CDU")},
		},
	}}

	r := New(Config{Workers: 2, BatchSize: 10}, store, zap.NewNop())
	n, err := r.NormalizeParties(context.Background(), parties.DefaultTable())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, "BÜNDNIS 90/DIE GRÜNEN", store.writes["p1"])
	assert.Equal(t, "DIE LINKE", store.writes["p3"])
	assert.Equal(t, "CDU/CSU", store.writes["p4"])
	_, touched := store.writes["p2"]
	assert.False(t, touched, "canonical names are not rewritten")
}

func TestApplyCountsFailures(t *testing.T) {
	store := &fakeStore{writeErr: errors.New("write refused")}
	r := New(Config{Workers: 3}, store, zap.NewNop())

	failed := r.Apply(context.Background(), []Update{
		{IDs: []interface{}{"a"}, Payload: map[string]interface{}{"party": "SPD"}},
		{IDs: []interface{}{"b"}, Payload: map[string]interface{}{"party": "FDP"}},
	})
	assert.Equal(t, 2, failed)
}

func TestApplyEmpty(t *testing.T) {
	r := New(Config{}, &fakeStore{}, zap.NewNop())
	assert.Zero(t, r.Apply(context.Background(), nil))
}
