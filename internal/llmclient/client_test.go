package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/qa"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL}, zap.NewNop())
}

func TestClassify(t *testing.T) {
	var gotPath, gotAgent string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("X-Agent-ID")
		json.NewEncoder(w).Encode(map[string]string{"intent": "complex"})
	})

	intent, err := c.Classify(context.Background(), "Wie veränderte sich die Migrationspolitik?")
	require.NoError(t, err)
	assert.Equal(t, qa.IntentComplex, intent)
	assert.Equal(t, "/qa/classify", gotPath)
	assert.Equal(t, "classifier", gotAgent)
}

func TestClassifyRejectsUnknownIntent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"intent": "weird"})
	})
	_, err := c.Classify(context.Background(), "Frage?")
	assert.Error(t, err)
}

func TestExtractParameters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(qa.Parameters{
			TimeRange: qa.TimeRange{StartYear: 2013, EndYear: 2019},
			Parties:   []string{"SPD"},
			Type:      qa.TypeChangeAnalysis,
		})
	})

	p, err := c.ExtractParameters(context.Background(), "Frage?")
	require.NoError(t, err)
	assert.Equal(t, 2013, p.TimeRange.StartYear)
	assert.Equal(t, []string{"SPD"}, p.Parties)
	assert.Equal(t, qa.TypeChangeAnalysis, p.Type)
}

func TestCompleteReturnsResponseText(t *testing.T) {
	var gotReq GenerationRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(GenerationResponse{Success: true, Response: "Antwort"})
	})

	out, err := c.Complete(context.Background(), GenerationRequest{Prompt: "p", AgentID: "expander"})
	require.NoError(t, err)
	assert.Equal(t, "Antwort", out)
	assert.Equal(t, 4096, gotReq.MaxTokens, "default token budget applies")
}

func TestCompleteFailsOnUnsuccessfulGeneration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GenerationResponse{Success: false})
	})
	_, err := c.Complete(context.Background(), GenerationRequest{Prompt: "p"})
	assert.Error(t, err)
}

func TestCompleteFailsOn5xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.Complete(context.Background(), GenerationRequest{Prompt: "p"})
	assert.Error(t, err)
}

func TestRerank(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TopN int `json:"top_n"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 2, body.TopN)
		json.NewEncoder(w).Encode(map[string][]string{"ids": {"b", "a"}})
	})

	ids, err := c.Rerank(context.Background(), "Frage",
		[]RerankDocument{{ID: "a", Text: "x"}, {ID: "b", Text: "y"}}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)
}
