// Package vectordb is a minimal Qdrant HTTP client for the speech chunk
// collection: filtered similarity search plus payload scroll/update for
// metadata maintenance.
package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/circuitbreaker"
	ometrics "github.com/openparl/plenumqa/internal/metrics"
	"github.com/openparl/plenumqa/internal/qa"
	"github.com/openparl/plenumqa/internal/tracing"
)

// Client is a minimal Qdrant HTTP client
type Client struct {
	cfg   Config
	http  *http.Client
	base  string
	httpw *circuitbreaker.HTTPWrapper
	log   *zap.Logger
}

// New creates a Qdrant client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.TopK == 0 {
		cfg.TopK = 10
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "speech_chunks"
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	httpw := circuitbreaker.NewHTTPWrapper(httpClient, "qdrant", "vectordb", logger)
	return &Client{
		cfg:   cfg,
		http:  httpClient,
		base:  fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		httpw: httpw,
		log:   logger,
	}
}

// Collection returns the configured collection name.
func (c *Client) Collection() string { return c.cfg.Collection }

// qdrant search request/response (simplified)
type qdrantQueryRequest struct {
	Query          []float32              `json:"query"`
	Limit          int                    `json:"limit"`
	ScoreThreshold *float64               `json:"score_threshold,omitempty"`
	WithPayload    bool                   `json:"with_payload"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
}

type qdrantPoint struct {
	ID      interface{}            `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

type qdrantSearchResponse struct {
	Result []qdrantPoint `json:"result"`
	Status string        `json:"status"`
}

// qdrantQueryResponse for the /points/query endpoint which has nested structure
type qdrantQueryResponse struct {
	Result struct {
		Points []qdrantPoint `json:"points"`
	} `json:"result"`
	Status string `json:"status"`
}

func (c *Client) search(ctx context.Context, collection string, vec []float32, limit int, threshold float64, filter map[string]interface{}) ([]qdrantPoint, error) {
	start := time.Now()

	ctx, span := tracing.StartHTTPSpan(ctx, "POST", fmt.Sprintf("%s/collections/%s/points/query", c.base, collection))
	defer span.End()

	// Prefer modern /points/query; on failure, fallback to /points/search for compatibility
	var thr *float64
	if threshold > 0 {
		thr = &threshold
	}
	reqBody := qdrantQueryRequest{Query: vec, Limit: limit, ScoreThreshold: thr, WithPayload: true, Filter: filter}
	buf, _ := json.Marshal(reqBody)

	call := func(url string, body []byte) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		tracing.InjectTraceparent(ctx, req)
		return c.httpw.Do(req)
	}

	urlQuery := fmt.Sprintf("%s/collections/%s/points/query", c.base, collection)
	resp, err := call(urlQuery, buf)
	if err != nil {
		ometrics.RecordVectorSearch(collection, "error", time.Since(start).Seconds())
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// fallback to /points/search
		urlSearch := fmt.Sprintf("%s/collections/%s/points/search", c.base, collection)
		legacy := map[string]interface{}{"vector": vec, "limit": limit, "with_payload": true}
		if threshold > 0 {
			legacy["score_threshold"] = threshold
		}
		if filter != nil {
			legacy["filter"] = filter
		}
		buf2, _ := json.Marshal(legacy)
		resp2, err2 := call(urlSearch, buf2)
		if err2 != nil {
			ometrics.RecordVectorSearch(collection, "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("qdrant query/search failed: %w", err2)
		}
		defer resp2.Body.Close()
		if resp2.StatusCode != http.StatusOK {
			ometrics.RecordVectorSearch(collection, "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("qdrant status %d", resp2.StatusCode)
		}
		var qr qdrantSearchResponse
		if err := json.NewDecoder(resp2.Body).Decode(&qr); err != nil {
			ometrics.RecordVectorSearch(collection, "error", time.Since(start).Seconds())
			return nil, err
		}
		ometrics.RecordVectorSearch(collection, "ok", time.Since(start).Seconds())
		return qr.Result, nil
	}
	var qr qdrantQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		ometrics.RecordVectorSearch(collection, "error", time.Since(start).Seconds())
		return nil, err
	}
	ometrics.RecordVectorSearch(collection, "ok", time.Since(start).Seconds())
	return qr.Result.Points, nil
}

// Search runs a filtered similarity search against the speech chunk
// collection and converts payloads into chunks.
func (c *Client) Search(ctx context.Context, vec []float32, spec FilterSpec, limit int) ([]qa.Chunk, error) {
	if limit <= 0 {
		limit = c.cfg.TopK
	}
	points, err := c.search(ctx, c.cfg.Collection, vec, limit, c.cfg.Threshold, spec.Build())
	if err != nil {
		return nil, err
	}
	chunks := make([]qa.Chunk, 0, len(points))
	for _, p := range points {
		chunks = append(chunks, pointToChunk(p))
	}
	return chunks, nil
}

func pointToChunk(p qdrantPoint) qa.Chunk {
	ch := qa.Chunk{
		ID:    fmt.Sprintf("%v", p.ID),
		Score: p.Score,
	}
	if p.Payload == nil {
		return ch
	}
	ch.Text = payloadString(p.Payload, "text")
	ch.Metadata = qa.ChunkMetadata{
		Speaker:    payloadString(p.Payload, "speaker"),
		Party:      payloadString(p.Payload, "party"),
		Year:       payloadInt(p.Payload, "year"),
		Date:       qa.NormalizeDate(payloadString(p.Payload, "date")),
		Session:    payloadString(p.Payload, "session"),
		SourceFile: payloadString(p.Payload, "source_file"),
	}
	return ch
}

func payloadString(p map[string]interface{}, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// Scroll pages through points matching the filter, payload only.
func (c *Client) Scroll(ctx context.Context, spec FilterSpec, limit int, offset interface{}) (*ScrollResult, error) {
	url := fmt.Sprintf("%s/collections/%s/points/scroll", c.base, c.cfg.Collection)
	ctx, span := tracing.StartHTTPSpan(ctx, "POST", url)
	defer span.End()

	body := map[string]interface{}{
		"limit":        limit,
		"with_payload": true,
	}
	if f := spec.Build(); f != nil {
		body["filter"] = f
	}
	if offset != nil {
		body["offset"] = offset
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)
	resp, err := c.httpw.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qdrant scroll status %d", resp.StatusCode)
	}
	var out struct {
		Result struct {
			Points         []qdrantPoint `json:"points"`
			NextPageOffset interface{}   `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	res := &ScrollResult{NextOffset: out.Result.NextPageOffset}
	for _, p := range out.Result.Points {
		res.Points = append(res.Points, Point{ID: p.ID, Score: p.Score, Payload: p.Payload})
	}
	return res, nil
}

// SetPayload overwrites the given payload keys on a set of points.
func (c *Client) SetPayload(ctx context.Context, ids []interface{}, payload map[string]interface{}) error {
	url := fmt.Sprintf("%s/collections/%s/points/payload", c.base, c.cfg.Collection)
	ctx, span := tracing.StartHTTPSpan(ctx, "POST", url)
	defer span.End()

	body := map[string]interface{}{
		"points":  ids,
		"payload": payload,
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)
	resp, err := c.httpw.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant set payload status %d", resp.StatusCode)
	}
	return nil
}

// Healthy pings the Qdrant readiness endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/readyz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant not ready: status %d", resp.StatusCode)
	}
	return nil
}
