// Package llmclient talks to the NLP sidecar over HTTP JSON: question
// classification, parameter extraction, text generation and reranking.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/circuitbreaker"
	"github.com/openparl/plenumqa/internal/metrics"
	"github.com/openparl/plenumqa/internal/qa"
	"github.com/openparl/plenumqa/internal/tracing"
)

// Config controls the NLP service client.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	GenerationTimeout time.Duration
}

// Client is the HTTP client for the NLP sidecar. The generation endpoint is
// blocking; concurrent use is achieved by calling Complete from multiple
// goroutines, one per sub-question.
type Client struct {
	cfg     Config
	http    *circuitbreaker.HTTPWrapper
	genhttp *circuitbreaker.HTTPWrapper
	log     *zap.Logger
}

// New creates a client with sensible defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://nlp-service:8000"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.GenerationTimeout == 0 {
		cfg.GenerationTimeout = 120 * time.Second
	}
	short := &http.Client{Timeout: cfg.Timeout}
	long := &http.Client{Timeout: cfg.GenerationTimeout}
	return &Client{
		cfg:     cfg,
		http:    circuitbreaker.NewHTTPWrapper(short, "nlp-service", "qa", logger),
		genhttp: circuitbreaker.NewHTTPWrapper(long, "nlp-generate", "qa", logger),
		log:     logger,
	}
}

// GenerationRequest is one prompt for the generation service.
type GenerationRequest struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float64 `json:"temperature"`
	AgentID      string  `json:"agent_id,omitempty"`
}

// GenerationResponse is the generation service's reply envelope.
type GenerationResponse struct {
	Success    bool   `json:"success"`
	Response   string `json:"response"`
	TokensUsed int    `json:"tokens_used"`
	ModelUsed  string `json:"model_used"`
	Provider   string `json:"provider"`
}

// Classify returns the intent (simple or complex) for a raw question.
func (c *Client) Classify(ctx context.Context, question string) (qa.QuestionIntent, error) {
	var out struct {
		Intent string `json:"intent"`
	}
	err := c.post(ctx, c.http, "/qa/classify", "classifier",
		map[string]interface{}{"question": question}, &out)
	if err != nil {
		return "", err
	}
	switch out.Intent {
	case string(qa.IntentComplex):
		return qa.IntentComplex, nil
	case string(qa.IntentSimple):
		return qa.IntentSimple, nil
	default:
		return "", fmt.Errorf("unknown intent %q", out.Intent)
	}
}

// ExtractParameters returns the structured retrieval parameters for a
// question.
func (c *Client) ExtractParameters(ctx context.Context, question string) (qa.Parameters, error) {
	var out qa.Parameters
	err := c.post(ctx, c.http, "/qa/extract", "param-extractor",
		map[string]interface{}{"question": question}, &out)
	if err != nil {
		return qa.Parameters{}, err
	}
	return out, nil
}

// Complete sends one blocking generation request and returns the raw text.
func (c *Client) Complete(ctx context.Context, req GenerationRequest) (string, error) {
	agent := req.AgentID
	if agent == "" {
		agent = "generator"
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 4096
	}
	start := time.Now()
	var out GenerationResponse
	if err := c.post(ctx, c.genhttp, "/qa/generate", agent, req, &out); err != nil {
		metrics.RecordGeneration(agent, "error", time.Since(start).Seconds())
		return "", err
	}
	if !out.Success {
		metrics.RecordGeneration(agent, "error", time.Since(start).Seconds())
		return "", fmt.Errorf("generation unsuccessful for agent %s", agent)
	}
	metrics.RecordGeneration(agent, "ok", time.Since(start).Seconds())
	return out.Response, nil
}

// RerankDocument is one candidate passage handed to the rerank service.
type RerankDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Rerank returns the ids of the top documents for the query, best first.
func (c *Client) Rerank(ctx context.Context, query string, docs []RerankDocument, topN int) ([]string, error) {
	var out struct {
		IDs []string `json:"ids"`
	}
	err := c.post(ctx, c.http, "/qa/rerank", "reranker", map[string]interface{}{
		"query":     query,
		"documents": docs,
		"top_n":     topN,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.IDs, nil
}

func (c *Client) post(ctx context.Context, hw *circuitbreaker.HTTPWrapper, path, agent string, body, out interface{}) error {
	url := c.cfg.BaseURL + path
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agent-ID", agent)
	tracing.InjectTraceparent(ctx, req)

	resp, err := hw.Do(req)
	if err != nil {
		return fmt.Errorf("nlp service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d from nlp service at %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse nlp response: %w", err)
	}
	return nil
}
