// Package synthesis produces the final answer in two stages: structured
// extraction per sub-question, then one synthesis call over all records plus
// a capped citation source list.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/llmclient"
	"github.com/openparl/plenumqa/internal/metrics"
	"github.com/openparl/plenumqa/internal/qa"
)

// Generator is the slice of the NLP client the synthesizer needs.
type Generator interface {
	Complete(ctx context.Context, req llmclient.GenerationRequest) (string, error)
}

// Config carries the synthesis tunables.
type Config struct {
	TopChunks        int
	MaxSources       int
	RequireBothSides bool
}

// Synthesizer runs the two synthesis stages. Tunables may be swapped at
// runtime via Reconfigure.
type Synthesizer struct {
	mu  sync.RWMutex
	cfg Config
	gen Generator
	log *zap.Logger
}

func withDefaults(cfg Config) Config {
	if cfg.TopChunks == 0 {
		cfg.TopChunks = 8
	}
	if cfg.MaxSources == 0 {
		cfg.MaxSources = 20
	}
	return cfg
}

// New creates a synthesizer.
func New(cfg Config, gen Generator, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{cfg: withDefaults(cfg), gen: gen, log: logger}
}

// Reconfigure swaps the tunables for subsequent synthesis calls.
func (s *Synthesizer) Reconfigure(cfg Config) {
	cfg = withDefaults(cfg)
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Synthesizer) config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Extract runs stage 1 independently per sub-question. The returned slice is
// position-aligned with the input; a failed extraction yields an
// error-marker record, never a gap.
func (s *Synthesizer) Extract(ctx context.Context, results []qa.RetrievalResult) []qa.ExtractionRecord {
	records := make([]qa.ExtractionRecord, len(results))
	for i, res := range results {
		records[i] = s.extractOne(ctx, res)
	}
	return records
}

func (s *Synthesizer) extractOne(ctx context.Context, res qa.RetrievalResult) qa.ExtractionRecord {
	cfg := s.config()
	rec := qa.ExtractionRecord{SubQuestion: res.SubQuestion}
	if len(res.Chunks) == 0 {
		rec.Failed = true
		rec.FailReason = "no retrieved material"
		return rec
	}

	chunks := res.Chunks
	if len(chunks) > cfg.TopChunks {
		chunks = chunks[:cfg.TopChunks]
	}

	raw, err := s.gen.Complete(ctx, llmclient.GenerationRequest{
		Prompt:      buildExtractionPrompt(res.SubQuestion, chunks),
		MaxTokens:   2048,
		Temperature: 0.2,
		AgentID:     "extractor",
	})
	if err != nil {
		metrics.ExtractionFailures.Inc()
		rec.Failed = true
		rec.FailReason = err.Error()
		return rec
	}

	parsed, perr := parseExtraction(raw)
	if perr != nil {
		// unparsable output is kept verbatim, not discarded
		s.log.Debug("extraction output not parsable, keeping raw text",
			zap.String("sub_question", res.SubQuestion.Text),
			zap.Error(perr))
		rec.Raw = strings.TrimSpace(raw)
		return rec
	}
	rec.Positions = parsed.Positions
	rec.Measures = parsed.Measures
	rec.KeyPhrases = parsed.KeyPhrases

	// A record showing only one side of an oppositional axis is
	// under-extracted: the synthesis stage would present it as consensus.
	if cfg.RequireBothSides {
		for _, pos := range rec.Positions {
			if strings.TrimSpace(pos.SideA) == "" || strings.TrimSpace(pos.SideB) == "" {
				rec.Incomplete = true
				break
			}
		}
	}
	return rec
}

type extractionPayload struct {
	Positions  []qa.PositionPair `json:"positions"`
	Measures   []string          `json:"measures"`
	KeyPhrases []string          `json:"key_phrases"`
}

// parseExtraction pulls the JSON object between the first '{' and the last
// '}' so surrounding prose does not break parsing.
func parseExtraction(raw string) (extractionPayload, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return extractionPayload{}, fmt.Errorf("no JSON object in response")
	}
	var p extractionPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &p); err != nil {
		return extractionPayload{}, err
	}
	if len(p.Positions) == 0 && len(p.Measures) == 0 && len(p.KeyPhrases) == 0 {
		return extractionPayload{}, fmt.Errorf("JSON object carries no extraction fields")
	}
	return p, nil
}

// Sources builds the capped citation source list from the retrieval
// results, in sub-question order, deduplicated.
func (s *Synthesizer) Sources(results []qa.RetrievalResult) []qa.Citation {
	maxSources := s.config().MaxSources
	var out []qa.Citation
	seen := make(map[string]struct{})
	for _, res := range results {
		for _, ch := range res.Chunks {
			c := qa.Citation{
				Speaker: ch.Metadata.Speaker,
				Party:   ch.Metadata.Party,
				Date:    qa.NormalizeDate(ch.Metadata.Date),
			}
			key := c.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
			if len(out) == maxSources {
				return out
			}
		}
	}
	return out
}

// Synthesize runs stage 2 and returns the final answer text.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, records []qa.ExtractionRecord, sources []qa.Citation) (string, error) {
	answer, err := s.gen.Complete(ctx, llmclient.GenerationRequest{
		Prompt:      buildSynthesisPrompt(question, records, sources),
		MaxTokens:   4096,
		Temperature: 0.3,
		AgentID:     "synthesizer",
	})
	if err != nil {
		return "", fmt.Errorf("synthesis call failed: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", fmt.Errorf("synthesis returned empty answer")
	}
	return answer, nil
}
