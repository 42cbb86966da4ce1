// Package expand turns one sub-question into several lexically diverse
// retrieval queries via the generation service, plus exact-match entity
// queries from a rule-based extractor.
package expand

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/llmclient"
	"github.com/openparl/plenumqa/internal/metrics"
	"github.com/openparl/plenumqa/internal/parties"
	"github.com/openparl/plenumqa/internal/qa"
)

// Generator is the slice of the NLP client the expander needs.
type Generator interface {
	Complete(ctx context.Context, req llmclient.GenerationRequest) (string, error)
}

// Config carries the expansion tunables.
type Config struct {
	MinVariants int
	MaxVariants int
	MinLength   int
	MaxLength   int
	Concurrent  bool
}

// Expansion is the expanded query set for one sub-question. EntityQueries
// come first in retrieval order; Variants carry the lexical spread.
type Expansion struct {
	SubQuestion   qa.SubQuestion
	EntityQueries []string
	Variants      []string
	FellBack      bool
}

// Queries returns the full retrieval query list, entity queries first.
func (e Expansion) Queries() []string {
	out := make([]string, 0, len(e.EntityQueries)+len(e.Variants))
	out = append(out, e.EntityQueries...)
	out = append(out, e.Variants...)
	return out
}

// Expander generates query variants. The tunables may be swapped at runtime
// via Reconfigure; every expansion works on the snapshot taken at its start.
type Expander struct {
	mu  sync.RWMutex
	cfg Config
	gen Generator
	log *zap.Logger
}

func withDefaults(cfg Config) Config {
	if cfg.MinVariants == 0 {
		cfg.MinVariants = 5
	}
	if cfg.MaxVariants == 0 {
		cfg.MaxVariants = 7
	}
	if cfg.MinLength == 0 {
		cfg.MinLength = 15
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 120
	}
	return cfg
}

// New creates an expander; zero config values fall back to defaults.
func New(cfg Config, gen Generator, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{cfg: withDefaults(cfg), gen: gen, log: logger}
}

// Reconfigure swaps the tunables for subsequent expansions. In-flight
// expansions keep the snapshot they started with.
func (e *Expander) Reconfigure(cfg Config) {
	cfg = withDefaults(cfg)
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *Expander) config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Expand generates the query set for a single sub-question. It never
// returns an error: when generation or parsing fails the untouched
// sub-question text is the sole variant.
func (e *Expander) Expand(ctx context.Context, sq qa.SubQuestion) Expansion {
	cfg := e.config()
	exp := Expansion{SubQuestion: sq}

	for _, ent := range ExtractEntities(sq.Text) {
		exp.EntityQueries = append(exp.EntityQueries, fmt.Sprintf("%q", ent))
		metrics.EntityQueries.Inc()
	}

	variants, err := e.generateVariants(ctx, cfg, sq)
	if err != nil {
		e.log.Warn("variant generation failed, falling back to sub-question text",
			zap.String("sub_question", sq.Text),
			zap.Error(err))
		variants = nil
	}
	variants = validate(cfg, sq, variants)
	if len(variants) == 0 {
		variants = []string{sq.Text}
		exp.FellBack = true
		metrics.ExpansionFallbacks.Inc()
	}
	exp.Variants = variants
	metrics.ExpansionVariants.Observe(float64(len(variants)))
	return exp
}

// ExpandAll fans out across the batch. The returned slice always has one
// entry per input, position-aligned: the sub-question order from
// decomposition is positionally significant downstream.
func (e *Expander) ExpandAll(ctx context.Context, subs []qa.SubQuestion) []Expansion {
	out := make([]Expansion, len(subs))
	if !e.config().Concurrent {
		for i, sq := range subs {
			out[i] = e.Expand(ctx, sq)
		}
		return out
	}
	var wg sync.WaitGroup
	for i, sq := range subs {
		wg.Add(1)
		go func(i int, sq qa.SubQuestion) {
			defer wg.Done()
			out[i] = e.Expand(ctx, sq)
		}(i, sq)
	}
	wg.Wait()
	return out
}

func (e *Expander) generateVariants(ctx context.Context, cfg Config, sq qa.SubQuestion) ([]string, error) {
	prompt := buildPrompt(cfg, sq)
	raw, err := e.gen.Complete(ctx, llmclient.GenerationRequest{
		Prompt:      prompt,
		MaxTokens:   1024,
		Temperature: 0.7,
		AgentID:     "query-expander",
	})
	if err != nil {
		return nil, err
	}
	return parseVariantList(raw)
}

func buildPrompt(cfg Config, sq qa.SubQuestion) string {
	var b strings.Builder
	b.WriteString("Erzeuge ")
	b.WriteString(strconv.Itoa(cfg.MinVariants))
	b.WriteString(" bis ")
	b.WriteString(strconv.Itoa(cfg.MaxVariants))
	b.WriteString(" lexikalisch unterschiedliche Suchanfragen für die folgende Teilfrage.\n\n")
	b.WriteString("Teilfrage: ")
	b.WriteString(sq.Text)
	b.WriteString("\n\nDecke folgende Blickwinkel ab: konkrete Gesetzes- und Programmnamen, ")
	b.WriteString("abstrakte Grundsätze, konkrete Maßnahmen, Synonyme, ergänzende Aspekte.\n")
	if sq.TargetYear != 0 {
		b.WriteString(fmt.Sprintf("Jede Anfrage muss die Jahreszahl %d enthalten.\n", sq.TargetYear))
	}
	if hasPartyToken(sq) {
		b.WriteString(fmt.Sprintf("Jede Anfrage muss die Partei %s enthalten.\n", sq.TargetParty))
	}
	b.WriteString("\nAntworte ausschließlich mit einem JSON-Array von Strings.")
	return b.String()
}

// parseVariantList extracts the JSON array between the first '[' and the
// last ']' so that surrounding prose does not break parsing.
func parseVariantList(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var out []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("parse variant array: %w", err)
	}
	return out, nil
}

// validate repairs missing year/party tokens by concatenation, drops
// variants outside the length bounds, deduplicates preserving order and
// caps at MaxVariants.
func validate(cfg Config, sq qa.SubQuestion, variants []string) []string {
	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, cfg.MaxVariants)
	for _, v := range variants {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		v = repairTokens(sq, v)
		if len([]rune(v)) < cfg.MinLength || len([]rune(v)) > cfg.MaxLength {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
		if len(out) == cfg.MaxVariants {
			break
		}
	}
	return out
}

// repairTokens appends the year and party tokens when the generated variant
// omitted them. A repaired variant beats a discarded one.
func repairTokens(sq qa.SubQuestion, v string) string {
	if sq.TargetYear != 0 {
		year := strconv.Itoa(sq.TargetYear)
		if !strings.Contains(v, year) {
			v = v + " " + year
		}
	}
	if hasPartyToken(sq) && !strings.Contains(strings.ToLower(v), strings.ToLower(sq.TargetParty)) {
		v = v + " " + sq.TargetParty
	}
	return v
}

// hasPartyToken reports whether the sub-question carries a real party the
// variants must embed. The whole-legislature pseudo-party is not a token
// found in any speech.
func hasPartyToken(sq qa.SubQuestion) bool {
	return sq.TargetParty != "" &&
		sq.TargetParty != parties.All &&
		sq.TargetParty != parties.WholeLegislature
}
