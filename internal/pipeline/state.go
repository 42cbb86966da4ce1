// Package pipeline is the stage graph that routes a question through
// classification, decomposition, expansion, retrieval, synthesis and
// citation matching, with a terminal failure path.
package pipeline

import (
	"github.com/openparl/plenumqa/internal/expand"
	"github.com/openparl/plenumqa/internal/qa"
)

// ErrorType is the failure taxonomy carried in the state.
type ErrorType string

const (
	ErrNone       ErrorType = ""
	ErrNoMaterial ErrorType = "NO_MATERIAL"
	ErrSummarize  ErrorType = "SUMMARIZE_ERROR"
	ErrExtraction ErrorType = "EXTRACTION_ERROR"
	ErrInternal   ErrorType = "INTERNAL_ERROR"
)

// StageStep records one executed node of the graph together with the
// routing decision taken afterwards. Terminal stages have no Next.
type StageStep struct {
	Stage string `json:"stage"`
	Next  string `json:"next,omitempty"`
}

// State is the single mutable accumulator threaded through the graph.
// Created once per request; stages only add or overwrite fields, never
// remove them; discarded after the response is returned.
type State struct {
	RunID    string `json:"run_id"`
	Question string `json:"question"`

	// TopK, when positive, overrides the configured per-query result limit
	// for this request only.
	TopK int `json:"top_k,omitempty"`

	// Trail is the executed stage sequence, appended by the controller.
	Trail []StageStep `json:"trail,omitempty"`

	Intent     qa.QuestionIntent `json:"intent,omitempty"`
	Parameters qa.Parameters     `json:"parameters"`

	// ParamsExtracted marks that the sidecar has already produced
	// Parameters for this run, so later stages must not extract again.
	ParamsExtracted bool `json:"params_extracted,omitempty"`

	IsDecomposed bool               `json:"is_decomposed"`
	SubQuestions []qa.SubQuestion   `json:"sub_questions,omitempty"`
	Expansions   []expand.Expansion `json:"expansions,omitempty"`

	Results         []qa.RetrievalResult `json:"retrieval_results,omitempty"`
	NoMaterialFound bool                 `json:"no_material_found"`

	Extractions []qa.ExtractionRecord `json:"extractions,omitempty"`
	FinalAnswer string                `json:"final_answer,omitempty"`
	Citations   []qa.MatchedCitation  `json:"citations,omitempty"`

	Error     string    `json:"error,omitempty"`
	ErrorType ErrorType `json:"error_type,omitempty"`
}

// fail records a node-local error. The router forwards any state with a set
// error unconditionally to the failure stage.
func (s *State) fail(t ErrorType, msg string) {
	s.Error = msg
	s.ErrorType = t
}

// TotalChunks returns the union size across all sub-questions.
func (s *State) TotalChunks() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.Chunks)
	}
	return n
}
