// Package httpapi exposes the question-answering pipeline over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/pipeline"
	"github.com/openparl/plenumqa/internal/qa"
)

// Runner drives one question through the stage graph.
type Runner interface {
	Run(ctx context.Context, s *pipeline.State) pipeline.StageName
}

// AuditSink persists finished runs. Optional.
type AuditSink interface {
	WriteRun(s *pipeline.State, terminal string) error
}

// Server handles QA requests.
type Server struct {
	runner Runner
	audit  AuditSink
	log    *zap.Logger
}

// New creates the API server. audit may be nil.
func New(runner Runner, audit AuditSink, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{runner: runner, audit: audit, log: logger}
}

// AskRequest is the request body of POST /ask. TopK overrides the configured
// per-query retrieval limit; Audit disables artifact writing for this run
// when explicitly false.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
	Audit    *bool  `json:"audit,omitempty"`
}

// AskResponse is the reply envelope.
type AskResponse struct {
	RunID        string               `json:"run_id"`
	Answer       string               `json:"answer"`
	Citations    []qa.MatchedCitation `json:"citations,omitempty"`
	SubQuestions []qa.SubQuestion     `json:"sub_questions,omitempty"`
	Error        string               `json:"error,omitempty"`
	ErrorType    string               `json:"error_type,omitempty"`
	DurationMS   int64                `json:"duration_ms"`
}

// Handler returns the HTTP mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ask", s.handleAsk)
	return mux
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question must not be empty", http.StatusBadRequest)
		return
	}

	state := &pipeline.State{
		RunID:    uuid.New().String(),
		Question: req.Question,
	}
	if req.TopK > 0 {
		state.TopK = req.TopK
	}
	start := time.Now()
	terminal := s.runner.Run(r.Context(), state)
	elapsed := time.Since(start)

	s.log.Info("question answered",
		zap.String("run_id", state.RunID),
		zap.String("terminal", string(terminal)),
		zap.String("error_type", string(state.ErrorType)),
		zap.Duration("duration", elapsed))

	if s.audit != nil && (req.Audit == nil || *req.Audit) {
		if err := s.audit.WriteRun(state, string(terminal)); err != nil {
			s.log.Warn("audit write failed", zap.String("run_id", state.RunID), zap.Error(err))
		}
	}

	resp := AskResponse{
		RunID:        state.RunID,
		Answer:       state.FinalAnswer,
		Citations:    state.Citations,
		SubQuestions: state.SubQuestions,
		Error:        state.Error,
		ErrorType:    string(state.ErrorType),
		DurationMS:   elapsed.Milliseconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	if state.Error != "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	json.NewEncoder(w).Encode(resp)
}
