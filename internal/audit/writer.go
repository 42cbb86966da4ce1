// Package audit persists one directory per pipeline run with the transcript,
// the full serialized state and a token-based analysis file. The analysis
// tokens are a stable contract consumed by downstream evaluation tooling;
// their exact shape must not drift.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/pipeline"
)

// Writer persists run artifacts under Dir/<run_id>/.
type Writer struct {
	dir string
	log *zap.Logger
}

// New creates an audit writer rooted at dir.
func New(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, log: logger}
}

type meta struct {
	RunID        string    `json:"run_id"`
	WrittenAt    time.Time `json:"written_at"`
	Terminal     string    `json:"terminal"`
	ErrorType    string    `json:"error_type,omitempty"`
	SubQuestions int       `json:"sub_questions"`
	Chunks       int       `json:"chunks"`
	Citations    int       `json:"citations"`
}

// WriteRun persists all four artifacts for one finished run. Partial write
// failures are logged but do not fail the request: auditing is an
// observer, not a gate.
func (w *Writer) WriteRun(s *pipeline.State, terminal string) error {
	runDir := filepath.Join(w.dir, s.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	files := map[string][]byte{
		"transcript.md": transcript(s),
		"analysis.md":   analysis(s),
	}
	if raw, err := json.MarshalIndent(s, "", "  "); err == nil {
		files["state.json"] = raw
	} else {
		w.log.Warn("state not serializable", zap.String("run_id", s.RunID), zap.Error(err))
	}
	m := meta{
		RunID:        s.RunID,
		WrittenAt:    time.Now().UTC(),
		Terminal:     terminal,
		ErrorType:    string(s.ErrorType),
		SubQuestions: len(s.SubQuestions),
		Chunks:       s.TotalChunks(),
		Citations:    len(s.Citations),
	}
	if raw, err := json.MarshalIndent(m, "", "  "); err == nil {
		files["state.meta.json"] = raw
	}

	var firstErr error
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(runDir, name), content, 0o644); err != nil {
			w.log.Warn("audit file not written",
				zap.String("run_id", s.RunID),
				zap.String("file", name),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func transcript(s *pipeline.State) []byte {
	var b strings.Builder
	b.WriteString("# Frage\n\n")
	b.WriteString(s.Question)
	b.WriteString("\n")
	for _, step := range s.Trail {
		fmt.Fprintf(&b, "\n## Stage: %s\n", step.Stage)
		if step.Next != "" {
			fmt.Fprintf(&b, "-> next: %s\n", step.Next)
		}
	}
	b.WriteString("\n# Antwort\n\n")
	b.WriteString(s.FinalAnswer)
	b.WriteString("\n")
	if s.Error != "" {
		fmt.Fprintf(&b, "\n# Fehler\n\n%s (%s)\n", s.Error, s.ErrorType)
	}
	return []byte(b.String())
}

// analysis renders the token contract:
//
//	SUBQUESTIONS_TOTAL: <n>
//	CHUNKS_TOTAL: <n>
//	CITATIONS_TOTAL: <n>
//	CITATION <i>: <speaker> (<party>), <date> -> [MATCHED x<k>] | [UNMATCHED]
func analysis(s *pipeline.State) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "SUBQUESTIONS_TOTAL: %d\n", len(s.SubQuestions))
	fmt.Fprintf(&b, "CHUNKS_TOTAL: %d\n", s.TotalChunks())
	fmt.Fprintf(&b, "CITATIONS_TOTAL: %d\n", len(s.Citations))
	for i, mc := range s.Citations {
		status := "[UNMATCHED]"
		if mc.Matched {
			status = fmt.Sprintf("[MATCHED x%d]", len(mc.Chunks))
		}
		fmt.Fprintf(&b, "CITATION %d: %s -> %s\n", i+1, mc.Citation.String(), status)
	}
	return []byte(b.String())
}
