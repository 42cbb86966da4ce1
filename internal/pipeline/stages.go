package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/citations"
	"github.com/openparl/plenumqa/internal/expand"
	"github.com/openparl/plenumqa/internal/qa"
	"github.com/openparl/plenumqa/internal/retrieval"
)

// NLPClient is the slice of the sidecar client the pipeline stages need.
type NLPClient interface {
	Classify(ctx context.Context, question string) (qa.QuestionIntent, error)
	ExtractParameters(ctx context.Context, question string) (qa.Parameters, error)
}

// Decomposer produces the sub-question list.
type Decomposer interface {
	Decompose(question string, p qa.Parameters) ([]qa.SubQuestion, error)
}

// Expander produces the expanded query sets.
type Expander interface {
	ExpandAll(ctx context.Context, subs []qa.SubQuestion) []expand.Expansion
}

// Retriever runs the filtered searches. topK overrides the configured
// per-query limit when positive.
type Retriever interface {
	Retrieve(ctx context.Context, params qa.Parameters, expansions []expand.Expansion, topK int) (retrieval.Batch, error)
}

// Synthesizer runs the two synthesis stages.
type Synthesizer interface {
	Extract(ctx context.Context, results []qa.RetrievalResult) []qa.ExtractionRecord
	Sources(results []qa.RetrievalResult) []qa.Citation
	Synthesize(ctx context.Context, question string, records []qa.ExtractionRecord, sources []qa.Citation) (string, error)
}

// Deps bundles the collaborators of the standard QA graph.
type Deps struct {
	NLP         NLPClient
	Decomposer  Decomposer
	Expander    Expander
	Retriever   Retriever
	Synthesizer Synthesizer
	Log         *zap.Logger
}

// NewStandardController wires the full QA stage graph:
//
//	classify -> (complex) plan -> decompose -> expand -> retrieve -> synthesize -> cite
//	         -> (simple)  extract ----------^
//
// with every junction falling through to the terminal failure stage on a set
// error, and empty retrieval routing to failure with NO_MATERIAL.
func NewStandardController(d Deps) (*Controller, error) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	table := map[StageName]Transition{
		StageClassify: {
			Run: func(ctx context.Context, s *State) {
				intent, err := d.NLP.Classify(ctx, s.Question)
				if err != nil {
					s.fail(ErrInternal, fmt.Sprintf("classification failed: %v", err))
					return
				}
				s.Intent = intent
			},
			Route: func(s *State) StageName {
				if s.Intent == qa.IntentComplex {
					return StagePlan
				}
				return StageExtract
			},
		},

		// simple path: parameters are still extracted for filtering, but the
		// whole question is the single retrieval unit. When the planning
		// stage routed here it already extracted; the sidecar is not asked
		// twice for the same question.
		StageExtract: {
			Run: func(ctx context.Context, s *State) {
				if !s.ParamsExtracted {
					params, err := d.NLP.ExtractParameters(ctx, s.Question)
					if err != nil {
						d.Log.Warn("parameter extraction failed on simple path, retrieving unfiltered",
							zap.String("run_id", s.RunID), zap.Error(err))
					} else {
						s.Parameters = params
						s.ParamsExtracted = true
					}
				}
				s.SubQuestions = []qa.SubQuestion{{
					Text:              s.Question,
					RetrievalStrategy: qa.StrategyMultiYear,
				}}
			},
			Route: func(s *State) StageName { return StageExpand },
		},

		// complex path: extract parameters and decide whether the question
		// decomposes at all
		StagePlan: {
			Run: func(ctx context.Context, s *State) {
				params, err := d.NLP.ExtractParameters(ctx, s.Question)
				if err != nil {
					s.fail(ErrInternal, fmt.Sprintf("parameter extraction failed: %v", err))
					return
				}
				s.Parameters = params
				s.ParamsExtracted = true
				s.IsDecomposed = !params.IsTrivial()
			},
			Route: func(s *State) StageName {
				if s.IsDecomposed {
					return StageDecompose
				}
				// nothing to decompose: retrieve directly against the question
				return StageExtract
			},
		},

		StageDecompose: {
			Run: func(ctx context.Context, s *State) {
				subs, err := d.Decomposer.Decompose(s.Question, s.Parameters)
				if err != nil {
					s.fail(ErrInternal, fmt.Sprintf("decomposition failed: %v", err))
					return
				}
				s.SubQuestions = subs
			},
			Route: func(s *State) StageName { return StageExpand },
		},

		StageExpand: {
			Run: func(ctx context.Context, s *State) {
				s.Expansions = d.Expander.ExpandAll(ctx, s.SubQuestions)
			},
			Route: func(s *State) StageName { return StageRetrieve },
		},

		StageRetrieve: {
			Run: func(ctx context.Context, s *State) {
				batch, err := d.Retriever.Retrieve(ctx, s.Parameters, s.Expansions, s.TopK)
				if err != nil {
					s.fail(ErrInternal, fmt.Sprintf("retrieval failed: %v", err))
					return
				}
				s.Results = batch.Results
				s.NoMaterialFound = batch.NoMaterial
			},
			Route: func(s *State) StageName {
				if s.NoMaterialFound {
					return StageFail
				}
				return StageSynthesize
			},
		},

		StageSynthesize: {
			Run: func(ctx context.Context, s *State) {
				s.Extractions = d.Synthesizer.Extract(ctx, s.Results)
				sources := d.Synthesizer.Sources(s.Results)
				answer, err := d.Synthesizer.Synthesize(ctx, s.Question, s.Extractions, sources)
				if err != nil {
					s.fail(ErrSummarize, fmt.Sprintf("synthesis failed: %v", err))
					return
				}
				s.FinalAnswer = answer
			},
			Route: func(s *State) StageName { return StageCite },
		},

		StageCite: {
			Run: func(ctx context.Context, s *State) {
				parsed := citations.Parse(s.FinalAnswer)
				s.Citations = citations.Match(parsed, s.Results)
			},
			Route: nil, // terminal
		},

		StageFail: {
			Run: func(ctx context.Context, s *State) {
				if s.NoMaterialFound && s.Error == "" {
					s.fail(ErrNoMaterial, "no material found for any sub-question")
				}
				if s.ErrorType == "" {
					s.ErrorType = ErrInternal
				}
				// final_answer is never left unset when error is set
				s.FinalAnswer = userFacingMessage(s.ErrorType)
			},
			Route: nil, // terminal
		},
	}

	return NewController(StageClassify, table, d.Log)
}

func userFacingMessage(t ErrorType) string {
	switch t {
	case ErrNoMaterial:
		return "Zu dieser Frage wurden keine passenden Redebeiträge im Bestand gefunden. Bitte formulieren Sie die Frage um oder erweitern Sie den Zeitraum."
	case ErrSummarize:
		return "Die Antwort konnte nicht erstellt werden, da die Zusammenfassung fehlgeschlagen ist. Bitte versuchen Sie es erneut."
	default:
		return "Die Frage konnte aufgrund eines internen Fehlers nicht beantwortet werden. Bitte versuchen Sie es später erneut."
	}
}
