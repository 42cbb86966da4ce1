package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openparl/plenumqa/internal/metrics"
	"github.com/openparl/plenumqa/internal/tracing"
)

// StageName identifies one node of the stage graph.
type StageName string

const (
	StageClassify   StageName = "classify"
	StageExtract    StageName = "extract"
	StagePlan       StageName = "plan"
	StageDecompose  StageName = "decompose"
	StageExpand     StageName = "expand"
	StageRetrieve   StageName = "retrieve"
	StageSynthesize StageName = "synthesize"
	StageCite       StageName = "cite"
	StageFail       StageName = "fail"
)

// StageFunc mutates the state; it never routes. Routing lives in the
// transition table so the graph stays testable as a pure function of state.
type StageFunc func(ctx context.Context, s *State)

// Router picks the next stage from the accumulated state. It must be total
// and deterministic: identical state always routes identically.
type Router func(s *State) StageName

// Transition binds one stage to its routing decision. A nil Route marks a
// terminal stage.
type Transition struct {
	Run   StageFunc
	Route Router
}

// Controller executes the stage graph.
type Controller struct {
	table map[StageName]Transition
	entry StageName
	log   *zap.Logger
}

// NewController builds a controller over an explicit transition table.
func NewController(entry StageName, table map[StageName]Transition, logger *zap.Logger) (*Controller, error) {
	if _, ok := table[entry]; !ok {
		return nil, fmt.Errorf("entry stage %q not in transition table", entry)
	}
	if _, ok := table[StageFail]; !ok {
		return nil, fmt.Errorf("transition table lacks the terminal failure stage")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{table: table, entry: entry, log: logger}, nil
}

// Run drives the state through the graph until a terminal stage completes.
// The error-first rule is applied at every junction: a set state.Error
// overrides any domain routing and forwards to the failure stage.
func (c *Controller) Run(ctx context.Context, s *State) StageName {
	current := c.entry
	for {
		tr, ok := c.table[current]
		if !ok {
			// routing to an unknown stage is a programming error; surface it
			// through the failure path instead of panicking mid-request
			s.fail(ErrInternal, fmt.Sprintf("no such stage %q", current))
			current = StageFail
			continue
		}

		c.runStage(ctx, current, tr.Run, s)

		if tr.Route == nil {
			s.Trail = append(s.Trail, StageStep{Stage: string(current)})
			metrics.PipelineRequests.WithLabelValues(string(current), string(s.ErrorType)).Inc()
			return current
		}
		next := c.route(current, tr.Route, s)
		s.Trail = append(s.Trail, StageStep{Stage: string(current), Next: string(next)})
		c.log.Debug("stage routed",
			zap.String("run_id", s.RunID),
			zap.String("from", string(current)),
			zap.String("to", string(next)))
		current = next
	}
}

func (c *Controller) runStage(ctx context.Context, name StageName, fn StageFunc, s *State) {
	ctx, span := tracing.StartStageSpan(ctx, string(name))
	defer span.End()

	start := time.Now()
	fn(ctx, s)
	metrics.StageDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())
	if s.Error != "" && name != StageFail {
		metrics.StageErrors.WithLabelValues(string(name)).Inc()
	}
}

func (c *Controller) route(current StageName, r Router, s *State) StageName {
	// error-first, evaluated before any domain-specific decision
	if s.Error != "" && current != StageFail {
		return StageFail
	}
	return r(s)
}
