package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vampirenirmal/alphaaudio/internal/agent"
	"github.com/vampirenirmal/alphaaudio/internal/catalog"
)

// Orchestrator sequences generation calls over the stage graph. It holds no
// session data of its own; every operation reads and writes the State it is
// handed.
type Orchestrator struct {
	selector Selector
	prompts  RolePrompts
	logger   *slog.Logger
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger.With("component", "orchestrator")
	}
}

func New(selector Selector, prompts RolePrompts, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		selector: selector,
		prompts:  prompts,
		logger:   slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SimulationResult holds the outputs of one full run.
type SimulationResult struct {
	Architect  string
	Structural string
	Thermal    string
}

// Output returns the result for the stage.
func (r SimulationResult) Output(stage Stage) string {
	switch stage {
	case StageArchitect:
		return r.Architect
	case StageStructural:
		return r.Structural
	case StageThermal:
		return r.Thermal
	}
	return ""
}

func (r *SimulationResult) set(stage Stage, out string) {
	switch stage {
	case StageArchitect:
		r.Architect = out
	case StageStructural:
		r.Structural = out
	case StageThermal:
		r.Thermal = out
	}
}

// RunFullPipeline runs Architect, then Structural and Thermal, one call at a
// time. extra is appended to the Architect prompt only. On failure the
// returned result holds the stages that completed and nothing later is tried.
func (o *Orchestrator) RunFullPipeline(ctx context.Context, state State, project ProjectContext, extra string) (SimulationResult, error) {
	var result SimulationResult
	if err := project.Validate(); err != nil {
		return result, err
	}

	client, err := o.selector.Select(ctx)
	if err != nil {
		o.logger.Warn("pipeline not started", "error", err)
		return result, fmt.Errorf("selecting endpoint: %w", err)
	}

	runStart := time.Now()
	outputs := make(map[Stage]string, len(SimulationStages))
	for _, stage := range SimulationStages {
		spec, _ := stage.Spec()
		upstream := make(map[Stage]string, len(spec.DependsOn))
		for _, dep := range spec.DependsOn {
			upstream[dep] = outputs[dep]
		}

		stageExtra := ""
		if stage == StageArchitect {
			stageExtra = extra
		}
		prompt := simulationPrompt(o.role(stage), project, upstream, stageExtra)

		out, err := o.generate(ctx, client, stage, "run", prompt)
		if err != nil {
			return result, err
		}
		outputs[stage] = out
		result.set(stage, out)
		var snapshot *ProjectContext
		if stage == StageArchitect {
			snapshot = &project
		}
		o.commit(state, stage, out, false, snapshot)
	}

	o.logger.Info("simulation complete",
		"duration_ms", time.Since(runStart).Milliseconds(),
		"stages", len(SimulationStages))
	return result, nil
}

// Refine re-runs a single stage from its own prior output plus feedback.
// No other stage is read or written.
func (o *Orchestrator) Refine(ctx context.Context, state State, stage Stage, feedback string) (string, error) {
	if _, ok := stage.Spec(); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}

	client, err := o.selector.Select(ctx)
	if err != nil {
		return "", fmt.Errorf("selecting endpoint: %w", err)
	}

	prior := state.StageRecord(stage).Output
	out, err := o.generate(ctx, client, stage, "refine", refinePrompt(o.role(stage), prior, feedback))
	if err != nil {
		return "", err
	}
	o.commit(state, stage, out, true, nil)
	return out, nil
}

// Synthesize asks Core for a verdict over the stored Architect, Structural
// and Thermal outputs. It does not check whether they are present or fresh.
func (o *Orchestrator) Synthesize(ctx context.Context, state State) (string, error) {
	client, err := o.selector.Select(ctx)
	if err != nil {
		return "", fmt.Errorf("selecting endpoint: %w", err)
	}

	prompt := synthesisPrompt(o.role(StageCore),
		state.StageRecord(StageArchitect).Output,
		state.StageRecord(StageStructural).Output,
		state.StageRecord(StageThermal).Output)

	out, err := o.generate(ctx, client, StageCore, "synthesize", prompt)
	if err != nil {
		return "", err
	}
	o.commit(state, StageCore, out, false, nil)
	return out, nil
}

// Recommend embeds the whole catalog in the prompt. Selection is left to
// the model; nothing is filtered or reordered here.
func (o *Orchestrator) Recommend(ctx context.Context, rolePrompt, requirements string, items []catalog.Item) (string, error) {
	database, err := SerializeCatalog(items)
	if err != nil {
		return "", err
	}

	client, err := o.selector.Select(ctx)
	if err != nil {
		return "", fmt.Errorf("selecting endpoint: %w", err)
	}

	return o.call(ctx, client, "recommender", "recommend", recommendPrompt(rolePrompt, requirements, database))
}

// Staleness reports, per stage that has run, whether an upstream stage was
// rewritten after the stage's output was computed. It is informational;
// no operation consults it.
func (o *Orchestrator) Staleness(state State) map[Stage]bool {
	return Staleness(state)
}

// Staleness is the state-only form of Orchestrator.Staleness.
func Staleness(state State) map[Stage]bool {
	stale := make(map[Stage]bool, len(Pipeline))
	for _, spec := range Pipeline {
		rec := state.StageRecord(spec.Stage)
		if !rec.HasRun() {
			continue
		}
		for _, dep := range spec.DependsOn {
			if state.StageRecord(dep).Revision > rec.Inputs[dep] {
				stale[spec.Stage] = true
				break
			}
		}
	}
	return stale
}

// invalidate drops a cached endpoint after a failure the endpoint itself
// may be causing. Permanent errors and empty output say nothing about it.
func (o *Orchestrator) invalidate(err error) {
	inv, ok := o.selector.(Invalidator)
	if !ok {
		return
	}
	var permanent *agent.PermanentError
	if errors.As(err, &permanent) || errors.Is(err, ErrEmptyOutput) || errors.Is(err, context.Canceled) {
		return
	}
	o.logger.Debug("endpoint invalidated", "error", err)
	inv.Invalidate()
}

func (o *Orchestrator) role(stage Stage) string {
	return o.prompts.RolePrompt(string(stage))
}

// commit stores a stage output. A refine keeps the upstream revisions the
// previous output was based on; any other write snapshots the current ones.
// A nil project keeps the one already on the record.
func (o *Orchestrator) commit(state State, stage Stage, out string, keepInputs bool, project *ProjectContext) {
	prev := state.StageRecord(stage)
	if project == nil {
		project = prev.Project
	}
	rec := StageRecord{
		Output:   out,
		Revision: prev.Revision + 1,
		Project:  project,
	}

	spec, _ := stage.Spec()
	if len(spec.DependsOn) > 0 {
		rec.Inputs = make(map[Stage]int, len(spec.DependsOn))
		for _, dep := range spec.DependsOn {
			if keepInputs {
				rec.Inputs[dep] = prev.Inputs[dep]
			} else {
				rec.Inputs[dep] = state.StageRecord(dep).Revision
			}
		}
	}
	state.SetStageRecord(stage, rec)
}

func (o *Orchestrator) generate(ctx context.Context, client agent.AIClient, stage Stage, operation, prompt string) (string, error) {
	notify(ctx, Event{Kind: EventStageStarted, Stage: stage, Operation: operation})

	out, err := o.call(ctx, client, string(stage), operation, prompt)
	if err != nil {
		stageErr := NewStageError(stage, operation, err)
		notify(ctx, Event{Kind: EventStageFailed, Stage: stage, Operation: operation, Error: err.Error()})
		return "", stageErr
	}

	notify(ctx, Event{Kind: EventStageFinished, Stage: stage, Operation: operation})
	return out, nil
}

func (o *Orchestrator) call(ctx context.Context, client agent.AIClient, role, operation, prompt string) (string, error) {
	requestID := uuid.NewString()
	start := time.Now()

	o.logger.Debug("generation started",
		"request_id", requestID,
		"role", role,
		"operation", operation,
		"prompt_length", len(prompt))

	out, err := client.Complete(ctx, prompt)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyOutput
	}
	if err != nil {
		o.logger.Warn("generation failed",
			"request_id", requestID,
			"role", role,
			"operation", operation,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		o.invalidate(err)
		return "", err
	}

	o.logger.Info("generation completed",
		"request_id", requestID,
		"role", role,
		"operation", operation,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_length", len(out))
	return out, nil
}
