package core

import (
	"fmt"
	"strings"
)

// Stage identifies one role in the simulation pipeline.
type Stage string

const (
	StageArchitect  Stage = "architect"
	StageStructural Stage = "structural"
	StageThermal    Stage = "thermal"
	StageCore       Stage = "core"
)

// StageSpec declares a stage and the stages whose outputs it consumes.
type StageSpec struct {
	Stage     Stage
	DependsOn []Stage
}

// Pipeline is the fixed stage graph. Structural and Thermal are siblings:
// both read Architect and nothing else, so neither ever sees the other's
// output.
var Pipeline = []StageSpec{
	{Stage: StageArchitect},
	{Stage: StageStructural, DependsOn: []Stage{StageArchitect}},
	{Stage: StageThermal, DependsOn: []Stage{StageArchitect}},
	{Stage: StageCore, DependsOn: []Stage{StageArchitect, StageStructural, StageThermal}},
}

// SimulationStages are the stages executed by a full run, in order.
var SimulationStages = []Stage{StageArchitect, StageStructural, StageThermal}

// AllStages lists every stage in pipeline order.
func AllStages() []Stage {
	stages := make([]Stage, 0, len(Pipeline))
	for _, spec := range Pipeline {
		stages = append(stages, spec.Stage)
	}
	return stages
}

// ParseStage maps a user supplied name to a Stage.
func ParseStage(name string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(name)))
	for _, spec := range Pipeline {
		if spec.Stage == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

// Spec returns the declared dependencies for the stage.
func (s Stage) Spec() (StageSpec, bool) {
	for _, spec := range Pipeline {
		if spec.Stage == s {
			return spec, true
		}
	}
	return StageSpec{}, false
}

// Key is the session key holding the stage's latest record.
func (s Stage) Key() string {
	return string(s) + "_out"
}

// Title is the display label.
func (s Stage) Title() string {
	switch s {
	case StageArchitect:
		return "Architect"
	case StageStructural:
		return "Structural"
	case StageThermal:
		return "Thermal"
	case StageCore:
		return "Core Verdict"
	default:
		return string(s)
	}
}

// StageRecord is the stored result of the latest invocation of a stage.
//
// Revision increases by one on every successful write. Inputs holds the
// revisions of the upstream stages that the output was computed from.
// Project is set on Architect records by a full run and carried over by
// refines of that stage.
type StageRecord struct {
	Output   string          `json:"output"`
	Revision int             `json:"revision"`
	Inputs   map[Stage]int   `json:"inputs,omitempty"`
	Project  *ProjectContext `json:"project,omitempty"`
}

// HasRun reports whether the stage produced output at least once.
func (r StageRecord) HasRun() bool {
	return r.Output != ""
}
