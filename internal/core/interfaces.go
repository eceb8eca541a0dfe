package core

import (
	"context"

	"github.com/vampirenirmal/alphaaudio/internal/agent"
)

// State is the per-session storage the orchestrator reads and writes.
// Writes happen only after the corresponding generation call succeeded.
type State interface {
	StageRecord(stage Stage) StageRecord
	SetStageRecord(stage Stage, record StageRecord)
}

// Selector hands out a working generation endpoint.
type Selector interface {
	Select(ctx context.Context) (agent.AIClient, error)
}

// Invalidator is implemented by selectors that cache their choice. The
// orchestrator calls Invalidate after a generation call fails on a
// transient error so the next action probes again.
type Invalidator interface {
	Invalidate()
}

// RolePrompts resolves the instruction text for a role.
type RolePrompts interface {
	RolePrompt(role string) string
}

// EventKind classifies a progress event.
type EventKind string

const (
	EventStageStarted  EventKind = "stage_started"
	EventStageFinished EventKind = "stage_finished"
	EventStageFailed   EventKind = "stage_failed"
)

// Event is emitted around every generation call.
type Event struct {
	Kind      EventKind `json:"kind"`
	Stage     Stage     `json:"stage"`
	Operation string    `json:"operation"`
	Error     string    `json:"error,omitempty"`
}

// Observer receives progress events. Implementations must not block.
type Observer func(Event)
