package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vampirenirmal/alphaaudio/internal/core"
	"github.com/vampirenirmal/alphaaudio/internal/storage"
)

// Report is everything a summary export contains.
type Report struct {
	SessionID   string
	Project     core.ProjectContext
	Outputs     map[core.Stage]string
	Stale       map[core.Stage]bool
	GeneratedAt time.Time
}

// FromState collects the current stage outputs of a session. The project
// the Architect output was computed for wins over the one passed in.
func FromState(sessionID string, project core.ProjectContext, state core.State) Report {
	if snapshot := state.StageRecord(core.StageArchitect).Project; snapshot != nil {
		project = *snapshot
	}
	r := Report{
		SessionID:   sessionID,
		Project:     project,
		Outputs:     make(map[core.Stage]string, len(core.Pipeline)),
		Stale:       core.Staleness(state),
		GeneratedAt: time.Now(),
	}
	for _, stage := range core.AllStages() {
		r.Outputs[stage] = state.StageRecord(stage).Output
	}
	return r
}

// Render writes the report as Markdown.
func Render(r Report) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Alpha Audio Build Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC1123))

	b.WriteString("## Project\n\n")
	fmt.Fprintf(&b, "- Vehicle: %s\n", r.Project.Car)
	fmt.Fprintf(&b, "- Subwoofers: %s\n", r.Project.Subwoofer)
	fmt.Fprintf(&b, "- Power: %s\n", r.Project.Power)
	fmt.Fprintf(&b, "- Tuning: %d Hz\n", r.Project.Fs)
	fmt.Fprintf(&b, "- Tolerance: %s\n", r.Project.Tolerance)
	if notes := strings.TrimSpace(r.Project.Notes); notes != "" {
		fmt.Fprintf(&b, "- Notes: %s\n", notes)
	}

	// Verdict first.
	order := []core.Stage{core.StageCore, core.StageArchitect, core.StageStructural, core.StageThermal}
	for _, stage := range order {
		fmt.Fprintf(&b, "\n## %s\n\n", stage.Title())
		if r.Stale[stage] {
			b.WriteString("> Upstream output changed after this section was generated.\n\n")
		}
		out := strings.TrimSpace(r.Outputs[stage])
		if out == "" {
			b.WriteString("_Not generated._\n")
			continue
		}
		b.WriteString(out)
		b.WriteString("\n")
	}

	return b.Bytes()
}

// Exporter renders reports and persists them.
type Exporter struct {
	store    storage.Storage
	strategy storage.NamingStrategy
	logger   *slog.Logger
}

func NewExporter(store storage.Storage, strategy storage.NamingStrategy, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		store:    store,
		strategy: strategy,
		logger:   logger.With("component", "export"),
	}
}

// Export renders r and stores it. The rendered bytes are returned even when
// no store is configured so the caller can still serve the download.
func (e *Exporter) Export(ctx context.Context, r Report) (string, []byte, error) {
	data := Render(r)
	if e.store == nil {
		return "", data, nil
	}

	key := storage.ReportPath(r.SessionID, r.Project.Car, r.GeneratedAt, e.strategy)
	if err := e.store.Save(ctx, key, data); err != nil {
		e.logger.Warn("report not stored", "session_id", r.SessionID, "key", key, "error", err)
		return "", data, fmt.Errorf("storing report: %w", err)
	}

	e.logger.Info("report stored", "session_id", r.SessionID, "key", key, "bytes", len(data))
	return key, data, nil
}

// History lists stored report keys, sorted.
func (e *Exporter) History(ctx context.Context) ([]string, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.List(ctx, "reports")
}
