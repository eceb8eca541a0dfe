package server

import (
	"github.com/vampirenirmal/alphaaudio/internal/catalog"
	"github.com/vampirenirmal/alphaaudio/internal/core"
	"github.com/vampirenirmal/alphaaudio/internal/session"
)

type stageView struct {
	Stage       core.Stage
	Title       string
	Output      string
	HasRun      bool
	Stale       bool
	Placeholder string
	Action      string
}

type tableView struct {
	Category catalog.Category
	Title    string
	Columns  []string
	Rows     [][]string
	Missing  bool
	Rejected int
}

type categoryView struct {
	Category catalog.Category
	Title    string
	Count    int
	Selected bool
}

type pageView struct {
	SessionID string
	Page      session.Page
	Pages     []session.Page

	Project     core.ProjectContext
	Extra       string
	Tolerances  []string
	MinFs       int
	MaxFs       int
	Stages      []stageView
	Core        stageView
	ShowResults bool

	Requirements   core.Requirements
	MusicStyles    []string
	Goals          []string
	Categories     []categoryView
	Table          tableView
	Recommendation session.Recommendation

	// Warning is non-blocking; Notice blocks the pipeline until resolved.
	Warning string
	Notice  string
}

var stageCopy = map[core.Stage]struct{ placeholder, action string }{
	core.StageArchitect:  {"e.g. 'Make the box smaller'", "Retune Architect"},
	core.StageStructural: {"e.g. 'I have a sunroof'", "Re-Test Structural"},
	core.StageThermal:    {"e.g. 'I have lithium batts'", "Re-Check Thermal"},
	core.StageCore:       {"", "Synthesize Final Plan"},
}

func (h *Handler) view(sess *session.Session, category string) pageView {
	stale := core.Staleness(sess)

	stageOf := func(stage core.Stage) stageView {
		rec := sess.StageRecord(stage)
		c := stageCopy[stage]
		return stageView{
			Stage:       stage,
			Title:       stage.Title(),
			Output:      rec.Output,
			HasRun:      rec.HasRun(),
			Stale:       stale[stage],
			Placeholder: c.placeholder,
			Action:      c.action,
		}
	}

	v := pageView{
		SessionID:      sess.ID(),
		Page:           sess.Page(),
		Pages:          session.Pages,
		Project:        sess.Project(),
		Extra:          sess.ExtraInstructions(),
		Tolerances:     core.Tolerances,
		MinFs:          core.MinFrequency,
		MaxFs:          core.MaxFrequency,
		Core:           stageOf(core.StageCore),
		Requirements:   core.DefaultRequirements(),
		MusicStyles:    core.MusicStyles,
		Goals:          core.Goals,
		Recommendation: sess.Recommendation(),
	}
	for _, stage := range core.SimulationStages {
		v.Stages = append(v.Stages, stageOf(stage))
	}
	v.ShowResults = v.Stages[0].HasRun

	cat, err := catalog.ParseCategory(category)
	if err != nil {
		cat = catalog.Subwoofers
		if r, perr := catalog.ParseCategory(v.Recommendation.Category); perr == nil {
			cat = r
		}
	}
	for _, c := range catalog.Categories {
		v.Categories = append(v.Categories, categoryView{
			Category: c,
			Title:    c.Title(),
			Count:    h.catalog.Len(c),
			Selected: c == cat,
		})
	}

	v.Table = tableView{
		Category: cat,
		Title:    cat.Title(),
		Columns:  catalog.Columns(cat),
		Missing:  h.catalog.Missing(cat),
		Rejected: h.catalog.Rejected(cat),
	}
	for _, item := range h.catalog.Items(cat) {
		v.Table.Rows = append(v.Table.Rows, item.Row())
	}

	return v
}
