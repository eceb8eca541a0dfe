package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/vampirenirmal/alphaaudio/internal/catalog"
	"github.com/vampirenirmal/alphaaudio/internal/core"
	"github.com/vampirenirmal/alphaaudio/internal/export"
	"github.com/vampirenirmal/alphaaudio/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Status reports the currently selected endpoint, if any.
type Status interface {
	Selected() (string, bool)
}

// Deps are the collaborators a Handler needs.
type Deps struct {
	Orchestrator   *core.Orchestrator
	Prompts        core.RolePrompts
	Catalog        *catalog.Catalog
	Sessions       *session.Manager
	Exporter       *export.Exporter
	Hub            *Hub
	Status         Status
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Handler serves the studio and gear lab pages.
type Handler struct {
	orch     *core.Orchestrator
	prompts  core.RolePrompts
	catalog  *catalog.Catalog
	sessions *session.Manager
	exporter *export.Exporter
	hub      *Hub
	status   Status
	origins  []string
	upgrader *websocket.Upgrader
	pages    *template.Template
	logger   *slog.Logger
}

func NewHandler(d Deps) (*Handler, error) {
	if d.Orchestrator == nil || d.Sessions == nil || d.Prompts == nil {
		return nil, fmt.Errorf("orchestrator, prompts and session manager are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Hub == nil {
		d.Hub = NewHub()
	}
	if d.Catalog == nil {
		d.Catalog = catalog.New(nil)
	}
	if d.Exporter == nil {
		d.Exporter = export.NewExporter(nil, 0, d.Logger)
	}

	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	return &Handler{
		orch:     d.Orchestrator,
		prompts:  d.Prompts,
		catalog:  d.Catalog,
		sessions: d.Sessions,
		exporter: d.Exporter,
		hub:      d.Hub,
		status:   d.Status,
		origins:  d.AllowedOrigins,
		upgrader: newProgressUpgrader(d.AllowedOrigins),
		pages:    pages,
		logger:   d.Logger.With("component", "handler"),
	}, nil
}

// Routes returns the full middleware-wrapped mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("POST /nav", h.handleNav)
	mux.HandleFunc("POST /simulate", h.handleSimulate)
	mux.HandleFunc("POST /refine/{stage}", h.handleRefine)
	mux.HandleFunc("POST /synthesize", h.handleSynthesize)
	mux.HandleFunc("POST /recommend", h.handleRecommend)
	mux.HandleFunc("GET /export", h.handleExport)
	mux.HandleFunc("GET /ws", h.handleProgress)

	// Health sits outside the session middleware.
	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", h.handleHealth)
	root.Handle("/", Sessions(h.sessions)(mux))

	var handler http.Handler = root
	handler = CORS(h.origins)(handler)
	handler = RequestLogger(h.logger)(handler)
	return handler
}

// actionContext detaches a user action from the request: a generation call
// runs to completion even when the browser goes away.
func (h *Handler) actionContext(r *http.Request, sess *session.Session) context.Context {
	ctx := context.WithoutCancel(r.Context())
	return core.WithObserver(ctx, h.hub.Observer(sess.ID()))
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	v := h.view(sess, r.URL.Query().Get("category"))
	h.render(w, http.StatusOK, v)
}

func (h *Handler) handleNav(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		h.renderWarning(w, sess, http.StatusBadRequest, "", "Could not read the form.")
		return
	}

	sess.Lock()
	sess.SetPage(session.ParsePage(r.PostFormValue("page")))
	sess.Unlock()

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		h.renderWarning(w, sess, http.StatusBadRequest, "", "Could not read the form.")
		return
	}

	project, err := projectFromForm(r)
	if err == nil {
		err = project.Validate()
	}
	if err != nil {
		h.renderWarning(w, sess, http.StatusUnprocessableEntity, "", err.Error())
		return
	}
	extra := r.PostFormValue("extra")

	sess.Lock()
	defer sess.Unlock()

	sess.SetPage(session.PageStudio)

	result, err := h.orch.RunFullPipeline(h.actionContext(r, sess), sess, project, extra)
	// The form values belong to the stored outputs only once Architect has
	// committed.
	if result.Architect != "" {
		sess.SetProject(project)
		sess.SetExtraInstructions(extra)
	}
	if err != nil {
		h.logger.Warn("simulation failed", "session_id", sess.ID(), "error", err)
		h.renderFailure(w, sess, err)
		return
	}

	h.render(w, http.StatusOK, h.view(sess, ""))
}

func (h *Handler) handleRefine(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	stage, err := core.ParseStage(r.PathValue("stage"))
	if err != nil || stage == core.StageCore {
		h.renderWarning(w, sess, http.StatusNotFound, "", fmt.Sprintf("Unknown stage %q.", r.PathValue("stage")))
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderWarning(w, sess, http.StatusBadRequest, "", "Could not read the form.")
		return
	}
	feedback := strings.TrimSpace(r.PostFormValue("feedback"))

	sess.Lock()
	defer sess.Unlock()

	if _, err := h.orch.Refine(h.actionContext(r, sess), sess, stage, feedback); err != nil {
		h.logger.Warn("refine failed", "session_id", sess.ID(), "stage", stage, "error", err)
		h.renderFailure(w, sess, err)
		return
	}

	h.render(w, http.StatusOK, h.view(sess, ""))
}

func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	sess.Lock()
	defer sess.Unlock()

	if _, err := h.orch.Synthesize(h.actionContext(r, sess), sess); err != nil {
		h.logger.Warn("synthesis failed", "session_id", sess.ID(), "error", err)
		h.renderFailure(w, sess, err)
		return
	}

	h.render(w, http.StatusOK, h.view(sess, ""))
}

func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		h.renderWarning(w, sess, http.StatusBadRequest, "", "Could not read the form.")
		return
	}

	cat := catalog.Subwoofers
	if v := r.PostFormValue("category"); v != "" {
		parsed, err := catalog.ParseCategory(v)
		if err != nil {
			h.renderWarning(w, sess, http.StatusUnprocessableEntity, "", err.Error())
			return
		}
		cat = parsed
	}

	reqs := core.Requirements{
		Budget: strings.TrimSpace(r.PostFormValue("budget")),
		Music:  strings.TrimSpace(r.PostFormValue("music")),
		Goal:   strings.TrimSpace(r.PostFormValue("goal")),
	}
	if err := reqs.Validate(); err != nil {
		h.renderWarning(w, sess, http.StatusUnprocessableEntity, string(cat), err.Error())
		return
	}

	sess.Lock()
	defer sess.Unlock()

	sess.SetPage(session.PageGear)
	rolePrompt := h.prompts.RolePrompt(catalog.RecommenderKey(cat))
	text, err := h.orch.Recommend(h.actionContext(r, sess), rolePrompt, reqs.String(), h.catalog.Items(cat))
	if err != nil {
		h.logger.Warn("recommendation failed", "session_id", sess.ID(), "category", cat, "error", err)
		h.renderFailure(w, sess, err)
		return
	}

	sess.SetRecommendation(session.Recommendation{
		Category:     string(cat),
		Requirements: reqs.String(),
		Text:         text,
	})
	h.render(w, http.StatusOK, h.view(sess, string(cat)))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	sess.Lock()
	defer sess.Unlock()

	if !sess.StageRecord(core.StageCore).HasRun() {
		h.renderWarning(w, sess, http.StatusConflict, "", "Synthesize a final plan before exporting.")
		return
	}

	report := export.FromState(sess.ID(), sess.Project(), sess)
	key, data, err := h.exporter.Export(context.WithoutCancel(r.Context()), report)
	if err != nil {
		// The download still works; only the stored copy is missing.
		h.logger.Warn("export not stored", "session_id", sess.ID(), "error", err)
	}
	if key != "" {
		w.Header().Set("X-Report-Key", key)
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="alphaaudio-report.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ok":       true,
		"sessions": h.sessions.Len(),
	}
	if h.status != nil {
		if model, ok := h.status.Selected(); ok {
			out["model"] = model
		}
	}
	counts := make(map[string]int, len(catalog.Categories))
	for _, cat := range catalog.Categories {
		counts[string(cat)] = h.catalog.Len(cat)
	}
	out["catalog"] = counts

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// renderFailure maps an orchestrator error to a page with an inline
// warning. Stored state is whatever the orchestrator committed.
func (h *Handler) renderFailure(w http.ResponseWriter, sess *session.Session, err error) {
	switch {
	case core.IsValidationError(err):
		h.renderWarning(w, sess, http.StatusUnprocessableEntity, "", err.Error())
	case core.IsEndpointUnavailable(err):
		v := h.view(sess, "")
		v.Notice = "No working model found. Check the API key and model list, then try again."
		h.render(w, http.StatusServiceUnavailable, v)
	case core.IsStageFailure(err):
		stage, _ := core.FailedStage(err)
		var stageErr *core.StageError
		cause := err
		if errors.As(err, &stageErr) {
			cause = stageErr.Cause
		}
		h.renderWarning(w, sess, http.StatusBadGateway, "",
			fmt.Sprintf("%s failed: %v. Previous results were kept; you can retry.", stage.Title(), cause))
	default:
		h.renderWarning(w, sess, http.StatusBadGateway, "", fmt.Sprintf("Generation failed: %v", err))
	}
}

func (h *Handler) renderWarning(w http.ResponseWriter, sess *session.Session, status int, category, msg string) {
	v := h.view(sess, category)
	v.Warning = msg
	h.render(w, status, v)
}

func (h *Handler) render(w http.ResponseWriter, status int, v pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages.ExecuteTemplate(w, "index.html", v); err != nil {
		h.logger.Error("render failed", "error", err)
	}
}

func projectFromForm(r *http.Request) (core.ProjectContext, error) {
	fs := core.DefaultFrequency
	if raw := strings.TrimSpace(r.PostFormValue("fs")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return core.ProjectContext{}, &core.ValidationError{Field: "fs", Message: "must be a whole number", Value: raw}
		}
		fs = n
	}
	return core.ProjectContext{
		Car:       strings.TrimSpace(r.PostFormValue("car")),
		Subwoofer: strings.TrimSpace(r.PostFormValue("subwoofer")),
		Power:     strings.TrimSpace(r.PostFormValue("power")),
		Fs:        fs,
		Tolerance: strings.TrimSpace(r.PostFormValue("tolerance")),
		Notes:     strings.TrimSpace(r.PostFormValue("notes")),
	}, nil
}
