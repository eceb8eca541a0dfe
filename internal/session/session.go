package session

import (
	"sync"
	"time"

	"github.com/vampirenirmal/alphaaudio/internal/core"
)

// Fixed keys.
const (
	KeyPage           = "page"
	KeyProject        = "project"
	KeyExtra          = "extra_instructions"
	KeyRecommendation = "recommendation"
)

// Page is the selected navigation page.
type Page string

const (
	PageStudio Page = "studio"
	PageGear   Page = "gear"
)

// Pages lists the navigation targets. Any page is reachable from any other.
var Pages = []Page{PageStudio, PageGear}

// ParsePage returns the page for a form value, defaulting to the studio.
func ParsePage(s string) Page {
	for _, p := range Pages {
		if string(p) == s {
			return p
		}
	}
	return PageStudio
}

// Recommendation is the last recommender answer shown in the gear lab.
type Recommendation struct {
	Category     string `json:"category"`
	Requirements string `json:"requirements"`
	Text         string `json:"text"`
}

// Session is the state of one browser session. Values live until the
// session itself is discarded; there is no per-key delete or expiry.
//
// Handlers hold the action lock for the duration of one user action so two
// requests from the same browser never interleave.
type Session struct {
	id      string
	created time.Time

	action sync.Mutex

	mu     sync.RWMutex
	values map[string]any
}

// New creates an empty session.
func New(id string) *Session {
	return &Session{
		id:      id,
		created: time.Now(),
		values:  make(map[string]any),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Created() time.Time { return s.created }

// Lock serializes user actions on this session.
func (s *Session) Lock() { s.action.Lock() }

// Unlock releases the action lock.
func (s *Session) Unlock() { s.action.Unlock() }

// GetOrInit returns the stored value, or stores and returns def when the
// key is absent. A key that was written is never changed by GetOrInit.
func (s *Session) GetOrInit(key string, def any) any {
	s.mu.RLock()
	v, ok := s.values[key]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	s.values[key] = def
	return def
}

// Get returns the stored value without initializing it.
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set overwrites key unconditionally.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

// Keys returns the number of stored keys.
func (s *Session) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// StageRecord implements core.State.
func (s *Session) StageRecord(stage core.Stage) core.StageRecord {
	rec, _ := s.GetOrInit(stage.Key(), core.StageRecord{}).(core.StageRecord)
	return rec
}

// SetStageRecord implements core.State.
func (s *Session) SetStageRecord(stage core.Stage, rec core.StageRecord) {
	s.Set(stage.Key(), rec)
}

// StageOutput returns the stored text for the stage, "" before first run.
func (s *Session) StageOutput(stage core.Stage) string {
	return s.StageRecord(stage).Output
}

// Page returns the selected page.
func (s *Session) Page() Page {
	p, _ := s.GetOrInit(KeyPage, PageStudio).(Page)
	return p
}

func (s *Session) SetPage(p Page) {
	s.Set(KeyPage, p)
}

// Project returns the last submitted project context, or the form defaults.
func (s *Session) Project() core.ProjectContext {
	p, _ := s.GetOrInit(KeyProject, core.DefaultProject()).(core.ProjectContext)
	return p
}

func (s *Session) SetProject(p core.ProjectContext) {
	s.Set(KeyProject, p)
}

// ExtraInstructions returns the free-text additions for the Architect.
func (s *Session) ExtraInstructions() string {
	v, _ := s.GetOrInit(KeyExtra, "").(string)
	return v
}

func (s *Session) SetExtraInstructions(v string) {
	s.Set(KeyExtra, v)
}

// Recommendation returns the last recommender answer.
func (s *Session) Recommendation() Recommendation {
	r, _ := s.GetOrInit(KeyRecommendation, Recommendation{}).(Recommendation)
	return r
}

func (s *Session) SetRecommendation(r Recommendation) {
	s.Set(KeyRecommendation, r)
}
