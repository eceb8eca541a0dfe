package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/alphaaudio/internal/agent"
	"github.com/vampirenirmal/alphaaudio/internal/catalog"
	"github.com/vampirenirmal/alphaaudio/internal/core"
	"github.com/vampirenirmal/alphaaudio/internal/export"
	"github.com/vampirenirmal/alphaaudio/internal/session"
	"github.com/vampirenirmal/alphaaudio/internal/storage"
)

type fixedStatus string

func (s fixedStatus) Selected() (string, bool) { return string(s), s != "" }

type testEnv struct {
	handler  http.Handler
	sessions *session.Manager
	client   *agent.MockClient
	cookie   *http.Cookie
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// stageReplies answers by role so outputs are easy to find in the page.
func stageReplies(prompt string) (string, error) {
	templates := catalog.DefaultTemplates()
	for _, role := range []string{catalog.RoleArchitect, catalog.RoleStructural, catalog.RoleThermal, catalog.RoleCore} {
		if strings.HasPrefix(prompt, templates[role]) {
			return strings.ToUpper(role) + "-REPLY", nil
		}
	}
	return "RECOMMEND-REPLY", nil
}

func newTestEnv(t *testing.T, selector core.Selector, client *agent.MockClient, store storage.Storage) *testEnv {
	t.Helper()
	if selector == nil {
		selector = agent.StaticSelector{Client: client}
	}
	roles := agent.NewRoles("", catalog.DefaultTemplates(), nil)
	sessions := session.NewManager(16, time.Hour, discard)
	cat := catalog.New(map[catalog.Category][]catalog.Item{
		catalog.Subwoofers: {
			catalog.Subwoofer{Base: catalog.Base{Brand: "Sundown Audio", Model: "Zv6 15"}, SizeIn: 15, RMSWatts: 2000},
			catalog.Subwoofer{Base: catalog.Base{Brand: "Skar Audio", Model: "EVL-15"}, SizeIn: 15, RMSWatts: 2500},
		},
	})

	h, err := NewHandler(Deps{
		Orchestrator: core.New(selector, roles, core.WithLogger(discard)),
		Prompts:      roles,
		Catalog:      cat,
		Sessions:     sessions,
		Exporter:     export.NewExporter(store, storage.NameTimestamp, discard),
		Status:       fixedStatus("gemini-2.5-flash"),
		Logger:       discard,
	})
	require.NoError(t, err)

	return &testEnv{handler: h.Routes(), sessions: sessions, client: client}
}

func (e *testEnv) do(t *testing.T, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			e.cookie = c
		}
	}
	return rec
}

func (e *testEnv) session(t *testing.T) *session.Session {
	t.Helper()
	require.NotNil(t, e.cookie)
	sess, ok := e.sessions.Get(e.cookie.Value)
	require.True(t, ok)
	return sess
}

func simulateForm() url.Values {
	return url.Values{
		"car":       {"2010 Honda Civic"},
		"subwoofer": {"2x Sundown Zv6 15"},
		"power":     {"5000W"},
		"fs":        {"32"},
		"tolerance": {"Flex"},
		"notes":     {""},
		"extra":     {"keep the spare tire"},
	}
}

func TestIndexIssuesSessionCookie(t *testing.T) {
	env := newTestEnv(t, nil, agent.NewEchoClient(), nil)

	rec := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.cookie)
	assert.True(t, env.cookie.HttpOnly)
	assert.Contains(t, rec.Body.String(), `value="2010 Honda Civic"`)

	first := env.cookie.Value
	rec = env.do(t, http.MethodGet, "/", nil)
	assert.Empty(t, rec.Result().Cookies(), "existing session must not be reissued")
	assert.Equal(t, first, env.cookie.Value)
	assert.Equal(t, 1, env.sessions.Len())
}

func TestSimulateRunsPipeline(t *testing.T) {
	client := agent.NewMockClient(stageReplies)
	env := newTestEnv(t, nil, client, nil)
	env.do(t, http.MethodGet, "/", nil)

	rec := env.do(t, http.MethodPost, "/simulate", simulateForm())
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "ARCHITECT-REPLY")
	assert.Contains(t, body, "STRUCTURAL-REPLY")
	assert.Contains(t, body, "THERMAL-REPLY")
	assert.Contains(t, body, "Retune Architect")

	sess := env.session(t)
	assert.Equal(t, "ARCHITECT-REPLY", sess.StageOutput(core.StageArchitect))
	assert.Equal(t, "keep the spare tire", sess.ExtraInstructions())
	assert.Equal(t, 32, sess.Project().Fs)
	assert.Equal(t, 3, client.Calls())
	assert.True(t, strings.HasSuffix(client.Prompts()[0], "\nkeep the spare tire"))
}

func TestSimulateRejectsInvalidInput(t *testing.T) {
	client := agent.NewEchoClient()
	env := newTestEnv(t, nil, client, nil)

	form := simulateForm()
	form.Set("fs", "thirty")
	rec := env.do(t, http.MethodPost, "/simulate", form)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "must be a whole number")

	form = simulateForm()
	form.Set("tolerance", "Mild")
	rec = env.do(t, http.MethodPost, "/simulate", form)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, client.Calls())
}

func TestSimulateWithoutEndpointShowsNotice(t *testing.T) {
	client := agent.NewEchoClient()
	selector := agent.StaticSelector{Err: fmt.Errorf("%w: 3 candidates failed", agent.ErrNoEndpoint)}
	env := newTestEnv(t, selector, client, nil)
	env.do(t, http.MethodGet, "/", nil)
	env.session(t).SetStageRecord(core.StageArchitect, core.StageRecord{Output: "kept", Revision: 1})

	rec := env.do(t, http.MethodPost, "/simulate", simulateForm())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "No working model found.")
	assert.Zero(t, client.Calls())
	assert.Equal(t, "kept", env.session(t).StageOutput(core.StageArchitect))
}

// switchSelector can be told to stop handing out its client mid-test.
type switchSelector struct {
	mu     sync.Mutex
	client agent.AIClient
	err    error
}

func (s *switchSelector) Select(ctx context.Context) (agent.AIClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}

func (s *switchSelector) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func TestFailedSimulationKeepsStoredProject(t *testing.T) {
	architectDown := false
	client := agent.NewMockClient(func(prompt string) (string, error) {
		if architectDown {
			return "", errors.New("quota exceeded")
		}
		return stageReplies(prompt)
	})
	selector := &switchSelector{client: client}
	env := newTestEnv(t, selector, client, nil)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/simulate", simulateForm()).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/synthesize", nil).Code)

	ranger := simulateForm()
	ranger.Set("car", "1999 Ford Ranger")
	ranger.Set("extra", "remove the rear seat")

	selector.fail(fmt.Errorf("%w: 2 candidates failed", agent.ErrNoEndpoint))
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodPost, "/simulate", ranger).Code)

	selector.fail(nil)
	architectDown = true
	assert.Equal(t, http.StatusBadGateway, env.do(t, http.MethodPost, "/simulate", ranger).Code)

	sess := env.session(t)
	assert.Equal(t, "2010 Honda Civic", sess.Project().Car)
	assert.Equal(t, "keep the spare tire", sess.ExtraInstructions())

	rec := env.do(t, http.MethodGet, "/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "- Vehicle: 2010 Honda Civic\n")
	assert.NotContains(t, body, "Ranger")
	assert.Contains(t, body, "ARCHITECT-REPLY")
}

func TestSimulateStoresExtraVerbatim(t *testing.T) {
	client := agent.NewMockClient(stageReplies)
	env := newTestEnv(t, nil, client, nil)

	form := simulateForm()
	form.Set("extra", "  keep the spare tire\n")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/simulate", form).Code)

	assert.Equal(t, "  keep the spare tire\n", env.session(t).ExtraInstructions())
	assert.True(t, strings.HasSuffix(client.Prompts()[0], "\n  keep the spare tire\n"))
}

func TestRefineStage(t *testing.T) {
	client := agent.NewMockClient(stageReplies)
	env := newTestEnv(t, nil, client, nil)
	env.do(t, http.MethodPost, "/simulate", simulateForm())

	rec := env.do(t, http.MethodPost, "/refine/structural", url.Values{"feedback": {"I have a sunroof"}})
	require.Equal(t, http.StatusOK, rec.Code)

	prompts := client.Prompts()
	last := prompts[len(prompts)-1]
	assert.Contains(t, last, "ORIGINAL DATA: STRUCTURAL-REPLY")
	assert.Contains(t, last, "USER FEEDBACK: I have a sunroof")

	sess := env.session(t)
	assert.Equal(t, 2, sess.StageRecord(core.StageStructural).Revision)
	assert.Equal(t, 1, sess.StageRecord(core.StageThermal).Revision)
}

func TestRefineRejectsUnknownStage(t *testing.T) {
	client := agent.NewEchoClient()
	env := newTestEnv(t, nil, client, nil)

	for _, stage := range []string{"core", "bass"} {
		rec := env.do(t, http.MethodPost, "/refine/"+stage, url.Values{"feedback": {"x"}})
		assert.Equal(t, http.StatusNotFound, rec.Code, stage)
	}
	assert.Zero(t, client.Calls())
}

func TestRefineFailureKeepsPreviousOutput(t *testing.T) {
	failing := false
	client := agent.NewMockClient(func(prompt string) (string, error) {
		if failing {
			return "", errors.New("quota exceeded")
		}
		return stageReplies(prompt)
	})
	env := newTestEnv(t, nil, client, nil)
	env.do(t, http.MethodPost, "/simulate", simulateForm())

	failing = true
	rec := env.do(t, http.MethodPost, "/refine/thermal", url.Values{"feedback": {"lithium batts"}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Thermal failed: quota exceeded. Previous results were kept; you can retry.")
	assert.Equal(t, "THERMAL-REPLY", env.session(t).StageOutput(core.StageThermal))
}

func TestSynthesizeAndExport(t *testing.T) {
	client := agent.NewMockClient(stageReplies)
	dir := t.TempDir()
	store := storage.NewFileSystem(dir)
	env := newTestEnv(t, nil, client, store)
	env.do(t, http.MethodPost, "/simulate", simulateForm())

	rec := env.do(t, http.MethodGet, "/export", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Synthesize a final plan before exporting.")

	rec = env.do(t, http.MethodPost, "/synthesize", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CORE-REPLY")

	rec = env.do(t, http.MethodGet, "/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "alphaaudio-report.md")
	assert.Contains(t, rec.Body.String(), "## Core Verdict\n\nCORE-REPLY\n")

	key := rec.Header().Get("X-Report-Key")
	require.NotEmpty(t, key)
	stored, err := store.Load(t.Context(), key)
	require.NoError(t, err)
	assert.Equal(t, rec.Body.String(), string(stored))
}

func TestSynthesizeWithoutSimulation(t *testing.T) {
	client := agent.NewMockClient(stageReplies)
	env := newTestEnv(t, nil, client, nil)

	rec := env.do(t, http.MethodPost, "/synthesize", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, client.Prompts()[0], "DATA: ARCH: \nSTRUCT: \nTHERM: ")
}

func TestRecommend(t *testing.T) {
	client := agent.NewMockClient(stageReplies)
	env := newTestEnv(t, nil, client, nil)

	form := url.Values{
		"category": {"subwoofers"},
		"budget":   {"1500"},
		"music":    {core.MusicStyles[0]},
		"goal":     {core.Goals[0]},
	}
	rec := env.do(t, http.MethodPost, "/recommend", form)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "RECOMMEND-REPLY")

	prompt := client.Prompts()[0]
	assert.True(t, strings.HasPrefix(prompt, catalog.DefaultTemplates()[catalog.RoleRecommender]))
	assert.Contains(t, prompt, "USER REQS: Budget: 1500, Music: "+core.MusicStyles[0])
	assert.Less(t, strings.Index(prompt, "Sundown"), strings.Index(prompt, "Skar"))

	sess := env.session(t)
	assert.Equal(t, session.PageGear, sess.Page())
	assert.Equal(t, "RECOMMEND-REPLY", sess.Recommendation().Text)
}

func TestRecommendValidation(t *testing.T) {
	client := agent.NewEchoClient()
	env := newTestEnv(t, nil, client, nil)

	rec := env.do(t, http.MethodPost, "/recommend", url.Values{"category": {"speakers"}, "budget": {"1"}, "music": {"x"}, "goal": {"y"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/recommend", url.Values{"category": {"amplifiers"}, "music": {"x"}, "goal": {"y"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, client.Calls())
}

func TestNavigation(t *testing.T) {
	env := newTestEnv(t, nil, agent.NewEchoClient(), nil)

	rec := env.do(t, http.MethodPost, "/nav", url.Values{"page": {"gear"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, session.PageGear, env.session(t).Page())

	rec = env.do(t, http.MethodGet, "/?category=subwoofers", nil)
	assert.Contains(t, rec.Body.String(), "Sundown Audio")

	env.do(t, http.MethodPost, "/nav", url.Values{"page": {"studio"}})
	assert.Equal(t, session.PageStudio, env.session(t).Page())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, agent.NewEchoClient(), nil)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, env.cookie, "health checks must not create sessions")

	var out struct {
		OK       bool           `json:"ok"`
		Sessions int            `json:"sessions"`
		Model    string         `json:"model"`
		Catalog  map[string]int `json:"catalog"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.OK)
	assert.Equal(t, "gemini-2.5-flash", out.Model)
	assert.Equal(t, 2, out.Catalog["subwoofers"])
	assert.Equal(t, 0, out.Catalog["amplifiers"])
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := CORS([]string{"http://localhost:3000"})(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDefaultsToSameOrigin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := CORS(nil)(next)

	req := httptest.NewRequest(http.MethodPost, "http://example.com/simulate", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodPost, "http://example.com/simulate", nil)
	req.Header.Set("Origin", "http://example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestProgressWebsocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, nil, agent.NewEchoClient(), nil)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {srv.URL}})
	require.NoError(t, err)
	conn.Close()
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	a, unsubA := hub.Subscribe("s1")
	b, unsubB := hub.Subscribe("s1")
	other, unsubOther := hub.Subscribe("s2")
	defer unsubOther()

	ev := core.Event{Kind: core.EventStageStarted, Stage: core.StageArchitect, Operation: "run"}
	hub.Observer("s1")(ev)

	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-b)
	select {
	case <-other:
		t.Fatal("event leaked to another session")
	default:
	}

	unsubA()
	unsubA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers("s1"))
	unsubB()
	assert.Zero(t, hub.Subscribers("s1"))
}

func TestHubDropsEventsForSlowListeners(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe("s1")
	defer unsubscribe()

	for i := 0; i < subscriberBuffer*2; i++ {
		hub.Publish("s1", core.Event{Kind: core.EventStageFinished})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestProgressWebsocket(t *testing.T) {
	client := agent.NewMockClient(stageReplies)
	env := newTestEnv(t, nil, client, nil)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Cookie": {cookie.String()}})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg progressWSOutbound
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "subscribed", msg.Type)
	assert.Equal(t, cookie.Value, msg.SessionID)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/synthesize", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "progress", msg.Type)
	assert.Equal(t, core.EventStageStarted, msg.Kind)
	assert.Equal(t, core.StageCore, msg.Stage)
	assert.Equal(t, "Core Verdict", msg.Title)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, core.EventStageFinished, msg.Kind)
	assert.Equal(t, "synthesize", msg.Operation)
}
