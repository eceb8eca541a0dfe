package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// CanaryPrompt is the throwaway request used to test a candidate model.
const CanaryPrompt = "test"

// ClientFactory builds a client for one model identifier.
type ClientFactory func(ctx context.Context, model string) (AIClient, error)

// ProbeResult records the outcome of one canary request.
type ProbeResult struct {
	Model    string
	OK       bool
	Err      error
	Duration time.Duration
}

// EndpointSelector picks the first model in priority order that answers the
// canary probe. The winner is remembered for ttl; a zero ttl probes on
// every Select. Concurrent selections share a single probe.
type EndpointSelector struct {
	models  []string
	factory ClientFactory
	wrap    func(model string, c AIClient) AIClient
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	limiter      *rate.Limiter
	probeTimeout time.Duration

	group singleflight.Group

	mu         sync.Mutex
	selected   AIClient
	model      string
	selectedAt time.Time
}

type SelectorOption func(*EndpointSelector)

// WithSelectionTTL sets how long a successful probe is trusted.
func WithSelectionTTL(ttl time.Duration) SelectorOption {
	return func(s *EndpointSelector) {
		s.ttl = ttl
	}
}

// WithClientWrapper decorates the selected client, e.g. with NewClient.
// Probes go through the undecorated client; see WithProbeLimits.
func WithClientWrapper(wrap func(model string, c AIClient) AIClient) SelectorOption {
	return func(s *EndpointSelector) {
		s.wrap = wrap
	}
}

// WithProbeLimits makes every canary wait on limiter and bounds it by
// timeout. Pass the limiter shared with the wrapped clients.
func WithProbeLimits(limiter *rate.Limiter, timeout time.Duration) SelectorOption {
	return func(s *EndpointSelector) {
		s.limiter = limiter
		s.probeTimeout = timeout
	}
}

func WithSelectorLogger(logger *slog.Logger) SelectorOption {
	return func(s *EndpointSelector) {
		s.logger = logger.With("component", "endpoint_selector")
	}
}

func NewEndpointSelector(models []string, factory ClientFactory, opts ...SelectorOption) *EndpointSelector {
	cleaned := make([]string, 0, len(models))
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	s := &EndpointSelector{
		models:  cleaned,
		factory: factory,
		logger:  slog.Default().With("component", "endpoint_selector"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Models returns the candidate list in priority order.
func (s *EndpointSelector) Models() []string {
	return append([]string(nil), s.models...)
}

// Selected returns the model chosen by the last successful probe.
func (s *EndpointSelector) Selected() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model, s.selected != nil
}

// Invalidate forgets the cached winner so the next Select probes again.
func (s *EndpointSelector) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.model = ""
}

// Select returns a working client or ErrNoEndpoint.
func (s *EndpointSelector) Select(ctx context.Context) (AIClient, error) {
	if c := s.cached(); c != nil {
		return c, nil
	}

	v, err, shared := s.group.Do("select", func() (interface{}, error) {
		if c := s.cached(); c != nil {
			return c, nil
		}
		return s.probeFirst(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("joined in-flight endpoint probe")
	}
	return v.(AIClient), nil
}

func (s *EndpointSelector) cached() AIClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil || s.ttl <= 0 {
		return nil
	}
	if s.now().Sub(s.selectedAt) >= s.ttl {
		return nil
	}
	return s.selected
}

func (s *EndpointSelector) probeFirst(ctx context.Context) (AIClient, error) {
	for _, model := range s.models {
		client, res := s.probe(ctx, model)
		if !res.OK {
			s.logger.Warn("model failed canary probe",
				"model", model,
				"duration_ms", res.Duration.Milliseconds(),
				"error", res.Err)
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrNoEndpoint, ctx.Err())
			}
			continue
		}

		if s.wrap != nil {
			client = s.wrap(model, client)
		}
		s.mu.Lock()
		s.selected = client
		s.model = model
		s.selectedAt = s.now()
		s.mu.Unlock()

		s.logger.Info("endpoint selected",
			"model", model,
			"duration_ms", res.Duration.Milliseconds())
		return client, nil
	}

	s.logger.Error("no working model found", "candidates", len(s.models))
	return nil, fmt.Errorf("%w: %d candidates failed", ErrNoEndpoint, len(s.models))
}

// ProbeAll sends the canary to every candidate and reports each outcome.
// It does not change the cached selection.
func (s *EndpointSelector) ProbeAll(ctx context.Context) []ProbeResult {
	results := make([]ProbeResult, 0, len(s.models))
	for _, model := range s.models {
		_, res := s.probe(ctx, model)
		results = append(results, res)
	}
	return results
}

func (s *EndpointSelector) probe(ctx context.Context, model string) (AIClient, ProbeResult) {
	start := time.Now()
	res := ProbeResult{Model: model}

	client, err := s.factory(ctx, model)
	if err == nil {
		err = s.canary(ctx, client)
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return nil, res
	}
	res.OK = true
	return client, res
}

func (s *EndpointSelector) canary(ctx context.Context, client AIClient) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}
	}
	if s.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.probeTimeout)
		defer cancel()
	}
	_, err := client.Complete(ctx, CanaryPrompt)
	return err
}
