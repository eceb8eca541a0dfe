package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEndpoints builds clients per model; models listed in failing reject
// every request.
type fakeEndpoints struct {
	mu      sync.Mutex
	failing map[string]bool
	clients map[string]*MockClient
	built   []string
}

func newFakeEndpoints(failing ...string) *fakeEndpoints {
	f := &fakeEndpoints{failing: map[string]bool{}, clients: map[string]*MockClient{}}
	for _, m := range failing {
		f.failing[m] = true
	}
	return f
}

func (f *fakeEndpoints) factory(ctx context.Context, model string) (AIClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, model)
	if c, ok := f.clients[model]; ok {
		return c, nil
	}
	var c *MockClient
	if f.failing[model] {
		c = NewFailingClient(errors.New("404 model not found"))
	} else {
		c = NewMockClient(func(prompt string) (string, error) {
			return model + ":" + prompt, nil
		})
	}
	f.clients[model] = c
	return c, nil
}

func (f *fakeEndpoints) builds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.built...)
}

func TestSelectFirstWorkingModel(t *testing.T) {
	f := newFakeEndpoints("m1")
	s := NewEndpointSelector([]string{"m1", " m2 ", "m3"}, f.factory)

	client, err := s.Select(context.Background())
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "m2:hi", out)

	model, ok := s.Selected()
	assert.True(t, ok)
	assert.Equal(t, "m2", model)
	// m3 is never probed once m2 answers.
	assert.Equal(t, []string{"m1", "m2"}, f.builds())
	assert.Equal(t, []string{CanaryPrompt}, f.clients["m1"].Prompts())
}

func TestSelectNoEndpoint(t *testing.T) {
	f := newFakeEndpoints("m1", "m2")
	s := NewEndpointSelector([]string{"m1", "m2"}, f.factory)

	client, err := s.Select(context.Background())
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrNoEndpoint)

	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestSelectEmptyCandidates(t *testing.T) {
	s := NewEndpointSelector([]string{"", "  "}, newFakeEndpoints().factory)
	_, err := s.Select(context.Background())
	assert.ErrorIs(t, err, ErrNoEndpoint)
	assert.Empty(t, s.Models())
}

func TestSelectFactoryError(t *testing.T) {
	factory := func(ctx context.Context, model string) (AIClient, error) {
		if model == "bad" {
			return nil, errors.New("invalid model name")
		}
		return NewEchoClient(), nil
	}
	s := NewEndpointSelector([]string{"bad", "good"}, factory)

	_, err := s.Select(context.Background())
	require.NoError(t, err)
	model, _ := s.Selected()
	assert.Equal(t, "good", model)
}

func TestSelectWithoutTTLProbesEveryTime(t *testing.T) {
	f := newFakeEndpoints()
	s := NewEndpointSelector([]string{"m1"}, f.factory)

	for i := 0; i < 3; i++ {
		_, err := s.Select(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, f.clients["m1"].Prompts(), 3)
}

func TestSelectTTLCache(t *testing.T) {
	f := newFakeEndpoints()
	s := NewEndpointSelector([]string{"m1"}, f.factory, WithSelectionTTL(time.Minute))

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Select(context.Background())
	require.NoError(t, err)
	_, err = s.Select(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.clients["m1"].Prompts(), 1)

	now = now.Add(2 * time.Minute)
	_, err = s.Select(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.clients["m1"].Prompts(), 2)

	s.Invalidate()
	_, ok := s.Selected()
	assert.False(t, ok)
	_, err = s.Select(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.clients["m1"].Prompts(), 3)
}

func TestSelectConcurrentCallersShareProbe(t *testing.T) {
	f := newFakeEndpoints()
	s := NewEndpointSelector([]string{"m1"}, f.factory, WithSelectionTTL(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Select(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Callers either joined the in-flight probe or hit the cache.
	assert.Len(t, f.clients["m1"].Prompts(), 1)
}

func TestSelectAppliesWrapper(t *testing.T) {
	f := newFakeEndpoints()
	var wrapped []string
	s := NewEndpointSelector([]string{"m1"}, f.factory, WithClientWrapper(func(model string, c AIClient) AIClient {
		wrapped = append(wrapped, model)
		return NewClient(c, model, WithRetry(0))
	}))

	client, err := s.Select(context.Background())
	require.NoError(t, err)
	c, ok := client.(*Client)
	require.True(t, ok)
	assert.Equal(t, "m1", c.Model())
	assert.Equal(t, []string{"m1"}, wrapped)
}

func TestProbeAll(t *testing.T) {
	f := newFakeEndpoints("m2")
	s := NewEndpointSelector([]string{"m1", "m2", "m3"}, f.factory)

	results := s.ProbeAll(context.Background())
	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.Error(t, results[1].Err)
	assert.True(t, results[2].OK)

	_, ok := s.Selected()
	assert.False(t, ok, "probing all models must not change the selection")
}

func TestProbeTimeoutMovesToNextModel(t *testing.T) {
	calls := 0
	hung := &slowClient{delay: 5 * time.Second, fastAfter: 1, calls: &calls}
	healthy := NewEchoClient()
	factory := func(ctx context.Context, model string) (AIClient, error) {
		if model == "m1" {
			return hung, nil
		}
		return healthy, nil
	}
	s := NewEndpointSelector([]string{"m1", "m2"}, factory, WithProbeLimits(nil, 20*time.Millisecond))

	start := time.Now()
	client, err := s.Select(context.Background())
	require.NoError(t, err)
	assert.Same(t, healthy, client)
	assert.Less(t, time.Since(start), 2*time.Second)

	model, _ := s.Selected()
	assert.Equal(t, "m2", model)
}

func TestProbeWaitsOnSharedLimiter(t *testing.T) {
	f := newFakeEndpoints()
	limiter := NewLimiter(60, 1)
	require.True(t, limiter.Allow())

	s := NewEndpointSelector([]string{"m1"}, f.factory, WithProbeLimits(limiter, time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Select(ctx)
	assert.ErrorIs(t, err, ErrNoEndpoint)
	assert.Empty(t, f.clients["m1"].Prompts())
}
