package domain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	adaptermocks "github.com/livngcorpse/jarvis/internal/adapter/mocks"
	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()

	return ctx.Err()
}

func newTestClient(gen *adaptermocks.MockGenerator, cfg GenerationClientConfig, clock *fakeClock) *generationClient {
	c := NewGenerationClient(gen, cfg, NewMetrics()).(*generationClient)
	if clock != nil {
		c.now = clock.Now
		c.sleep = clock.Sleep
	}

	return c
}

func TestGenerationClient_MinimumIntervalBetweenCalls(t *testing.T) {
	clock := newFakeClock()
	gen := adaptermocks.NewMockGenerator(t)

	const interval = 500 * time.Millisecond

	var starts []time.Time

	gen.On("Generate", mock.Anything, "ctx", "do it").
		Return(func(context.Context, string, string) (string, error) {
			starts = append(starts, clock.Now())
			clock.Advance(120 * time.Millisecond)

			return `{"files": [{"path": "a.py", "content": "x = 1"}]}`, nil
		}).Times(4)

	c := newTestClient(gen, GenerationClientConfig{MinInterval: interval, MaxAttempts: 1}, clock)

	for range 3 {
		_, err := c.GenerateChanges(context.Background(), "ctx", "do it")
		require.NoError(t, err)
	}

	clock.Advance(2 * time.Second)

	_, err := c.GenerateChanges(context.Background(), "ctx", "do it")
	require.NoError(t, err)

	require.Len(t, starts, 4)

	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), interval, "gap before call %d", i)
	}

	assert.Equal(t, []time.Duration{380 * time.Millisecond, 380 * time.Millisecond}, clock.sleeps)
}

func TestGenerationClient_ConcurrentCallersShareTheGate(t *testing.T) {
	defer goleak.VerifyNone(t)

	gen := adaptermocks.NewMockGenerator(t)
	gen.On("Classify", mock.Anything, mock.Anything).
		Return(`{"type": "NORMAL_CHAT", "targets": [], "summary": "hi"}`, nil)

	const (
		interval = 20 * time.Millisecond
		callers  = 4
	)

	c := NewGenerationClient(gen, GenerationClientConfig{MinInterval: interval, MaxAttempts: 1}, nil)

	started := time.Now()

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			got := c.ClassifyIntent(context.Background(), "hello")
			assert.Equal(t, m.IntentNormalChat, got.Type)
		}()
	}

	wg.Wait()

	assert.GreaterOrEqual(t, time.Since(started), (callers-1)*interval)
	gen.AssertNumberOfCalls(t, "Classify", callers)
}

func TestGenerationClient_RetriesWithBackoff(t *testing.T) {
	clock := newFakeClock()
	gen := adaptermocks.NewMockGenerator(t)

	transient := errors.New("503 unavailable")

	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", transient).Twice()
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("--- a.py ---\nprint(1)", nil).Once()

	c := newTestClient(gen, GenerationClientConfig{MaxAttempts: 3, BaseDelay: time.Second}, clock)

	resp, err := c.GenerateChanges(context.Background(), "ctx", "task")
	require.NoError(t, err)
	assert.Equal(t, "--- a.py ---\nprint(1)", resp.Text)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.sleeps)
}

func TestGenerationClient_ExhaustedRetriesPropagate(t *testing.T) {
	clock := newFakeClock()
	gen := adaptermocks.NewMockGenerator(t)

	last := errors.New("quota exceeded")

	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("timeout")).Twice()
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", last).Once()

	c := newTestClient(gen, GenerationClientConfig{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}, clock)

	_, err := c.GenerateChanges(context.Background(), "ctx", "task")
	require.Error(t, err)
	assert.ErrorIs(t, err, m.ErrGenerationFailure)
	assert.ErrorIs(t, err, last)

	gen.AssertNumberOfCalls(t, "Generate", 3)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, clock.sleeps)
}

func TestGenerationClient_CancelledContextStopsRetrying(t *testing.T) {
	defer goleak.VerifyNone(t)

	gen := adaptermocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("down")).Once()

	c := NewGenerationClient(gen, GenerationClientConfig{MaxAttempts: 5, BaseDelay: time.Hour}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.GenerateChanges(ctx, "ctx", "task")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestGenerationClient_ClassifyIntent(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  m.Classification
	}{
		{
			name:  "dev instruction",
			reply: `{"type": "DEV_INSTRUCTION", "targets": ["app/util.py"], "summary": " add a helper "}`,
			want:  m.Classification{Type: m.IntentDevInstruction, Targets: []string{"app/util.py"}, Summary: "add a helper"},
		},
		{
			name:  "fenced reply",
			reply: "```json\n{\"type\": \"NORMAL_CHAT\", \"summary\": \"greeting\"}\n```",
			want:  m.Classification{Type: m.IntentNormalChat, Targets: []string{}, Summary: "greeting"},
		},
		{
			name:  "unknown type",
			reply: `{"type": "SOMETHING_ELSE"}`,
			want:  m.DefaultClassification(),
		},
		{
			name:  "not json",
			reply: "I think this is a dev request",
			want:  m.DefaultClassification(),
		},
		{
			name: "service failure",
			err:  errors.New("boom"),
			want: m.DefaultClassification(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := adaptermocks.NewMockGenerator(t)
			gen.On("Classify", mock.Anything, "text").Return(tt.reply, tt.err)

			c := newTestClient(gen, GenerationClientConfig{MaxAttempts: 2}, newFakeClock())

			assert.Equal(t, tt.want, c.ClassifyIntent(context.Background(), "text"))
		})
	}
}
