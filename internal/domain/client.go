package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/livngcorpse/jarvis/internal/adapter"
	m "github.com/livngcorpse/jarvis/internal/model"
)

// GenerationClientConfig bounds how the generator backend is called.
type GenerationClientConfig struct {
	// MinInterval is the minimum gap between the starts of two calls.
	MinInterval time.Duration
	// MaxAttempts caps tries per operation, the first included.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt; it doubles after
	// every further failure.
	BaseDelay time.Duration
	// Timeout bounds a single attempt. Zero means no per-attempt limit.
	Timeout time.Duration
}

// GenerationClient is the rate-limited, retrying front of a Generator. One
// instance is shared by every caller in the process.
type GenerationClient interface {
	// GenerateChanges asks for a change set. Errors wrap ErrGenerationFailure.
	GenerateChanges(ctx context.Context, projectContext, instruction string) (m.GenerationResponse, error)
	// ClassifyIntent never fails; it falls back to NORMAL_CHAT.
	ClassifyIntent(ctx context.Context, text string) m.Classification
}

type generationClient struct {
	backend adapter.Generator
	cfg     GenerationClientConfig
	metrics *Metrics

	mu       sync.Mutex
	lastCall time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGenerationClient wraps backend. metrics may be nil.
func NewGenerationClient(backend adapter.Generator, cfg GenerationClientConfig, metrics *Metrics) GenerationClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return &generationClient{
		backend: backend,
		cfg:     cfg,
		metrics: metrics,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// wait reserves the next call slot and sleeps until it starts. Slots are
// handed out under the lock, so concurrent callers queue behind each other.
func (c *generationClient) wait(ctx context.Context) error {
	c.mu.Lock()

	now := c.now()
	start := now

	if !c.lastCall.IsZero() {
		if next := c.lastCall.Add(c.cfg.MinInterval); next.After(now) {
			start = next
		}
	}

	c.lastCall = start
	c.mu.Unlock()

	if delay := start.Sub(now); delay > 0 {
		slog.Debug("Rate limiting generator call", "delay", delay)
		return c.sleep(ctx, delay)
	}

	return ctx.Err()
}

func (c *generationClient) call(ctx context.Context, operation string, fn func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error

	for attempt := range c.cfg.MaxAttempts {
		if attempt > 0 {
			delay := c.cfg.BaseDelay * time.Duration(1<<(attempt-1))
			slog.Warn("Retrying generator call", "operation", operation, "attempt", attempt+1, "delay", delay, "error", lastErr)

			if err := c.sleep(ctx, delay); err != nil {
				return "", fmt.Errorf("%w: %w", err, lastErr)
			}
		}

		if err := c.wait(ctx); err != nil {
			if lastErr != nil {
				return "", fmt.Errorf("%w: %w", err, lastErr)
			}

			return "", err
		}

		reply, err := c.attempt(ctx, fn)
		c.metrics.GenerationAttempt(operation, err)

		if err == nil {
			return reply, nil
		}

		lastErr = err
	}

	slog.Error("Generator call failed", "operation", operation, "attempts", c.cfg.MaxAttempts, "error", lastErr)

	return "", lastErr
}

func (c *generationClient) attempt(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	return fn(ctx)
}

func (c *generationClient) GenerateChanges(ctx context.Context, projectContext, instruction string) (m.GenerationResponse, error) {
	reply, err := c.call(ctx, "generate", func(ctx context.Context) (string, error) {
		return c.backend.Generate(ctx, projectContext, instruction)
	})
	if err != nil {
		return m.GenerationResponse{}, fmt.Errorf("%w: %w", m.ErrGenerationFailure, err)
	}

	return ParseGenerationResponse(reply), nil
}

func (c *generationClient) ClassifyIntent(ctx context.Context, text string) m.Classification {
	reply, err := c.call(ctx, "classify", func(ctx context.Context) (string, error) {
		return c.backend.Classify(ctx, text)
	})
	if err != nil {
		slog.Warn("Classification failed, treating as chat", "error", err)
		return m.DefaultClassification()
	}

	return ParseClassification(reply)
}

// ParseClassification decodes a classify reply, optionally fenced. Anything
// unexpected yields the default classification.
func ParseClassification(reply string) m.Classification {
	var out m.Classification

	if err := json.Unmarshal([]byte(stripFence(reply)), &out); err != nil {
		slog.Warn("Failed to decode classification", "error", err)
		return m.DefaultClassification()
	}

	if out.Type != m.IntentDevInstruction && out.Type != m.IntentNormalChat {
		slog.Warn("Unknown classification type", "type", out.Type)
		return m.DefaultClassification()
	}

	if out.Targets == nil {
		out.Targets = []string{}
	}

	out.Summary = strings.TrimSpace(out.Summary)

	return out
}
