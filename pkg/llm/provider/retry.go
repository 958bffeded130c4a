package provider

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"math"
	"time"

	"github.com/papercomputeco/researcher/pkg/llm"
)

// RetryConfig controls WithRetry.
type RetryConfig struct {
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Logger         *slog.Logger
}

// DefaultRetryConfig retries rate limits and server errors up to 5 times.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		BackoffInitial: 500 * time.Millisecond,
		BackoffMax:     20 * time.Second,
	}
}

type retrying struct {
	Provider
	cfg RetryConfig
}

// WithRetry wraps p so retryable API errors (429, 5xx, timeouts) are retried
// with exponential backoff and jitter. Streams are only retried when no chunk
// has been delivered yet.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts <= 1 {
		return p
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &retrying{Provider: p, cfg: cfg}
}

func (r *retrying) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	var resp *llm.ChatResponse
	err := r.do(ctx, func() (bool, error) {
		var err error
		resp, err = r.Provider.Chat(ctx, req)
		return true, err
	})
	return resp, err
}

func (r *retrying) ChatStream(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) (*llm.ChatResponse, error) {
	var resp *llm.ChatResponse
	err := r.do(ctx, func() (bool, error) {
		delivered := false
		var err error
		resp, err = r.Provider.ChatStream(ctx, req, func(chunk *llm.StreamChunk) error {
			delivered = true
			return fn(chunk)
		})
		return !delivered, err
	})
	return resp, err
}

// do runs call until it succeeds, fails permanently or attempts run out.
// call reports whether a failed attempt may be repeated.
func (r *retrying) do(ctx context.Context, call func() (bool, error)) error {
	var attempt int
	for {
		repeatable, err := call()
		if err == nil {
			return nil
		}

		attempt++
		if !repeatable || !llm.IsRetryable(err) || attempt >= r.cfg.MaxAttempts {
			return err
		}

		delay := backoff(r.cfg.BackoffInitial, r.cfg.BackoffMax, attempt)
		r.cfg.Logger.Warn("llm request retry",
			"provider", r.Name(),
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	d := time.Duration(exp)
	if d > maxDelay {
		d = maxDelay
	}
	if d < 2 {
		return d
	}
	var b [8]byte
	_, _ = rand.Read(b[:])
	r := binary.BigEndian.Uint64(b[:])
	jitter := time.Duration(r % uint64(d/2))
	return d/2 + jitter
}
