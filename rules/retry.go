package rules

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig controls how RetryingStore retries transient store failures
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Jitter is the randomization factor applied to each interval (0 disables it)
	Jitter float64
}

// DefaultRetryConfig returns three retries starting at 200ms with 50% jitter
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Jitter:          0.5,
	}
}

// RetryingStore wraps a ModelStore and retries ErrStoreUnavailable with exponential backoff.
// Any other error is returned immediately.
type RetryingStore struct {
	store  ModelStore
	config RetryConfig
}

// NewRetryingStore decorates store with retries
func NewRetryingStore(store ModelStore, config RetryConfig) *RetryingStore {
	return &RetryingStore{store: store, config: config}
}

func (s *RetryingStore) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.InitialInterval
	b.MaxInterval = s.config.MaxInterval
	b.RandomizationFactor = s.config.Jitter
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, s.config.MaxRetries), ctx)
}

// ListModels delegates to the wrapped store, retrying transient failures
func (s *RetryingStore) ListModels(ctx context.Context, owner, tenant string) ([]StoredModel, error) {
	var models []StoredModel
	attempt := 0

	op := func() error {
		attempt++
		var err error
		models, err = s.store.ListModels(ctx, owner, tenant)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrStoreUnavailable) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		slog.Warn("Model store read failed, will retry",
			"owner", owner,
			"tenant", tenant,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, s.newBackOff(ctx), notify); err != nil {
		// Cancellation while waiting surfaces as the bare context error
		if ctx.Err() != nil && !errors.Is(err, ErrStoreUnavailable) {
			return nil, unavailable("list", owner, tenant, err)
		}
		return nil, err
	}
	return models, nil
}
