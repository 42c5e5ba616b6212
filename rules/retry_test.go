package rules

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// flakyStore fails the first failures calls with err, then lists models
type flakyStore struct {
	failures int32
	err      error
	models   []StoredModel
	calls    atomic.Int32
}

func (s *flakyStore) ListModels(_ context.Context, owner, tenant string) ([]StoredModel, error) {
	if n := s.calls.Add(1); n <= s.failures {
		return nil, s.err
	}
	return s.models, nil
}

func fastRetry(retries uint64) RetryConfig {
	return RetryConfig{MaxRetries: retries, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestRetryingStore(t *testing.T) {
	transient := unavailable("list", "alice", "acme", errors.New("connection refused"))
	permanent := errors.New("permission denied")

	testCases := []struct {
		name      string
		failures  int32
		err       error
		retries   uint64
		wantCalls int32
		wantErr   error
	}{
		{"success first try", 0, nil, 3, 1, nil},
		{"recovers after transient failures", 2, transient, 3, 3, nil},
		{"gives up after max retries", 10, transient, 2, 3, ErrStoreUnavailable},
		{"permanent error is not retried", 10, permanent, 3, 1, permanent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inner := &flakyStore{failures: tc.failures, err: tc.err, models: []StoredModel{{ID: "m-1"}}}
			store := NewRetryingStore(inner, fastRetry(tc.retries))

			models, err := store.ListModels(context.Background(), "alice", "acme")
			if got := inner.calls.Load(); got != tc.wantCalls {
				t.Errorf("store called %d times, want %d", got, tc.wantCalls)
			}
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("ListModels() failed: %v", err)
				}
				if len(models) != 1 {
					t.Errorf("ListModels() returned %d models, want 1", len(models))
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ListModels() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRetryingStoreCancelled(t *testing.T) {
	inner := &flakyStore{failures: 100, err: unavailable("list", "alice", "acme", errors.New("timeout"))}
	store := NewRetryingStore(inner, RetryConfig{MaxRetries: 100, InitialInterval: time.Second, MaxInterval: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := store.ListModels(ctx, "alice", "acme")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("ListModels() error = %v, want ErrStoreUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Errorf("ListModels() took %v, should stop waiting when the context ends", elapsed)
	}
}
