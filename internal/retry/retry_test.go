package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func fastPolicy(retryable func(error) bool) Policy {
	return Policy{
		Name:      "test",
		Attempts:  3,
		BaseDelay: time.Millisecond,
		MaxDelay:  2 * time.Millisecond,
		Retryable: retryable,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := fastPolicy(func(err error) bool { return errors.Is(err, errTransient) }).
		Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(nil).Do(context.Background(), func() error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	// Attempts = 3 — это общее число вызовов, а не число повторов
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	err := fastPolicy(func(err error) bool { return errors.Is(err, errTransient) }).
		Do(context.Background(), func() error {
			calls++
			return errFatal
		})
	if !errors.Is(err, errFatal) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error must not be retried, got %d calls", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastPolicy(nil).Do(ctx, func() error {
		return errTransient
	})
	if err == nil {
		t.Fatal("expected error after context cancellation")
	}
}
