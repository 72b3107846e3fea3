package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSleeper records delays without actually sleeping.
type fakeSleeper struct {
	delays []time.Duration
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.delays = append(f.delays, d)
	return nil
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	t.Parallel()
	s := &fakeSleeper{}
	err := doWithSleeper(context.Background(), DefaultConfig(), func() error {
		return nil
	}, s)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(s.delays) != 0 {
		t.Fatalf("expected 0 sleeps, got %d", len(s.delays))
	}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := &fakeSleeper{}
	cfg := Config{MaxAttempts: 3, InitDelay: time.Second, MaxDelay: 30 * time.Second, Strategy: Exponential}

	err := doWithSleeper(context.Background(), cfg, func() error {
		if calls.Add(1) < 3 {
			return errors.New("temporary")
		}
		return nil
	}, s)

	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
	if len(s.delays) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(s.delays))
	}
}

func TestDo_AllFail(t *testing.T) {
	t.Parallel()
	s := &fakeSleeper{}
	sentinel := errors.New("always fail")
	cfg := Config{MaxAttempts: 3, InitDelay: time.Second, MaxDelay: 30 * time.Second, Strategy: Constant}

	err := doWithSleeper(context.Background(), cfg, func() error {
		return sentinel
	}, s)

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if len(s.delays) != 2 {
		t.Fatalf("expected 2 sleeps (no sleep after last attempt), got %d", len(s.delays))
	}
}

func TestDo_RespectsContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled

	err := Do(ctx, DefaultConfig(), func() error {
		t.Fatal("fn should not be called when context is cancelled")
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDo_StopError(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	sentinel := errors.New("bad request")
	s := &fakeSleeper{}

	err := doWithSleeper(context.Background(), DefaultConfig(), func() error {
		calls.Add(1)
		return Stop(sentinel)
	}, s)

	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
}

func TestDelay_Exponential(t *testing.T) {
	t.Parallel()
	cfg := Config{InitDelay: time.Second, MaxDelay: time.Minute, Strategy: Exponential}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := Delay(cfg, i); got != w {
			t.Errorf("attempt %d: got %v, want %v", i, got, w)
		}
	}
}

func TestDelay_CappedAtMax(t *testing.T) {
	t.Parallel()
	cfg := Config{InitDelay: time.Second, MaxDelay: 3 * time.Second, Strategy: Exponential}
	if got := Delay(cfg, 10); got != 3*time.Second {
		t.Fatalf("got %v, want cap of 3s", got)
	}
}
