package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OireachtasAI/oireachtas-mvp/pkg/fn"
)

var errBoom = errors.New("boom")

func failing(context.Context) error { return errBoom }

func succeeding(context.Context) error { return nil }

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Call(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Fatal("open breaker must not invoke f")
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Cooldown: time.Minute})
	ctx := context.Background()

	b.Call(ctx, failing)
	b.Call(ctx, succeeding)
	b.Call(ctx, failing)
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed (failures are consecutive)", b.State())
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	clock := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return clock }

	ctx := context.Background()
	b.Call(ctx, failing)
	if b.State() != StateOpen {
		t.Fatal("expected open after threshold")
	}

	clock = clock.Add(11 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatal("expected half-open after cooldown")
	}
	if err := b.Call(ctx, succeeding); err != nil {
		t.Fatal(err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := time.Now()
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return clock }

	ctx := context.Background()
	b.Call(ctx, failing)
	clock = clock.Add(11 * time.Second)

	if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
		t.Fatal(err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open again", b.State())
	}
}

func TestCallResultShortCircuits(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Cooldown: time.Minute})
	ctx := context.Background()
	b.Call(ctx, failing)

	res := CallResult(b, ctx, func(context.Context) fn.Result[string] {
		t.Fatal("must not run while open")
		return fn.Ok("x")
	})
	if _, err := res.Unwrap(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerStage(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Cooldown: time.Minute})
	stage := BreakerStage(b, func(ctx context.Context, n int) fn.Result[int] {
		if n < 0 {
			return fn.Errf[int]("negative input")
		}
		return fn.Ok(n * 2)
	})

	ctx := context.Background()
	if v, err := stage(ctx, 21).Unwrap(); err != nil || v != 42 {
		t.Fatalf("got (%d, %v)", v, err)
	}
	stage(ctx, -1) // trips
	if _, err := stage(ctx, 1).Unwrap(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	} {
		if st.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", st, st.String(), want)
		}
	}
}
