package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OireachtasAI/oireachtas-mvp/pkg/fn"
)

func TestLimiterAllowBurst(t *testing.T) {
	clock := time.Now()
	l := NewLimiter(LimiterOpts{Rate: 1, Burst: 2})
	l.now = func() time.Time { return clock }

	if !l.Allow() || !l.Allow() {
		t.Fatal("burst tokens should be available")
	}
	if l.Allow() {
		t.Fatal("bucket should be empty")
	}

	clock = clock.Add(time.Second)
	if !l.Allow() {
		t.Fatal("token should refill after a second")
	}
}

func TestLimiterDefaults(t *testing.T) {
	l := NewLimiter(LimiterOpts{})
	if !l.Allow() {
		t.Fatal("default burst of 1 should allow one call")
	}
	if l.Allow() {
		t.Fatal("second call should be limited")
	}
}

func TestLimiterWaitRefills(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 200, Burst: 1})
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestLimiterWaitCancelled(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 0.001, Burst: 1})
	l.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCallWait(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1000, Burst: 1})
	ran := false
	err := l.CallWait(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("CallWait: ran=%v err=%v", ran, err)
	}
}

func TestLimiterStageWait(t *testing.T) {
	l := NewLimiter(LimiterOpts{Rate: 1000, Burst: 1})
	stage := LimiterStageWait(l, func(ctx context.Context, s string) fn.Result[int] {
		return fn.Ok(len(s))
	})

	for i, in := range []string{"a", "bb", "ccc"} {
		v, err := stage(context.Background(), in).Unwrap()
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if v != len(in) {
			t.Fatalf("call %d: got %d", i, v)
		}
	}
}
