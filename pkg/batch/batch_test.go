package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestChunk(t *testing.T) {
	got := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if len(got[0]) != 2 || len(got[2]) != 1 {
		t.Fatalf("unexpected chunk sizes: %v", got)
	}
}

func TestChunkEmptyAndBadSize(t *testing.T) {
	if got := Chunk([]int{}, 3); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %v", got)
	}
	// size <= 0 degrades to 1, not a panic
	if got := Chunk([]int{1, 2}, 0); len(got) != 2 {
		t.Fatalf("expected per-element chunks for size 0, got %v", got)
	}
}

func TestMapPreservesOrder(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	// make earlier elements finish later to prove positional ordering
	results, err := MapWithConcurrency(context.Background(), items, 2, func(_ context.Context, s string) (string, error) {
		if s == "a" || s == "c" {
			time.Sleep(20 * time.Millisecond)
		}
		return "op(" + s + ")", nil
	})
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	want := []string{"op(a)", "op(b)", "op(c)", "op(d)", "op(e)"}
	for i := range want {
		if results[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], results[i])
		}
	}
}

func TestMapBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 9)

	_, err := MapWithConcurrency(context.Background(), items, 2, func(_ context.Context, _ int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return 0, nil
	})
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent ops, saw %d", peak.Load())
	}
}

func TestMapPropagatesOpError(t *testing.T) {
	boom := errors.New("boom")
	_, err := MapWithConcurrency(context.Background(), []int{1, 2, 3}, 2, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected op error to propagate, got %v", err)
	}
}

func TestMapStopsBetweenBatchesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	_, err := MapWithConcurrency(ctx, []int{1, 2, 3, 4}, 2, func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		cancel()
		return n, nil
	})
	if err == nil {
		t.Fatalf("expected context error")
	}
	if calls.Load() > 2 {
		t.Fatalf("expected no ops after cancelled batch, got %d calls", calls.Load())
	}
}

func TestMapSentinelPolicy(t *testing.T) {
	// callers that need per-element degradation swallow inside op
	type probe struct {
		ok bool
	}
	results, err := MapWithConcurrency(context.Background(), []int{1, 2, 3}, 3, func(_ context.Context, n int) (probe, error) {
		if n == 2 {
			return probe{ok: false}, nil // swallowed failure
		}
		return probe{ok: true}, nil
	})
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if results[1].ok {
		t.Fatalf("expected sentinel result at position 1")
	}
}

func ExampleMapWithConcurrency() {
	doubled, _ := MapWithConcurrency(context.Background(), []int{1, 2, 3}, 2, func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	})
	fmt.Println(doubled)
	// Output: [2 4 6]
}
