package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type blockingGenerator struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (g *blockingGenerator) GenerateContent(ctx context.Context, _, _ string) (string, error) {
	current := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		peak := g.peak.Load()
		if current <= peak || g.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	select {
	case <-g.release:
		return "ok", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *blockingGenerator) Model() string { return "blocking" }

func TestLimiterCapsConcurrency(t *testing.T) {
	gen := &blockingGenerator{release: make(chan struct{})}
	limiter := NewLimiter(gen, 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := limiter.GenerateContent(context.Background(), "sys", "msg"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	deadline := time.After(2 * time.Second)
	for gen.inFlight.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("generator never saturated")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(gen.release)
	wg.Wait()

	if peak := gen.peak.Load(); peak != 2 {
		t.Fatalf("expected at most 2 concurrent calls, peak was %d", peak)
	}
	if limiter.Model() != "blocking" {
		t.Fatalf("expected model name to pass through")
	}
}

func TestLimiterHonoursContext(t *testing.T) {
	gen := &blockingGenerator{release: make(chan struct{})}
	limiter := NewLimiter(gen, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = limiter.GenerateContent(context.Background(), "sys", "msg")
	}()
	for gen.inFlight.Load() < 1 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := limiter.GenerateContent(ctx, "sys", "msg")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	close(gen.release)
	<-done
}

func TestNeutral(t *testing.T) {
	assessment := Neutral("no notes")
	if assessment.Score != 0 || assessment.Prune || !assessment.Degraded || assessment.Explanation != "no notes" {
		t.Fatalf("unexpected neutral assessment: %+v", assessment)
	}
}
