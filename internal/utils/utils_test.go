package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitWithSkipsNonPositive(t *testing.T) {
	called := false
	err := WaitWith(context.Background(), 0, func(time.Duration) { called = true })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected sleep not to be called")
	}
}

func TestWaitWithUsesSleepFunc(t *testing.T) {
	var slept time.Duration
	err := WaitWith(context.Background(), 3*time.Second, func(d time.Duration) { slept = d })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slept != 3*time.Second {
		t.Fatalf("expected 3s sleep, got %v", slept)
	}
}

func TestWaitWithReturnsOnCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitWith(ctx, time.Minute, func(time.Duration) { <-release })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
