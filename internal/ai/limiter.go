package ai

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

const defaultMaxConcurrency = 4

// Limiter caps the number of in-flight calls to a generator. One Limiter is shared by all requests.
type Limiter struct {
	next ContentGenerator
	sem  *semaphore.Weighted
}

func NewLimiter(next ContentGenerator, maxConcurrency int) *Limiter {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Limiter{next: next, sem: semaphore.NewWeighted(int64(maxConcurrency))}
}

func (l *Limiter) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for generator slot: %w", err)
	}
	defer l.sem.Release(1)

	return l.next.GenerateContent(ctx, system, message)
}

func (l *Limiter) Model() string {
	if reporter, ok := l.next.(ModelReporter); ok {
		return reporter.Model()
	}
	return ""
}
