package probe

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// limited wraps a Runner with a weighted semaphore.
type limited struct {
	next Runner
	sem  *semaphore.Weighted
}

// Limit returns a Runner that allows at most n concurrent invocations of r
// across all callers. Waiting for a slot honours ctx.
func Limit(r Runner, n int) Runner {
	if n <= 0 {
		n = 1
	}
	return &limited{next: r, sem: semaphore.NewWeighted(int64(n))}
}

// Run implements Runner.
func (l *limited) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.next.Run(ctx, name, args...)
}
