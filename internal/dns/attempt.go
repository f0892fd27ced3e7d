package dns

import (
	"context"
	"time"
)

const maxBackoff = 30 * time.Second

type attemptState int

const (
	statePending attemptState = iota
	stateSuccess
	stateRetry
	stateExhausted
)

func (s attemptState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateSuccess:
		return "success"
	case stateRetry:
		return "retry"
	default:
		return "exhausted"
	}
}

// attempt tracks the queries sent to one server while validating one domain.
//
//	pending -> success
//	pending -> retry(n) -> ... -> success | exhausted
//	pending -> exhausted
//
// Transport errors are retried up to limit times. A well-formed response
// without answers is definitive and exhausts the attempt immediately.
type attempt struct {
	state   attemptState
	retries int
	limit   int
	err     error
}

func newAttempt(limit int) *attempt {
	return &attempt{state: statePending, limit: limit}
}

func (a *attempt) observe(answered bool, err error) attemptState {
	a.err = err
	switch {
	case err == nil && answered:
		a.state = stateSuccess
	case err == nil:
		a.state = stateExhausted
	case a.retries < a.limit:
		a.retries++
		a.state = stateRetry
	default:
		a.state = stateExhausted
	}
	return a.state
}

// Backoff returns the delay before the nth retry: base, 2*base, 4*base...
func Backoff(base time.Duration, n int) time.Duration {
	if base <= 0 || n <= 0 {
		return 0
	}

	d := base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return min(d, maxBackoff)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
