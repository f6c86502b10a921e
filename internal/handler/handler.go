package handler

import (
	"context"
	"time"
)

// base carries what every handler shares. opCtx bounds the store calls
// made while serving one update, so a stalled database cannot pin a
// handler goroutine indefinitely.
type base struct {
	timeout time.Duration
}

func newBase(timeout time.Duration) base {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return base{timeout: timeout}
}

func (b base) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.timeout)
}
