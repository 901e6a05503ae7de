package client

import (
	"context"
	"sync/atomic"
)

// ctxStop adapts a context.Context's cancellation into the
// session.StopFlag interface, so a caller can bound a Get/Put by a
// deadline or an explicit cancel without the session core knowing
// anything about contexts.
type ctxStop struct {
	stopped atomic.Bool
	cancel  context.CancelFunc
}

func newCtxStop(ctx context.Context) *ctxStop {
	ctx, cancel := context.WithCancel(ctx)

	s := &ctxStop{cancel: cancel}

	go func() {
		<-ctx.Done()
		s.stopped.Store(true)
	}()

	return s
}

func (s *ctxStop) Stopped() bool {
	return s.stopped.Load()
}
