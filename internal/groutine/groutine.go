// Package groutine starts goroutines carrying a pprof name label so session workers
// (relay forwarder, consumer loop, backend pumps) are identifiable in profiles and dumps.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts fn on a labelled goroutine and returns a channel closed when fn returns.
//
//	done := groutine.Go(ctx, "consumer", func(ctx context.Context) {
//	    // work
//	})
//	<-done
//
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	done := make(chan struct{})
	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		defer close(done)
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})
	return done
}

// Name retrieves the goroutine name from a context passed to fn by Go.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(goroutineNameKey).(string); ok {
		return v
	}
	return ""
}
