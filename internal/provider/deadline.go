package provider

import (
	"context"
	"log/slog"
	"time"
)

// WithDeadline races fn against a deadline and returns fallback
// instead of an error when fn fails or the deadline expires. A single
// slow or broken sub-fetch therefore degrades one field to its
// fallback value rather than stalling or failing the whole sync.
//
// fn receives a context that is canceled at the deadline so
// well-behaved calls release their resources; the race does not wait
// for fn to observe the cancellation. The result channel is buffered,
// so a late fn return is discarded rather than leaking the goroutine.
func WithDeadline[T any](ctx context.Context, d time.Duration, fallback T, logger *slog.Logger, name string, fn func(context.Context) (T, error)) T {
	dctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}

	ch := make(chan result, 1)

	go func() {
		v, err := fn(dctx)
		ch <- result{v: v, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			logger.Warn("fetch degraded to fallback",
				slog.String("fetch", name),
				slog.Duration("deadline", d),
				slog.String("error", r.err.Error()),
			)

			return fallback
		}

		return r.v

	case <-dctx.Done():
		logger.Warn("fetch deadline expired, using fallback",
			slog.String("fetch", name),
			slog.Duration("deadline", d),
		)

		return fallback
	}
}
