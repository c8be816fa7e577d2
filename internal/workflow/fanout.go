package workflow

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// fanOut applies fn to every item with at most limit concurrent calls.
// Results keep input order. An item whose call fails, times out or starts
// after ctx is done receives fallback instead; one failing item never
// affects the others.
func fanOut[In, Out any](
	ctx context.Context,
	limit int,
	timeout time.Duration,
	items []In,
	fn func(ctx context.Context, i int, item In) (Out, error),
	fallback func(i int, item In, err error) Out,
) []Out {
	results := make([]Out, len(items))

	var g errgroup.Group
	g.SetLimit(max(limit, 1))

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = fallback(i, item, err)
				return nil
			}

			ictx, cancel := itemContext(ctx, timeout)
			defer cancel()

			out, err := fn(ictx, i, item)
			if err != nil {
				results[i] = fallback(i, item, err)
				return nil
			}

			results[i] = out
			return nil
		})
	}

	g.Wait()
	return results
}

// single runs fn under the per-item timeout, substituting fallback on failure.
func single[Out any](
	ctx context.Context,
	timeout time.Duration,
	fn func(ctx context.Context) (Out, error),
	fallback func(err error) Out,
) Out {
	return fanOut(ctx, 1, timeout, []struct{}{{}},
		func(ctx context.Context, _ int, _ struct{}) (Out, error) { return fn(ctx) },
		func(_ int, _ struct{}, err error) Out { return fallback(err) },
	)[0]
}

func itemContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
