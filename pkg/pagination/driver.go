// Package pagination drives continuation-token loops against the store.
//
// Pages are fetched strictly in sequence: each call receives the token
// returned by the previous one, starting from the empty token, until a
// response carries no token. An optional deadline is checked before every
// call after the first. It is never checked while a call is in flight, so a
// slow page can push the observed duration past the nominal timeout.
//
// A loop stopped by the deadline returns ErrTimeout. Whatever the
// completed pages changed on the store stays changed.
package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dfsgate/internal/logger"
	"github.com/marmos91/dfsgate/pkg/fserrors"
)

// Options configures a loop.
type Options struct {
	// Operation names the loop in logs and errors (e.g. "rename").
	Operation string

	// Timeout bounds the loop. Zero disables the deadline.
	Timeout time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// PageFunc issues one call with the given continuation token and returns
// the next token. An empty next token ends the loop.
type PageFunc func(ctx context.Context, continuation string) (next string, err error)

// FetchFunc is a PageFunc that also yields the page's result.
type FetchFunc[T any] func(ctx context.Context, continuation string) (page T, next string, err error)

// Run repeats fn until the continuation token is exhausted, the deadline
// passes or fn fails. It returns the number of calls issued.
func Run(ctx context.Context, opts Options, fn PageFunc) (int, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = now().Add(opts.Timeout)
	}

	calls := 0
	continuation := ""
	for {
		if calls > 0 && !deadline.IsZero() && now().After(deadline) {
			logger.Debug("%s timed out after %d calls (timeout %s)", opts.Operation, calls, opts.Timeout)
			return calls, fserrors.New(fserrors.ErrTimeout,
				fmt.Sprintf("%s did not complete within %s", operationName(opts), opts.Timeout))
		}

		next, err := fn(ctx, continuation)
		calls++
		if err != nil {
			return calls, err
		}

		if next == "" {
			return calls, nil
		}
		continuation = next
	}
}

// Collect runs fetch like Run and returns every page in request order.
func Collect[T any](ctx context.Context, opts Options, fetch FetchFunc[T]) ([]T, error) {
	var pages []T
	_, err := Run(ctx, opts, func(ctx context.Context, continuation string) (string, error) {
		page, next, err := fetch(ctx, continuation)
		if err != nil {
			return "", err
		}
		pages = append(pages, page)
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

func operationName(opts Options) string {
	if opts.Operation == "" {
		return "operation"
	}
	return opts.Operation
}
