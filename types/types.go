// Package types defines the shared contract between the throttle facade and
// its adapters.
package types

import "context"

// Throttle is a bound rate-limit policy: a window/limit pair attached to one
// engine. Adapters (HTTP middleware, wrapped callables) depend on this
// interface rather than on a concrete engine.
type Throttle interface {
	// Allow reports whether the current call for identifier is permitted.
	// Denial is a normal outcome, not an error; errors are reserved for
	// cancelled contexts and misconfiguration.
	Allow(ctx context.Context, identifier string) (bool, error)
}
