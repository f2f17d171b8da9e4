package valve

import (
	"fmt"
	"time"
)

// Callable is an arbitrary function adapted by Wrap. Arguments are passed
// through unchanged and its error, if any, propagates to the caller as-is.
type Callable func(args ...any) (any, error)

// Wrapped is a throttled callable. When the call is denied the underlying
// Callable is not invoked and the returned Result has Rejected set.
type Wrapped func(args ...any) (Result, error)

// Decorator turns a Callable into a Wrapped sharing one (window, limit)
// policy.
type Decorator func(Callable) Wrapped

// Result is the outcome of calling a Wrapped function. Rejected reports that
// the call was denied; it distinguishes a denial from a legitimate nil
// return value, so callers check the flag rather than comparing Value.
type Result struct {
	Value    any
	Rejected bool
}

// wrapKey is the constant accounting key bound by a Decorator when no keyer
// is configured: every call through the same wrapper shares one quota.
type wrapKey struct{}

type wrapConfig struct {
	valve *Valve
	keyer func(args ...any) (any, bool)
}

// WrapOption configures a Decorator produced by Wrap.
type WrapOption func(*wrapConfig)

// WithValve makes the wrapper account against an existing Valve instead of a
// dedicated one, letting several wrappers share a registry.
func WithValve(v *Valve) WrapOption {
	return func(c *wrapConfig) {
		c.valve = v
	}
}

// WithKeyer derives the accounting key from the call arguments, giving each
// distinct key its own quota. Returning ok == false excludes the call from
// limiting entirely.
func WithKeyer(keyer func(args ...any) (any, bool)) WrapOption {
	return func(c *wrapConfig) {
		c.keyer = keyer
	}
}

// Wrap builds a Decorator enforcing limit calls per window. The window and
// limit are validated here, before any wrapper exists. Unless WithValve is
// given, each Wrap call owns a fresh Valve created for it, so wrappers are
// independent by default.
func Wrap(window time.Duration, limit int64, opts ...WrapOption) (Decorator, error) {
	if window <= 0 || limit <= 0 {
		return nil, fmt.Errorf("wrap window=%s limit=%d: %w", window, limit, ErrInvalidConfig)
	}

	cfg := wrapConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.valve == nil {
		cfg.valve = New()
	}

	return func(fn Callable) Wrapped {
		return func(args ...any) (Result, error) {
			var allowed bool
			var err error
			if cfg.keyer != nil {
				key, ok := cfg.keyer(args...)
				if !ok {
					allowed = true
				} else {
					allowed, err = cfg.valve.Check(window, limit, key, nil)
				}
			} else {
				allowed, err = cfg.valve.Check(window, limit, wrapKey{}, nil)
			}
			if err != nil {
				return Result{}, err
			}
			if !allowed {
				return Result{Rejected: true}, nil
			}
			value, err := fn(args...)
			return Result{Value: value}, err
		}
	}, nil
}
