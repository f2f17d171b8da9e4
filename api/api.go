// Package api is the construction facade: it turns a configuration file of
// named throttle policies into ready-to-use Throttle instances.
package api

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	apiinternal "learn.throttle/api/internal"
	"learn.throttle/types"
	"learn.throttle/valve"
)

// throttle binds one valve to a fixed window/limit policy. It satisfies
// types.Throttle; the context is honored here so the engine itself stays
// synchronous.
type throttle struct {
	key    string
	window time.Duration
	limit  int64
	valve  *valve.Valve
}

func (t *throttle) Allow(ctx context.Context, identifier string) (bool, error) {
	select {
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Str("throttle_key", t.key).Str("identifier", identifier).Msg("Throttle: context cancelled during check")
		return false, ctx.Err()
	default:
	}
	return t.valve.Check(t.window, t.limit, identifier, nil)
}

// valveCloser aggregates shutdown of every valve created from a config file,
// stopping their sweep janitors.
type valveCloser struct {
	valves map[string]*valve.Valve
}

func (c *valveCloser) Close() error {
	log.Debug().Int("valves", len(c.valves)).Msg("API: stopping throttle janitors")
	var errs []error
	for key, v := range c.valves {
		if err := v.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close throttle %q: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during throttle shutdown: %v", errs)
	}
	return nil
}

// NewThrottlesFromConfigPath loads the config file and builds one Throttle
// per entry. Policies are validated eagerly; a non-positive window or limit
// fails construction with valve.ErrInvalidConfig rather than surfacing on
// the first check. The returned io.Closer stops all sweep janitors.
func NewThrottlesFromConfigPath(configPath string) (map[string]types.Throttle, io.Closer, error) {
	cfgFile, err := apiinternal.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading configuration: %w", err)
	}
	if len(cfgFile.Throttles) == 0 {
		return nil, nil, fmt.Errorf("no throttle configurations found in %s", configPath)
	}

	throttles := make(map[string]types.Throttle)
	valves := make(map[string]*valve.Valve)
	closer := &valveCloser{valves: valves}

	for _, cfg := range cfgFile.Throttles {
		if cfg.Key == "" {
			closer.Close()
			return nil, nil, fmt.Errorf("throttle configuration missing 'key' field")
		}
		if _, dup := throttles[cfg.Key]; dup {
			closer.Close()
			return nil, nil, fmt.Errorf("duplicate throttle key %q", cfg.Key)
		}
		if cfg.Window <= 0 || cfg.Limit <= 0 {
			closer.Close()
			return nil, nil, fmt.Errorf("throttle %q: window=%s limit=%d: %w", cfg.Key, cfg.Window, cfg.Limit, valve.ErrInvalidConfig)
		}

		var opts []valve.Option
		if cfg.Sweep != nil {
			if cfg.Sweep.Interval <= 0 || cfg.Sweep.MaxAge <= 0 {
				closer.Close()
				return nil, nil, fmt.Errorf("throttle %q: sweep interval=%s max_age=%s: %w", cfg.Key, cfg.Sweep.Interval, cfg.Sweep.MaxAge, valve.ErrInvalidConfig)
			}
			opts = append(opts, valve.WithSweep(cfg.Sweep.Interval, cfg.Sweep.MaxAge))
		}

		v := valve.New(opts...)
		valves[cfg.Key] = v
		throttles[cfg.Key] = &throttle{
			key:    cfg.Key,
			window: cfg.Window,
			limit:  cfg.Limit,
			valve:  v,
		}
		log.Info().Str("throttle_key", cfg.Key).Dur("window", cfg.Window).Int64("limit", cfg.Limit).Bool("sweep", cfg.Sweep != nil).Msg("API: throttle created")
	}

	return throttles, closer, nil
}
