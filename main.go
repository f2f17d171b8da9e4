// Package main runs a demo HTTP server guarded by configured throttles.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"learn.throttle/api"
	"learn.throttle/metrics"
	"learn.throttle/middleware"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	port := flag.Int("p", 8080, "Port to run the HTTP server on")
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	logLevelStr := flag.String("log-level", "info", "Logging level (trace, debug, info, warn, error, fatal, panic)")
	flag.Parse()

	logLevel, err := zerolog.ParseLevel(*logLevelStr)
	if err != nil {
		log.Fatal().Err(err).Str("log_level", *logLevelStr).Msg("Invalid log level provided")
	}
	zerolog.SetGlobalLevel(logLevel)

	log.Info().Str("config_path", *configPath).Msg("Starting application initialization")

	throttles, closer, err := api.NewThrottlesFromConfigPath(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config_path", *configPath).Msg("Application startup failed: error initializing throttles from config")
	}
	defer closer.Close()

	apiThrottleKey := "api_throttle"
	apiThrottle, ok := throttles[apiThrottleKey]
	if !ok {
		log.Fatal().Str("throttle_key", apiThrottleKey).Msg("Application startup failed: throttle key not found in config")
	}

	loginThrottleKey := "login_throttle"
	loginThrottle, ok := throttles[loginThrottleKey]
	if !ok {
		log.Fatal().Str("throttle_key", loginThrottleKey).Msg("Application startup failed: throttle key not found in config")
	}

	apiMiddleware := middleware.NewThrottleMiddleware(apiThrottle, metrics.NewThrottleMetrics(apiThrottleKey), apiThrottleKey)
	loginMiddleware := middleware.NewThrottleMiddleware(loginThrottle, metrics.NewThrottleMetrics(loginThrottleKey), loginThrottleKey)

	http.HandleFunc("/unlimited", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Unlimited! Let's Go!")
	})

	http.HandleFunc("/limited", apiMiddleware.Handle(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Limited, don't over use me!")
	}, getClientIP))

	http.HandleFunc("/login", loginMiddleware.Handle(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Login attempt processed!")
	}, getClientIP))

	http.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", *port)
	log.Info().Str("address", addr).Msg("Starting HTTP server")
	log.Fatal().Err(http.ListenAndServe(addr, nil)).Str("address", addr).Msg("HTTP server stopped")
}

// getClientIP extracts the client's IP address from the request.
// It checks X-Forwarded-For, X-Real-IP headers, and finally the request's RemoteAddr.
func getClientIP(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		return strings.Split(ip, ",")[0]
	}

	ip = r.Header.Get("X-Real-IP")
	if ip != "" {
		return ip
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
