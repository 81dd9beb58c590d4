// Package telemetry wires Sentry error reporting and tracing into the chat
// service. Every helper is a no-op until Init has been called with a DSN.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const (
	serverName   = "signmaker"
	flushTimeout = 5 * time.Second
)

// Config holds the Sentry settings read from the environment.
type Config struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	Debug            bool
}

// untraced lists transactions that are never sampled.
var untraced = map[string]bool{
	"GET /health":  true,
	"GET /metrics": true,
}

// Init configures the global Sentry client and returns a flush function to
// run on shutdown. An empty DSN disables reporting. An initialization
// failure is logged and reporting stays disabled.
func Init(cfg Config, logger *zap.Logger) (func(), error) {
	noop := func() {}
	if cfg.DSN == "" {
		return noop, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := clientOptions(cfg)
	if err := sentry.Init(opts); err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
		return noop, nil
	}

	logger.Info("sentry enabled",
		zap.String("environment", opts.Environment),
		zap.Float64("traces_sample_rate", opts.TracesSampleRate),
	)
	return func() { sentry.Flush(flushTimeout) }, nil
}

func clientOptions(cfg Config) sentry.ClientOptions {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 || cfg.TracesSampleRate > 1 {
		cfg.TracesSampleRate = 1.0
	}
	return sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		ServerName:       serverName,
		Debug:            cfg.Debug,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		TracesSampler:    sampler(cfg.TracesSampleRate),
	}
}

// sampler drops probe traffic and keeps child spans consistent with their
// parent transaction.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if ctx.Span == nil {
			return rate
		}
		if untraced[ctx.Span.Name] {
			return 0
		}
		if ctx.Parent != nil {
			if ctx.Parent.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}
