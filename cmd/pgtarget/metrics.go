package main

import (
	"io"

	"go.uber.org/zap"

	"pgtarget/internal/config"
	"pgtarget/internal/metrics"
	"pgtarget/internal/metrics/datadog"
	"pgtarget/internal/metrics/prompush"
)

const defaultPushgatewayURL = "http://localhost:9091"

// setupMetrics installs the metrics backend chosen by flag, then config
// (which already folds in the environment). The returned func flushes it.
func setupMetrics(backendFlag, urlFlag string, cfg config.Metrics, log *zap.Logger) func() {
	name := backendFlag
	if name == "" {
		name = cfg.Backend
	}
	job := cfg.Job
	if job == "" {
		job = "pgtarget"
	}

	var b metrics.Backend
	switch name {
	case "pushgateway":
		url := urlFlag
		if url == "" {
			url = cfg.PushgatewayURL
		}
		if url == "" {
			url = defaultPushgatewayURL
		}
		pb, err := prompush.NewBackend(prompush.Config{URL: url, Job: job})
		if err != nil {
			log.Warn("metrics: pushgateway backend unavailable; metrics disabled", zap.Error(err))
			return func() {}
		}
		log.Info("metrics enabled", zap.String("backend", name), zap.String("url", url), zap.String("job", job))
		b = pb

	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:      cfg.DatadogAddr,
			Namespace: "pgtarget.",
			Tags:      []string{"job:" + job},
		})
		if err != nil {
			log.Warn("metrics: datadog backend unavailable; metrics disabled", zap.Error(err))
			return func() {}
		}
		log.Info("metrics enabled", zap.String("backend", name), zap.String("addr", cfg.DatadogAddr), zap.String("job", job))
		b = db

	case "", "none":
		log.Debug("metrics disabled")
		return func() {}

	default:
		log.Warn("metrics: unknown backend; metrics disabled", zap.String("backend", name))
		return func() {}
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warn("metrics: flush failed", zap.Error(err))
		}
		if c, ok := b.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn("metrics: close failed", zap.Error(err))
			}
		}
	}
}
