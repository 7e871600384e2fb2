package main

import (
	"log"

	"docmigrate/internal/config"
	"docmigrate/internal/metrics"
	"docmigrate/internal/metrics/datadog"
	"docmigrate/internal/metrics/prompush"
)

const defaultPushgatewayURL = "http://localhost:9091"

// setupMetrics installs the backend chosen by flag, then config (which
// already carries env overrides). The returned func flushes it.
func setupMetrics(p config.Pipeline, o runOptions, verbose bool) (flush func()) {
	backendName := pick(o.metricsBackend, p.Metrics.Backend)
	nop := func() {}

	var (
		b   metrics.Backend
		err error
	)
	switch backendName {
	case "pushgateway":
		gwURL := pick(pick(o.pushgatewayURL, p.Metrics.PushgatewayURL), defaultPushgatewayURL)
		b, err = newPushgateway(p.Job, gwURL)
		if err == nil {
			log.Printf("metrics: backend=%s url=%s job_name=%s", backendName, gwURL, p.Job)
		}
	case "datadog":
		addr := pick(o.datadogAddr, p.Metrics.DatadogAddr)
		b, err = newDatadog(datadog.Config{Addr: addr, GlobalTags: []string{"job:" + p.Job}})
		if err == nil {
			log.Printf("metrics: backend=%s addr=%s", backendName, addr)
		}
	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}
		return nop
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
		return nop
	}
	if err != nil {
		log.Printf("metrics: failed to init %s backend: %v; using nop", backendName, err)
		return nop
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

// Backend constructors; tests replace them.
var (
	newPushgateway = func(job, url string) (metrics.Backend, error) { return prompush.NewBackend(job, url) }
	newDatadog     = func(cfg datadog.Config) (metrics.Backend, error) { return datadog.NewBackend(cfg) }
)

func pick(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
