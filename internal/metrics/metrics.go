// Package metrics exposes the SDK's Prometheus instrumentation. Counters
// register on the default registry at init; services that scrape
// /metrics pick them up with no extra wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Verifications counts credential verifications by outcome. The
	// outcome label is "valid", "invalid", or "error".
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentid",
		Name:      "verifications_total",
		Help:      "Credential verifications by outcome.",
	}, []string{"outcome"})

	// CacheHits counts verification results served from cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agentid",
		Name:      "verification_cache_hits_total",
		Help:      "Verification results served from cache.",
	})

	// CacheMisses counts verifications that had to call the authority.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agentid",
		Name:      "verification_cache_misses_total",
		Help:      "Verifications that required an authority call.",
	})

	// SignatureFailures counts requests rejected before any authority
	// call: missing headers, stale timestamps, bad signatures.
	SignatureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentid",
		Name:      "signature_failures_total",
		Help:      "Requests rejected by local signature checks, by error code.",
	}, []string{"code"})

	// RevocationEvents counts revocations observed by the watcher, by
	// delivery channel ("websocket" or "poll").
	RevocationEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentid",
		Name:      "revocation_events_total",
		Help:      "Revocation events received, by delivery channel.",
	}, []string{"channel"})
)
