package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	LibraryLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snippethost_library_loads_total",
		Help: "Library load attempts that reached the OS loader, by outcome.",
	}, []string{"outcome"})

	ParserResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snippethost_parser_resolutions_total",
		Help: "Parser symbol resolutions, by outcome.",
	}, []string{"outcome"})

	RegistryCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snippethost_registry_cache_hits_total",
		Help: "get-or-load and get-or-add calls served from the registry without loader work.",
	}, []string{"kind"})

	InvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snippethost_invocations_total",
		Help: "Parser invocations, by parser and outcome.",
	}, []string{"parser", "outcome"})

	InvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snippethost_invocation_seconds",
		Help:    "Time spent inside a parser invocation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"parser"})

	InvocationsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snippethost_invocations_in_flight",
		Help: "Parser invocations currently executing foreign code.",
	})

	LibrariesLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snippethost_libraries_loaded",
		Help: "Libraries currently held by the registry.",
	})

	ParsersBound = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snippethost_parsers_bound",
		Help: "Parser bindings currently held by the registry.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snippethost_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
