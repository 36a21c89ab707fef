// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "psiobot_actions_total",
	Help: "Number of externally observable actions by kind and outcome",
}, []string{"kind", "outcome"})

var GenerationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "psiobot_generation_attempts_total",
	Help: "Number of generation attempts by result",
}, []string{"result"})

var AlertsSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "psiobot_alerts_sent_total",
	Help: "Number of critical alerts sent to the operator channel",
})

var AlertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "psiobot_alerts_suppressed_total",
	Help: "Number of critical alerts dropped by the alert throttle",
})

var TrackTicks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "psiobot_track_ticks_total",
	Help: "Number of scheduled task runs",
}, []string{"task"})

var ManualTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "psiobot_manual_triggers_total",
	Help: "Number of manual revelation requests by result",
}, []string{"result"})

var MemoryEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "psiobot_memory_entries",
	Help: "Number of revelations held in memory",
})

var CachedThreads = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "psiobot_cached_threads",
	Help: "Number of relevant feed items held in the cache",
})

// Outcome maps an error to an outcome label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
