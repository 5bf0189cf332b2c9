// Package metrics exposes Prometheus counters and gauges for the
// supervisor's controller/orchestrator liveness (SPEC_FULL §12.2).
// These are purely observational: no component behavior depends on
// their values, only on the domain-level marks and queue state they
// mirror.
//
// # Design rationale
//
// A lazily-initialized global registry (mirroring the teacher's
// InitPrometheus pattern) keeps call sites metrics.WorkerLaunched(...)
// free of any registry plumbing; Init wires a real registry once at
// process start, and every recorder function is a no-op before Init is
// called so tests and tools that never call Init still link cleanly.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type registry struct {
	launchesTotal      *prometheus.CounterVec
	launchFailedTotal  *prometheus.CounterVec
	retriesTotal       *prometheus.CounterVec
	controllerMark     *prometheus.GaugeVec
	notificationsTotal *prometheus.CounterVec
}

var (
	mu  sync.Mutex
	reg *registry
)

// Init registers the supervisor's metrics under namespace (e.g.
// "tabsd") and returns an http.Handler suitable for a scrape endpoint.
// Each call builds a fresh registry and replaces the one the recording
// functions write to; metrics recorded before the call are not carried over.
func Init(namespace string) http.Handler {
	mu.Lock()
	defer mu.Unlock()

	r := prometheus.NewRegistry()
	r.MustRegister(prometheus.NewGoCollector())
	r.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &registry{
		launchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "worker_launches_total", Help: "Worker launches that completed without error, by class and worker name.",
		}, []string{"class", "worker"}),
		launchFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "worker_launch_failures_total", Help: "Worker launches that returned an error, by class and worker name.",
		}, []string{"class", "worker"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "worker_retries_total", Help: "Ephemeral worker retry (Error) and terminal (Failed) outcomes, by status.",
		}, []string{"status"}),
		controllerMark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "controller_mark", Help: "Controller readiness mark: 0=NA, 1=OK, 2=KO.",
		}, []string{"class"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "worker_notifications_total", Help: "Worker completion notifications emitted, by status.",
		}, []string{"status"}),
	}
	r.MustRegister(m.launchesTotal, m.launchFailedTotal, m.retriesTotal, m.controllerMark, m.notificationsTotal)
	reg = m
	return promhttp.HandlerFor(r, promhttp.HandlerOpts{})
}

func WorkerLaunched(class, worker string) {
	mu.Lock()
	r := reg
	mu.Unlock()
	if r == nil {
		return
	}
	r.launchesTotal.WithLabelValues(class, worker).Inc()
}

func WorkerLaunchFailed(class, worker string) {
	mu.Lock()
	r := reg
	mu.Unlock()
	if r == nil {
		return
	}
	r.launchFailedTotal.WithLabelValues(class, worker).Inc()
}

// NotifyAttempt records one worker-completion notification (spec §7:
// every worker end emits a callback with a status).
func NotifyAttempt(messageID string, attempt int, status string) {
	mu.Lock()
	r := reg
	mu.Unlock()
	if r == nil {
		return
	}
	r.notificationsTotal.WithLabelValues(status).Inc()
	if status == "Error" || status == "Failed" {
		r.retriesTotal.WithLabelValues(status).Inc()
	}
}

func ControllerMarkSet(class, mark string) {
	mu.Lock()
	r := reg
	mu.Unlock()
	if r == nil {
		return
	}
	value := 0.0
	switch mark {
	case "OK":
		value = 1
	case "KO":
		value = 2
	}
	r.controllerMark.WithLabelValues(class).Set(value)
}
