package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // Solves counts solve runs by outcome status and stop reason
    Solves = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "solves_total", Help: "Solve runs by status and stop reason."},
        []string{"status", "stop_reason"},
    )
    // SolveDuration tracks solve wall time in milliseconds
    SolveDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "solve_duration_ms", Help: "Solve duration in ms.", Buckets: []float64{10, 50, 100, 300, 1000, 3000, 10000, 30000}},
        []string{"status"},
    )
    // SolveIterations tracks search iterations per solve
    SolveIterations = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "solve_iterations", Help: "Search iterations per solve.", Buckets: []float64{10, 100, 1000, 10000, 100000, 1000000}},
    )
    // QueueDepth reports solve jobs waiting for a worker
    QueueDepth = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "solve_queue_depth", Help: "Solve jobs waiting for a worker."},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func() {
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(Solves)
        Registry.MustRegister(SolveDuration)
        Registry.MustRegister(SolveIterations)
        Registry.MustRegister(QueueDepth)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
