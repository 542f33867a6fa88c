package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/AaronLay10/StrokeForge/internal/events"
	"github.com/AaronLay10/StrokeForge/internal/version"
)

var metricsState = &MetricsState{}

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu            sync.RWMutex
	startTime     time.Time
	serviceName   string
	applyTotal    uint64
	applyFailures uint64
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics() {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
	metricsState.applyTotal = 0
	metricsState.applyFailures = 0
}

// SetServiceName sets the service name used in metric labels and alerts.
func SetServiceName(name string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.serviceName = name
}

// GetServiceName returns the current service name.
func GetServiceName() string {
	metricsState.mu.RLock()
	defer metricsState.mu.RUnlock()
	return metricsState.serviceName
}

// RecordApply counts one stateless pipeline run.
func RecordApply(ok bool) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.applyTotal++
	if !ok {
		metricsState.applyFailures++
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	metricsState.mu.RLock()
	startTime := metricsState.startTime
	serviceName := metricsState.serviceName
	applyTotal := metricsState.applyTotal
	applyFailures := metricsState.applyFailures
	metricsState.mu.RUnlock()

	readiness.mu.RLock()
	engineReady := readiness.engineReady
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	sessions := 0
	if store != nil {
		sessions = store.Len()
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	labels := fmt.Sprintf(`service="%s",instance="%s",version="%s"`, serviceName, hostname, version.Version)
	writeMetric := func(name, mtype, help string, value interface{}) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	writeMetric("strokeforge_uptime_seconds", "gauge",
		"Number of seconds since the service started", time.Since(startTime).Seconds())
	writeMetric("strokeforge_engine_ready", "gauge",
		"Whether the session store is serving (1) or not (0)", boolGauge(engineReady))
	writeMetric("strokeforge_sessions", "gauge",
		"Number of editing sessions held in memory", sessions)
	writeMetric("strokeforge_apply_requests_total", "counter",
		"Total number of stateless pipeline runs", applyTotal)
	writeMetric("strokeforge_apply_failures_total", "counter",
		"Stateless pipeline runs with a rejected script or failing modifier", applyFailures)
	writeMetric("strokeforge_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount())
	writeMetric("strokeforge_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", boolGauge(mqttConnected))
	writeMetric("strokeforge_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", boolGauge(postgresConnected))
	writeMetric("strokeforge_ws_clients", "gauge",
		"Number of active WebSocket client connections", events.SubscriberCount())
	writeMetric("strokeforge_ws_dropped_events_total", "counter",
		"Events dropped because a WebSocket client fell behind", events.DroppedCount())
}
