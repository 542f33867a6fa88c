package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertMQTTDisconnected    = "mqtt_disconnected"
	AlertPostgresUnavailable = "postgres_unavailable"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	Service   string                 `json:"service"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// outageWatch raises an alert once a dependency has been down for longer than
// delay, and a recovery alert when it comes back after that.
type outageWatch struct {
	event    string
	severity string
	label    string
	delay    time.Duration

	seen      bool
	down      bool
	downSince time.Time
	alerted   bool
}

// observe records the dependency state at now and returns the alert to send, if any.
func (o *outageWatch) observe(connected bool, now time.Time) *AlertPayload {
	if connected {
		o.seen = true
		recovered := o.down && o.alerted
		o.down, o.alerted, o.downSince = false, false, time.Time{}
		if !recovered {
			return nil
		}
		return &AlertPayload{
			Event:    o.event,
			Severity: SeverityInfo,
			Message:  o.label + " connection restored",
			Details:  map[string]interface{}{"recovered_at": now.UTC().Format(time.RFC3339)},
		}
	}

	if !o.down {
		o.down = true
		o.downSince = now
	}
	if o.alerted || now.Sub(o.downSince) < o.delay {
		return nil
	}

	o.alerted = true
	return &AlertPayload{
		Event:    o.event,
		Severity: o.severity,
		Message:  o.label + " unavailable",
		Details: map[string]interface{}{
			"disconnected_since":   o.downSince.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(now.Sub(o.downSince).Seconds()),
		},
	}
}

var (
	alertMu    sync.Mutex
	webhookURL string
	mqttWatch  = &outageWatch{event: AlertMQTTDisconnected, severity: SeverityWarning, label: "MQTT broker", delay: 30 * time.Second}
	pgWatch    = &outageWatch{event: AlertPostgresUnavailable, severity: SeverityCritical, label: "PostgreSQL", delay: 5 * time.Second}
)

// InitAlerts reads STROKEFORGE_ALERT_WEBHOOK_URL and the optional
// STROKEFORGE_MQTT_ALERT_DELAY / STROKEFORGE_POSTGRES_ALERT_DELAY durations.
func InitAlerts() {
	alertMu.Lock()
	defer alertMu.Unlock()

	webhookURL = os.Getenv("STROKEFORGE_ALERT_WEBHOOK_URL")
	if d, err := time.ParseDuration(os.Getenv("STROKEFORGE_MQTT_ALERT_DELAY")); err == nil {
		mqttWatch.delay = d
	}
	if d, err := time.ParseDuration(os.Getenv("STROKEFORGE_POSTGRES_ALERT_DELAY")); err == nil {
		pgWatch.delay = d
	}

	if webhookURL != "" {
		log.Printf("Alerts enabled: webhook URL configured (mqtt_delay=%s, pg_delay=%s)",
			mqttWatch.delay, pgWatch.delay)
	}
}

// SendAlert posts an alert to the webhook in the background, or logs it when
// no webhook is configured.
func SendAlert(p AlertPayload) {
	alertMu.Lock()
	url := webhookURL
	alertMu.Unlock()

	p.Service = GetServiceName()
	if p.Service == "" {
		p.Service = "unknown"
	}
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)

	if url == "" {
		log.Printf("[ALERT] %s severity=%s msg=%q details=%v", p.Event, p.Severity, p.Message, p.Details)
		return
	}
	go sendWebhook(url, p)
}

func sendWebhook(url string, payload AlertPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("alert: failed to marshal payload: %v", err)
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("alert: webhook POST failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Printf("alert: webhook returned status %d", resp.StatusCode)
	}
}

// checkDependencies feeds the readiness state into the outage watches.
func checkDependencies(now time.Time) []AlertPayload {
	readiness.mu.RLock()
	mqttConnected, mqttOptional := readiness.mqttConnected, readiness.mqttOptional
	pgConnected, pgOptional := readiness.postgresConnected, readiness.postgresOptional
	readiness.mu.RUnlock()

	alertMu.Lock()
	defer alertMu.Unlock()

	var out []AlertPayload
	// optional dependencies that never connected are treated as disabled
	if !mqttOptional || mqttConnected || mqttWatch.seen {
		if a := mqttWatch.observe(mqttConnected, now); a != nil {
			out = append(out, *a)
		}
	}
	if !pgOptional || pgConnected || pgWatch.seen {
		if a := pgWatch.observe(pgConnected, now); a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// StartAlertMonitor checks the dependency state every interval.
func StartAlertMonitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for now := range ticker.C {
			for _, a := range checkDependencies(now) {
				SendAlert(a)
			}
		}
	}()
}
