package api

import (
	"testing"
	"time"
)

func TestOutageWatch(t *testing.T) {
	o := &outageWatch{event: AlertMQTTDisconnected, severity: SeverityWarning, label: "MQTT broker", delay: 30 * time.Second}
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if a := o.observe(true, start); a != nil {
		t.Fatalf("no alert expected while connected, got %+v", a)
	}
	if a := o.observe(false, start.Add(time.Second)); a != nil {
		t.Fatal("no alert expected before the delay")
	}

	a := o.observe(false, start.Add(31*time.Second))
	if a == nil || a.Severity != SeverityWarning || a.Event != AlertMQTTDisconnected {
		t.Fatalf("expected warning after delay, got %+v", a)
	}
	if a.Details["disconnected_seconds"] != 30 {
		t.Errorf("expected 30 disconnected seconds, got %v", a.Details["disconnected_seconds"])
	}
	if a := o.observe(false, start.Add(60*time.Second)); a != nil {
		t.Error("alert should only be sent once per outage")
	}

	a = o.observe(true, start.Add(61*time.Second))
	if a == nil || a.Severity != SeverityInfo {
		t.Fatalf("expected recovery alert, got %+v", a)
	}
	if a := o.observe(true, start.Add(62*time.Second)); a != nil {
		t.Error("no second recovery alert expected")
	}
}

func TestOutageWatch_ShortOutageNoRecovery(t *testing.T) {
	o := &outageWatch{delay: 5 * time.Second}
	now := time.Now()

	o.observe(false, now)
	if a := o.observe(true, now.Add(time.Second)); a != nil {
		t.Error("no recovery alert expected when no outage alert was sent")
	}
}

func TestCheckDependencies_OptionalNeverConnected(t *testing.T) {
	alertMu.Lock()
	mqttWatch = &outageWatch{event: AlertMQTTDisconnected, severity: SeverityWarning, delay: 0}
	pgWatch = &outageWatch{event: AlertPostgresUnavailable, severity: SeverityCritical, delay: 0}
	alertMu.Unlock()

	SetMQTTState(false, true)
	SetPostgresState(false, false)

	alerts := checkDependencies(time.Now())
	if len(alerts) != 1 || alerts[0].Event != AlertPostgresUnavailable {
		t.Errorf("expected only the required postgres alert, got %+v", alerts)
	}

	SetMQTTState(true, true)
	checkDependencies(time.Now())
	SetMQTTState(false, true)
	alerts = checkDependencies(time.Now())
	if len(alerts) != 1 || alerts[0].Event != AlertMQTTDisconnected {
		t.Errorf("expected optional mqtt alert after it had connected, got %+v", alerts)
	}
}
