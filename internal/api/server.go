package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AaronLay10/StrokeForge/internal/events"
	"github.com/AaronLay10/StrokeForge/internal/session"
	"github.com/AaronLay10/StrokeForge/internal/version"
)

var store *session.Store

// SetStore sets the session store served by the script endpoints.
func SetStore(s *session.Store) {
	store = s
}

// readinessState tracks the dependencies reported by /ready.
type readinessState struct {
	mu                sync.RWMutex
	engineReady       bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}

var readiness = &readinessState{mqttOptional: true, postgresOptional: true}

// SetEngineReady marks whether the session store is loaded and serving.
func SetEngineReady(ready bool) {
	readiness.mu.Lock()
	readiness.engineReady = ready
	readiness.mu.Unlock()
}

// SetMQTTState records the broker connection. optional means /ready does not
// depend on it.
func SetMQTTState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

// SetPostgresState records the database connection. optional means /ready does
// not depend on it.
func SetPostgresState(connected, optional bool) {
	readiness.mu.Lock()
	readiness.postgresConnected = connected
	readiness.postgresOptional = optional
	readiness.mu.Unlock()
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "strokeforged",
		Version:   version.Version,
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	writeJSON(w, http.StatusOK, resp)
}

// CheckStatus is the state of one readiness dependency.
type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckStatus `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	engineReady := readiness.engineReady
	mqttConnected, mqttOptional := readiness.mqttConnected, readiness.mqttOptional
	pgConnected, pgOptional := readiness.postgresConnected, readiness.postgresOptional
	readiness.mu.RUnlock()

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckStatus)}
	var notReady []string

	check := func(name string, ok, optional bool, downStatus string) {
		switch {
		case ok:
			resp.Checks[name] = CheckStatus{Status: "ok", Optional: optional}
		case optional:
			resp.Checks[name] = CheckStatus{Status: "unavailable", Optional: true}
		default:
			resp.Checks[name] = CheckStatus{Status: downStatus}
			resp.Ready = false
			notReady = append(notReady, name)
		}
	}
	check("engine", engineReady, false, "not_ready")
	check("mqtt", mqttConnected, mqttOptional, "disconnected")
	check("postgres", pgConnected, pgOptional, "disconnected")

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
		resp.NotReadyMsg = "not ready: " + strings.Join(notReady, ", ")
	}
	writeJSON(w, status, resp)
}

// eventFilter reads ?script=, ?level= and ?prefix= into an events.Filter.
func eventFilter(r *http.Request) events.Filter {
	q := r.URL.Query()
	return events.Filter{
		ScriptID: q.Get("script"),
		MinLevel: q.Get("level"),
		Prefix:   q.Get("prefix"),
	}
}

// eventsHandler returns buffered events, oldest first. ?limit= keeps the newest n.
func eventsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, events.RecentEvents(limit, eventFilter(r)))
}

// NewMux returns the routes of the API with authorization applied.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler)
	mux.HandleFunc("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /events", RequireViewer(eventsHandler))
	mux.HandleFunc("GET /ws/events", RequireViewer(wsEventsHandler))

	mux.HandleFunc("GET /kinds", RequireViewer(kindsHandler))
	mux.HandleFunc("POST /apply", RequireViewer(applyHandler))

	mux.HandleFunc("GET /scripts", RequireViewer(listScriptsHandler))
	mux.HandleFunc("GET /scripts/{id}", RequireViewer(getScriptHandler))
	mux.HandleFunc("GET /scripts/{id}/rendered", RequireViewer(renderedHandler))
	mux.HandleFunc("GET /scripts/{id}/segment", RequireViewer(segmentHandler))
	mux.HandleFunc("GET /scripts/{id}/pairs", RequireViewer(pairsHandler))
	mux.HandleFunc("GET /ws/scripts/{id}", RequireViewer(wsRenderedHandler))

	mux.HandleFunc("PUT /scripts/{id}", RequireEditor(putScriptHandler))
	mux.HandleFunc("PUT /scripts/{id}/pipeline", RequireEditor(putPipelineHandler))
	mux.HandleFunc("POST /scripts/{id}/modifiers", RequireEditor(addModifierHandler))
	mux.HandleFunc("PATCH /scripts/{id}/modifiers/{mid}", RequireEditor(updateModifierHandler))
	mux.HandleFunc("DELETE /scripts/{id}/modifiers/{mid}", RequireEditor(removeModifierHandler))
	mux.HandleFunc("POST /scripts/{id}/modifiers/{mid}/move", RequireEditor(moveModifierHandler))
	mux.HandleFunc("POST /scripts/{id}/modifiers/{mid}/reset", RequireEditor(resetModifierHandler))

	mux.HandleFunc("DELETE /scripts/{id}", RequireAdmin(deleteScriptHandler))
	return mux
}

// ListenAndServe starts the API server on the given port, with TLS when
// configured. It blocks until the server exits.
func ListenAndServe(port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tlsCfg, err := LoadTLSConfig()
	if err != nil {
		return err
	}
	if tlsCfg != nil {
		srv.TLSConfig = tlsCfg
		log.Printf("API listening on %s (TLS)\n", srv.Addr)
		return srv.ListenAndServeTLS("", "")
	}

	log.Printf("API listening on %s\n", srv.Addr)
	return srv.ListenAndServe()
}

// Start starts the API server in a goroutine.
// Errors are logged but do not stop the caller.
func Start(port int) {
	go func() {
		if err := ListenAndServe(port); err != nil {
			log.Printf("api server error: %v", err)
		}
	}()
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{OK: false, Error: msg})
}
