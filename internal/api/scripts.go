package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/AaronLay10/StrokeForge/internal/config"
	"github.com/AaronLay10/StrokeForge/internal/pipeline"
	"github.com/AaronLay10/StrokeForge/internal/script"
	"github.com/AaronLay10/StrokeForge/internal/session"
	"github.com/AaronLay10/StrokeForge/internal/transform"
)

// maxBodyBytes bounds request bodies. Long scripts run to a few MB of JSON.
const maxBodyBytes = 32 << 20

// KindInfo describes a modifier kind and its default options.
type KindInfo struct {
	Kind           pipeline.Kind    `json:"kind"`
	DefaultOptions pipeline.Options `json:"defaultOptions"`
}

func kindsHandler(w http.ResponseWriter, r *http.Request) {
	kinds := pipeline.Kinds()
	out := make([]KindInfo, 0, len(kinds))
	for _, k := range kinds {
		defaults, _ := pipeline.DefaultOptions(k)
		out = append(out, KindInfo{Kind: k, DefaultOptions: defaults})
	}
	writeJSON(w, http.StatusOK, out)
}

// ApplyRequest runs a pipeline over a script without keeping any state.
type ApplyRequest struct {
	Script   json.RawMessage        `json:"script"`
	Pipeline *config.PipelineConfig `json:"pipeline,omitempty"`
}

type ApplyResponse struct {
	Script   script.Script     `json:"script"`
	Failures []session.Failure `json:"failures,omitempty"`
}

func applyHandler(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	in, err := script.ParseJSON(req.Script)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var mods []pipeline.Modifier
	if req.Pipeline != nil {
		if mods, err = pipeline.FromConfig(req.Pipeline); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var failures []session.Failure
	out, err := pipeline.Apply(in, mods, func(m pipeline.Modifier, err error) {
		failures = append(failures, session.Failure{ModifierID: m.ID, Kind: m.Kind, Error: err.Error()})
	})
	RecordApply(err == nil && len(failures) == 0)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ApplyResponse{Script: out, Failures: failures})
}

func listScriptsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, store.IDs())
}

func getScriptHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := store.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// putScriptHandler accepts a JSON script, or CSV when sent as text/csv.
func putScriptHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	var in script.Script
	if isCSV(r) {
		in, err = script.ParseCSV(body)
	} else {
		in, err = script.ParseJSON(body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := store.SetScript(r.PathValue("id"), in)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func deleteScriptHandler(w http.ResponseWriter, r *http.Request) {
	if err := store.Delete(r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// renderedHandler downloads the latest output as JSON, or CSV with ?format=csv.
func renderedHandler(w http.ResponseWriter, r *http.Request) {
	out, err := store.Output(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		b, err := script.MarshalJSON(out)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(script.MarshalCSV(out.Actions))
	default:
		writeError(w, http.StatusBadRequest, "format must be json or csv")
	}
}

// segmentHandler returns the output actions visible in [from, to] ms.
func segmentHandler(w http.ResponseWriter, r *http.Request) {
	from, err1 := strconv.ParseFloat(r.URL.Query().Get("from"), 64)
	to, err2 := strconv.ParseFloat(r.URL.Query().Get("to"), 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "from and to must be numbers")
		return
	}

	out, err := store.Output(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	seg := script.Segment(out.Actions, from, to)
	if seg == nil {
		seg = []script.Action{}
	}
	writeJSON(w, http.StatusOK, seg)
}

func pairsHandler(w http.ResponseWriter, r *http.Request) {
	out, err := store.Output(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, script.Pairs(out))
}

// putPipelineHandler replaces the pipeline. The body is a YAML or JSON pipeline file.
func putPipelineHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	cfg, err := config.ParsePipelineConfig(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mods, err := pipeline.FromConfig(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := store.SetPipeline(r.PathValue("id"), mods)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type AddModifierRequest struct {
	Kind    pipeline.Kind          `json:"kind"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ModifierResponse struct {
	Modifier pipeline.Modifier `json:"modifier"`
	Session  session.Snapshot  `json:"session"`
}

func addModifierHandler(w http.ResponseWriter, r *http.Request) {
	var req AddModifierRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "kind required")
		return
	}

	id := r.PathValue("id")
	m, snap, err := store.AddModifier(id, req.Kind)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if len(req.Options) > 0 {
		if snap, err = store.UpdateOptions(id, m.ID, req.Options); err != nil {
			_, _ = store.RemoveModifier(id, m.ID)
			writeError(w, statusFor(err), err.Error())
			return
		}
		m = snap.Modifiers[pipeline.IndexOf(snap.Modifiers, m.ID)]
	}

	writeJSON(w, http.StatusCreated, ModifierResponse{Modifier: m, Session: snap})
}

type UpdateModifierRequest struct {
	Options map[string]interface{} `json:"options"`
}

func updateModifierHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateModifierRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Options) == 0 {
		writeError(w, http.StatusBadRequest, "options required")
		return
	}

	snap, err := store.UpdateOptions(r.PathValue("id"), r.PathValue("mid"), req.Options)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func removeModifierHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := store.RemoveModifier(r.PathValue("id"), r.PathValue("mid"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type MoveModifierRequest struct {
	Direction int `json:"direction"`
}

func moveModifierHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveModifierRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Direction != 1 && req.Direction != -1 {
		writeError(w, http.StatusBadRequest, "direction must be 1 or -1")
		return
	}

	snap, err := store.MoveModifier(r.PathValue("id"), r.PathValue("mid"), req.Direction)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func resetModifierHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := store.ResetModifier(r.PathValue("id"), r.PathValue("mid"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func isCSV(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "text/csv"
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var parseErr *script.ParseError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrModifierNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoInput):
		return http.StatusConflict
	case errors.As(err, &parseErr),
		errors.Is(err, session.ErrInvalidID),
		errors.Is(err, script.ErrEmptyScript),
		errors.Is(err, script.ErrMalformedAction),
		errors.Is(err, pipeline.ErrUnknownKind),
		errors.Is(err, pipeline.ErrUnknownOption),
		errors.Is(err, pipeline.ErrInvalidOption),
		errors.Is(err, transform.ErrFlatRange),
		errors.Is(err, transform.ErrInvalidSpeed),
		errors.Is(err, transform.ErrUnknownPreset):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
