package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AaronLay10/StrokeForge/internal/config"
	"github.com/AaronLay10/StrokeForge/internal/pipeline"
	"github.com/AaronLay10/StrokeForge/internal/script"
	"github.com/AaronLay10/StrokeForge/internal/version"
)

type LogLine struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logEvent writes one JSON log line to stderr so stdout stays free for output.
func logEvent(level, event, msg string, fields map[string]interface{}) {
	line := LogLine{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Event:     event,
		Message:   msg,
		Fields:    fields,
	}
	b, _ := json.Marshal(line)
	fmt.Fprintln(os.Stderr, string(b))
}

func main() {
	in := flag.String("in", "", "Input script (.funscript/.json or .csv)")
	pipelinePath := flag.String("pipeline", "", "Pipeline file (YAML or JSON)")
	format := flag.String("format", "", "Output format: json or csv (default from -out extension, else json)")
	out := flag.String("out", "", "Output file (default stdout)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return
	}
	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*in, *pipelinePath, *format, *out); err != nil {
		logEvent("error", "system.error", err.Error(), nil)
		os.Exit(1)
	}
}

func run(inPath, pipelinePath, format, outPath string) error {
	s, err := readScript(inPath)
	if err != nil {
		return err
	}
	logEvent("info", "script.loaded", "", map[string]interface{}{
		"path":    inPath,
		"actions": len(s.Actions),
	})

	var mods []pipeline.Modifier
	if pipelinePath != "" {
		cfg, err := config.LoadPipelineConfig(pipelinePath)
		if err != nil {
			return fmt.Errorf("load pipeline: %w", err)
		}
		if mods, err = pipeline.FromConfig(cfg); err != nil {
			return fmt.Errorf("load pipeline: %w", err)
		}
	}

	failed := 0
	rendered, err := pipeline.Apply(s, mods, func(m pipeline.Modifier, err error) {
		failed++
		logEvent("warn", "modifier.failed", err.Error(), map[string]interface{}{
			"modifier_id": m.ID,
			"kind":        m.Kind,
		})
	})
	if err != nil {
		return err
	}

	b, err := encode(rendered, outputFormat(format, outPath))
	if err != nil {
		return err
	}
	if outPath == "" {
		_, err = os.Stdout.Write(b)
	} else {
		err = os.WriteFile(outPath, b, 0o644)
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logEvent("info", "script.rendered", "", map[string]interface{}{
		"modifiers":     len(mods),
		"failed":        failed,
		"actions":       len(rendered.Actions),
		"duration":      rendered.Metadata.Duration,
		"average_speed": rendered.Metadata.AverageSpeed,
	})
	return nil
}

func readScript(path string) (script.Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return script.Script{}, err
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return script.ParseCSV(b)
	}
	return script.ParseJSON(b)
}

func outputFormat(format, outPath string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	if strings.EqualFold(filepath.Ext(outPath), ".csv") {
		return "csv"
	}
	return "json"
}

func encode(s script.Script, format string) ([]byte, error) {
	switch format {
	case "json":
		return script.MarshalJSON(s)
	case "csv":
		return script.MarshalCSV(s.Actions), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
