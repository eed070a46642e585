package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJSONLoggerIncludesMissionID(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn := New(Config{Level: "debug", Format: "json", Output: &buf})
	defer closeFn()

	ctx := ContextWithMissionID(context.Background(), "m-1")
	log.With(String("component", "planner")).Info(ctx, "planned", Int("orbits", 3), Float("coverage", 0.97))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["mission_id"] != "m-1" {
		t.Fatalf("mission_id = %v, want m-1", rec["mission_id"])
	}
	if rec["component"] != "planner" {
		t.Fatalf("component = %v, want planner", rec["component"])
	}
	if rec["orbits"] != float64(3) {
		t.Fatalf("orbits = %v, want 3", rec["orbits"])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn := New(Config{Level: "warn", Output: &buf})
	defer closeFn()

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestFileSinkReceivesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	var buf bytes.Buffer
	log, closeFn := New(Config{File: path, Output: &buf})
	log.Info(context.Background(), "to file")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Fatalf("log file missing record: %q", data)
	}
}

func TestEnsureMissionIDIsStable(t *testing.T) {
	ctx, id := EnsureMissionID(context.Background())
	if id == "" {
		t.Fatalf("expected a mission id")
	}
	_, again := EnsureMissionID(ctx)
	if again != id {
		t.Fatalf("EnsureMissionID replaced existing id %q with %q", id, again)
	}
}
