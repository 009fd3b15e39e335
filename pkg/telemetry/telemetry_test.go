package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/luminix/luminix/pkg/engine"
)

func TestLoggerFieldHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := NewLogger(LoggingConfig{
		Level:      "debug",
		Format:     "json",
		Output:     path,
		TimeFormat: "rfc3339",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	l.WithOperationID("op-1").
		WithKind("update").
		WithExecutor("native").
		WithGeneration(7).
		Debug("operation finished")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log output: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["operation_id"] != "op-1" {
		t.Errorf("operation_id = %v, want op-1", rec["operation_id"])
	}
	if rec["kind"] != "update" {
		t.Errorf("kind = %v, want update", rec["kind"])
	}
	if rec["executor"] != "native" {
		t.Errorf("executor = %v, want native", rec["executor"])
	}
	if rec["generation"] != float64(7) {
		t.Errorf("generation = %v, want 7", rec["generation"])
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	bad := DefaultConfig()
	bad.Logging.Level = "loud"
	if err := bad.Validate(); err == nil {
		t.Error("invalid log level should be rejected")
	}

	bad = DefaultConfig()
	bad.Tracing.Enabled = true
	bad.Tracing.Exporter = "carrier-pigeon"
	if err := bad.Validate(); err == nil {
		t.Error("invalid trace exporter should be rejected")
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// None of these may panic with a nil registry.
	m.OperationStarted(engine.OpUpdate)
	m.OperationCompleted(&engine.ExecutionResult{
		Kind:     engine.OpUpdate,
		Executor: engine.ExecutorNative,
		Success:  true,
		Duration: time.Second,
	})
	m.OperationRejected(engine.ErrKindBusy)
	m.SetNativeAvailable(true)
	m.SetCurrentGeneration(7)
}

func TestMetricsObserverRecordsCompletion(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{
		Enabled:       true,
		ListenAddress: ":0",
		Path:          "/metrics",
		Namespace:     "test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.OperationStarted(engine.OpUpdate)
	m.OperationCompleted(&engine.ExecutionResult{
		Kind:     engine.OpUpdate,
		Executor: engine.ExecutorFallback,
		Success:  false,
		Error:    &engine.ErrorInfo{Kind: engine.ErrKindTimeout},
		Duration: 2 * time.Minute,
	})

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, want := range []string{
		"test_operations_started_total",
		"test_operations_completed_total",
		"test_errors_by_kind_total",
		"test_operation_duration_seconds",
	} {
		if !found[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}
