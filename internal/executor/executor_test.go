package executor

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/config"
)

func TestDetectDependencies(t *testing.T) {
	code := `
from weather.functions import get_forecast
import billing.functions
from weather.functions import get_alerts

result = get_forecast("94110")
`
	got := detectDependencies(code)
	want := []string{"billing", "weather"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestDetectDependenciesNone(t *testing.T) {
	got := detectDependencies("result = 1 + 1\n")
	if len(got) != 0 {
		t.Fatalf("expected no dependencies, got %v", got)
	}
}

func TestParseEnvelopeWellFormed(t *testing.T) {
	result := parseEnvelope([]byte(`{"success": true, "data": {"temp_f": 61}}`))
	if !result.Success {
		t.Fatal("expected success=true")
	}
	data, ok := result.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected a map, got %T", result.Data)
	}
	if data["temp_f"] != float64(61) {
		t.Fatalf("unexpected data: %v", data)
	}
}

func TestParseEnvelopeFallbackOnMalformedJSON(t *testing.T) {
	result := parseEnvelope([]byte("not json at all"))
	if !result.Success {
		t.Fatal("expected fallback to report success=true")
	}
	if result.Data != "not json at all" {
		t.Fatalf("unexpected fallback data: %v", result.Data)
	}
}

func TestParseEnvelopeFallbackOnNonConformingJSON(t *testing.T) {
	// Valid JSON, but not the envelope shape: no success flag, an
	// unexpected member. Takes the raw-text fallback path.
	raw := `{"temp_f": 61, "note": "printed a bare object"}`
	result := parseEnvelope([]byte(raw))
	if !result.Success {
		t.Fatal("expected fallback to report success=true")
	}
	if result.Data != raw {
		t.Fatalf("expected raw text as data, got %v", result.Data)
	}
}

func TestParseEnvelopeFailure(t *testing.T) {
	result := parseEnvelope([]byte(`{"success": false, "error": "boom", "traceback": "..."}`))
	if result.Success {
		t.Fatal("expected success=false")
	}
	if result.Error != "boom" {
		t.Fatalf("unexpected error: %q", result.Error)
	}
}

func TestLintSkipsWhenToolUnavailable(t *testing.T) {
	e := &Executor{cfg: &config.Config{}, logger: zap.NewNop()}
	// Exercises the exec.ErrNotFound path; ruff is not assumed present in
	// the test environment, so a skipped run (nil error) is success.
	if err := e.lint(context.Background(), "result = 1\n"); err != nil {
		t.Fatalf("expected lint to skip rather than fail when the linter is unavailable, got %v", err)
	}
}

func TestSizeGuardRejectsOversizedProgram(t *testing.T) {
	e := New(&config.Config{MaxCodeSizeBytes: 10}, zap.NewNop(), nil, nil)
	_, err := e.Execute(context.Background(), "result = 'this is definitely too long'\n", "")
	if err == nil {
		t.Fatal("expected an error for an oversized program")
	}
}
