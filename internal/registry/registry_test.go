package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/model"
)

func writeManifest(t *testing.T, dir, server string, manifest model.ServerManifest) {
	t.Helper()
	serverDir := filepath.Join(dir, server)
	if err := os.MkdirAll(serverDir, 0o755); err != nil {
		t.Fatal(err)
	}
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(serverDir, "manifest.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	code := "def get_weather(city: str):\n    \"\"\"Get weather.\"\"\"\n    return city\n\n\ndef get_forecast(city: str):\n    return city\n"
	if err := os.WriteFile(filepath.Join(serverDir, "functions.py"), []byte(code), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRegistryListAndGetFunction(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "weather", model.ServerManifest{
		ServerName:  "weather",
		Description: "Weather API",
		SwaggerHash: "abc123",
		CompiledAt:  time.Now(),
		Endpoints: []model.EndpointManifestRow{
			{OperationID: "get_weather", Method: "GET", Path: "/weather/{city}", Summary: "Current weather"},
			{OperationID: "get_forecast", Method: "GET", Path: "/forecast/{city}", Summary: "Forecast"},
		},
	})

	r := New(dir, zap.NewNop())
	if err := r.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	servers := r.ListServers()
	if len(servers) != 1 || servers[0].Name != "weather" {
		t.Fatalf("unexpected servers: %+v", servers)
	}
	if len(servers[0].Functions) != 2 {
		t.Fatalf("expected 2 functions, got %v", servers[0].Functions)
	}

	info, err := r.GetFunction("weather", "get_weather")
	if err != nil {
		t.Fatalf("GetFunction: %v", err)
	}
	if info.Summary != "Current weather" {
		t.Fatalf("unexpected summary: %q", info.Summary)
	}
	if info.Source == "" {
		t.Fatal("expected a non-empty source snippet")
	}

	// Memoization: second call must return the identical cached snippet.
	info2, err := r.GetFunction("weather", "get_weather")
	if err != nil {
		t.Fatalf("GetFunction (2nd): %v", err)
	}
	if info2.Source != info.Source {
		t.Fatal("expected memoized snippet to be identical")
	}

	hash, err := r.GetSwaggerHash("weather")
	if err != nil || hash != "abc123" {
		t.Fatalf("GetSwaggerHash: %v %q", err, hash)
	}
}

func TestRegistryUnknownServerAndFunction(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "weather", model.ServerManifest{ServerName: "weather"})

	r := New(dir, zap.NewNop())
	if err := r.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, err := r.GetFunction("unknown", "x"); err == nil {
		t.Fatal("expected ServerNotFound")
	}
	if _, err := r.GetFunction("weather", "unknown_fn"); err == nil {
		t.Fatal("expected FunctionNotFound")
	}
}
