package metatools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/cache"
	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/model"
	"github.com/blackcoderx/mfp/internal/registry"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	serverDir := filepath.Join(dir, "weather")
	if err := os.MkdirAll(serverDir, 0o755); err != nil {
		t.Fatal(err)
	}

	manifest := model.ServerManifest{
		ServerName:  "weather",
		Description: "Weather API",
		SwaggerHash: "abc123",
		CompiledAt:  time.Now(),
		Endpoints: []model.EndpointManifestRow{
			{OperationID: "get_weather", Method: "GET", Path: "/weather/{city}", Summary: "Current weather"},
		},
	}
	raw, _ := json.MarshalIndent(manifest, "", "  ")
	if err := os.WriteFile(filepath.Join(serverDir, "manifest.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	code := "def get_weather(city: str):\n    return city\n"
	if err := os.WriteFile(filepath.Join(serverDir, "functions.py"), []byte(code), 0o644); err != nil {
		t.Fatal(err)
	}

	r := registry.New(dir, zap.NewNop())
	if err := r.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

func TestListServersTool(t *testing.T) {
	tool := &ListServersTool{reg: testRegistry(t)}

	out, err := tool.Execute(context.Background(), "{}")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var resp listServersResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if len(resp.Servers) != 1 || resp.Servers[0].Name != "weather" {
		t.Fatalf("unexpected servers: %+v", resp.Servers)
	}
	if len(resp.Servers[0].Functions) != 1 || resp.Servers[0].Functions[0].Summary != "Current weather" {
		t.Fatalf("unexpected functions: %+v", resp.Servers[0].Functions)
	}
}

func TestGetFunctionToolKnownAndUnknown(t *testing.T) {
	tool := &GetFunctionTool{reg: testRegistry(t)}

	out, err := tool.Execute(context.Background(), `{"server_name": "weather", "function_name": "get_weather"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var info registry.FunctionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatal(err)
	}
	if info.ImportStatement != "from weather.functions import get_weather" {
		t.Fatalf("unexpected import statement: %q", info.ImportStatement)
	}

	// Unknown server yields an in-band error payload, never an error return.
	out, err = tool.Execute(context.Background(), `{"server_name": "nope", "function_name": "x"}`)
	if err != nil {
		t.Fatalf("Execute must not fail for unknown server: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["error_type"] != "server_not_found" {
		t.Fatalf("expected server_not_found, got %+v", payload)
	}

	out, _ = tool.Execute(context.Background(), `{"server_name": "weather", "function_name": "nope"}`)
	_ = json.Unmarshal([]byte(out), &payload)
	if payload["error_type"] != "function_not_found" {
		t.Fatalf("expected function_not_found, got %+v", payload)
	}
}

func TestGetCachedCodeTool(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := cache.Open(dbPath, 100, 3600)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.Store("result = sum(range(10))\n", "sum 0..9", []string{"weather"}, "h", 3600); err != nil {
		t.Fatal(err)
	}

	tool := &GetCachedCodeTool{cacheDB: store}
	out, err := tool.Execute(context.Background(), `{"search": "sum"}`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var resp getCachedCodeResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.CachedEntries) != 1 || resp.CachedEntries[0].Description != "sum 0..9" {
		t.Fatalf("unexpected entries: %+v", resp.CachedEntries)
	}

	// No-match search returns an empty list, not null.
	out, _ = tool.Execute(context.Background(), `{"search": "no such thing"}`)
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.CachedEntries == nil || len(resp.CachedEntries) != 0 {
		t.Fatalf("expected empty entry list, got %+v", resp.CachedEntries)
	}
}

func TestGetCachedCodeToolWithoutCache(t *testing.T) {
	tool := &GetCachedCodeTool{cacheDB: nil}
	out, err := tool.Execute(context.Background(), "")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var resp getCachedCodeResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.CachedEntries) != 0 {
		t.Fatalf("expected no entries, got %+v", resp.CachedEntries)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	m := &Manager{tools: map[string]Tool{}, logger: zap.NewNop()}
	out := m.Dispatch(context.Background(), "does_not_exist", "{}")

	var payload map[string]string
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["error_type"] != "internal" {
		t.Fatalf("expected internal error payload, got %+v", payload)
	}
}

func TestFailureResultMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		errorType string
	}{
		{"security", mfperrors.NewSecurityViolation("blocked_import: module \"os\" is not allowed"), "security"},
		{"lint", mfperrors.NewLintError("E999 SyntaxError"), "lint"},
		{"timeout", mfperrors.NewExecutionTimeout(), "timeout"},
		{"execution", mfperrors.NewExecutionError("Traceback ...", 1), "execution"},
		{"untyped", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := failureResult(tt.err, time.Millisecond)
			if result.Success {
				t.Fatal("failure result must not be successful")
			}
			if result.ErrorType != tt.errorType {
				t.Fatalf("expected error_type %q, got %q", tt.errorType, result.ErrorType)
			}
			if result.Error == "" {
				t.Fatal("expected a non-empty error message")
			}
		})
	}
}
