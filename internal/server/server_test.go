package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/config"
	"github.com/blackcoderx/mfp/internal/metatools"
	"github.com/blackcoderx/mfp/internal/model"
	"github.com/blackcoderx/mfp/internal/registry"
)

func testManager(t *testing.T) *metatools.Manager {
	t.Helper()
	dir := t.TempDir()
	serverDir := filepath.Join(dir, "weather")
	if err := os.MkdirAll(serverDir, 0o755); err != nil {
		t.Fatal(err)
	}
	manifest := model.ServerManifest{
		ServerName:  "weather",
		Description: "Weather API",
		SwaggerHash: "abc",
		CompiledAt:  time.Now(),
		Endpoints: []model.EndpointManifestRow{
			{OperationID: "get_weather", Method: "GET", Path: "/weather", Summary: "Current weather"},
		},
	}
	raw, _ := json.Marshal(manifest)
	if err := os.WriteFile(filepath.Join(serverDir, "manifest.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(serverDir, "functions.py"), []byte("def get_weather():\n    return {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := registry.New(dir, zap.NewNop())
	if err := reg.Load(); err != nil {
		t.Fatal(err)
	}
	return metatools.NewManager(&config.Config{}, zap.NewNop(), reg, nil, nil)
}

func TestServeStdioDispatchesAndRecovers(t *testing.T) {
	manager := testManager(t)

	in := strings.NewReader(
		`{"tool": "list_servers", "args": {}}` + "\n" +
			"not json at all\n" +
			`{"tool": "get_cached_code", "args": {}}` + "\n",
	)
	var out strings.Builder

	if err := ServeStdio(context.Background(), manager, zap.NewNop(), in, &out); err != nil {
		t.Fatalf("ServeStdio: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 response lines, got %d: %q", len(lines), out.String())
	}

	var first struct {
		Servers []struct{ Name string } `json:"servers"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first response is not JSON: %v", err)
	}
	if len(first.Servers) != 1 || first.Servers[0].Name != "weather" {
		t.Fatalf("unexpected list_servers response: %s", lines[0])
	}

	var second map[string]string
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if second["error_type"] != "internal" {
		t.Fatalf("malformed line must yield an in-band error, got %s", lines[1])
	}
}

func TestHTTPRoutes(t *testing.T) {
	manager := testManager(t)
	mux := http.NewServeMux()
	registerRoutes(mux, manager)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/tools")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var tools struct {
		Tools []struct{ Name string } `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tools); err != nil {
		t.Fatal(err)
	}
	if len(tools.Tools) != 4 {
		t.Fatalf("expected 4 advertised tools, got %d", len(tools.Tools))
	}

	resp2, err := http.Post(srv.URL+"/tools/get_function", "application/json",
		strings.NewReader(`{"server_name": "weather", "function_name": "get_weather"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	var info struct {
		ImportStatement string `json:"import_statement"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.ImportStatement != "from weather.functions import get_weather" {
		t.Fatalf("unexpected get_function response: %+v", info)
	}
}

func TestStartHTTPBindsAndShutsDown(t *testing.T) {
	manager := testManager(t)
	port, shutdown, err := StartHTTP(manager, zap.NewNop(), "127.0.0.1", 0)
	if err != nil {
		t.Fatalf("StartHTTP: %v", err)
	}
	if port == 0 {
		t.Fatal("expected an OS-assigned port")
	}
	shutdown()
}
