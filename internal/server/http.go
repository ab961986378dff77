// Package server hosts the meta-tool surface over the two supported
// transports: a line-oriented stdio loop and a small HTTP dispatcher.
// This is deliberately a dispatch shim, not a full tool-protocol wire
// implementation: each transport only names a tool, hands its JSON args
// to metatools.Manager, and relays the JSON result.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/metatools"
)

// StartHTTP binds host:port (port 0 = OS-assigned), registers the tool
// routes, and serves in a background goroutine. It returns the actual
// bound port and a shutdown function that drains the server gracefully.
func StartHTTP(manager *metatools.Manager, logger *zap.Logger, host string, port int) (actualPort int, shutdown func(), err error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return 0, nil, fmt.Errorf("server: failed to bind %s:%d: %w", host, port, err)
	}
	actualPort = ln.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	registerRoutes(mux, manager)

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // execute_code waits on the sandbox
	}

	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("http_transport_stopped", zap.Error(serveErr))
		}
	}()

	shutdown = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return actualPort, shutdown, nil
}

func registerRoutes(mux *http.ServeMux, manager *metatools.Manager) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /tools", func(w http.ResponseWriter, _ *http.Request) {
		type toolRow struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			Parameters  json.RawMessage `json:"parameters"`
		}
		var rows []toolRow
		for _, t := range manager.Tools() {
			rows = append(rows, toolRow{Name: t.Name(), Description: t.Description(), Parameters: json.RawMessage(t.Parameters())})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"tools": rows})
	})

	mux.HandleFunc("POST /tools/{name}", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var args json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be a JSON args object", "error_type": "internal"})
			return
		}
		result := manager.Dispatch(r.Context(), r.PathValue("name"), string(args))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(result))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
