// Package metatools is the fixed four-operation surface the LLM sees:
// list_servers, get_function, execute_code, get_cached_code. Each tool
// takes a JSON args blob and returns a JSON result blob; every typed
// error is flattened to an in-band {error, error_type} response so the
// caller can react without exception plumbing, and only truly unexpected
// failures log a full trace under "internal".
package metatools

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/cache"
	"github.com/blackcoderx/mfp/internal/config"
	"github.com/blackcoderx/mfp/internal/executor"
	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/registry"
)

// Tool is one meta-operation. The shape (name, description, JSON
// parameter schema, execute taking and returning JSON text) matches how
// the transport layer advertises and dispatches tools.
type Tool interface {
	Name() string
	Description() string
	Parameters() string
	Execute(ctx context.Context, args string) (string, error)
}

// Manager owns the four tools and dispatches calls by name.
type Manager struct {
	tools  map[string]Tool
	logger *zap.Logger
}

// NewManager registers the four meta-tools over the given collaborators.
// cacheDB may be nil when caching is disabled; get_cached_code then
// reports an empty result set.
func NewManager(cfg *config.Config, logger *zap.Logger, reg *registry.Registry, exec *executor.Executor, cacheDB *cache.Store) *Manager {
	m := &Manager{tools: make(map[string]Tool), logger: logger}
	for _, t := range []Tool{
		&ListServersTool{reg: reg},
		&GetFunctionTool{reg: reg},
		&ExecuteCodeTool{cfg: cfg, exec: exec, logger: logger},
		&GetCachedCodeTool{cacheDB: cacheDB},
	} {
		m.tools[t.Name()] = t
	}
	return m
}

// Tools returns the registered tools for transport-level advertisement.
func (m *Manager) Tools() []Tool {
	out := make([]Tool, 0, len(m.tools))
	for _, name := range []string{"list_servers", "get_function", "execute_code", "get_cached_code"} {
		if t, ok := m.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Dispatch routes one call to the named tool. An unknown tool name and
// any tool failure both come back as an in-band error payload, never an
// error return; the transport always has JSON to hand to the LLM.
func (m *Manager) Dispatch(ctx context.Context, name, args string) string {
	tool, ok := m.tools[name]
	if !ok {
		return errorPayload(fmt.Sprintf("unknown tool %q", name), "internal")
	}
	result, err := tool.Execute(ctx, args)
	if err != nil {
		if mfperrors.ErrorType(err) == string(mfperrors.KindInternal) {
			m.logger.Error("metatool_internal_error", zap.String("tool", name), zap.Error(err))
		}
		return errorPayload(err.Error(), mfperrors.ErrorType(err))
	}
	return result
}

func errorPayload(msg, errorType string) string {
	raw, _ := json.Marshal(map[string]string{"error": msg, "error_type": errorType})
	return string(raw)
}

func marshal(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", mfperrors.NewInternalError(err)
	}
	return string(raw), nil
}
