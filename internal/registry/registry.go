// Package registry is the read-only index of compiled servers, keyed by
// server name and function name. It loads manifests from disk once at
// startup (and on any subsequent explicit Load), and answers
// list/introspection queries without touching disk again except for
// snippet extraction, which is memoized on first use.
package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/model"
)

// ServerSummary is one row of a list_servers response.
type ServerSummary struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Functions   []string          `json:"functions"`
	Summaries   map[string]string `json:"function_summaries"`
}

// FunctionInfo is the introspection payload get_function returns.
type FunctionInfo struct {
	Server         string                `json:"server"`
	Function       string                `json:"function"`
	Summary        string                `json:"summary"`
	Method         string                `json:"method"`
	Path           string                `json:"path"`
	Parameters     string                `json:"parameters"`
	ResponseFields string                `json:"response_fields"`
	Source         string                `json:"source_snippet"`
	UsageExample   string                `json:"usage_example"`
	ImportStatement string               `json:"import_statement"`
}

type serverEntry struct {
	manifest model.ServerManifest
	byName   map[string]model.EndpointManifestRow
	source   []byte // parsed functions.py, read lazily on first snippet request
}

// Registry holds every compiled server's manifest in memory.
type Registry struct {
	compiledDir string
	logger      *zap.Logger

	mu       sync.RWMutex
	servers  map[string]*serverEntry
	snippets map[string]string // memoized "server/function" -> snippet
}

func New(compiledDir string, logger *zap.Logger) *Registry {
	return &Registry{
		compiledDir: compiledDir,
		logger:      logger,
		servers:     make(map[string]*serverEntry),
		snippets:    make(map[string]string),
	}
}

// Load scans <compiledDir>/*/manifest.json, parses each, and atomically
// replaces the in-memory index. Malformed manifests are logged and
// skipped, never fatal.
func (r *Registry) Load() error {
	matches, err := filepath.Glob(filepath.Join(r.compiledDir, "*", "manifest.json"))
	if err != nil {
		return mfperrors.NewConfigurationError("globbing compiled directory: " + err.Error())
	}

	servers := make(map[string]*serverEntry, len(matches))
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("registry_manifest_unreadable", zap.String("path", path), zap.Error(err))
			continue
		}
		var m model.ServerManifest
		if err := json.Unmarshal(raw, &m); err != nil {
			r.logger.Warn("registry_manifest_malformed", zap.String("path", path), zap.Error(err))
			continue
		}
		byName := make(map[string]model.EndpointManifestRow, len(m.Endpoints))
		for _, row := range m.Endpoints {
			byName[row.OperationID] = row
		}
		servers[m.ServerName] = &serverEntry{manifest: m, byName: byName}
	}

	r.mu.Lock()
	r.servers = servers
	r.snippets = make(map[string]string)
	r.mu.Unlock()
	return nil
}

// ListServers returns one summary row per server, functions ordered by
// name, with a name->summary map.
func (r *Registry) ListServers() []ServerSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ServerSummary, 0, len(r.servers))
	for name, entry := range r.servers {
		names := make([]string, 0, len(entry.manifest.Endpoints))
		summaries := make(map[string]string, len(entry.manifest.Endpoints))
		for _, ep := range entry.manifest.Endpoints {
			names = append(names, ep.OperationID)
			summaries[ep.OperationID] = ep.Summary
		}
		sort.Strings(names)
		out = append(out, ServerSummary{
			Name:        name,
			Description: entry.manifest.Description,
			Functions:   names,
			Summaries:   summaries,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetFunction looks up one function's manifest row plus its extracted
// source snippet.
func (r *Registry) GetFunction(server, function string) (*FunctionInfo, error) {
	r.mu.RLock()
	entry, ok := r.servers[server]
	r.mu.RUnlock()
	if !ok {
		return nil, mfperrors.NewServerNotFound(server, r.serverNames())
	}

	row, ok := entry.byName[function]
	if !ok {
		return nil, mfperrors.NewFunctionNotFound(server, function, functionNames(entry))
	}

	snippet, err := r.extractSnippet(server, function)
	if err != nil {
		r.logger.Warn("registry_snippet_extraction_failed", zap.String("server", server), zap.String("function", function), zap.Error(err))
	}

	return &FunctionInfo{
		Server:          server,
		Function:        function,
		Summary:         row.Summary,
		Method:          row.Method,
		Path:            row.Path,
		Parameters:      row.ParametersSummary,
		ResponseFields:  row.ResponseSummary,
		Source:          snippet,
		UsageExample:    "from " + server + ".functions import " + function + "\n\nresult = " + function + "(...)",
		ImportStatement: "from " + server + ".functions import " + function,
	}, nil
}

// GetSwaggerHash returns the stored hash for a compiled server.
func (r *Registry) GetSwaggerHash(server string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.servers[server]
	if !ok {
		return "", mfperrors.NewServerNotFound(server, r.serverNames())
	}
	return entry.manifest.SwaggerHash, nil
}

func (r *Registry) serverNames() []string {
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func functionNames(entry *serverEntry) []string {
	names := make([]string, 0, len(entry.byName))
	for name := range entry.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// extractSnippet reads the generated module once per server, parses it
// with tree-sitter's Python grammar on each function's first request, and
// returns the byte range of the matching function_definition node,
// falling back to the full module text on parse failure or no match.
// Results are memoized per (server, function).
func (r *Registry) extractSnippet(server, function string) (string, error) {
	key := server + "/" + function

	r.mu.RLock()
	if snippet, ok := r.snippets[key]; ok {
		r.mu.RUnlock()
		return snippet, nil
	}
	entry := r.servers[server]
	r.mu.RUnlock()
	if entry == nil {
		return "", mfperrors.NewServerNotFound(server, nil)
	}

	source, err := r.loadSource(server, entry)
	if err != nil {
		return "", err
	}

	snippet := extractFunctionSource(source, function)
	if snippet == "" {
		snippet = string(source)
	}

	r.mu.Lock()
	r.snippets[key] = snippet
	r.mu.Unlock()
	return snippet, nil
}

func (r *Registry) loadSource(server string, entry *serverEntry) ([]byte, error) {
	if entry.source != nil {
		return entry.source, nil
	}
	path := filepath.Join(r.compiledDir, server, "functions.py")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, mfperrors.NewCompileError("reading generated module for snippet extraction", err)
	}

	r.mu.Lock()
	entry.source = raw
	r.mu.Unlock()
	return raw, nil
}

// extractFunctionSource parses source as Python and returns the exact text
// of the top-level function_definition node named name, or "" if parsing
// fails or no such node exists.
func extractFunctionSource(source []byte, name string) string {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil || tree == nil {
		return ""
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "function_definition" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		if string(source[nameNode.StartByte():nameNode.EndByte()]) == name {
			return string(source[child.StartByte():child.EndByte()])
		}
	}
	return ""
}
