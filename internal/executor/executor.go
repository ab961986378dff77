// Package executor drives the execute_code pipeline: size guard, static
// scan, lint, dependency detection, credential materialization, sandbox
// launch, timeout handling, output collection, envelope parsing,
// caching, and guaranteed cleanup. Each
// step's failure is a distinct *mfperrors.MFPError so the meta-tool
// surface (internal/metatools) can flatten it to {error, error_type}
// without re-deriving the taxonomy.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/time/rate"

	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/cache"
	"github.com/blackcoderx/mfp/internal/config"
	"github.com/blackcoderx/mfp/internal/credentials"
	"github.com/blackcoderx/mfp/internal/hashutil"
	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/model"
	"github.com/blackcoderx/mfp/internal/registry"
	"github.com/blackcoderx/mfp/internal/sandbox"
	"github.com/blackcoderx/mfp/internal/security"
)

const (
	lintTimeout      = 10 * time.Second
	maxStderrBytes   = 4096
	maxFallbackBytes = 4096
)

// dependencyPattern matches "from <name>.functions import ..." and
// "import <name>.functions", the two import forms a program may use to
// reach generated server modules.
var dependencyPattern = regexp.MustCompile(`(?m)^\s*(?:from\s+(\w+)\.functions\s+import\b|import\s+(\w+)\.functions\b)`)

// envelopeSchema is the sandbox I/O contract: a single JSON object with a
// boolean success flag and optional data/error/traceback members. Output
// that parses as JSON but does not conform is treated the same as
// non-JSON output and takes the raw-text fallback path.
const envelopeSchema = `{
	"type": "object",
	"properties": {
		"success": {"type": "boolean"},
		"data": {},
		"error": {"type": "string"},
		"traceback": {"type": "string"}
	},
	"required": ["success"],
	"additionalProperties": false
}`

var envelopeSchemaLoader = gojsonschema.NewStringLoader(envelopeSchema)

// envelope is the JSON object the sandbox entrypoint prints on stdout.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
}

// Executor wires the registry, cache, and sandbox into the pipeline.
type Executor struct {
	cfg     *config.Config
	logger  *zap.Logger
	reg     *registry.Registry
	cacheDB *cache.Store
	limiter *rate.Limiter // nil when unlimited (MaxSandboxLaunchesPerSec <= 0)
}

func New(cfg *config.Config, logger *zap.Logger, reg *registry.Registry, cacheDB *cache.Store) *Executor {
	e := &Executor{cfg: cfg, logger: logger, reg: reg, cacheDB: cacheDB}
	if cfg.MaxSandboxLaunchesPerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.MaxSandboxLaunchesPerSec), 1)
	}
	return e
}

// Execute runs the full pipeline for one submitted program. A returned
// error is always an *mfperrors.MFPError; callers map it to error_type.
func (e *Executor) Execute(ctx context.Context, code, description string) (*model.ExecutionResult, error) {
	start := time.Now()

	// 1. Size guard.
	if len(code) > e.cfg.MaxCodeSizeBytes {
		return nil, mfperrors.NewSecurityViolation(fmt.Sprintf("program exceeds max_code_size_bytes (%d > %d)", len(code), e.cfg.MaxCodeSizeBytes))
	}

	// 2. Static scan.
	if err := e.staticScan(code); err != nil {
		return nil, err
	}

	// 3. Lint (non-fatal unless the linter actually ran and reported a failure).
	if err := e.lint(ctx, code); err != nil {
		return nil, err
	}

	// 4. Dependency detection.
	serversUsed := detectDependencies(code)

	// 5. Credential materialization.
	env, unresolved := e.materializeCredentials(ctx, serversUsed)
	for _, u := range unresolved {
		e.logger.Warn("unresolved_credential_reference", zap.String("detail", u))
	}

	// 6-8. Sandbox launch, wait, collect output.
	result, err := e.launchAndWait(ctx, code, env)
	if err != nil {
		return nil, err
	}
	if result.TimedOut {
		return nil, mfperrors.NewExecutionTimeout()
	}
	if result.ExitCode != 0 {
		// Exec returns one combined stream; on a non-zero exit it is all
		// diagnostics, truncated to the stderr ceiling.
		stderr := result.Stdout
		if len(stderr) > maxStderrBytes {
			stderr = stderr[:maxStderrBytes]
		}
		return nil, mfperrors.NewExecutionError(string(stderr), result.ExitCode)
	}

	// 9. Parse the JSON envelope, falling back to raw text.
	execResult := parseEnvelope(result.Stdout)
	execResult.ExecutionTimeMs = time.Since(start).Milliseconds()

	// 10. Cache on success.
	if execResult.Success && e.cfg.CacheEnabled && e.cacheDB != nil {
		if id := e.storeInCache(code, description, serversUsed); id != "" {
			execResult.CacheID = id
		}
	}

	return execResult, nil
}

func (e *Executor) staticScan(code string) error {
	if err := security.Validate(code); err != nil {
		return mfperrors.NewSecurityViolation(err.Error())
	}
	return nil
}

// lint invokes ruff (the same linter the compile orchestrator's post-pass
// uses) against the submitted code over standard input. A missing binary
// or an expired deadline is logged and skipped; only an actual non-zero
// exit from a completed run raises LintError.
func (e *Executor) lint(ctx context.Context, code string) error {
	lintCtx, cancel := context.WithTimeout(ctx, lintTimeout)
	defer cancel()

	cmd := exec.CommandContext(lintCtx, "ruff", "check", "--quiet", "-")
	cmd.Stdin = strings.NewReader(code)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		e.logger.Warn("lint_skipped_tool_unavailable")
		return nil
	}
	if lintCtx.Err() != nil {
		e.logger.Warn("lint_skipped_timeout")
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return mfperrors.NewLintError(string(out))
	}
	e.logger.Warn("lint_skipped_unexpected_error", zap.Error(err))
	return nil
}

func detectDependencies(code string) []string {
	seen := map[string]bool{}
	for _, m := range dependencyPattern.FindAllStringSubmatch(code, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (e *Executor) materializeCredentials(ctx context.Context, serversUsed []string) (map[string]string, []string) {
	env := map[string]string{}
	var unresolved []string
	for _, server := range serversUsed {
		baseVar, authVar := config.ServerEnvVarNames(server)
		baseURL := os.Getenv(baseVar)
		authSpec := os.Getenv(authVar)
		serverEnv, missing := credentials.Materialize(ctx, e.cfg, server, baseURL, authSpec)
		for k, v := range serverEnv {
			env[k] = v
		}
		unresolved = append(unresolved, missing...)
	}
	return env, unresolved
}

func (e *Executor) launchAndWait(ctx context.Context, code string, env map[string]string) (*sandbox.RunResult, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, mfperrors.NewInternalError(fmt.Errorf("rate limiter: %w", err))
		}
	}

	limits := sandbox.DefaultLimits(e.cfg.DockerImage, e.cfg.NetworkMode)
	timeout := time.Duration(e.cfg.ExecutionTimeoutSeconds) * time.Second

	result, err := sandbox.Run(ctx, limits, env, e.cfg.CompiledOutputDir, code, timeout, e.cfg.MaxOutputSizeBytes)
	if err != nil {
		return nil, mfperrors.NewInternalError(fmt.Errorf("sandbox launch: %w", err))
	}
	return result, nil
}

// parseEnvelope decodes the sandbox's JSON output; malformed or
// non-conforming output falls back to treating the raw (truncated) text
// as a successful result.
func parseEnvelope(raw []byte) *model.ExecutionResult {
	var env envelope
	trimmed := bytes.TrimSpace(raw)
	if err := json.Unmarshal(trimmed, &env); err == nil && conformsToEnvelopeSchema(trimmed) {
		var data interface{}
		if len(env.Data) > 0 {
			_ = json.Unmarshal(env.Data, &data)
		}
		return &model.ExecutionResult{
			Success:   env.Success,
			Data:      data,
			Error:     env.Error,
			Traceback: env.Traceback,
		}
	}

	fallback := trimmed
	if len(fallback) > maxFallbackBytes {
		fallback = fallback[:maxFallbackBytes]
	}
	return &model.ExecutionResult{Success: true, Data: string(fallback)}
}

func conformsToEnvelopeSchema(raw []byte) bool {
	result, err := gojsonschema.Validate(envelopeSchemaLoader, gojsonschema.NewBytesLoader(raw))
	return err == nil && result.Valid()
}

// storeInCache computes the composite dependency hash and upserts the
// entry, logging (never failing the call) on a cache error.
func (e *Executor) storeInCache(code, description string, serversUsed []string) string {
	hashes := make([]string, 0, len(serversUsed))
	for _, server := range serversUsed {
		h, err := e.reg.GetSwaggerHash(server)
		if err != nil {
			continue
		}
		hashes = append(hashes, h)
	}
	compositeHash := hashutil.CombineHashes(hashes)

	entry, err := e.cacheDB.Store(code, description, serversUsed, compositeHash, e.cfg.CacheTTLSeconds)
	if err != nil {
		e.logger.Warn("cache_store_failed", zap.Error(mfperrors.NewCacheError(err)))
		return ""
	}
	return entry.ID
}
