// Package compiler drives the parser and code generator across every
// configured SwaggerSource, persisting artifacts with manifests and
// skipping unchanged sources by hash.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/aymanbagabas/go-udiff"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/blackcoderx/mfp/internal/codegen"
	"github.com/blackcoderx/mfp/internal/config"
	"github.com/blackcoderx/mfp/internal/llmenhance"
	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/model"
	"github.com/blackcoderx/mfp/internal/specparser"
)

// Result summarizes one compile_all run.
type Result struct {
	Compiled       []string
	Skipped        []string
	Failed         []string
	TotalEndpoints int
}

// Orchestrator is the compile driver loop.
type Orchestrator struct {
	cfg      *config.Config
	logger   *zap.Logger
	enhancer llmenhance.Enhancer
}

func New(cfg *config.Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, logger: logger, enhancer: llmenhance.New(cfg)}
}

// LoadSwaggerSources reads the configured YAML/JSON source list, skipping
// (with a warning, not a failure) any entry that fails to parse.
func (o *Orchestrator) LoadSwaggerSources() ([]model.SwaggerSource, error) {
	raw, err := os.ReadFile(o.cfg.SwaggerConfigFile)
	if err != nil {
		return nil, mfperrors.NewConfigurationError(fmt.Sprintf("reading source list %q: %v", o.cfg.SwaggerConfigFile, err))
	}

	var list model.SourceList
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, mfperrors.NewConfigurationError(fmt.Sprintf("parsing source list %q: %v", o.cfg.SwaggerConfigFile, err))
	}

	var valid []model.SwaggerSource
	for _, src := range list.Servers {
		if src.Name == "" || src.SwaggerURL == "" {
			o.logger.Warn("invalid_swagger_source", zap.Any("source", src))
			continue
		}
		valid = append(valid, src)
	}
	return valid, nil
}

// CompileAll is the driver loop over every configured source. Per-source
// failures are captured and the loop continues.
func (o *Orchestrator) CompileAll(ctx context.Context, dryRun bool) (*Result, error) {
	sources, err := o.LoadSwaggerSources()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, src := range sources {
		n, skipped, err := o.compileSource(ctx, src, dryRun)
		if err != nil {
			o.logger.Error("compile_source_failed", zap.String("source", src.Name), zap.Error(err))
			result.Failed = append(result.Failed, src.Name)
			continue
		}
		result.TotalEndpoints += n
		if skipped {
			result.Skipped = append(result.Skipped, src.Name)
		} else {
			result.Compiled = append(result.Compiled, src.Name)
		}
	}

	if !dryRun {
		o.lintAllGeneratedCode()
	}
	return result, nil
}

// compileSource parses one source and, for a non-dry-run, either skips
// it (manifest hash unchanged, skipped=true, nothing written) or writes
// the module and manifest. For a dry run or a written source the
// returned count is the parsed endpoint count, which may legitimately be
// zero for a source that still compiles (e.g. a read-only source whose
// every verb was dropped); a skipped source returns zero.
func (o *Orchestrator) compileSource(ctx context.Context, src model.SwaggerSource, dryRun bool) (endpoints int, skipped bool, err error) {
	spec, err := specparser.ParseAny(ctx, src)
	if err != nil {
		return 0, false, err
	}

	outDir := filepath.Join(o.cfg.CompiledOutputDir, src.Name)
	manifestPath := filepath.Join(outDir, "manifest.json")

	if dryRun {
		return len(spec.Endpoints), false, nil
	}

	if existing, ok := readManifest(manifestPath); ok && existing.SwaggerHash == spec.SwaggerHash {
		return 0, true, nil
	}

	code, err := codegen.Generate(spec)
	if err != nil {
		return 0, false, err
	}

	if o.cfg.LLMEnhance {
		if enhanced, err := o.enhancer.Enhance(ctx, code); err != nil {
			o.logger.Warn("llm_enhance_failed", zap.String("source", src.Name), zap.Error(err))
		} else {
			code = enhanced
		}
	}

	if err := o.writeFunctions(outDir, code, manifestPath); err != nil {
		return 0, false, err
	}
	if err := o.writeManifest(manifestPath, src, spec); err != nil {
		return 0, false, err
	}
	return len(spec.Endpoints), false, nil
}

func readManifest(path string) (*model.ServerManifest, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var m model.ServerManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}

// writeFunctions writes functions.py (and a trivial __init__.py) atomically
// via write-then-rename, logging a unified diff against the previous
// version when one exists and actually changed.
func (o *Orchestrator) writeFunctions(outDir, code, manifestPath string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return mfperrors.NewCompileError("creating output directory", err)
	}

	functionsPath := filepath.Join(outDir, "functions.py")
	if previous, err := os.ReadFile(functionsPath); err == nil && string(previous) != code {
		diff := udiff.Unified("functions.py (previous)", "functions.py (new)", string(previous), code)
		o.logger.Debug("functions_module_changed", zap.String("path", functionsPath), zap.String("diff", diff))
	}

	if err := atomicWrite(functionsPath, []byte(code)); err != nil {
		return mfperrors.NewCompileError("writing functions module", err)
	}

	initPath := filepath.Join(outDir, "__init__.py")
	if err := atomicWrite(initPath, []byte("\"\"\"Generated package.\"\"\"\n")); err != nil {
		return mfperrors.NewCompileError("writing package init", err)
	}
	return nil
}

func (o *Orchestrator) writeManifest(manifestPath string, src model.SwaggerSource, spec *model.ServerSpec) error {
	rows := make([]model.EndpointManifestRow, 0, len(spec.Endpoints))
	for _, ep := range spec.Endpoints {
		rows = append(rows, model.EndpointManifestRow{
			OperationID:       ep.OperationID,
			Method:            string(ep.Method),
			Path:              ep.Path,
			Summary:           ep.Summary,
			ParametersSummary: summarizeParameters(ep.Parameters),
			ResponseSummary:   summarizeResponseFields(ep.ResponseFields),
		})
	}

	manifest := model.ServerManifest{
		ServerName:  spec.Name,
		Description: spec.Description,
		SwaggerHash: spec.SwaggerHash,
		CompiledAt:  time.Now().UTC(),
		BaseURL:     spec.BaseURL,
		ReadOnly:    spec.ReadOnly,
		Endpoints:   rows,
	}

	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return mfperrors.NewCompileError("marshalling manifest", err)
	}
	if err := atomicWrite(manifestPath, raw); err != nil {
		return mfperrors.NewCompileError("writing manifest", err)
	}
	return nil
}

func summarizeParameters(params []model.ParamSchema) string {
	var parts []string
	for _, p := range params {
		req := "optional"
		if p.Required {
			req = "required"
		}
		parts = append(parts, fmt.Sprintf("%s (%s, %s)", p.Name, p.Type, req))
	}
	return joinComma(parts)
}

func summarizeResponseFields(fields []model.ResponseField) string {
	var parts []string
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s (%s)", f.Name, f.Type))
	}
	return joinComma(parts)
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

// atomicWrite writes to a temp file in the same directory then renames it
// into place, so readers (the registry, a concurrent compile) never see a
// partially written file.
func atomicWrite(path string, content []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// lintAllGeneratedCode runs the configured linter over every generated
// functions.py as a bounded, non-fatal post-pass.
func (o *Orchestrator) lintAllGeneratedCode() {
	matches, err := filepath.Glob(filepath.Join(o.cfg.CompiledOutputDir, "*", "functions.py"))
	if err != nil || len(matches) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := append([]string{"check", "--quiet"}, matches...)
	cmd := exec.CommandContext(ctx, "ruff", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		o.logger.Warn("lint_pass_warning", zap.Error(err), zap.ByteString("output", out))
	}
}
