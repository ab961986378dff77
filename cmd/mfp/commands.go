package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/cache"
	"github.com/blackcoderx/mfp/internal/compiler"
	"github.com/blackcoderx/mfp/internal/config"
	"github.com/blackcoderx/mfp/internal/executor"
	"github.com/blackcoderx/mfp/internal/metatools"
	"github.com/blackcoderx/mfp/internal/registry"
	"github.com/blackcoderx/mfp/internal/server"
	"github.com/blackcoderx/mfp/internal/tui"
)

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if llmEnhance {
		cfg.LLMEnhance = true
	}

	result, err := compiler.New(cfg, logger).CompileAll(cmd.Context(), dryRun)
	if err != nil {
		return err
	}

	logger.Info("compile_summary",
		zap.Strings("compiled", result.Compiled),
		zap.Strings("skipped", result.Skipped),
		zap.Strings("failed", result.Failed),
		zap.Int("total_endpoints", result.TotalEndpoints),
		zap.Bool("dry_run", dryRun))

	fmt.Printf("compiled=%d skipped=%d failed=%d endpoints=%d\n",
		len(result.Compiled), len(result.Skipped), len(result.Failed), result.TotalEndpoints)

	if len(result.Failed) > 0 {
		return fmt.Errorf("%d source(s) failed to compile: %v", len(result.Failed), result.Failed)
	}
	return nil
}

// buildStack wires the serve-time collaborators: registry over the
// compiled directory, the cache store (nil when disabled), the executor,
// and the meta-tool manager on top.
func buildStack(cfg *config.Config, logger *zap.Logger) (*registry.Registry, *cache.Store, *metatools.Manager, error) {
	reg := registry.New(cfg.CompiledOutputDir, logger)
	if err := reg.Load(); err != nil {
		return nil, nil, nil, err
	}

	var cacheDB *cache.Store
	if cfg.CacheEnabled {
		var err error
		cacheDB, err = cache.Open(cfg.CacheDBPath, cfg.CacheMaxEntries, cfg.CacheTTLSeconds)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	exec := executor.New(cfg, logger, reg, cacheDB)
	manager := metatools.NewManager(cfg, logger, reg, exec, cacheDB)
	return reg, cacheDB, manager, nil
}

func runServe(compileFirst bool) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if compileFirst || cfg.CompileOnStartup {
		result, err := compiler.New(cfg, logger).CompileAll(ctx, false)
		if err != nil {
			return err
		}
		if compileFirst && len(result.Failed) > 0 {
			return fmt.Errorf("%d source(s) failed to compile: %v", len(result.Failed), result.Failed)
		}
	}

	_, cacheDB, manager, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	if cacheDB != nil {
		defer cacheDB.Close()
		if n, err := cacheDB.CleanupExpired(); err == nil && n > 0 {
			logger.Info("cache_cleanup", zap.Int("expired_removed", n))
		}
	}

	switch transport {
	case "stdio":
		logger.Info("serving_stdio")
		return server.ServeStdio(ctx, manager, logger, os.Stdin, os.Stdout)
	case "http":
		host := cfg.Host
		if hostFlag != "" {
			host = hostFlag
		}
		port := cfg.Port
		if portFlag != 0 {
			port = portFlag
		}
		actualPort, shutdown, err := server.StartHTTP(manager, logger, host, port)
		if err != nil {
			return err
		}
		defer shutdown()
		logger.Info("serving_http", zap.String("host", host), zap.Int("port", actualPort))
		fmt.Printf("mfp serving on http://%s:%d\n", host, actualPort)
		<-ctx.Done()
		return nil
	default:
		return fmt.Errorf("unknown transport %q: want stdio or http", transport)
	}
}

func runDocs(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg := registry.New(cfg.CompiledOutputDir, logger)
	if err := reg.Load(); err != nil {
		return err
	}

	info, err := reg.GetFunction(args[0], args[1])
	if err != nil {
		return err
	}

	md := fmt.Sprintf("# %s.%s\n\n%s\n\n**%s** `%s`\n\n## Parameters\n\n%s\n\n## Response fields\n\n%s\n\n## Usage\n\n```python\n%s\n```\n\n## Source\n\n```python\n%s\n```\n",
		info.Server, info.Function, info.Summary, info.Method, info.Path,
		orNone(info.Parameters), orNone(info.ResponseFields), info.ImportStatement, info.Source)

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Println(md) // Fallback to raw output
		return nil
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Println(md) // Fallback
		return nil
	}
	fmt.Print(out)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func runCacheSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cacheDB, err := cache.Open(cfg.CacheDBPath, cfg.CacheMaxEntries, cfg.CacheTTLSeconds)
	if err != nil {
		return err
	}
	defer cacheDB.Close()

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	results, err := cacheDB.Search(query, 50)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no cached executions match")
		return nil
	}

	for _, r := range results {
		fmt.Printf("%s  ×%-3d %s  [%v]\n", r.ID[:12], r.UseCount, r.Description, r.ServersUsed)
	}

	if copyID {
		if err := clipboard.WriteAll(results[0].ID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: clipboard unavailable: %v\n", err)
		} else {
			fmt.Printf("copied %s to clipboard\n", results[0].ID[:12])
		}
	}
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg, cacheDB, _, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}
	if cacheDB != nil {
		defer cacheDB.Close()
	}
	return tui.Run(reg, cacheDB, cfg, version)
}
