package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackcoderx/mfp/internal/config"
	"github.com/blackcoderx/mfp/internal/logging"
	"github.com/blackcoderx/mfp/internal/selfupdate"
	"github.com/blackcoderx/mfp/internal/sources"
)

var (
	// Version info (injected by GoReleaser)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	dryRun     bool
	llmEnhance bool
	transport  string
	hostFlag   string
	portFlag   int
	copyID     bool

	rootCmd = &cobra.Command{
		Use:   "mfp",
		Short: "MFP - expose OpenAPI services to an LLM as four meta-tools",
		Long: `MFP compiles OpenAPI/Swagger (and Postman) specs into callable function
modules, serves them to an LLM through four meta-tools (list_servers,
get_function, execute_code, get_cached_code), runs submitted programs in
an isolated sandbox, and caches successful executions for reuse.`,
	}
)

// bootstrap loads configuration and builds the process-wide logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Bootstrap(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func init() {
	compileCmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile every configured swagger source into callable modules",
		RunE:  runCompile,
	}
	compileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and count endpoints without writing anything")
	compileCmd.Flags().BoolVar(&llmEnhance, "llm-enhance", false, "Offer freshly generated modules to the LLM rewrite pass")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the four meta-tools over stdio or HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(false)
		},
	}
	serveCmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio or http")
	serveCmd.Flags().StringVar(&hostFlag, "host", "", "Bind host (http transport; defaults to MFP_HOST)")
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Bind port (http transport; defaults to MFP_PORT)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Compile, then serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(true)
		},
	}
	runCmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio or http")
	runCmd.Flags().StringVar(&hostFlag, "host", "", "Bind host (http transport; defaults to MFP_HOST)")
	runCmd.Flags().IntVar(&portFlag, "port", 0, "Bind port (http transport; defaults to MFP_PORT)")

	sourcesCmd := &cobra.Command{Use: "sources", Short: "Manage the swagger source list"}
	sourcesCmd.AddCommand(&cobra.Command{
		Use:   "add",
		Short: "Add a swagger source interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			src, err := sources.RunAddWizard(cfg.SwaggerConfigFile)
			if err != nil {
				return err
			}
			fmt.Printf("Added %q to %s. Run `mfp compile` to build it.\n", src.Name, cfg.SwaggerConfigFile)
			return nil
		},
	})

	docsCmd := &cobra.Command{
		Use:   "docs <server> <function>",
		Short: "Render one function's documentation",
		Args:  cobra.ExactArgs(2),
		RunE:  runDocs,
	}

	cacheCmd := &cobra.Command{Use: "cache", Short: "Inspect the execution cache"}
	cacheSearchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search cached executions by description",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCacheSearch,
	}
	cacheSearchCmd.Flags().BoolVar(&copyID, "copy", false, "Copy the top result's id to the clipboard")
	cacheCmd.AddCommand(cacheSearchCmd)

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Interactive dashboard over the registry and cache",
		RunE:  runMonitor,
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update mfp to the latest released version",
		RunE: func(cmd *cobra.Command, args []string) error {
			check, err := selfupdate.Check(version)
			if err != nil {
				return err
			}
			if !check.UpdateAvailable {
				fmt.Printf("mfp %s is up to date.\n", version)
				return nil
			}
			updated, err := selfupdate.Apply(version)
			if err != nil {
				return err
			}
			fmt.Printf("Updated mfp %s -> %s\n", version, updated)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mfp %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(compileCmd, serveCmd, runCmd, sourcesCmd, docsCmd, cacheCmd, monitorCmd, updateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
