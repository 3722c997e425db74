package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/parainsights/internal/archive"
	"github.com/TobiSchelling/parainsights/internal/config"
	"github.com/TobiSchelling/parainsights/internal/database"
	"github.com/TobiSchelling/parainsights/internal/extract"
	"github.com/TobiSchelling/parainsights/internal/llm"
	"github.com/TobiSchelling/parainsights/internal/logging"
	"github.com/TobiSchelling/parainsights/internal/pipeline"
	"github.com/TobiSchelling/parainsights/internal/route"
	"github.com/TobiSchelling/parainsights/internal/scan"
)

var version = "dev"

// Exit codes.
const (
	exitOK            = 0
	exitFatal         = 1
	exitPartialFailed = 2
)

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logger != nil {
		_ = logger.Sync()
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, pipeline.ErrArticlesFailed):
		return exitPartialFailed
	default:
		return exitFatal
	}
}

var rootCmd = &cobra.Command{
	Use:          "parainsights",
	Short:        "Extract actionable insights from archived articles and route them into PARA",
	Long:         "parainsights scans archived articles, extracts 3-5 actionable insights per article, writes one insight file per article and routes every insight into the shared PARA log.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			logger = logging.New("info", verbose)
			return nil
		}

		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(".env"); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: loading .env: %v\n", err)
			}
		}

		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return err
		}
		logger = logging.New(cfg.Logging.Level, verbose)
		return nil
	},
}

// loadConfig reads the config file. Without an explicit path and without any
// config file on disk the built-in defaults are used.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.ResolveConfigPath(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return c, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(archiveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("parainsights", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/parainsights/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the sources directory, log store and LLM credential.")
		return nil
	},
}

// --- run command ---

var (
	dryRun    bool
	strategy  string
	batchSize int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract insights for pending articles and route them into PARA",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		extCfg := cfg.Extraction
		if strategy != "" {
			extCfg.Strategy = strategy
		}
		if batchSize > 0 {
			extCfg.BatchSize = batchSize
		}

		provider := llm.CreateProvider(cfg.LLM, cfg.ResolveAPIKey(), logger)
		strat, err := extract.New(extCfg, provider, logger)
		if errors.Is(err, extract.ErrNoCredential) {
			return fmt.Errorf("remote strategy needs a credential: set %s or llm.credentials_file: %w", cfg.LLM.APIKeyEnv, err)
		}
		if err != nil {
			return err
		}

		sourcesDir := cfg.GetSourcesDir()
		scanner := scan.New(sourcesDir, extCfg.MinContentLength, logger)
		router := route.New(route.SQLOpener(cfg.LogStore.Driver, cfg.GetLogStoreDSN()), logger)
		pipe := pipeline.New(scanner, strat, router, pipeline.Options{
			BatchSize:    extCfg.BatchSize,
			RequestDelay: extCfg.RequestDelay,
			DryRun:       dryRun,
		}, logger)

		fmt.Printf("Scanning %s (method: %s)\n", sourcesDir, strat.Name())
		result, runErr := pipe.Run(ctx)
		if result != nil {
			printRunSummary(result, dryRun)
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the batch without extracting or routing")
	runCmd.Flags().StringVar(&strategy, "strategy", "", "Extraction strategy: auto, remote or pattern (overrides config)")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Articles per run (overrides config)")
}

func printRunSummary(r *pipeline.Result, dryRun bool) {
	if r.Found == 0 {
		fmt.Println("No articles to process.")
		return
	}

	if dryRun {
		fmt.Printf("\n[dry-run] %d pending, next batch of %d:\n", r.Found, r.Batch)
		for _, a := range r.Articles {
			fmt.Printf("  %s/%s  %s\n", a.Source, a.Slug, a.Title)
		}
		return
	}

	for _, a := range r.Articles {
		if a.State == pipeline.StateFailed {
			fmt.Printf("  ✗ %s/%s: %v\n", a.Source, a.Slug, a.Err)
		}
	}

	fmt.Println("\nExtraction complete:")
	fmt.Printf("  Found: %d\n", r.Found)
	fmt.Printf("  Batch: %d\n", r.Batch)
	fmt.Printf("  Processed: %d\n", r.Processed)
	fmt.Printf("  Failed: %d\n", r.Failed)
	fmt.Printf("  Remaining: %d\n", r.Remaining)
	fmt.Printf("  Insights: %d\n", r.Insights)
	fmt.Printf("  Routed to PARA: %d\n", r.Routed)
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show archive and routing status",
	RunE: func(cmd *cobra.Command, args []string) error {
		sourcesDir := cfg.GetSourcesDir()
		summaries, err := scan.New(sourcesDir, cfg.Extraction.MinContentLength, logger).Summarize()
		if err != nil {
			return fmt.Errorf("reading %s: %w", sourcesDir, err)
		}

		fmt.Printf("Sources: %s\n\n", sourcesDir)
		var total scan.SourceSummary
		for _, s := range summaries {
			fmt.Printf("  %-24s archived %4d  processed %4d  pending %4d  too short %3d\n",
				s.Source, s.Archived, s.Processed, s.Pending, s.TooShort)
			total.Archived += s.Archived
			total.Processed += s.Processed
			total.Pending += s.Pending
			total.TooShort += s.TooShort
			total.Unreadable += s.Unreadable
		}
		fmt.Printf("\nTotal: %d archived, %d processed, %d pending, %d too short, %d unreadable\n",
			total.Archived, total.Processed, total.Pending, total.TooShort, total.Unreadable)

		db, err := database.OpenExisting(cmd.Context(), cfg.LogStore.Driver, cfg.GetLogStoreDSN())
		if errors.Is(err, database.ErrNotFound) {
			fmt.Println("\nPARA log: not created yet")
			return nil
		}
		if err != nil {
			fmt.Printf("\nPARA log: unavailable (%v)\n", err)
			return nil
		}
		defer db.Close()

		n, err := db.CountRoutes(cmd.Context())
		if err != nil {
			fmt.Printf("\nPARA log: unreadable (%v)\n", err)
			return nil
		}
		fmt.Printf("\nPARA log (%s): %d routed insights\n", cfg.LogStore.Driver, n)
		return nil
	},
}

// --- archive command ---

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive new articles from the configured feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Archive.Feeds) == 0 {
			fmt.Println("No feeds configured. Add some under archive.feeds in the config.")
			return nil
		}
		r := newArchiver().ArchiveFeeds(cmd.Context(), cfg.Archive.Feeds)
		printArchiveSummary(r)
		return nil
	},
}

var archiveFeedCmd = &cobra.Command{
	Use:   "feed [source] [url]",
	Short: "Archive new articles from one feed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newArchiver().ArchiveFeed(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		printArchiveSummary(r)
		return nil
	},
}

var archiveURLCmd = &cobra.Command{
	Use:   "url [source] [url]",
	Short: "Archive a single page",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := newArchiver().ArchiveURL(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Archived: %s\n", path)
		return nil
	},
}

func init() {
	archiveCmd.AddCommand(archiveFeedCmd)
	archiveCmd.AddCommand(archiveURLCmd)
}

func newArchiver() *archive.Archiver {
	return archive.New(cfg.GetSourcesDir(), cfg.Archive.MaxPerFeed, cfg.Archive.FetchTimeout, logger)
}

func printArchiveSummary(r archive.Result) {
	fmt.Println("\nArchive complete:")
	fmt.Printf("  Found: %d\n", r.Found)
	fmt.Printf("  New: %d\n", r.Archived)
	fmt.Printf("  Already archived: %d\n", r.Existing)
	fmt.Printf("  Failed: %d\n", r.Failed)
}
