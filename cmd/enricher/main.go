package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/app"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/config"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/logging"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/render"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/seed"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/version"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/redact"
)

var (
	configPath string
	verbose    bool
	logJSON    bool

	logger *zap.Logger
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErr(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

var rootCmd = &cobra.Command{
	Use:           "enricher",
	Short:         "Enrich product catalogs with domain-aware marketing copy",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose, logJSON)
		if err != nil {
			return usageErr("logger: %v", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "enricher: %s\n", redact.Secrets(err.Error()))
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults and ENRICHER_* env apply without one)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log generation requests and other debug details")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit JSON logs instead of console output")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(versionCmd)
}

type runFlags struct {
	input        string
	output       string
	errorsPath   string
	csvPath      string
	pagesDir     string
	workers      int
	backend      string
	model        string
	baseURL      string
	domain       string
	cacheBackend string
	cachePath    string
	noGeneration bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich every product of the input catalog",
		Example: `  enricher run --input productos.xml --output productos_enriquecidos.json
  enricher run --no-generation --cache sqlite --cache-path cache.db --csv enriquecidos.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			f.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return &exitError{code: 2, err: err}
			}

			report, err := app.RunLocal(cmd.Context(), app.Options{Config: cfg, Logger: logger})
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d records (%d skipped), %d errors, run %s\n",
				report.Summary.Total, report.Skipped, report.Errors, report.RunID)
			for _, path := range report.Files {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "Input catalog (.xml or .csv)")
	fl.StringVarP(&f.output, "output", "o", "", "Output envelope JSON path")
	fl.StringVar(&f.errorsPath, "errors", "", "Error ledger JSON path")
	fl.StringVar(&f.csvPath, "csv", "", "Also write enriched records as CSV")
	fl.StringVar(&f.pagesDir, "pages", "", "Also render HTML pages into this directory")
	fl.IntVarP(&f.workers, "workers", "w", 0, "Concurrent enrichment workers")
	fl.StringVar(&f.backend, "backend", "", "Generation backend: ollama or gemini")
	fl.StringVar(&f.model, "model", "", "Generation model name")
	fl.StringVar(&f.baseURL, "base-url", "", "Generation service base URL")
	fl.StringVar(&f.domain, "domain", "", "Force a domain or use auto")
	fl.StringVar(&f.cacheBackend, "cache", "", "Cache backend: file, sqlite or memory")
	fl.StringVar(&f.cachePath, "cache-path", "", "Cache file path")
	fl.BoolVar(&f.noGeneration, "no-generation", false, "Skip the generation service and use rule-based copy")
	return cmd
}

// apply overrides cfg with the flags that were set explicitly.
func (f runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("input") {
		cfg.Input = f.input
	}
	if changed("output") {
		cfg.Output.Path = f.output
	}
	if changed("errors") {
		cfg.Output.ErrorsPath = f.errorsPath
	}
	if changed("csv") {
		cfg.Output.CSVPath = f.csvPath
	}
	if changed("pages") {
		cfg.Output.PagesDir = f.pagesDir
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("backend") {
		cfg.Generation.Backend = f.backend
	}
	if changed("model") {
		cfg.Generation.Model = f.model
	}
	if changed("base-url") {
		cfg.Generation.BaseURL = f.baseURL
	}
	if changed("domain") {
		cfg.Classifier.Domain = f.domain
	}
	if changed("cache") {
		cfg.Cache.Backend = f.cacheBackend
	}
	if changed("cache-path") {
		cfg.Cache.Path = f.cachePath
	}
	if f.noGeneration {
		cfg.Generation.Enabled = false
	}
}

func newSeedCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the sample product catalog as XML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := seed.WriteFile(out)
			if err != nil {
				return err
			}
			logger.Info("sample catalog written", zap.String("path", out), zap.Int("products", n))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "productos.xml", "Destination XML path")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var (
		in    string
		dir   string
		title string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render HTML pages from an enriched envelope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return usageErr("render requires --dir")
			}
			names, err := app.RenderEnvelope(in, dir, render.Options{SiteTitle: title})
			if err != nil {
				return err
			}
			logger.Info("pages rendered", zap.String("dir", dir), zap.Int("files", len(names)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "input", "i", config.Default().Output.Path, "Enriched envelope JSON")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Output directory for the pages")
	cmd.Flags().StringVar(&title, "title", "", "Site title shown on every page")
	return cmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pipeline and rules versions",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enricher %s (rules %s)\n", version.Current, version.Rules)
	},
}
