package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docmigrate/internal/config"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	cfgPath string
	verbose bool
}

type runOptions struct {
	metricsBackend string
	pushgatewayURL string
	datadogAddr    string
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}

	root := &cobra.Command{
		Use:           "docmigrate",
		Short:         "Migrate analytical rows into per-key documents and audit the result",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if ro.verbose {
				log.SetFlags(log.LstdFlags | log.Lmicroseconds)
			}
		},
	}
	root.PersistentFlags().StringVarP(&ro.cfgPath, "config", "c", "configs/pipelines/sample.yaml", "pipeline config path (.json, .yaml, .yml)")
	root.PersistentFlags().BoolVarP(&ro.verbose, "verbose", "v", false, "enable verbose logs")

	root.AddCommand(newRunCmd(ro), newValidateCmd(ro), newVersionCmd())
	return root
}

func newRunCmd(ro *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the migration described by the pipeline config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadValid(cmd, ro.cfgPath)
			if err != nil {
				return err
			}

			stop := setupMetrics(p, *opts, ro.verbose)
			defer stop()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if ro.verbose {
				log.Printf("pipeline: job=%s source=%s docstore=%s audit=%s table=%s chunk_size=%d",
					p.Job, p.Source.Kind, p.Docstore.Kind, p.Audit.Kind, p.Audit.Table, p.Runtime.ChunkSize)
			}
			start := time.Now()
			res, err := runPipeline(ctx, p)
			if err != nil {
				log.Printf("run failed: %v", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "destination=%s run_id=%s rows=%d documents=%d batches=%d reappeared=%d\n",
				res.Destination, res.RunID, res.Stats.Rows, res.Stats.Documents, res.Stats.Batches, res.Stats.Reappeared)
			if ro.verbose {
				log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway, datadog (overrides config and METRICS_BACKEND)")
	cmd.Flags().StringVar(&opts.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides config and PUSHGATEWAY_URL)")
	cmd.Flags().StringVar(&opts.datadogAddr, "datadog-addr", "", "DogStatsD address (overrides config and DATADOG_ADDR)")
	return cmd
}

func newValidateCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline config and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadValid(cmd, ro.cfgPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid: %s\n", ro.cfgPath)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docmigrate %s\n", version)
		},
	}
}

// loadValid loads the config and prints every validation issue to stderr.
func loadValid(cmd *cobra.Command, path string) (config.Pipeline, error) {
	p, err := config.Load(path)
	if err != nil {
		return config.Pipeline{}, err
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return config.Pipeline{}, fmt.Errorf("configuration is invalid: %s", path)
	}
	return p, nil
}

