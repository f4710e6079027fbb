package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/alpha-hunter/internal/app"
	"github.com/samvad-hq/alpha-hunter/internal/config"
	"github.com/samvad-hq/alpha-hunter/internal/domain"
	"github.com/samvad-hq/alpha-hunter/internal/health"
	"github.com/samvad-hq/alpha-hunter/internal/logger"
	"github.com/samvad-hq/alpha-hunter/internal/metrics"
)

type flags struct {
	sourcesFile    string
	publishersFile string
	noHealth       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "alphahunter: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll sources continuously and send alerts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHunter(cmd.Context(), f)
		},
	}
	runCmd.Flags().BoolVar(&f.noHealth, "no-health", false, "do not start the health server")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single cycle and print opportunities as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd.Context(), f, cmd.OutOrStdout())
		},
	}

	root := &cobra.Command{
		Use:           "alphahunter",
		Short:         "Early crypto launch detector for Reddit and Twitter",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCmd.RunE,
	}
	root.PersistentFlags().StringVar(&f.sourcesFile, "sources", "", "sources registry file (overrides SOURCES_FILE)")
	root.PersistentFlags().StringVar(&f.publishersFile, "publishers", "", "publishers registry file (overrides PUBLISHERS_FILE)")
	root.Flags().AddFlagSet(runCmd.Flags())

	root.AddCommand(runCmd, scanCmd)
	return root
}

func setup(f *flags) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if f.sourcesFile != "" {
		cfg.SourcesFile = f.sourcesFile
	}
	if f.publishersFile != "" {
		cfg.PublishersFile = f.publishersFile
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runHunter(parent context.Context, f *flags) error {
	cfg, log, err := setup(f)
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.InfoObj("alpha hunter starting", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(contextOrBackground(parent), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.New(cfg.AppName)
	state := health.NewState(time.Now())

	hunter, err := app.NewHunter(ctx, cfg, log, collector, state)
	if err != nil {
		logger.ErrorObj("failed to initialize hunter", "error", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if !f.noHealth {
		if cfg.Env == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		router := health.NewRouter(health.Options{
			ServiceName: cfg.AppName,
			State:       state,
			Metrics:     collector.Handler(),
		})
		server := health.NewServer(cfg.Port, router, log)
		g.Go(func() error {
			if err := server.Run(gctx); err != nil {
				log.ErrorObj("health server stopped", "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := hunter.Run(gctx); err != nil {
			return fmt.Errorf("hunter run: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func runScan(parent context.Context, f *flags, out io.Writer) error {
	cfg, log, err := setup(f)
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(contextOrBackground(parent), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanner, err := app.NewScanner(cfg, log)
	if err != nil {
		return err
	}
	report, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	failures := make(map[string]string, len(report.Failures))
	for id, ferr := range report.Failures {
		failures[id] = ferr.Error()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		CycleID       string               `json:"cycle_id"`
		Fetched       int                  `json:"fetched"`
		Annotated     int                  `json:"annotated"`
		Opportunities []domain.Opportunity `json:"opportunities"`
		TokenMentions map[string]int       `json:"token_mentions"`
		Failures      map[string]string    `json:"failures,omitempty"`
	}{
		CycleID:       report.CycleID,
		Fetched:       report.Fetched,
		Annotated:     report.Annotated,
		Opportunities: report.Result.Opportunities,
		TokenMentions: report.Result.TokenMentions,
		Failures:      failures,
	})
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
