package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"animedash/internal/dashboard"
	"animedash/internal/jikan"
	"animedash/pkg/config"
	"animedash/pkg/logging"
)

const defaultArchivePath = "~/.animedash/archive.db"

// app carries the global flags and what PersistentPreRunE builds from them.
type app struct {
	cfgPath  string
	jikanURL string
	verbose  bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "animedash",
		Short: "Top anime rankings from the terminal",
		Long: `animedash loads the current top anime ranking from the Jikan API and
prints it, its statistics, or single entries.

Every command except history and watch talks to the API directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			if a.jikanURL != "" {
				cfg.Jikan.BaseURL = a.jikanURL
			}
			level := "warn"
			if a.verbose {
				level = "debug"
			}
			logger, err := logging.New(level, true)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", config.Path(), "YAML config file (env ANIMEDASH_CONFIG)")
	root.PersistentFlags().StringVar(&a.jikanURL, "jikan-url", "", "ranking API base URL, overrides jikan.base_url")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		a.topCmd(),
		a.statsCmd(),
		a.showCmd(),
		a.randomCmd(),
		a.archiveCmd(),
		a.historyCmd(),
		a.exportCmd(),
		a.watchCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "animedash:", err)
		os.Exit(1)
	}
}

func (a *app) service() *dashboard.Service {
	client := jikan.NewClient(
		jikan.WithBaseURL(a.cfg.Jikan.BaseURL),
		jikan.WithTimeout(a.cfg.Jikan.Timeout),
		jikan.WithLogger(a.logger.Named("jikan")),
	)
	return dashboard.NewService(client, a.logger.Named("dashboard"),
		dashboard.WithDetailTimeout(a.cfg.Jikan.DetailTimeout))
}

// load runs the pipeline once and returns the resulting state.
func (a *app) load(ctx context.Context) (*dashboard.Service, dashboard.LoadState, error) {
	svc := a.service()
	if err := svc.Load(ctx); err != nil {
		return nil, dashboard.LoadState{}, err
	}
	return svc, svc.State(), nil
}

func (a *app) archivePath() string {
	if a.cfg.Archive.Path != "" {
		return a.cfg.Archive.Path
	}
	return defaultArchivePath
}
