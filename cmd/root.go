package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/app"
	"github.com/atlas-archive/atlas/internal/config"
	"github.com/atlas-archive/atlas/internal/ingest"
	"github.com/atlas-archive/atlas/internal/instapaper"
	"github.com/atlas-archive/atlas/internal/logging"
	"github.com/atlas-archive/atlas/internal/podcast"
	bootstrap "github.com/atlas-archive/atlas/pkg/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows tests to inject their own container.
type App interface {
	Close()
	GetLogger() *zap.Logger
	Articles(reprocess bool) (*ingest.Article, error)
	YouTube(reprocess bool) (*ingest.YouTube, error)
	Podcasts(reprocess bool, transcriber podcast.Transcriber) (*ingest.Podcast, error)
	Instapaper(reprocess bool, export []instapaper.ExportRow) (*ingest.Instapaper, error)
	FlushMetrics(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(cfg config.Config, logger *zap.Logger) (App, error) {
	return app.NewApp(cfg, logger)
}

// newLogger builds the console logger; replaced in tests.
var newLogger = logging.New

// rootOptions holds the persistent flags and the application built for the run.
type rootOptions struct {
	cfgFile string
	dataDir string
	app     App
}

// newRootCmd creates and configures the root command.
func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atlas",
		Short: "Ingests articles, Instapaper bookmarks, podcasts and videos into a local library.",
		Long: `atlas turns URLs, bookmarks, feeds and video ids into a durable on-disk
library: raw HTML, a Markdown rendering and a JSON metadata record per item.
Items that cannot be fetched are recorded and appended to the retry queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Loads configuration and builds the application before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			v := viper.New()
			used, err := bootstrap.Init(v, opts.cfgFile)
			if err != nil {
				return err
			}
			if opts.dataDir != "" {
				v.Set("data_directory", opts.dataDir)
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogDevelopment)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if used != "" {
				logger.Info("using config file", zap.String("path", used))
			}
			appInstance, err := newApp(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opts.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default searches ./config.yaml, /etc/atlas/, $HOME/.atlas)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "override data_directory")

	cmd.AddCommand(newArticlesCmd())
	cmd.AddCommand(newYouTubeCmd())
	cmd.AddCommand(newPodcastsCmd())
	cmd.AddCommand(newInstapaperCmd())
	return cmd
}

// Execute runs the CLI and returns the process exit code: 0 when the batch
// ran, whatever its per-item outcomes, and 1 on configuration or setup errors.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "atlas:", err)
		return 1
	}
	return 0
}

// run executes one command line and closes the application afterwards, also
// when the command failed.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if opts.app != nil {
		opts.app.Close()
	}
	return err
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
