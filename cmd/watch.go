package cmd

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adalundhe/roomrank/core/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the dataset and retrain on changes",
	Long: `Watch monitors the dataset directory. When the user or hotel files
change, the snapshot is rebuilt and the model retrained; the new model is
swapped in atomically once training completes. If a rebuild fails the
previous snapshot and model stay in service.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Serve an existing checkpoint if it still fits the dataset, otherwise
	// train before watching.
	if err := app.loadModel(); err != nil {
		app.logger.Info("no usable checkpoint, training", "reason", err)
		if _, err := app.engine.Retrain(ctx, app.retrainConfig()); err != nil {
			return err
		}
	}

	cfg := watch.Config{
		Dir:      filepath.Dir(app.cfg.Dataset.UsersFile),
		Patterns: app.cfg.Watch.Patterns,
		Debounce: time.Duration(app.cfg.Watch.DebounceMS) * time.Millisecond,
	}

	rebuild := func(ctx context.Context, changed []string) error {
		if _, err := app.store.Reload(app.cfg.Dataset.UsersFile, app.cfg.Dataset.HotelsFile); err != nil {
			return err
		}
		_, err := app.engine.Retrain(ctx, app.retrainConfig())
		return err
	}

	watcher, err := watch.New(cfg, rebuild, app.logger)
	if err != nil {
		return err
	}

	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
