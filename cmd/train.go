package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the rating model on the current dataset",
	Long: `Train synthesizes user-hotel interactions from the loaded dataset,
fits the hybrid rating model with early stopping, and commits the best
checkpoint. Interrupting with Ctrl-C stops at the next batch boundary and
keeps the best checkpoint written so far.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := app.engine.Retrain(ctx, app.retrainConfig())
	if err != nil {
		return err
	}

	fmt.Printf("run %s: best validation MSE %.4f over %d epochs", result.RunID, result.BestValMSE, len(result.Epochs))
	if result.StoppedEarly {
		fmt.Print(" (stopped early)")
	}
	fmt.Println()
	fmt.Printf("checkpoint: %s\n", app.cfg.Training.CheckpointDir)
	return nil
}
