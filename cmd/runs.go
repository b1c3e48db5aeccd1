package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded training runs",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	runs, err := app.ledger.Runs(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no training runs recorded")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %s  %-9s  val MSE %.4f\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.RunID, r.Status, r.BestValMSE)
	}
	return nil
}
