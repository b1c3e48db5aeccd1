package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/adalundhe/roomrank/core/explain"
)

var (
	explainUserID  int
	explainHotelID int
	explainJSON    bool
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain how well a hotel matches a user",
	Long: `Explain applies the preference rules to every room of a hotel and
reports why it does or does not fit the user. The trained model's prediction
is included when a checkpoint is available; the rules work without one.`,
	RunE: runExplain,
}

func init() {
	explainCmd.Flags().IntVarP(&explainUserID, "user", "u", 0, "user id (required)")
	explainCmd.Flags().IntVar(&explainHotelID, "hotel", 0, "hotel id (required)")
	explainCmd.Flags().BoolVar(&explainJSON, "json", false, "emit JSON instead of text")
	explainCmd.MarkFlagRequired("user")
	explainCmd.MarkFlagRequired("hotel")
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	// The rules explain a match on their own; the model score is a bonus.
	var explainer *explain.Explainer
	if err := app.loadModel(); err != nil {
		app.logger.Debug("explaining without a model", "reason", err)
		explainer = explain.New(app.store, nil)
	} else {
		explainer = explain.New(app.store, app.engine)
	}

	result, err := explainer.Explain(explainUserID, explainHotelID)
	if err != nil {
		return err
	}

	if explainJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("%s (hotel %d)\n", result.HotelName, result.HotelID)
	if result.PredictedScore > 0 {
		fmt.Printf("predicted rating: %.2f\n", result.PredictedScore)
	}
	fmt.Println(result.Text)
	fmt.Println()
	for _, room := range result.Rooms {
		fmt.Printf("  %s (%s, sleeps %d, $%.2f) score %.1f\n",
			room.RoomName, room.RoomType, room.Capacity, room.Price, room.Score)
		for _, m := range room.Matches {
			fmt.Printf("    + %s\n", m)
		}
		for _, m := range room.Mismatches {
			fmt.Printf("    - %s\n", m)
		}
	}
	return nil
}
