package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	recommendUserID int
	recommendTopN   int
	recommendDebug  bool
	recommendJSON   bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend rooms for a user",
	Long: `Recommend scores every available room for the user with the trained
model, applies the preference rules, and prints the top matches.

Examples:
  roomrank recommend --user 3
  roomrank recommend --user 3 --top 10 --debug
  roomrank recommend --user 3 --json`,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().IntVarP(&recommendUserID, "user", "u", 0, "user id to recommend for (required)")
	recommendCmd.Flags().IntVarP(&recommendTopN, "top", "n", 5, "number of recommendations")
	recommendCmd.Flags().BoolVar(&recommendDebug, "debug", false, "include per-rule score adjustments")
	recommendCmd.Flags().BoolVar(&recommendJSON, "json", false, "emit JSON instead of text")
	recommendCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.loadModel(); err != nil {
		return err
	}

	recs, err := app.engine.Recommend(context.Background(), recommendUserID, recommendTopN, recommendDebug)
	if err != nil {
		return err
	}

	if recommendJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Printf("no rooms match user %d\n", recommendUserID)
		return nil
	}

	for i, rec := range recs {
		fmt.Printf("%d. %s - %s (%s, %s)\n", i+1, rec.HotelName, rec.RoomName, rec.RoomType, rec.City)
		fmt.Printf("   $%.2f/night, sleeps %d, predicted rating %.2f\n", rec.Price, rec.Capacity, rec.PredictedRating)
		if rec.Reason != "" {
			fmt.Printf("   %s\n", rec.Reason)
		}
		if recommendDebug {
			fmt.Printf("   base score %.4f\n", rec.BaseScore)
			for _, adj := range rec.Adjustments {
				fmt.Printf("   %s\n", adj)
			}
		}
	}
	return nil
}
