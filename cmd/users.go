package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var usersJSON bool

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List the users in the dataset",
	RunE:  runUsers,
}

func init() {
	usersCmd.Flags().BoolVar(&usersJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(usersCmd)
}

func runUsers(cmd *cobra.Command, args []string) error {
	app, err := bootstrap()
	if err != nil {
		return err
	}
	defer app.Close()

	snap, err := app.store.Snapshot()
	if err != nil {
		return err
	}

	if usersJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Users)
	}

	for i := range snap.Users {
		u := &snap.Users[i]
		amenities := make([]string, len(u.PreferredAmenities))
		for j, a := range u.PreferredAmenities {
			amenities[j] = string(a)
		}
		wants := "none"
		if len(amenities) > 0 {
			wants = strings.Join(amenities, ", ")
		}
		fmt.Printf("%d. %s: budget $%.0f-$%.0f, %s, sleeps %d, wants %s\n",
			u.ID, u.Name, u.PreferredBudget.Min, u.PreferredBudget.Max,
			u.PreferredRoomType, u.RequiredCapacity, wants)
	}
	return nil
}
