package cmd

import (
	"context"
	"fmt"

	"github.com/dialsight/dialsight/internal/phone"
	"github.com/dialsight/dialsight/internal/utils"
	"github.com/spf13/cobra"
)

var labelCmd = &cobra.Command{
	Use:   "label <number> <name>",
	Short: "Assign a name to a discovered number",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		m, ok := phone.Extract(args[0])
		if !ok {
			utils.Die("Unrecognized number format", fmt.Errorf("%q does not contain a US phone number", args[0]), nil)
		}

		runLabel(cmd.Context(), m.Digits, args[1])
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)
}

func runLabel(ctx context.Context, number, name string) {
	// Database is initialized in Root PersistentPreRunE
	if err := DB.LabelNumber(ctx, number, name); err != nil {
		utils.Die("Failed to label number", err, nil)
	}

	fmt.Printf("✅ %s labeled as '%s'\n", formatNumber(number), name)
}
