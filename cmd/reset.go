package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dialsight/dialsight/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetTables bool
	resetSpool  string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (database tables, spool directory)",
	Long:  "Clears tracked numbers, runs, and sightings. By default only the database is reset; pass --spool to also empty a spool directory.",
	Run: func(cmd *cobra.Command, args []string) {
		// If no flags are set, default to clearing the database
		if !resetTables && resetSpool == "" {
			resetTables = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetTables {
			if confirm(reader, "⚠️  Are you sure you want to DROP all database tables?") {
				fmt.Println("🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					utils.Die("Failed to reset database", err, nil)
				}
			}
		}

		if resetSpool != "" {
			if confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to delete everything under %s?", resetSpool)) {
				fmt.Println("🗑️  Clearing Spool Directory...")
				removeDir(resetSpool)
			}
		}

		fmt.Println("✨ System Reset Complete.")
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetTables, "tables", false, "Drop all database tables")
	resetCmd.Flags().StringVar(&resetSpool, "spool", "", "Also delete this spool directory")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
