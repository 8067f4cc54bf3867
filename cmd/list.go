package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dialsight/dialsight/internal/utils"
	"github.com/spf13/cobra"
)

var listRuns bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all known numbers in the database",
	Run: func(cmd *cobra.Command, args []string) {
		runList(cmd.Context())
	},
}

func init() {
	listCmd.Flags().BoolVar(&listRuns, "runs", false, "List recent scan runs instead of numbers")
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context) {
	if listRuns {
		listRecentRuns(ctx)
		return
	}

	numbers, err := DB.ListNumbers(ctx)
	if err != nil {
		utils.Die("Failed to list numbers", err, nil)
	}

	if len(numbers) == 0 {
		fmt.Println("No numbers found in database.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NUMBER\tLABEL\tFIRST SEEN\tLAST SEEN\tHITS")
	fmt.Fprintln(w, "------\t-----\t----------\t---------\t----")

	for _, n := range numbers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", formatNumber(n.Number), n.Label,
			n.FirstSeen.Local().Format("2006-01-02 15:04"),
			n.LastSeen.Local().Format("2006-01-02 15:04"), n.TotalHits)
	}
	w.Flush()
}

func listRecentRuns(ctx context.Context) {
	runs, err := DB.ListRuns(ctx, 20)
	if err != nil {
		utils.Die("Failed to list runs", err, nil)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found in database.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "RUN\tSOURCE\tENGINE\tSTARTED\tFINISHED\tFRAMES\tNUMBERS")
	fmt.Fprintln(w, "---\t------\t------\t-------\t--------\t------\t-------")

	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n", shortID(r.ID), r.SourcePath, r.Engine,
			r.StartedAt.Local().Format("2006-01-02 15:04"), finished, r.Frames, r.Numbers)
	}
	w.Flush()
}
