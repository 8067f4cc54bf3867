package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dialsight/dialsight/internal/phone"
	"github.com/dialsight/dialsight/internal/utils"
	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find <number>",
	Short: "Search for a phone number across everything scanned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runFind(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
}

func runFind(ctx context.Context, query string) error {
	// Accept anything a person might paste: "(415) 555-0134",
	// "415.555.0134", "+1-415-555-0134", or bare digits.
	m, ok := phone.Extract(query)
	if !ok {
		err := fmt.Errorf("%q does not contain a US phone number", query)
		utils.ShowError("Unrecognized number format", err, nil)
		return err
	}
	number := m.Digits

	fmt.Fprintln(os.Stderr, "🗄️  Searching database...")
	known, err := DB.GetNumber(ctx, number)
	if err != nil {
		utils.ShowError("Database search failed", err, nil)
		return err
	}

	if known == nil {
		fmt.Printf("❌ %s has never been seen.\n", formatNumber(number))
		return nil
	}

	if known.Label != "" {
		fmt.Printf("✅ Found Match: %s (%s)\n", formatNumber(number), known.Label)
	} else {
		fmt.Printf("✅ Found Match: %s\n", formatNumber(number))
	}
	fmt.Printf("   First seen %s, last seen %s, %d stable hits total\n",
		known.FirstSeen.Local().Format("2006-01-02 15:04"),
		known.LastSeen.Local().Format("2006-01-02 15:04"),
		known.TotalHits)

	hits, err := DB.FindNumber(ctx, number)
	if err != nil {
		utils.ShowError("Failed to retrieve sightings", err, nil)
		return err
	}

	if len(hits) == 0 {
		fmt.Println("No recorded sightings found.")
		return nil
	}

	wOut := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(wOut, "\nSOURCE\tKIND\tTIME RANGE\tFRAMES\tHITS")
	fmt.Fprintln(wOut, "------\t----\t----------\t------\t----")

	for _, h := range hits {
		fmt.Fprintf(wOut, "%s\t%s\t%s - %s\t%d-%d\t%d\n",
			filepath.Base(h.SourcePath),
			h.Kind,
			fmtTime(h.StartTime),
			fmtTime(h.EndTime),
			h.StartFrame,
			h.EndFrame,
			h.Hits,
		)
	}
	wOut.Flush()

	return nil
}
