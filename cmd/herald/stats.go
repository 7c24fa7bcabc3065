package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mailherald/herald/internal/app"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show delivery ledger statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// openInspector wires the minimal app for read-only ledger commands.
func openInspector() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.NewInspector(cfg)
}

func runStats(cmd *cobra.Command, args []string) error {
	application, err := openInspector()
	if err != nil {
		return err
	}
	defer application.Close()

	stats, err := application.Store.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read ledger stats: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT")
	fmt.Fprintln(w, "------\t-----")
	fmt.Fprintf(w, "sent\t%d\n", stats.Sent)
	fmt.Fprintf(w, "failed\t%d\n", stats.Failed)
	fmt.Fprintf(w, "skipped\t%d\n", stats.Skipped)
	fmt.Fprintf(w, "total\t%d\n", stats.Total)
	w.Flush()

	return nil
}
