package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailherald/herald/internal/campaign"
	"github.com/mailherald/herald/internal/ledger"
)

var (
	ledgerListStatus string
	ledgerListLimit  int
	ledgerListOffset int
	ledgerRunsLimit  int
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Delivery ledger commands",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List delivery records",
	RunE:  runLedgerList,
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <recipient_key>",
	Short: "Show one delivery record",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerShow,
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full ledger as JSON",
	RunE:  runLedgerExport,
}

var ledgerRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived campaign runs",
	RunE:  runLedgerRuns,
}

func init() {
	ledgerListCmd.Flags().StringVar(&ledgerListStatus, "status", "", "Filter by status (sent, failed, skipped)")
	ledgerListCmd.Flags().IntVar(&ledgerListLimit, "limit", 50, "Maximum number of records to show")
	ledgerListCmd.Flags().IntVar(&ledgerListOffset, "offset", 0, "Records to skip before listing")
	ledgerRunsCmd.Flags().IntVar(&ledgerRunsLimit, "limit", 20, "Maximum number of runs to show")

	ledgerCmd.AddCommand(ledgerListCmd, ledgerShowCmd, ledgerExportCmd, ledgerRunsCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	application, err := openInspector()
	if err != nil {
		return err
	}
	defer application.Close()

	filter := ledger.ListFilter{
		Limit:  ledgerListLimit,
		Offset: ledgerListOffset,
	}
	if ledgerListStatus != "" {
		filter.Status = ledger.Status(ledgerListStatus)
		if !filter.Status.Valid() {
			return fmt.Errorf("unknown status %q", ledgerListStatus)
		}
	}

	entries, err := application.Store.List(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("Ledger is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSTATUS\tATTEMPTS\tLAST ATTEMPT")
	fmt.Fprintln(w, "---\t------\t--------\t------------")

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			e.Key,
			e.Record.Status,
			e.Record.Attempts,
			e.Record.LastAttemptAt.Format("2006-01-02 15:04"),
		)
	}

	w.Flush()
	fmt.Printf("\nTotal: %d records\n", len(entries))

	return nil
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	application, err := openInspector()
	if err != nil {
		return err
	}
	defer application.Close()

	key := args[0]
	rec, err := application.Store.Get(context.Background(), key)
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("record not found: %s", key)
	}

	fmt.Printf("Record: %s\n\n", key)
	fmt.Printf("Status:       %s\n", rec.Status)
	fmt.Printf("Attempts:     %d\n", rec.Attempts)
	fmt.Printf("Last Attempt: %s\n", rec.LastAttemptAt.Format(time.RFC3339))
	if rec.LastError != "" {
		fmt.Printf("\nLast Error:\n  %s\n", rec.LastError)
	}

	return nil
}

func runLedgerExport(cmd *cobra.Command, args []string) error {
	application, err := openInspector()
	if err != nil {
		return err
	}
	defer application.Close()

	records, err := application.Store.Export(context.Background())
	if err != nil {
		return fmt.Errorf("failed to export ledger: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func runLedgerRuns(cmd *cobra.Command, args []string) error {
	application, err := openInspector()
	if err != nil {
		return err
	}
	defer application.Close()

	runs, err := application.Store.ListRuns(context.Background(), ledgerRunsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tMODE\tSTARTED\tSENT\tFAILED\tSKIPPED")
	fmt.Fprintln(w, "---\t----\t-------\t----\t------\t-------")

	for _, run := range runs {
		var summary campaign.Summary
		if err := json.Unmarshal(run.Data, &summary); err != nil {
			fmt.Fprintf(w, "%s\t?\t%s\t?\t?\t?\n",
				run.ID, run.RecordedAt.Format("2006-01-02 15:04"))
			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			summary.Mode,
			summary.StartedAt.Format("2006-01-02 15:04"),
			summary.Sent,
			summary.Failed,
			summary.Skipped,
		)
	}

	w.Flush()
	return nil
}
