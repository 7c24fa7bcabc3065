package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mailherald/herald/internal/app"
	"github.com/mailherald/herald/internal/campaign"
)

var sendYes bool

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Run the campaign and send real email",
	Long: `Send renders a message for every roster recipient not yet marked
sent in the ledger and submits it over SMTP. Recipients already sent
in earlier runs are skipped, so re-running after a crash is safe.`,
	RunE: runSend,
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Dry run: show what a send would do without sending",
	Long: `Preview walks the full pipeline - roster, ledger, templates - and
logs every message that a live run would send. Nothing is submitted
and nothing is marked sent.`,
	RunE: runPreview,
}

func init() {
	sendCmd.Flags().BoolVarP(&sendYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(sendCmd, previewCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	return runCampaign(cmd, campaign.ModeLive)
}

func runPreview(cmd *cobra.Command, args []string) error {
	return runCampaign(cmd, campaign.ModeDryRun)
}

func runCampaign(cmd *cobra.Command, mode campaign.Mode) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if mode == campaign.ModeLive && !sendYes {
		if !confirm(fmt.Sprintf("This will send real email via %s as %s. Continue?",
			cfg.SMTP.Host, cfg.SMTP.FromAddress)) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := application.Engine.Run(ctx, mode)
	if err != nil {
		return fmt.Errorf("campaign run failed: %w", err)
	}

	printSummary(summary)

	if summary.Failed > 0 {
		return fmt.Errorf("%d recipients failed; re-run to retry them", summary.Failed)
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printSummary(s *campaign.Summary) {
	fmt.Printf("\nRun %s (%s) finished in %s\n",
		s.RunID, s.Mode, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	fmt.Printf("  Roster:       %d\n", s.Total)
	if s.Mode == campaign.ModeDryRun {
		fmt.Printf("  Would send:   %d\n", s.WouldSend)
	} else {
		fmt.Printf("  Sent:         %d\n", s.Sent)
	}
	fmt.Printf("  Already sent: %d\n", s.AlreadySent)
	fmt.Printf("  Duplicates:   %d\n", s.Duplicates)
	fmt.Printf("  Skipped:      %d\n", s.Skipped)
	fmt.Printf("  Failed:       %d\n", s.Failed)
	if s.Aborted {
		fmt.Println("  Run was interrupted; re-run to finish the remainder.")
	}
}
