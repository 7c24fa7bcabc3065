package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mailherald/herald/internal/config"
)

var (
	cfgFile   string
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "herald",
	Short: "Herald - one-shot email campaigns",
	Long: `Herald sends a personalized email to every recipient in a roster,
exactly once, no matter how often it is re-run.`,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("herald version %s\n", version)
		if commit != "unknown" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd, versionCmd)
}

// loadConfig reads the config file when one was given; with no file the
// configuration comes from defaults and environment variables alone.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use -c flag)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  SMTP:   %s:%d\n", cfg.SMTP.Host, cfg.SMTP.Port)
	fmt.Printf("  From:   %s <%s>\n", cfg.SMTP.FromName, cfg.SMTP.FromAddress)
	if cfg.Roster.SheetURL != "" {
		fmt.Printf("  Roster: %s\n", cfg.Roster.SheetURL)
	} else if cfg.Roster.CSVFile != "" {
		fmt.Printf("  Roster: %s\n", cfg.Roster.CSVFile)
	}
	fmt.Printf("  Ledger: %s\n", cfg.Ledger.Path)

	if err := cfg.ValidateForRun(); err != nil {
		fmt.Printf("\nNote: not ready for a send run: %v\n", err)
	}

	return nil
}
