package commands

// Command to validate configuration without starting the bot
// Loads and validates the config files, then prints the effective
// settings so deploys can be checked up front

import (
	"fmt"

	"trending-alert/internal/config"

	"github.com/spf13/cobra"
)

var (
	checkBotConfig    string
	checkCommonConfig string
)

var checkConfigCmd = &cobra.Command{
	Use:   "checkconfig",
	Short: "Validate configuration and print the effective settings",
	RunE:  runCheckConfig,
}

func init() {
	checkConfigCmd.Flags().StringVar(&checkBotConfig, "bot-config", "config/bot.json", "path to the bot config file")
	checkConfigCmd.Flags().StringVar(&checkCommonConfig, "common-config", "", "path to an optional shared config file")
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(checkBotConfig, checkCommonConfig)
	if err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Config OK")
	fmt.Fprintf(out, "  Chains:                   %v\n", cfg.Chains)
	fmt.Fprintf(out, "  Data dir:                 %s\n", cfg.DataDir)
	fmt.Fprintf(out, "  Check interval:           %ds\n", cfg.CheckInterval)
	fmt.Fprintf(out, "  Notify cooldown:          %dh\n", cfg.NotifyCooldownHours)
	fmt.Fprintf(out, "  Multiplier confirmations: %d\n", cfg.MultiplierConfirmations)
	fmt.Fprintf(out, "  Notification types:       %v\n", cfg.NotificationTypes)
	fmt.Fprintf(out, "  Summary report hours:     %v\n", cfg.SummaryReportHours)
	fmt.Fprintf(out, "  Summary top N:            %d\n", cfg.SummaryTopN)
	fmt.Fprintf(out, "  Silent init:              %t\n", cfg.SilentInit)
	fmt.Fprintf(out, "  Message buttons:          %d\n", len(cfg.MessageButtons))
	for chain, allowlist := range cfg.ChainAllowlists {
		fmt.Fprintf(out, "  Allowlist %s:             launchFrom=%v dexName=%v\n",
			chain, allowlist.LaunchFrom, allowlist.DexName)
	}
	return nil
}
