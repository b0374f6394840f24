package commands

// Root command for Cobra CLI
// Defines the main command structure of the application
// Registers all subcommands (monitor, checkconfig, chats)

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trending-alert",
	Short: "Trending Alert - Telegram bot for trending token notifications",
	Long: `Trending Alert is a Go-based Telegram bot that watches per-chain trending
leaderboards and notifies registered chats about new trend and anomaly tokens,
price multipliers, narratives, and periodic performance summaries.`,
	Version: "1.0.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(checkConfigCmd)
	rootCmd.AddCommand(chatsCmd)
}
