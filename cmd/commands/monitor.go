package commands

// Command to run the trending monitor
// Loads configuration, opens the chat registry and contract storage
// Starts the Telegram worker and the polling loop
// Implements graceful shutdown for proper termination

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"trending-alert/internal/config"
	logging "trending-alert/internal/infra/log"
	"trending-alert/internal/market"
	"trending-alert/internal/monitor"
	"trending-alert/internal/notify"
	"trending-alert/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	monitorBotConfig    string
	monitorCommonConfig string
	monitorClearStorage string
	monitorDryRun       bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the trending monitor (Telegram + polling loop)",
	Long: `Run the complete monitor: poll the trending leaderboards of the configured
chains, announce trend and anomaly tokens to every registered chat, track price
multipliers and narratives, and send periodic summary reports.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorBotConfig, "bot-config", "config/bot.json", "path to the bot config file")
	monitorCmd.Flags().StringVar(&monitorCommonConfig, "common-config", "", "path to an optional shared config file")
	monitorCmd.Flags().StringVar(&monitorClearStorage, "clear-storage", "", "remove contract storage before starting: 'all' or a comma-separated chain list")
	monitorCmd.Flags().BoolVar(&monitorDryRun, "dry-run", false, "perform one cycle and exit")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(monitorBotConfig, monitorCommonConfig)
	if err != nil {
		logging.LogError("Failed to load config", zap.Error(err))
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", cfg.DataDir, err)
	}

	chats := storage.NewChatRegistry(storage.ChatsFilePath(cfg.DataDir))
	if monitorClearStorage != "" {
		chains, err := clearStorageChains(cfg, monitorClearStorage)
		if err != nil {
			return err
		}
		monitor.ClearStorage(cfg, chats, chains)
	}

	telegram, err := notify.NewTelegram(cfg.TelegramBotToken, chats, cfg.MessageButtons)
	if err != nil {
		logging.LogError("Failed to initialize telegram bot", zap.Error(err))
		return err
	}
	if !monitorDryRun {
		telegram.Start(ctx)
	}

	client := market.NewClient()
	loop := monitor.NewLoop(cfg, client, telegram, chats)

	logging.LogSuccess("Monitor is running",
		zap.Strings("chains", cfg.Chains),
		zap.String("bot", telegram.BotUsername()))

	err = loop.Run(ctx, monitorDryRun)
	if errors.Is(err, context.Canceled) {
		logging.LogInfo("Shutdown signal received, monitor stopped")
		return nil
	}
	return err
}

// clearStorageChains resolves the --clear-storage value: "all" means
// every configured chain, otherwise a comma-separated subset of them.
func clearStorageChains(cfg *config.Config, value string) ([]string, error) {
	if value == "all" {
		return cfg.Chains, nil
	}

	var chains []string
	for _, chain := range strings.Split(value, ",") {
		chain = strings.TrimSpace(strings.ToLower(chain))
		if chain == "" {
			continue
		}
		if !slices.Contains(cfg.Chains, chain) {
			return nil, fmt.Errorf("--clear-storage chain %q is not configured (chains: %v)", chain, cfg.Chains)
		}
		chains = append(chains, chain)
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("--clear-storage requires 'all' or a chain list")
	}
	return chains, nil
}
