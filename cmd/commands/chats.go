package commands

// Command to inspect the chat registry from the shell
// Lists the chats the bot currently broadcasts to, without needing a
// running bot or a Telegram session

import (
	"fmt"

	"trending-alert/internal/config"
	"trending-alert/internal/storage"

	"github.com/spf13/cobra"
)

var (
	chatsBotConfig    string
	chatsCommonConfig string
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List the chats registered for notifications",
	RunE:  runChats,
}

func init() {
	chatsCmd.Flags().StringVar(&chatsBotConfig, "bot-config", "config/bot.json", "path to the bot config file")
	chatsCmd.Flags().StringVar(&chatsCommonConfig, "common-config", "", "path to an optional shared config file")
}

func runChats(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(chatsBotConfig, chatsCommonConfig)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry := storage.NewChatRegistry(storage.ChatsFilePath(cfg.DataDir))
	chats := registry.ActiveChats()

	out := cmd.OutOrStdout()
	if len(chats) == 0 {
		fmt.Fprintln(out, "No active chats")
		return nil
	}

	fmt.Fprintf(out, "Active chats (%d):\n", len(chats))
	for _, chat := range chats {
		fmt.Fprintf(out, "  %d  %-10s  %s  (added %s, %d messages)\n",
			chat.ChatID, chat.Type, chat.DisplayName(), chat.AddedAt, chat.MessageCount)
	}
	return nil
}
