package notify

// Inline keyboard construction for notification messages
// Buttons come from config, support a {token_address} placeholder and
// an optional per-chain filter

import (
	"strings"

	"trending-alert/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const buttonsPerRow = 3

// BuildInlineKeyboard renders the configured buttons for one token.
// Buttons bound to another chain are dropped. Returns nil when nothing
// applies, so callers can leave ReplyMarkup unset.
func BuildInlineKeyboard(buttons []config.MessageButton, tokenAddress, chain string) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 || tokenAddress == "" {
		return nil
	}

	var row []tgbotapi.InlineKeyboardButton
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, btn := range buttons {
		if btn.Text == "" || btn.URL == "" {
			continue
		}
		if btn.Chain != "" && chain != "" && !strings.EqualFold(btn.Chain, chain) {
			continue
		}

		url := strings.ReplaceAll(btn.URL, "{token_address}", tokenAddress)
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, url))
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
