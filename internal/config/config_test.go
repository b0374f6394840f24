package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func validConfig() *Config {
	return &Config{
		Chains:                  []string{"bsc"},
		TelegramBotToken:        "123:abc",
		DataDir:                 "data",
		CheckInterval:           15,
		NotifyCooldownHours:     24,
		MultiplierConfirmations: 2,
		NotificationTypes:       []string{"trending", "anomaly"},
		SummaryReportHours:      []int{0, 4, 8, 12, 16, 20},
		SummaryTopN:             3,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no chains", func(c *Config) { c.Chains = nil }},
		{"unknown chain", func(c *Config) { c.Chains = []string{"dogechain"} }},
		{"missing token", func(c *Config) { c.TelegramBotToken = "  " }},
		{"placeholder token", func(c *Config) { c.TelegramBotToken = "REPLACE_WITH_TOKEN" }},
		{"missing data dir", func(c *Config) { c.DataDir = "" }},
		{"zero interval", func(c *Config) { c.CheckInterval = 0 }},
		{"negative cooldown", func(c *Config) { c.NotifyCooldownHours = -1 }},
		{"zero confirmations", func(c *Config) { c.MultiplierConfirmations = 0 }},
		{"no notification types", func(c *Config) { c.NotificationTypes = nil }},
		{"bad notification type", func(c *Config) { c.NotificationTypes = []string{"surge"} }},
		{"empty report hours", func(c *Config) { c.SummaryReportHours = nil }},
		{"report hour out of range", func(c *Config) { c.SummaryReportHours = []int{25} }},
		{"zero top n", func(c *Config) { c.SummaryTopN = 0 }},
		{"allowlist for unconfigured chain", func(c *Config) {
			c.ChainAllowlists = map[string]ChainAllowlist{"sol": {}}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			require.Error(t, Validate(cfg))
		})
	}
}

func TestLoadConfigMergesCommonAndBot(t *testing.T) {
	dir := t.TempDir()
	common := writeFile(t, dir, "common.json", `{
		"check_interval": 10,
		"multiplier_confirmations": 3
	}`)
	bot := writeFile(t, dir, "bot.json", `{
		"chains": ["bsc", "sol"],
		"telegram_bot_token": "123:abc",
		"data_dir": "`+filepath.Join(dir, "data")+`",
		"multiplier_confirmations": 2,
		"chain_allowlists": {
			"bsc": {"launchFrom": ["four", "flap"], "dexName": ["Binance Exclusive"]}
		}
	}`)

	cfg, err := LoadConfig(bot, common)
	require.NoError(t, err)

	require.Equal(t, []string{"bsc", "sol"}, cfg.Chains)
	require.Equal(t, 10, cfg.CheckInterval)
	// Bot config wins over common config.
	require.Equal(t, 2, cfg.MultiplierConfirmations)
	require.Equal(t, 24, cfg.NotifyCooldownHours)
	require.Equal(t, []string{"trending", "anomaly"}, cfg.NotificationTypes)
	require.Equal(t, []string{"four", "flap"}, cfg.AllowlistFor("bsc").LaunchFrom)
	require.True(t, cfg.NotificationEnabled("trending"))
	require.NotEmpty(t, cfg.MessageButtons)

	// data_dir must exist after load.
	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestLoadConfigSingleChainShorthand(t *testing.T) {
	dir := t.TempDir()
	bot := writeFile(t, dir, "bot.json", `{
		"chain": "sol",
		"telegram_bot_token": "123:abc",
		"data_dir": "`+filepath.Join(dir, "data")+`"
	}`)

	cfg, err := LoadConfig(bot, "")
	require.NoError(t, err)
	require.Equal(t, []string{"sol"}, cfg.Chains)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	bot := writeFile(t, dir, "bot.json", `{
		"chains": ["bsc"],
		"telegram_bot_token": "123:abc",
		"data_dir": "`+filepath.Join(dir, "data")+`",
		"check_intervall": 10
	}`)

	_, err := LoadConfig(bot, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "check_intervall")
}

func TestLoadConfigMissingBotConfig(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"), "")
	require.Error(t, err)
}
