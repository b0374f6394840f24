package config

// Runtime configuration loaded from JSON config files, .env and environment
// Bot config overrides common config, environment overrides both
// Unknown keys in config files are rejected to catch typos early
// Validation failures are fatal: the monitor loop never starts on bad config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SupportedChains lists the chain identifiers the trending source serves.
var SupportedChains = []string{"bsc", "sol", "base"}

// SupportedNotificationTypes lists valid entries for notification_types.
var SupportedNotificationTypes = []string{"trending", "anomaly"}

var commonAllowedKeys = map[string]bool{
	"check_interval":           true,
	"notify_cooldown_hours":    true,
	"multiplier_confirmations": true,
}

var botAllowedKeys = map[string]bool{
	"chain":                    true,
	"chains":                   true,
	"notification_types":       true,
	"telegram_bot_token":       true,
	"data_dir":                 true,
	"check_interval":           true,
	"notify_cooldown_hours":    true,
	"multiplier_confirmations": true,
	"chain_allowlists":         true,
	"summary_report_hours":     true,
	"summary_top_n":            true,
	"silent_init":              true,
	"message_buttons":          true,
}

// ChainAllowlist is an inclusion whitelist for one chain. Empty lists mean
// nothing is filtered.
type ChainAllowlist struct {
	LaunchFrom []string `mapstructure:"launchFrom" json:"launchFrom"`
	DexName    []string `mapstructure:"dexName" json:"dexName"`
}

// MessageButton is an inline button attached to notifications. URL may carry a
// {token_address} placeholder; Chain limits the button to one chain's alerts.
type MessageButton struct {
	Text  string `mapstructure:"text" json:"text"`
	URL   string `mapstructure:"url" json:"url"`
	Chain string `mapstructure:"chain" json:"chain"`
}

// Config is the immutable runtime configuration, validated once at startup.
type Config struct {
	Chains                  []string                  `mapstructure:"chains"`
	TelegramBotToken        string                    `mapstructure:"telegram_bot_token"`
	DataDir                 string                    `mapstructure:"data_dir"`
	CheckInterval           int                       `mapstructure:"check_interval"`
	NotifyCooldownHours     int                       `mapstructure:"notify_cooldown_hours"`
	MultiplierConfirmations int                       `mapstructure:"multiplier_confirmations"`
	NotificationTypes       []string                  `mapstructure:"notification_types"`
	ChainAllowlists         map[string]ChainAllowlist `mapstructure:"chain_allowlists"`
	SummaryReportHours      []int                     `mapstructure:"summary_report_hours"`
	SummaryTopN             int                       `mapstructure:"summary_top_n"`
	SilentInit              bool                      `mapstructure:"silent_init"`
	MessageButtons          []MessageButton           `mapstructure:"message_buttons"`
}

// DefaultMessageButtons are attached when the bot config supplies none.
var DefaultMessageButtons = []MessageButton{
	{Text: "Pepe BSC", URL: "https://t.me/PepeboostBsc_bot?start=ref_0c9zso_ca_{token_address}", Chain: "bsc"},
	{Text: "Pepe SOL", URL: "https://t.me/pepeboost_sol06_bot?start=ref_0b22dk_ca_{token_address}", Chain: "sol"},
	{Text: "XXYY", URL: "https://pro.xxyy.io/sol/{token_address}?ref=ncuYXE", Chain: "sol"},
	{Text: "XXYY", URL: "https://pro.xxyy.io/bsc/{token_address}?ref=ncuYXE", Chain: "bsc"},
}

// LoadConfig merges common config, bot config and environment into a
// validated Config. commonPath may be empty or point to a missing file.
func LoadConfig(botPath, commonPath string) (*Config, error) {
	godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	if commonPath != "" {
		if _, err := os.Stat(commonPath); err == nil {
			raw, err := readConfigFile(commonPath, commonAllowedKeys, "common config")
			if err != nil {
				return nil, err
			}
			mergeRaw(v, raw)
		}
	}

	raw, err := readConfigFile(botPath, botAllowedKeys, "bot config")
	if err != nil {
		return nil, err
	}
	// Single-chain shorthand from older configs.
	if chain, ok := raw["chain"].(string); ok && raw["chains"] == nil {
		raw["chains"] = []interface{}{chain}
	}
	delete(raw, "chain")
	mergeRaw(v, raw)

	v.AutomaticEnv()
	setupEnvAliases(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Chains from env arrive as a comma-separated string.
	if chainsRaw := v.Get("chains"); chainsRaw != nil {
		if s, ok := chainsRaw.(string); ok {
			cfg.Chains = splitList(s)
		}
	}
	if typesRaw := v.Get("notification_types"); typesRaw != nil {
		if s, ok := typesRaw.(string); ok {
			cfg.NotificationTypes = splitList(s)
		}
	}

	cfg.Chains = normalizeList(cfg.Chains)
	cfg.NotificationTypes = normalizeList(cfg.NotificationTypes)
	if len(cfg.MessageButtons) == 0 {
		cfg.MessageButtons = DefaultMessageButtons
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	resolved, err := resolveDataDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.DataDir = resolved

	return &cfg, nil
}

func readConfigFile(path string, allowed map[string]bool, source string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	var unknown []string
	for key := range raw {
		if !allowed[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%s has unsupported keys: %s", source, strings.Join(unknown, ", "))
	}

	return raw, nil
}

func mergeRaw(v *viper.Viper, raw map[string]interface{}) {
	for key, value := range raw {
		v.Set(key, value)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("check_interval", 15)
	v.SetDefault("notify_cooldown_hours", 24)
	v.SetDefault("multiplier_confirmations", 2)
	v.SetDefault("notification_types", []string{"trending", "anomaly"})
	v.SetDefault("summary_report_hours", []int{0, 4, 8, 12, 16, 20})
	v.SetDefault("summary_top_n", 3)
	v.SetDefault("silent_init", true)
}

func setupEnvAliases(v *viper.Viper) {
	v.BindEnv("telegram_bot_token", "BOT_TELEGRAM_TOKEN")
	v.BindEnv("data_dir", "BOT_DATA_DIR")
	v.BindEnv("chains", "BOT_CHAINS")
	v.BindEnv("check_interval", "BOT_CHECK_INTERVAL")
	v.BindEnv("notify_cooldown_hours", "BOT_NOTIFY_COOLDOWN_HOURS")
	v.BindEnv("multiplier_confirmations", "BOT_MULTIPLIER_CONFIRMATIONS")
	v.BindEnv("notification_types", "BOT_NOTIFICATION_TYPES")
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeList lowercases, trims and de-duplicates while preserving order.
func normalizeList(items []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

// Validate checks the configuration invariants. It does not touch the
// filesystem; data_dir resolution happens separately in LoadConfig.
func Validate(cfg *Config) error {
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("config missing 'chains'")
	}
	for _, chain := range cfg.Chains {
		if !contains(SupportedChains, chain) {
			return fmt.Errorf("unsupported chain: %s", chain)
		}
	}

	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		return fmt.Errorf("config missing 'telegram_bot_token'")
	}
	if strings.HasPrefix(cfg.TelegramBotToken, "REPLACE_WITH_") {
		return fmt.Errorf("invalid telegram_bot_token: placeholder value detected")
	}

	if cfg.DataDir == "" {
		return fmt.Errorf("config missing 'data_dir'")
	}
	if cfg.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be > 0")
	}
	if cfg.NotifyCooldownHours < 0 {
		return fmt.Errorf("notify_cooldown_hours must be >= 0")
	}
	if cfg.MultiplierConfirmations <= 0 {
		return fmt.Errorf("multiplier_confirmations must be > 0")
	}

	if len(cfg.NotificationTypes) == 0 {
		return fmt.Errorf("notification_types must contain at least one valid type")
	}
	for _, nt := range cfg.NotificationTypes {
		if !contains(SupportedNotificationTypes, nt) {
			return fmt.Errorf("unsupported notification_type: %s", nt)
		}
	}

	if len(cfg.SummaryReportHours) == 0 {
		return fmt.Errorf("summary_report_hours must not be empty")
	}
	for _, hour := range cfg.SummaryReportHours {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("summary_report_hours entry out of range: %d", hour)
		}
	}
	if cfg.SummaryTopN <= 0 {
		return fmt.Errorf("summary_top_n must be > 0")
	}

	for chain := range cfg.ChainAllowlists {
		if !contains(cfg.Chains, chain) {
			return fmt.Errorf("chain_allowlists references unconfigured chain: %s", chain)
		}
	}

	return nil
}

func resolveDataDir(raw string) (string, error) {
	path := raw
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve data_dir: %w", err)
		}
		path = filepath.Join(cwd, path)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create data_dir: %w", err)
	}
	return path, nil
}

// NotificationEnabled reports whether the given kind ("trending"/"anomaly")
// is switched on for this bot.
func (c *Config) NotificationEnabled(kind string) bool {
	return contains(c.NotificationTypes, kind)
}

// AllowlistFor returns the allowlist configured for a chain, empty if none.
func (c *Config) AllowlistFor(chain string) ChainAllowlist {
	if c.ChainAllowlists == nil {
		return ChainAllowlist{}
	}
	return c.ChainAllowlists[chain]
}
