package notify

// Package notify contains the Telegram side of the bot
// This file contains message formatting - builds the HTML bodies of
// trend, anomaly, multiplier, narrative and summary notifications

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"trending-alert/internal/infra/tz"
	"trending-alert/internal/market"
)

var summaryRankEmojis = []string{"🥇", "🥈", "🥉"}

// FormatMarketCap renders a USD value the compact way the site shows
// it: $43.30M, $320.00K, $12.00.
func FormatMarketCap(value float64) string {
	switch {
	case value >= 1_000_000:
		return fmt.Sprintf("$%.2fM", value/1_000_000)
	case value >= 1_000:
		return fmt.Sprintf("$%.2fK", value/1_000)
	default:
		return fmt.Sprintf("$%.2f", value)
	}
}

// FormatTimeAgo renders how long ago t was, relative to now.
func FormatTimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	diff := now.Sub(t)
	seconds := int(diff.Seconds())
	switch {
	case seconds < 60:
		return fmt.Sprintf("%d sec ago", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%d min ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%d hour ago", seconds/3600)
	default:
		return fmt.Sprintf("%d day ago", seconds/86400)
	}
}

func chainPrefix(chain string) string {
	if chain == "" {
		return ""
	}
	return fmt.Sprintf("[%s] ", strings.ToUpper(chain))
}

var linkLabels = map[string]string{
	"x":        "🐦 Twitter",
	"tg":       "📱 Telegram",
	"telegram": "📱 Telegram",
	"web":      "🌐 Website",
	"discord":  "💬 Discord",
}

func writeLinks(b *strings.Builder, links map[string]string) {
	keys := make([]string, 0, len(links))
	for key, url := range links {
		if key != "" && url != "" {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return
	}
	sort.Strings(keys)

	b.WriteString("\n\n📱 Links:")
	for _, key := range keys {
		label, ok := linkLabels[key]
		if !ok {
			label = "🔗 " + strings.ToUpper(key[:1]) + key[1:]
		}
		fmt.Fprintf(b, "\n%s: %s", label, links[key])
	}
}

func writeKolHolders(b *strings.Builder, holders []market.KolHolder) {
	if len(holders) == 0 {
		return
	}

	fmt.Fprintf(b, "\n\n👑 KOL Holders (%d):", len(holders))
	shown := holders
	if len(shown) > 5 {
		shown = shown[:5]
	}
	for _, kol := range shown {
		name := kol.Name
		if name == "" {
			name = shortAddress(kol.Address)
		}
		fmt.Fprintf(b, "\n  • %s: %.2f%% (%s)",
			html.EscapeString(name), kol.HoldPercent.Float(), FormatMarketCap(kol.HoldValueUSD.Float()))
	}
	if len(holders) > len(shown) {
		fmt.Fprintf(b, "\n  … and %d more", len(holders)-len(shown))
	}
}

func writeNarrative(b *strings.Builder, story *market.Story) {
	if story.Empty() {
		return
	}

	b.WriteString("\n\n📖 Narrative:")
	if story.NarrativeType != "" {
		fmt.Fprintf(b, "\n🏷 Type: %s", html.EscapeString(story.NarrativeType))
	}
	if story.Rating.Score > 0 {
		fmt.Fprintf(b, "\n⭐ Rating: %d/5", story.Rating.Score)
	}
	if text := story.Background.Origin.Text; text != "" {
		fmt.Fprintf(b, "\n💬 %s", html.EscapeString(truncate(text, 200)))
	}
}

func shortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:8] + "..." + address[len(address)-4:]
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// FormatInitialNotification builds the first notification for a token
// that reached the top of the leaderboard. isAnomaly switches the
// header: an anomaly is an older token resurfacing, not a fresh launch.
func FormatInitialNotification(tok *market.TrendingToken, chain string, holders []market.KolHolder, isAnomaly bool, story *market.Story) string {
	header := "🔥 Trending Alert 🔥"
	if isAnomaly {
		header = "🚨 Anomaly Alert 🚨"
	}

	created := "N/A"
	if createdAt, ok := tok.CreatedAt(); ok {
		created = FormatTimeAgo(createdAt, tz.Now())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n\n", chainPrefix(chain), header)
	fmt.Fprintf(&b, "💎 %s (%s)\n", html.EscapeString(tok.Symbol), html.EscapeString(tok.Name))
	fmt.Fprintf(&b, "📝 CA: <code>%s</code>\n\n", tok.TokenAddress)
	fmt.Fprintf(&b, "💰 Price: $%.8f\n", tok.Price())
	fmt.Fprintf(&b, "📊 Market Cap: %s\n", FormatMarketCap(tok.MarketCap()))
	fmt.Fprintf(&b, "👥 Holders: %d\n", tok.Holders)
	fmt.Fprintf(&b, "📈 24h Change: %.2f%%\n\n", tok.PriceChange24H.Float())
	fmt.Fprintf(&b, "🔒 Security:\n")
	fmt.Fprintf(&b, "📊 Top Holder: %.2f%%\n\n", tok.Security.TopHolder.Percent())
	fmt.Fprintf(&b, "⏰ Created: %s\n", created)
	fmt.Fprintf(&b, "⏰ Pushed: %s\n", tz.FormatNow())
	fmt.Fprintf(&b, "🏪 DEX: %s\n", html.EscapeString(tok.DexName))
	fmt.Fprintf(&b, "🎯 Launch From: %s", html.EscapeString(tok.LaunchFrom))

	writeKolHolders(&b, holders)
	writeNarrative(&b, story)
	writeLinks(&b, tok.Links)

	return strings.TrimSpace(b.String())
}

// FormatMultiplierNotification builds the price-multiple alert sent as
// a reply to the initial notification.
func FormatMultiplierNotification(tok *market.TrendingToken, initialPrice, multiplier, initialMarketCap float64, pushTime, chain string, holders []market.KolHolder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s🚀 Multiplier Alert %.2fX 🚀\n\n", chainPrefix(chain), multiplier)
	fmt.Fprintf(&b, "💎 %s\n", html.EscapeString(tok.Symbol))
	fmt.Fprintf(&b, "📝 CA: <code>%s</code>\n\n", tok.TokenAddress)
	fmt.Fprintf(&b, "💰 Initial Price: $%.8f\n", initialPrice)
	fmt.Fprintf(&b, "💵 Current Price: $%.8f\n", tok.Price())
	fmt.Fprintf(&b, "📈 Gain: %.2fX\n\n", multiplier)
	fmt.Fprintf(&b, "📊 Market Cap at Push: %s\n", FormatMarketCap(initialMarketCap))
	fmt.Fprintf(&b, "💎 Current Market Cap: %s\n\n", FormatMarketCap(tok.MarketCap()))
	fmt.Fprintf(&b, "⏰ Pushed: %s\n", pushTime)
	fmt.Fprintf(&b, "⏰ Now: %s", tz.FormatNow())

	writeKolHolders(&b, holders)

	return strings.TrimSpace(b.String())
}

// FormatNarrativeNotification builds the narrative update sent as a
// reply once the story service has data for a tracked token.
func FormatNarrativeNotification(tokenAddress, symbol, chain string, story *market.Story) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s📖 Narrative Update 📖\n\n", chainPrefix(chain))
	fmt.Fprintf(&b, "💎 %s\n", html.EscapeString(symbol))
	fmt.Fprintf(&b, "📝 CA: <code>%s</code>", tokenAddress)

	if story.NarrativeType != "" {
		fmt.Fprintf(&b, "\n\n🏷 Type: %s", html.EscapeString(story.NarrativeType))
	}
	if story.Rating.Score > 0 {
		fmt.Fprintf(&b, "\n⭐ Rating: %d/5", story.Rating.Score)
		if story.Rating.Reason != "" {
			fmt.Fprintf(&b, "\n💬 %s", html.EscapeString(truncate(story.Rating.Reason, 200)))
		}
	}
	if text := story.Background.Origin.Text; text != "" {
		fmt.Fprintf(&b, "\n\n📜 Origin:\n%s", html.EscapeString(truncate(text, 400)))
	}

	return strings.TrimSpace(b.String())
}

// SummaryItem is one contract row of the periodic summary report.
type SummaryItem struct {
	TokenAddress     string
	Symbol           string
	Name             string
	Multiplier       float64
	InitialPrice     float64
	InitialMarketCap float64
	PushTime         string
}

// ChainStats aggregates one chain's results for the summary report.
type ChainStats struct {
	TrendCount          int
	MultiplierContracts int
	WinCount            int
	Count2x             int
	Count5x             int
	Count10xPlus        int
	TopContracts        []SummaryItem
}

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// FormatSummaryReport builds the periodic per-chat report covering
// today's trend notifications and their multiplier outcomes.
func FormatSummaryReport(stats map[string]ChainStats, nextReportTime string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 4-Hour Trend Summary 🏆\n\n")
	fmt.Fprintf(&b, "📅 Report Time: %s\n", tz.Now().Format("2006-01-02 15:04"))

	chains := make([]string, 0, len(stats))
	for chain := range stats {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		s := stats[chain]

		fmt.Fprintf(&b, "\n━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(&b, "📊 %s Chain\n", strings.ToUpper(chain))
		fmt.Fprintf(&b, "━━━━━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(&b, "Trend notifications today: %d\n", s.TrendCount)
		fmt.Fprintf(&b, "With multiplier alerts: %d\n\n", s.MultiplierContracts)
		fmt.Fprintf(&b, "📈 Multiplier Distribution:\n")
		fmt.Fprintf(&b, "  • 2X: %d (%.1f%%)\n", s.Count2x, pct(s.Count2x, s.TrendCount))
		fmt.Fprintf(&b, "  • 5X: %d (%.1f%%)\n", s.Count5x, pct(s.Count5x, s.TrendCount))
		fmt.Fprintf(&b, "  • ≥10X: %d (%.1f%%)\n", s.Count10xPlus, pct(s.Count10xPlus, s.TrendCount))

		if len(s.TopContracts) == 0 {
			b.WriteString("No multiplier alerts yet\n")
			continue
		}

		fmt.Fprintf(&b, "\n🎯 Top %d by Multiplier:\n", len(s.TopContracts))
		for idx, item := range s.TopContracts {
			rank := fmt.Sprintf("%d.", idx+1)
			if idx < len(summaryRankEmojis) {
				rank = summaryRankEmojis[idx]
			}
			fmt.Fprintf(&b, "\n%s %s (%s)\n", rank, html.EscapeString(item.Symbol), html.EscapeString(item.Name))
			fmt.Fprintf(&b, "  CA: <code>%s</code>\n", item.TokenAddress)
			fmt.Fprintf(&b, "  Multiplier: %.2fX\n", item.Multiplier)
			fmt.Fprintf(&b, "  First Alert Price: $%.8f\n", item.InitialPrice)
			fmt.Fprintf(&b, "  Peak Alert Price: $%.8f\n", item.InitialPrice*item.Multiplier)
			fmt.Fprintf(&b, "  Peak Alert Market Cap: %s\n", FormatMarketCap(item.InitialMarketCap*item.Multiplier))
			fmt.Fprintf(&b, "  Pushed: %s\n", item.PushTime)
		}
	}

	fmt.Fprintf(&b, "\n⏰ Next Summary: %s", nextReportTime)

	return strings.TrimSpace(b.String())
}

// FormatStartupMessage is the announcement broadcast when the monitor
// comes up.
func FormatStartupMessage() string {
	return "✅ Bot started, this chat will receive trend and anomaly alerts"
}
