package monitor

// This file contains the periodic summary schedule and the per-chain
// statistics behind the report. Reports fire at minute 59 of the hour
// before each configured boundary, so "the 16:00 summary" lands at
// 15:59 and covers the civil day so far.

import (
	"sort"
	"time"

	"trending-alert/internal/infra/tz"
	"trending-alert/internal/market"
	"trending-alert/internal/notify"
	"trending-alert/internal/storage"
)

// InitialReportHour is the last-report marker before any report has
// fired.
const InitialReportHour = -1

// ShouldSendSummaryReport decides whether a summary is due at now.
// lastReportHour is the hour a report last fired in, to keep one
// boundary from firing on every poll within its minute. When due, the
// second return value is the new marker to store.
func ShouldSendSummaryReport(now time.Time, reportHours []int, lastReportHour int) (bool, int) {
	if now.Minute() != 59 {
		return false, lastReportHour
	}
	hour := now.Hour()
	if hour == lastReportHour {
		return false, lastReportHour
	}

	boundary := (hour + 1) % 24
	for _, h := range reportHours {
		if h == boundary {
			return true, hour
		}
	}
	return false, lastReportHour
}

// NextReportTimeString renders the next summary boundary after now as
// "2006-01-02 15:04".
func NextReportTimeString(now time.Time, reportHours []int) string {
	if len(reportHours) == 0 {
		return "N/A"
	}

	hours := append([]int(nil), reportHours...)
	sort.Ints(hours)

	day := now
	hour := -1
	for _, h := range hours {
		if h > now.Hour() {
			hour = h
			break
		}
	}
	if hour == -1 {
		hour = hours[0]
		day = day.AddDate(0, 0, 1)
	}

	next := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, tz.Zone)
	return next.Format("2006-01-02 15:04")
}

// BuildChainStats aggregates today's notified contracts for one chain
// and chat. latest supplies fresh token data for the top list; stored
// fields fill in when a contract has dropped off the leaderboard.
func BuildChainStats(store *storage.ContractStore, latest map[string]*market.TrendingToken, topN int) notify.ChainStats {
	todays := store.TodayTrendContracts()

	stats := notify.ChainStats{TrendCount: len(todays)}

	var withMultiplier []storage.TrendContract
	for _, tc := range todays {
		if len(tc.Record.NotifiedMultipliers) == 0 {
			continue
		}
		withMultiplier = append(withMultiplier, tc)

		switch m := int(tc.Record.MaxNotifiedMultiplier()); {
		case m >= 10:
			stats.Count10xPlus++
			stats.WinCount++
		case m >= 5:
			stats.Count5x++
		case m >= 2:
			stats.Count2x++
		}
	}
	stats.MultiplierContracts = len(withMultiplier)

	sort.Slice(withMultiplier, func(i, j int) bool {
		return withMultiplier[i].Record.MaxNotifiedMultiplier() > withMultiplier[j].Record.MaxNotifiedMultiplier()
	})
	if topN > 0 && len(withMultiplier) > topN {
		withMultiplier = withMultiplier[:topN]
	}

	for _, tc := range withMultiplier {
		item := notify.SummaryItem{
			TokenAddress:     tc.TokenAddress,
			Symbol:           tc.Record.Symbol,
			Name:             tc.Record.Name,
			Multiplier:       tc.Record.MaxNotifiedMultiplier(),
			InitialPrice:     tc.Record.InitialPrice,
			InitialMarketCap: tc.Record.InitialMarketCap,
			PushTime:         tc.Record.PushTime,
		}
		if tok, ok := latest[tc.TokenAddress]; ok {
			if item.Symbol == "" {
				item.Symbol = tok.Symbol
			}
			if item.Name == "" {
				item.Name = tok.Name
			}
		}
		if item.Symbol == "" {
			item.Symbol = "Unknown"
		}
		stats.TopContracts = append(stats.TopContracts, item)
	}

	return stats
}
