package monitor

// Package monitor contains the trend-detection engine
// This file contains the eligibility filters applied to leaderboard
// rows before any notification decision is made

import (
	"strings"

	"trending-alert/internal/config"
	"trending-alert/internal/infra/tz"
	"trending-alert/internal/market"
)

// maxHolderPercent is the ceiling for each holder-concentration bucket
// (new wallets, insiders, bundlers, dev). Above it the token is treated
// as too concentrated to alert on.
const maxHolderPercent = 30

// PassesBaseFilters reports whether a leaderboard row is safe enough to
// consider at all. Tokens without a launchpad, honeypots, and tokens
// with any concentration bucket above the ceiling are rejected.
func PassesBaseFilters(tok *market.TrendingToken) bool {
	if strings.TrimSpace(tok.LaunchFrom) == "" {
		return false
	}

	audit := tok.AuditInfo
	if audit.NewHp.Float() > maxHolderPercent ||
		audit.InsiderHp.Float() > maxHolderPercent ||
		audit.BundleHp.Float() > maxHolderPercent ||
		audit.DevHp.Float() > maxHolderPercent {
		return false
	}

	return !tok.Security.HoneyPot.Bool()
}

// MatchesAllowlist reports whether a token passes the per-chain
// launchpad/DEX allowlist. Blank entries are ignored; an allowlist
// with no remaining entries keeps everything; a non-empty one keeps
// tokens matching either list.
func MatchesAllowlist(tok *market.TrendingToken, allowlist config.ChainAllowlist) bool {
	launchAllow := nonEmptyValues(allowlist.LaunchFrom)
	dexAllow := nonEmptyValues(allowlist.DexName)

	if len(launchAllow) == 0 && len(dexAllow) == 0 {
		return true
	}
	for _, launchFrom := range launchAllow {
		if strings.EqualFold(launchFrom, tok.LaunchFrom) {
			return true
		}
	}
	for _, dexName := range dexAllow {
		if strings.EqualFold(dexName, tok.DexName) {
			return true
		}
	}
	return false
}

func nonEmptyValues(values []string) []string {
	var kept []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			kept = append(kept, v)
		}
	}
	return kept
}

// IsAnomalyContract reports whether a trending token is an older one
// resurfacing rather than a fresh launch: created before today's start,
// or with no usable creation timestamp at all.
func IsAnomalyContract(tok *market.TrendingToken) bool {
	createdAt, ok := tok.CreatedAt()
	if !ok {
		return true
	}
	return createdAt.Before(tz.TodayStart())
}
