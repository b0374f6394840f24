package monitor

// This file contains the polling loop: fetch each chain's leaderboard,
// filter it, run the decision engine against every registered chat,
// then handle summaries and daily cleanup. One failed cycle never kills
// the loop.

import (
	"context"
	"fmt"
	"os"
	"time"

	"trending-alert/internal/config"
	log "trending-alert/internal/infra/log"
	"trending-alert/internal/infra/tz"
	"trending-alert/internal/market"
	"trending-alert/internal/notify"
	"trending-alert/internal/storage"

	"go.uber.org/zap"
)

// cleanupDaysToKeep is how many days of contract history survive the
// nightly cleanup.
const cleanupDaysToKeep = 7

// Notifier is the delivery side the loop needs: per-chat sends plus a
// broadcast to every active chat.
type Notifier interface {
	Sink
	Broadcast(ctx context.Context, text string)
}

// Loop drives the monitor: one engine, one chat registry, one contract
// store per chain and chat.
type Loop struct {
	cfg      *config.Config
	source   MarketSource
	notifier Notifier
	engine   *Engine
	chats    *storage.ChatRegistry

	stores map[string]*storage.ContractStore

	lastReportHour int
	lastCleanupDay int
	initialized    bool
	dryRun         bool
}

// NewLoop assembles the polling loop.
func NewLoop(cfg *config.Config, source MarketSource, notifier Notifier, chats *storage.ChatRegistry) *Loop {
	return &Loop{
		cfg:            cfg,
		source:         source,
		notifier:       notifier,
		engine:         NewEngine(cfg, source, notifier),
		chats:          chats,
		stores:         make(map[string]*storage.ContractStore),
		lastReportHour: InitialReportHour,
		lastCleanupDay: tz.Now().Day(),
	}
}

// storeFor lazily opens the contract store backing one chain and chat.
func (l *Loop) storeFor(chain string, chatID int64) *storage.ContractStore {
	key := fmt.Sprintf("%s/%d", chain, chatID)
	if store, ok := l.stores[key]; ok {
		return store
	}
	store := storage.NewContractStore(storage.ContractsFilePath(l.cfg.DataDir, chain, chatID))
	l.stores[key] = store
	return store
}

// Run polls until ctx is cancelled. With dryRun it performs exactly one
// cycle and returns; decisions are evaluated and logged but no message
// leaves the process.
func (l *Loop) Run(ctx context.Context, dryRun bool) error {
	l.dryRun = dryRun
	l.engine.dryRun = dryRun
	interval := time.Duration(l.cfg.CheckInterval) * time.Second

	log.LogInfo("Monitor loop starting",
		zap.Strings("chains", l.cfg.Chains),
		zap.Duration("interval", interval),
		zap.Bool("dry_run", dryRun))

	if !dryRun {
		l.notifier.Broadcast(ctx, notify.FormatStartupMessage())
	}

	for {
		if err := l.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.LogError("Monitor cycle failed", zap.Error(err))
		}

		if dryRun {
			log.LogInfo("Dry run complete")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// trackedTokens fetches one chain's leaderboard and applies the chain
// allowlist plus basic sanity checks. Base filters stay out of here:
// they gate candidate picking only, so a tracked contract keeps its
// multiplier watch when its audit numbers later drift.
func (l *Loop) trackedTokens(ctx context.Context, chain string) ([]market.TrendingToken, error) {
	tokens, err := l.source.FetchTrending(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("fetch trending for %s: %w", chain, err)
	}

	allowlist := l.cfg.AllowlistFor(chain)
	var tracked []market.TrendingToken
	for i := range tokens {
		tok := &tokens[i]
		if tok.TokenAddress == "" || tok.Price() <= 0 {
			continue
		}
		if !MatchesAllowlist(tok, allowlist) {
			continue
		}
		tracked = append(tracked, *tok)
	}

	log.LogDebug("Leaderboard filtered",
		zap.String("chain", chain),
		zap.Int("total", len(tokens)),
		zap.Int("tracked", len(tracked)))
	return tracked, nil
}

// candidateTokens narrows an allowlisted leaderboard to the rows safe
// enough to announce.
func candidateTokens(tracked []market.TrendingToken) []market.TrendingToken {
	var candidates []market.TrendingToken
	for i := range tracked {
		if PassesBaseFilters(&tracked[i]) {
			candidates = append(candidates, tracked[i])
		}
	}
	return candidates
}

func (l *Loop) runCycle(ctx context.Context) error {
	chats := l.chats.ActiveChats()
	if len(chats) == 0 {
		log.LogDebug("No active chats, skipping cycle")
		return nil
	}

	now := tz.Now()
	l.maybeCleanup(now)

	latest := make(map[string]map[string]*market.TrendingToken, len(l.cfg.Chains))

	for _, chain := range l.cfg.Chains {
		tracked, err := l.trackedTokens(ctx, chain)
		if err != nil {
			log.LogError("Skipping chain this cycle", zap.String("chain", chain), zap.Error(err))
			continue
		}

		byAddress := make(map[string]*market.TrendingToken, len(tracked))
		for i := range tracked {
			byAddress[tracked[i].TokenAddress] = &tracked[i]
		}
		latest[chain] = byAddress

		// First pass after startup registers the current leaderboard
		// without announcing it.
		if !l.initialized && l.cfg.SilentInit {
			for _, chat := range chats {
				l.engine.InitializeStorage(l.storeFor(chain, chat.ChatID), tracked)
			}
			continue
		}

		trend, anomaly := l.engine.PickCandidates(ctx, chain, candidateTokens(tracked))

		for _, chat := range chats {
			store := l.storeFor(chain, chat.ChatID)
			if trend != nil {
				l.engine.SendCandidateNotification(ctx, store, chat.ChatID, chain, trend)
			}
			if anomaly != nil {
				l.engine.SendCandidateNotification(ctx, store, chat.ChatID, chain, anomaly)
			}
			l.engine.CheckMultipliers(ctx, store, chat.ChatID, chain, tracked)
			l.engine.CheckPendingNarratives(ctx, store, chat.ChatID, chain)
		}
	}
	l.initialized = true

	l.maybeSendSummaries(ctx, now, chats, latest)
	return ctx.Err()
}

// maybeCleanup prunes old contract history once per day, shortly after
// midnight.
func (l *Loop) maybeCleanup(now time.Time) {
	if now.Day() == l.lastCleanupDay {
		return
	}
	if now.Hour() != 0 || now.Minute() < 5 {
		return
	}
	l.lastCleanupDay = now.Day()

	removed := 0
	for _, store := range l.stores {
		removed += store.CleanupOldData(cleanupDaysToKeep)
	}
	log.LogInfo("Daily cleanup done",
		zap.Int("removed", removed),
		zap.Int("days_kept", cleanupDaysToKeep))
}

// maybeSendSummaries delivers the periodic report when a boundary is
// due. Each chat gets its own report built from its own stores.
func (l *Loop) maybeSendSummaries(ctx context.Context, now time.Time, chats []storage.ChatRecord, latest map[string]map[string]*market.TrendingToken) {
	due, marker := ShouldSendSummaryReport(now, l.cfg.SummaryReportHours, l.lastReportHour)
	if !due {
		return
	}
	l.lastReportHour = marker

	nextReport := NextReportTimeString(now, l.cfg.SummaryReportHours)

	for _, chat := range chats {
		stats := make(map[string]notify.ChainStats, len(l.cfg.Chains))
		for _, chain := range l.cfg.Chains {
			stats[chain] = BuildChainStats(l.storeFor(chain, chat.ChatID), latest[chain], l.cfg.SummaryTopN)
		}

		text := notify.FormatSummaryReport(stats, nextReport)
		if l.dryRun {
			log.LogInfo("Dry run, summary report suppressed", zap.Int64("chat_id", chat.ChatID))
			continue
		}
		if _, err := l.notifier.SendMessage(ctx, chat.ChatID, text, "", ""); err != nil {
			log.LogError("Failed to deliver summary report",
				zap.Int64("chat_id", chat.ChatID),
				zap.Error(err))
			continue
		}
		log.LogSuccess("Sent summary report", zap.Int64("chat_id", chat.ChatID))
	}
}

// ClearStorage removes the contract files of the given chains for all
// registered chats. Used by the --clear-storage flag before a fresh
// start.
func ClearStorage(cfg *config.Config, chats *storage.ChatRegistry, chains []string) int {
	removed := 0
	for _, chain := range chains {
		for _, chat := range chats.ActiveChats() {
			path := storage.ContractsFilePath(cfg.DataDir, chain, chat.ChatID)
			if err := removeIfExists(path); err != nil {
				log.LogWarn("Failed to remove contract store",
					zap.String("file", path),
					zap.Error(err))
				continue
			}
			removed++
		}
	}
	log.LogInfo("Contract storage cleared", zap.Int("files", removed))
	return removed
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
