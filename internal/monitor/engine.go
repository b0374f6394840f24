package monitor

// This file contains the notification-decision engine: candidate
// selection, first-alert delivery, multiplier tracking with debounce,
// and narrative retry. All decisions are made against one chat's
// contract store so chats never share cooldowns or baselines.

import (
	"context"
	"fmt"
	"time"

	"trending-alert/internal/config"
	log "trending-alert/internal/infra/log"
	"trending-alert/internal/infra/tz"
	"trending-alert/internal/market"
	"trending-alert/internal/notify"
	"trending-alert/internal/storage"

	"go.uber.org/zap"
)

// minKolHoldPercent is the smallest KOL position that still counts as
// holding. Wallets below it have effectively exited.
const minKolHoldPercent = 0.1

// silentInitChatID keys the sentinel entry written during silent
// startup registration, so it can never collide with a real chat.
const silentInitChatID = -1

// MarketSource provides leaderboard, KOL and narrative data.
type MarketSource interface {
	FetchTrending(ctx context.Context, chain string) ([]market.TrendingToken, error)
	FetchKolHolders(ctx context.Context, chain, mint, pair string) ([]market.KolHolder, error)
	FetchNarrative(ctx context.Context, chain, tokenAddress string) (*market.Story, error)
}

// Sink delivers rendered notifications and reports message ids back.
type Sink interface {
	SendMessage(ctx context.Context, chatID int64, text, tokenAddress, chain string) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption, tokenAddress, chain string) (int, error)
	SendReply(ctx context.Context, chatID int64, replyToMessageID int, text string) (int, error)
}

// Candidate is a leaderboard token picked for notification, together
// with its current KOL holders.
type Candidate struct {
	Token     *market.TrendingToken
	Holders   []market.KolHolder
	IsAnomaly bool
}

// Engine makes per-chat notification decisions from market data. With
// dryRun set, every decision is still evaluated and logged but nothing
// is handed to the sink.
type Engine struct {
	cfg    *config.Config
	source MarketSource
	sink   Sink
	dryRun bool
}

// NewEngine wires the decision engine to its data source and sink.
func NewEngine(cfg *config.Config, source MarketSource, sink Sink) *Engine {
	return &Engine{cfg: cfg, source: source, sink: sink}
}

// ActiveKolHolders drops KOL wallets that hold less than the minimum
// position. The API keeps wallets that already dumped in the list.
func ActiveKolHolders(holders []market.KolHolder) []market.KolHolder {
	var active []market.KolHolder
	for _, kol := range holders {
		if kol.HoldPercent.Float() >= minKolHoldPercent {
			active = append(active, kol)
		}
	}
	return active
}

func (e *Engine) kolHolders(ctx context.Context, chain string, tok *market.TrendingToken) []market.KolHolder {
	holders, err := e.source.FetchKolHolders(ctx, chain, tok.TokenAddress, tok.PairAddress)
	if err != nil {
		log.LogWarn("KOL holders fetch failed",
			zap.String("chain", chain),
			zap.String("token", tok.TokenAddress),
			zap.Error(err))
		return nil
	}
	return ActiveKolHolders(holders)
}

// PickCandidates walks an eligible leaderboard top-down and returns the
// first trend candidate and the first anomaly candidate that still have
// KOL wallets holding. Either may be nil; kinds disabled in config are
// never picked.
func (e *Engine) PickCandidates(ctx context.Context, chain string, eligible []market.TrendingToken) (trend, anomaly *Candidate) {
	wantTrend := e.cfg.NotificationEnabled("trending")
	wantAnomaly := e.cfg.NotificationEnabled("anomaly")

	for i := range eligible {
		trendDone := trend != nil || !wantTrend
		anomalyDone := anomaly != nil || !wantAnomaly
		if trendDone && anomalyDone {
			break
		}

		tok := &eligible[i]
		isAnomaly := IsAnomalyContract(tok)
		if isAnomaly && (anomaly != nil || !wantAnomaly) {
			continue
		}
		if !isAnomaly && (trend != nil || !wantTrend) {
			continue
		}

		holders := e.kolHolders(ctx, chain, tok)
		if len(holders) == 0 {
			log.LogDebug("Candidate skipped, no active KOL holders",
				zap.String("chain", chain),
				zap.String("token", tok.TokenAddress))
			continue
		}

		cand := &Candidate{Token: tok, Holders: holders, IsAnomaly: isAnomaly}
		if isAnomaly {
			anomaly = cand
		} else {
			trend = cand
		}
	}

	return trend, anomaly
}

// InitializeStorage registers the current allowlisted leaderboard
// without notifying. The head entry gets a sentinel message id so a
// restart does not re-announce whatever is already on top.
func (e *Engine) InitializeStorage(store *storage.ContractStore, tracked []market.TrendingToken) {
	for i := range tracked {
		tok := &tracked[i]
		if store.IsNewContract(tok.TokenAddress) {
			store.AddContract(tok.TokenAddress, tok.Price(), tok.MarketCap(), tok.Name, tok.Symbol)
		}
	}

	if len(tracked) == 0 {
		return
	}
	head := &tracked[0]
	if rec, ok := store.Contract(head.TokenAddress); ok && !rec.HasAnyMessageID() {
		store.SetTelegramMessageID(head.TokenAddress, silentInitChatID, storage.SentinelMessageID)
		log.LogInfo("Head contract registered silently",
			zap.String("token", head.TokenAddress),
			zap.String("symbol", head.Symbol))
	}
}

// isOnCooldown reports whether the chat got an alert for this contract
// within the configured cooldown window.
func (e *Engine) isOnCooldown(store *storage.ContractStore, tokenAddress string) bool {
	if e.cfg.NotifyCooldownHours <= 0 {
		return false
	}
	last, ok := store.LastNotifyTime(tokenAddress)
	if !ok {
		return false
	}
	return tz.Now().Sub(last) < time.Duration(e.cfg.NotifyCooldownHours)*time.Hour
}

// fetchNarrative stores the token's story when the service has one and
// marks the contract for retry when it does not. The returned story is
// nil on miss.
func (e *Engine) fetchNarrative(ctx context.Context, store *storage.ContractStore, chain, tokenAddress string) *market.Story {
	story, err := e.source.FetchNarrative(ctx, chain, tokenAddress)
	if err != nil {
		log.LogWarn("Narrative fetch failed",
			zap.String("chain", chain),
			zap.String("token", tokenAddress),
			zap.Error(err))
	}
	if story == nil {
		store.MarkNarrativePending(tokenAddress)
		return nil
	}
	store.SetNarrative(tokenAddress, story)
	return story
}

// SendCandidateNotification delivers the first alert for a candidate to
// one chat. Returns true when a message went out. Contracts that were
// already announced (or silently registered) are skipped; contracts on
// cooldown are skipped; a resurfacing contract that was never announced
// gets its baseline reset to current prices first.
func (e *Engine) SendCandidateNotification(ctx context.Context, store *storage.ContractStore, chatID int64, chain string, cand *Candidate) bool {
	tok := cand.Token

	if store.IsNewContract(tok.TokenAddress) {
		store.AddContract(tok.TokenAddress, tok.Price(), tok.MarketCap(), tok.Name, tok.Symbol)
	} else {
		rec, _ := store.Contract(tok.TokenAddress)
		if rec.HasAnyMessageID() {
			log.LogDebug("Contract already announced",
				zap.String("token", tok.TokenAddress),
				zap.Int64("chat_id", chatID))
			return false
		}
		if e.isOnCooldown(store, tok.TokenAddress) {
			log.LogDebug("Contract on notify cooldown",
				zap.String("token", tok.TokenAddress),
				zap.Int64("chat_id", chatID))
			return false
		}
		// Known but never announced: restart the multiplier baseline
		// from today's prices.
		store.RebaselineInitialPrice(tok.TokenAddress, tok.Price(), tok.MarketCap())
	}

	if e.dryRun {
		log.LogInfo("Dry run, notification suppressed",
			zap.String("token", tok.TokenAddress),
			zap.String("symbol", tok.Symbol),
			zap.Int64("chat_id", chatID))
		return false
	}

	story := store.Narrative(tok.TokenAddress)
	if story == nil {
		story = e.fetchNarrative(ctx, store, chain, tok.TokenAddress)
	}

	text := notify.FormatInitialNotification(tok, chain, cand.Holders, cand.IsAnomaly, story)

	var messageID int
	var err error
	if tok.ImageURL != "" {
		messageID, err = e.sink.SendPhoto(ctx, chatID, tok.ImageURL, text, tok.TokenAddress, chain)
		if err != nil {
			log.LogWarn("Photo notification failed, falling back to text",
				zap.String("token", tok.TokenAddress),
				zap.Int64("chat_id", chatID),
				zap.Error(err))
			messageID, err = e.sink.SendMessage(ctx, chatID, text, tok.TokenAddress, chain)
		}
	} else {
		messageID, err = e.sink.SendMessage(ctx, chatID, text, tok.TokenAddress, chain)
	}
	if err != nil {
		log.LogError("Failed to deliver candidate notification",
			zap.String("token", tok.TokenAddress),
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		return false
	}

	store.SetTelegramMessageID(tok.TokenAddress, chatID, messageID)
	store.TouchLastNotifyTime(tok.TokenAddress)

	kind := "trend"
	if cand.IsAnomaly {
		kind = "anomaly"
	}
	log.LogSuccess(fmt.Sprintf("Sent %s notification", kind),
		zap.String("chain", chain),
		zap.String("symbol", tok.Symbol),
		zap.String("token", tok.TokenAddress),
		zap.Int64("chat_id", chatID),
		zap.Int("message_id", messageID))
	return true
}

// CheckMultipliers walks the tracked leaderboard top-down and fires a
// reply alert when a contract's price crosses a new integer multiple
// of its baseline. A crossing must hold for the configured number of
// consecutive cycles before it fires; a retrace below 2x (or back
// under an already-notified multiple) resets the pending confirmation.
func (e *Engine) CheckMultipliers(ctx context.Context, store *storage.ContractStore, chatID int64, chain string, tracked []market.TrendingToken) {
	for i := range tracked {
		tok := &tracked[i]
		addr := tok.TokenAddress
		if addr == "" || tok.Price() <= 0 {
			continue
		}
		if store.IsNewContract(addr) {
			continue
		}

		messageID, ok := store.TelegramMessageID(addr, chatID)
		if !ok || messageID == storage.SentinelMessageID {
			continue
		}

		rec, ok := store.Contract(addr)
		if !ok || rec.InitialPrice <= 0 {
			continue
		}

		currentPrice := tok.Price()
		multiplierInt := int(currentPrice / rec.InitialPrice)

		if multiplierInt < 2 {
			store.ClearPendingMultiplier(addr)
			continue
		}
		if multiplierInt <= store.MaxNotifiedIntegerMultiplier(addr) {
			store.ClearPendingMultiplier(addr)
			continue
		}

		count := 1
		if pending, ok := store.PendingMultiplier(addr); ok && pending.MultiplierInt == multiplierInt {
			count = pending.Count + 1
		}
		if count < e.cfg.MultiplierConfirmations {
			store.SetPendingMultiplier(addr, multiplierInt, count)
			log.LogDebug("Multiplier awaiting confirmation",
				zap.String("token", addr),
				zap.Int("multiplier", multiplierInt),
				zap.Int("confirmations", count))
			continue
		}
		store.ClearPendingMultiplier(addr)

		multiplier := currentPrice / rec.InitialPrice
		if e.dryRun {
			store.AppendNotifiedMultiplier(addr, multiplier)
			log.LogInfo("Dry run, multiplier alert suppressed",
				zap.String("token", addr),
				zap.Float64("multiplier", multiplier),
				zap.Int64("chat_id", chatID))
			continue
		}
		holders := e.kolHolders(ctx, chain, tok)
		text := notify.FormatMultiplierNotification(tok, rec.InitialPrice, multiplier, rec.InitialMarketCap, rec.PushTime, chain, holders)

		if _, err := e.sink.SendReply(ctx, chatID, messageID, text); err != nil {
			log.LogError("Failed to deliver multiplier notification",
				zap.String("token", addr),
				zap.Int64("chat_id", chatID),
				zap.Error(err))
			continue
		}

		store.AppendNotifiedMultiplier(addr, multiplier)
		log.LogSuccess("Sent multiplier notification",
			zap.String("chain", chain),
			zap.String("symbol", tok.Symbol),
			zap.String("token", addr),
			zap.Float64("multiplier", multiplier),
			zap.Int64("chat_id", chatID))

		if store.Narrative(addr) == nil {
			e.fetchNarrative(ctx, store, chain, addr)
		}
	}
}

// CheckPendingNarratives retries the story service for contracts that
// had no narrative at alert time and threads the result under the
// original message once it appears.
func (e *Engine) CheckPendingNarratives(ctx context.Context, store *storage.ContractStore, chatID int64, chain string) {
	if e.dryRun {
		return
	}
	for _, addr := range store.PendingNarrativeContracts() {
		story, err := e.source.FetchNarrative(ctx, chain, addr)
		if err != nil {
			log.LogWarn("Pending narrative fetch failed",
				zap.String("chain", chain),
				zap.String("token", addr),
				zap.Error(err))
			continue
		}
		if story == nil {
			continue
		}

		store.SetNarrative(addr, story)

		rec, ok := store.Contract(addr)
		if !ok {
			continue
		}
		messageID, ok := store.TelegramMessageID(addr, chatID)
		if !ok || messageID == storage.SentinelMessageID {
			continue
		}

		text := notify.FormatNarrativeNotification(addr, rec.Symbol, chain, story)
		if _, err := e.sink.SendReply(ctx, chatID, messageID, text); err != nil {
			log.LogError("Failed to deliver narrative notification",
				zap.String("token", addr),
				zap.Int64("chat_id", chatID),
				zap.Error(err))
			continue
		}

		log.LogSuccess("Sent narrative notification",
			zap.String("chain", chain),
			zap.String("token", addr),
			zap.Int64("chat_id", chatID))
	}
}
