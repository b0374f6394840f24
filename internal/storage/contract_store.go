package storage

// Package storage contains the on-disk state of the bot
// This file contains the per-(chain,chat) contract store - tracked
// tokens with their baseline price, notification history and
// multiplier debounce state
// State is one JSON file per chain and chat, written atomically

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trending-alert/internal/infra/log"
	"trending-alert/internal/infra/tz"
	"trending-alert/internal/market"

	"go.uber.org/zap"
)

// SentinelMessageID marks a contract that was registered during silent
// initialization, before any real notification went out.
const SentinelMessageID = -1

// PendingMultiplier is the debounce state of a multiplier level that
// has been observed but not yet confirmed.
type PendingMultiplier struct {
	MultiplierInt int `json:"multiplier_int"`
	Count         int `json:"count"`
}

// ContractRecord is everything the bot remembers about one tracked
// token. TelegramMessageIDs maps chat ID (as a string, the JSON key)
// to the message id of the initial notification in that chat.
type ContractRecord struct {
	InitialPrice        float64            `json:"initial_price"`
	InitialMarketCap    float64            `json:"initial_market_cap"`
	PushTime            string             `json:"push_time"`
	NotifiedMultipliers []float64          `json:"notified_multipliers"`
	PendingMultiplier   *PendingMultiplier `json:"pending_multiplier,omitempty"`
	TelegramMessageIDs  map[string]int     `json:"telegram_message_ids"`
	LastNotifyTime      string             `json:"last_notify_time,omitempty"`
	Name                string             `json:"name"`
	Symbol              string             `json:"symbol"`
	Narrative           *market.Story      `json:"narrative,omitempty"`
	NarrativePending    bool               `json:"narrative_pending,omitempty"`
}

// HasAnyMessageID reports whether the record carries any message id,
// sentinel included.
func (r *ContractRecord) HasAnyMessageID() bool {
	return len(r.TelegramMessageIDs) > 0
}

// HasRealMessageID reports whether at least one chat received an
// actual notification for this contract.
func (r *ContractRecord) HasRealMessageID() bool {
	for _, id := range r.TelegramMessageIDs {
		if id != SentinelMessageID {
			return true
		}
	}
	return false
}

// MaxNotifiedMultiplier returns the highest multiplier ever announced,
// 0 when none.
func (r *ContractRecord) MaxNotifiedMultiplier() float64 {
	max := 0.0
	for _, m := range r.NotifiedMultipliers {
		if m > max {
			max = m
		}
	}
	return max
}

// ContractsFilePath builds the storage file name for one chain and
// chat pair.
func ContractsFilePath(dataDir, chain string, chatID int64) string {
	return filepath.Join(dataDir, fmt.Sprintf("contracts_data_%s_%d.json", chain, chatID))
}

// ContractStore holds the tracked contracts of one (chain, chat) pair
// and persists every mutation. Safe for concurrent use.
type ContractStore struct {
	mu   sync.Mutex
	path string
	data map[string]*ContractRecord
}

// NewContractStore loads the store from path. A missing or unreadable
// file yields an empty store, the bot keeps running.
func NewContractStore(path string) *ContractStore {
	s := &ContractStore{
		path: path,
		data: make(map[string]*ContractRecord),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.LogWarn("Failed to read contract storage, starting empty",
				zap.String("file", path), zap.Error(err))
		}
		return s
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		log.LogWarn("Failed to parse contract storage, starting empty",
			zap.String("file", path), zap.Error(err))
		s.data = make(map[string]*ContractRecord)
	}
	return s
}

// save writes the store to disk via a temp file and rename. Failures
// are logged, not returned: a missed save loses at most one mutation
// and the scan loop must not die over it.
func (s *ContractStore) save() {
	jsonData, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		log.LogError("Failed to marshal contract storage", zap.Error(err))
		return
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0644); err != nil {
		log.LogError("Failed to write contract storage",
			zap.String("file", tmpPath), zap.Error(err))
		return
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		log.LogError("Failed to replace contract storage",
			zap.String("file", s.path), zap.Error(err))
	}
}

// IsNewContract reports whether the token is not tracked yet.
func (s *ContractStore) IsNewContract(tokenAddress string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[tokenAddress]
	return !ok
}

// AddContract starts tracking a token with its current price as the
// multiplier baseline.
func (s *ContractStore) AddContract(tokenAddress string, initialPrice, marketCap float64, name, symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[tokenAddress] = &ContractRecord{
		InitialPrice:        initialPrice,
		InitialMarketCap:    marketCap,
		PushTime:            tz.FormatNow(),
		NotifiedMultipliers: []float64{},
		TelegramMessageIDs:  make(map[string]int),
		Name:                name,
		Symbol:              symbol,
	}
	s.save()
}

// Contract returns a copy of the record, ok=false when untracked.
func (s *ContractStore) Contract(tokenAddress string) (ContractRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return ContractRecord{}, false
	}
	return copyRecord(rec), true
}

// AppendNotifiedMultiplier records that a multiplier was announced.
// History is append-only, rebaselining is the only thing that clears it.
func (s *ContractStore) AppendNotifiedMultiplier(tokenAddress string, multiplier float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return
	}
	rec.NotifiedMultipliers = append(rec.NotifiedMultipliers, multiplier)
	s.save()
}

// MaxNotifiedIntegerMultiplier returns the integer part of the highest
// announced multiplier, 0 when none were announced.
func (s *ContractStore) MaxNotifiedIntegerMultiplier(tokenAddress string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return 0
	}
	return int(rec.MaxNotifiedMultiplier())
}

// PendingMultiplier returns the debounce state, ok=false when none.
func (s *ContractStore) PendingMultiplier(tokenAddress string) (PendingMultiplier, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok || rec.PendingMultiplier == nil {
		return PendingMultiplier{}, false
	}
	return *rec.PendingMultiplier, true
}

// SetPendingMultiplier stores the debounce state for a multiplier
// level awaiting confirmation.
func (s *ContractStore) SetPendingMultiplier(tokenAddress string, multiplierInt, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return
	}
	rec.PendingMultiplier = &PendingMultiplier{MultiplierInt: multiplierInt, Count: count}
	s.save()
}

// ClearPendingMultiplier drops the debounce state.
func (s *ContractStore) ClearPendingMultiplier(tokenAddress string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok || rec.PendingMultiplier == nil {
		return
	}
	rec.PendingMultiplier = nil
	s.save()
}

// SetTelegramMessageID records the initial-notification message id for
// one chat. SentinelMessageID marks silent registration.
func (s *ContractStore) SetTelegramMessageID(tokenAddress string, chatID int64, messageID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return
	}
	if rec.TelegramMessageIDs == nil {
		rec.TelegramMessageIDs = make(map[string]int)
	}
	rec.TelegramMessageIDs[chatKey(chatID)] = messageID
	s.save()
}

// TelegramMessageID returns the stored message id for a chat.
func (s *ContractStore) TelegramMessageID(tokenAddress string, chatID int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return 0, false
	}
	id, ok := rec.TelegramMessageIDs[chatKey(chatID)]
	return id, ok
}

// RebaselineInitialPrice resets the multiplier baseline to the current
// price and clears the announced-multiplier history. Used when a token
// resurfaces on the leaderboard after being tracked without a
// notification.
func (s *ContractStore) RebaselineInitialPrice(tokenAddress string, newPrice, newMarketCap float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return
	}
	rec.InitialPrice = newPrice
	rec.InitialMarketCap = newMarketCap
	rec.PushTime = tz.FormatNow()
	rec.NotifiedMultipliers = []float64{}
	s.save()
}

// TouchLastNotifyTime stamps the cooldown clock with the current time.
func (s *ContractStore) TouchLastNotifyTime(tokenAddress string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return
	}
	rec.LastNotifyTime = tz.FormatNow()
	s.save()
}

// LastNotifyTime returns when the last initial notification for this
// token went out, ok=false when never or unparseable.
func (s *ContractStore) LastNotifyTime(tokenAddress string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok || rec.LastNotifyTime == "" {
		return time.Time{}, false
	}
	t, err := tz.Parse(rec.LastNotifyTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetNarrative stores the fetched story and clears the pending flag.
func (s *ContractStore) SetNarrative(tokenAddress string, story *market.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return
	}
	rec.Narrative = story
	rec.NarrativePending = false
	s.save()
}

// Narrative returns the stored story, nil when none was fetched yet.
func (s *ContractStore) Narrative(tokenAddress string) *market.Story {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return nil
	}
	return rec.Narrative
}

// MarkNarrativePending flags the contract for a narrative retry on the
// next cycle.
func (s *ContractStore) MarkNarrativePending(tokenAddress string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[tokenAddress]
	if !ok {
		return
	}
	rec.NarrativePending = true
	s.save()
}

// PendingNarrativeContracts returns the addresses waiting for a
// narrative retry.
func (s *ContractStore) PendingNarrativeContracts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var addrs []string
	for addr, rec := range s.data {
		if rec.NarrativePending && rec.Narrative == nil {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// TrendContract pairs an address with a snapshot of its record.
type TrendContract struct {
	TokenAddress string
	Record       ContractRecord
}

// TodayTrendContracts returns contracts pushed since the start of the
// current day (UTC+8) that received at least one real notification.
func (s *ContractStore) TodayTrendContracts() []TrendContract {
	s.mu.Lock()
	defer s.mu.Unlock()

	todayStart := tz.TodayStart()
	var contracts []TrendContract

	for addr, rec := range s.data {
		if !rec.HasRealMessageID() {
			continue
		}
		if rec.PushTime == "" {
			continue
		}
		pushTime, err := tz.Parse(rec.PushTime)
		if err != nil {
			continue
		}
		if pushTime.Before(todayStart) {
			continue
		}
		contracts = append(contracts, TrendContract{TokenAddress: addr, Record: copyRecord(rec)})
	}
	return contracts
}

// CleanupOldData removes contracts whose push time is older than the
// retention window. Records exactly at the boundary are kept. Returns
// the number of removed contracts.
func (s *ContractStore) CleanupOldData(daysToKeep int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := tz.Now().AddDate(0, 0, -daysToKeep)
	var toDelete []string

	for addr, rec := range s.data {
		if rec.PushTime == "" {
			continue
		}
		pushTime, err := tz.Parse(rec.PushTime)
		if err != nil {
			continue
		}
		if pushTime.Before(cutoff) {
			toDelete = append(toDelete, addr)
		}
	}

	for _, addr := range toDelete {
		delete(s.data, addr)
	}
	if len(toDelete) > 0 {
		s.save()
	}
	return len(toDelete)
}

// Len returns the number of tracked contracts.
func (s *ContractStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func chatKey(chatID int64) string { return fmt.Sprintf("%d", chatID) }

func copyRecord(rec *ContractRecord) ContractRecord {
	out := *rec
	out.NotifiedMultipliers = append([]float64(nil), rec.NotifiedMultipliers...)
	out.TelegramMessageIDs = make(map[string]int, len(rec.TelegramMessageIDs))
	for k, v := range rec.TelegramMessageIDs {
		out.TelegramMessageIDs[k] = v
	}
	if rec.PendingMultiplier != nil {
		pm := *rec.PendingMultiplier
		out.PendingMultiplier = &pm
	}
	return out
}
