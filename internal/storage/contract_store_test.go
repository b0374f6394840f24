package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trending-alert/internal/infra/tz"
	"trending-alert/internal/market"
)

func newTestStore(t *testing.T) *ContractStore {
	t.Helper()
	return NewContractStore(filepath.Join(t.TempDir(), "contracts_data_bsc_100.json"))
}

func TestContractsFilePath(t *testing.T) {
	path := ContractsFilePath("/data", "sol", -100123)
	assert.Equal(t, filepath.Join("/data", "contracts_data_sol_-100123.json"), path)
}

func TestAddContractAndLookup(t *testing.T) {
	s := newTestStore(t)

	assert.True(t, s.IsNewContract("T1"))
	s.AddContract("T1", 0.001, 500000, "Pepe Coin", "PEPE")
	assert.False(t, s.IsNewContract("T1"))

	rec, ok := s.Contract("T1")
	require.True(t, ok)
	assert.Equal(t, 0.001, rec.InitialPrice)
	assert.Equal(t, 500000.0, rec.InitialMarketCap)
	assert.Equal(t, "PEPE", rec.Symbol)
	assert.Empty(t, rec.NotifiedMultipliers)
	assert.NotEmpty(t, rec.PushTime)
}

func TestStorePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts_data_bsc_1.json")

	s1 := NewContractStore(path)
	s1.AddContract("T1", 2.0, 1000, "Alpha", "AAA")
	s1.AppendNotifiedMultiplier("T1", 3.4)
	s1.SetTelegramMessageID("T1", 42, 777)

	s2 := NewContractStore(path)
	rec, ok := s2.Contract("T1")
	require.True(t, ok)
	assert.Equal(t, []float64{3.4}, rec.NotifiedMultipliers)
	assert.Equal(t, 777, rec.TelegramMessageIDs["42"])
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts_data_bsc_1.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s := NewContractStore(path)
	assert.Equal(t, 0, s.Len())
}

func TestMaxNotifiedIntegerMultiplier(t *testing.T) {
	s := newTestStore(t)
	s.AddContract("T1", 1.0, 0, "", "AAA")

	assert.Equal(t, 0, s.MaxNotifiedIntegerMultiplier("T1"))
	assert.Equal(t, 0, s.MaxNotifiedIntegerMultiplier("missing"))

	s.AppendNotifiedMultiplier("T1", 2.9)
	assert.Equal(t, 2, s.MaxNotifiedIntegerMultiplier("T1"))

	s.AppendNotifiedMultiplier("T1", 5.1)
	s.AppendNotifiedMultiplier("T1", 3.0)
	assert.Equal(t, 5, s.MaxNotifiedIntegerMultiplier("T1"))
}

func TestPendingMultiplierLifecycle(t *testing.T) {
	s := newTestStore(t)
	s.AddContract("T1", 1.0, 0, "", "AAA")

	_, ok := s.PendingMultiplier("T1")
	assert.False(t, ok)

	s.SetPendingMultiplier("T1", 3, 1)
	pm, ok := s.PendingMultiplier("T1")
	require.True(t, ok)
	assert.Equal(t, 3, pm.MultiplierInt)
	assert.Equal(t, 1, pm.Count)

	s.ClearPendingMultiplier("T1")
	_, ok = s.PendingMultiplier("T1")
	assert.False(t, ok)

	// clearing twice or on unknown addresses is a no-op
	s.ClearPendingMultiplier("T1")
	s.ClearPendingMultiplier("missing")
}

func TestSentinelAndRealMessageIDs(t *testing.T) {
	s := newTestStore(t)
	s.AddContract("T1", 1.0, 0, "", "AAA")

	rec, _ := s.Contract("T1")
	assert.False(t, rec.HasAnyMessageID())
	assert.False(t, rec.HasRealMessageID())

	s.SetTelegramMessageID("T1", SentinelMessageID, SentinelMessageID)
	rec, _ = s.Contract("T1")
	assert.True(t, rec.HasAnyMessageID())
	assert.False(t, rec.HasRealMessageID())

	s.SetTelegramMessageID("T1", 42, 1001)
	rec, _ = s.Contract("T1")
	assert.True(t, rec.HasRealMessageID())

	id, ok := s.TelegramMessageID("T1", 42)
	require.True(t, ok)
	assert.Equal(t, 1001, id)

	_, ok = s.TelegramMessageID("T1", 99)
	assert.False(t, ok)
}

func TestRebaselineClearsMultiplierHistory(t *testing.T) {
	s := newTestStore(t)
	s.AddContract("T1", 1.0, 100, "", "AAA")
	s.AppendNotifiedMultiplier("T1", 4.0)
	s.SetTelegramMessageID("T1", SentinelMessageID, SentinelMessageID)

	s.RebaselineInitialPrice("T1", 2.5, 250)

	rec, _ := s.Contract("T1")
	assert.Equal(t, 2.5, rec.InitialPrice)
	assert.Equal(t, 250.0, rec.InitialMarketCap)
	assert.Empty(t, rec.NotifiedMultipliers)
	// message ids survive rebaselining
	assert.True(t, rec.HasAnyMessageID())
}

func TestLastNotifyTime(t *testing.T) {
	s := newTestStore(t)
	s.AddContract("T1", 1.0, 0, "", "AAA")

	_, ok := s.LastNotifyTime("T1")
	assert.False(t, ok)

	s.TouchLastNotifyTime("T1")
	when, ok := s.LastNotifyTime("T1")
	require.True(t, ok)
	assert.WithinDuration(t, tz.Now(), when, 5*time.Second)
}

func TestNarrativeLifecycle(t *testing.T) {
	s := newTestStore(t)
	s.AddContract("T1", 1.0, 0, "", "AAA")
	s.AddContract("T2", 1.0, 0, "", "BBB")

	assert.Nil(t, s.Narrative("T1"))
	assert.Empty(t, s.PendingNarrativeContracts())

	s.MarkNarrativePending("T1")
	assert.Equal(t, []string{"T1"}, s.PendingNarrativeContracts())

	story := storyFixture("meme")
	s.SetNarrative("T1", story)
	require.NotNil(t, s.Narrative("T1"))
	assert.Equal(t, "meme", s.Narrative("T1").NarrativeType)
	assert.Empty(t, s.PendingNarrativeContracts())
}

func TestTodayTrendContracts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts_data_bsc_1.json")
	today := tz.Format(tz.TodayStart().Add(time.Hour))
	yesterday := tz.Format(tz.TodayStart().Add(-time.Hour))

	seedStoreFile(t, path, map[string]map[string]interface{}{
		// notified today: included
		"T1": {"push_time": today, "telegram_message_ids": map[string]int{"42": 100}, "notified_multipliers": []float64{}},
		// sentinel only: excluded
		"T2": {"push_time": today, "telegram_message_ids": map[string]int{"-1": -1}, "notified_multipliers": []float64{}},
		// notified but pushed yesterday: excluded
		"T3": {"push_time": yesterday, "telegram_message_ids": map[string]int{"42": 101}, "notified_multipliers": []float64{}},
		// never notified: excluded
		"T4": {"push_time": today, "telegram_message_ids": map[string]int{}, "notified_multipliers": []float64{}},
	})

	s := NewContractStore(path)
	contracts := s.TodayTrendContracts()
	require.Len(t, contracts, 1)
	assert.Equal(t, "T1", contracts[0].TokenAddress)
}

func TestCleanupOldData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contracts_data_bsc_1.json")
	now := tz.Now()

	seedStoreFile(t, path, map[string]map[string]interface{}{
		"old":      {"push_time": tz.Format(now.AddDate(0, 0, -8)), "telegram_message_ids": map[string]int{}, "notified_multipliers": []float64{}},
		"boundary": {"push_time": tz.Format(now.AddDate(0, 0, -7).Add(time.Minute)), "telegram_message_ids": map[string]int{}, "notified_multipliers": []float64{}},
		"fresh":    {"push_time": tz.Format(now), "telegram_message_ids": map[string]int{}, "notified_multipliers": []float64{}},
		"unparsed": {"push_time": "not-a-time", "telegram_message_ids": map[string]int{}, "notified_multipliers": []float64{}},
	})

	s := NewContractStore(path)
	removed := s.CleanupOldData(7)

	assert.Equal(t, 1, removed)
	assert.True(t, s.IsNewContract("old"))
	assert.False(t, s.IsNewContract("boundary"))
	assert.False(t, s.IsNewContract("fresh"))
	// unparseable push times are left alone
	assert.False(t, s.IsNewContract("unparsed"))
}

func TestMutationsOnUnknownAddressAreNoOps(t *testing.T) {
	s := newTestStore(t)

	s.AppendNotifiedMultiplier("missing", 2.0)
	s.SetPendingMultiplier("missing", 2, 1)
	s.SetTelegramMessageID("missing", 1, 1)
	s.RebaselineInitialPrice("missing", 1, 1)
	s.TouchLastNotifyTime("missing")
	s.MarkNarrativePending("missing")

	assert.Equal(t, 0, s.Len())
}

func seedStoreFile(t *testing.T, path string, data map[string]map[string]interface{}) {
	t.Helper()
	raw, err := json.MarshalIndent(data, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0644))
}

func storyFixture(narrativeType string) *market.Story {
	return &market.Story{NarrativeType: narrativeType}
}
