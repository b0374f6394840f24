package market

// Package market contains the client for the trending-data API
// This file contains response types - the wire shapes returned by the
// trending, KOL holders and narrative endpoints

import (
	"encoding/json"
	"strconv"
	"time"

	"trending-alert/internal/infra/tz"
)

// FloatString is a float that the API may encode either as a JSON
// number or as a quoted string ("0.0000433"). Unparseable or missing
// values decode to 0.
type FloatString float64

func (f *FloatString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	s := string(data)
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FloatString(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*f = 0
		return nil
	}
	*f = FloatString(v)
	return nil
}

func (f FloatString) Float() float64 { return float64(f) }

// EpochMillis is a millisecond timestamp that arrives either as a
// number or as a quoted string. Missing or malformed values decode
// to 0.
type EpochMillis int64

func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*e = 0
		return nil
	}
	s := string(data)
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			*e = 0
			return nil
		}
		v, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			*e = 0
			return nil
		}
		*e = EpochMillis(v)
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		*e = 0
		return nil
	}
	*e = EpochMillis(v)
	return nil
}

// SecurityCheck is one entry of the security block. Value is a bool
// for flag-style checks (honeyPot, openSource) and a percentage for
// topHolder/lpBurned, so it stays raw until asked for.
type SecurityCheck struct {
	Passed bool            `json:"passed"`
	Value  json.RawMessage `json:"value"`
}

// Bool reports the value as a flag. Non-bool values read as false.
func (s SecurityCheck) Bool() bool {
	var v bool
	if err := json.Unmarshal(s.Value, &v); err != nil {
		return false
	}
	return v
}

// Percent reads the value as a number. Non-numeric values read as 0.
func (s SecurityCheck) Percent() float64 {
	var v FloatString
	if len(s.Value) == 0 {
		return 0
	}
	if err := v.UnmarshalJSON(s.Value); err != nil {
		return 0
	}
	return v.Float()
}

// Security holds the per-token safety checks. Which entries are
// populated depends on the chain (mint/freeze on sol, honeypot and
// source checks on bsc).
type Security struct {
	FreezeAuthority SecurityCheck `json:"freezeAuthority"`
	LpBurned        SecurityCheck `json:"lpBurned"`
	MintAuthority   SecurityCheck `json:"mintAuthority"`
	TopHolder       SecurityCheck `json:"topHolder"`
	HoneyPot        SecurityCheck `json:"honeyPot"`
	OpenSource      SecurityCheck `json:"openSource"`
	NoOwner         SecurityCheck `json:"noOwner"`
	Locked          SecurityCheck `json:"locked"`
}

// AuditInfo holds holder-distribution percentages used by the base
// filters. All percentages are 0-100.
type AuditInfo struct {
	DevHp     FloatString `json:"devHp"`
	Snipers   int         `json:"snipers"`
	InsiderHp FloatString `json:"insiderHp"`
	NewHp     FloatString `json:"newHp"`
	BundleHp  FloatString `json:"bundleHp"`
	DexPaid   bool        `json:"dexPaid"`
}

// TrendingToken is one row of the trending leaderboard.
type TrendingToken struct {
	PairAddress    string            `json:"pairAddress"`
	TokenAddress   string            `json:"tokenAddress"`
	Symbol         string            `json:"symbol"`
	Name           string            `json:"name"`
	ImageURL       string            `json:"imageUrl"`
	PriceUSD       FloatString       `json:"priceUSD"`
	MarketCapUSD   FloatString       `json:"marketCapUSD"`
	PriceChange24H FloatString       `json:"priceChange24H"`
	Volume         FloatString       `json:"volume"`
	Liquid         FloatString       `json:"liquid"`
	BuyCount       int               `json:"buyCount"`
	SellCount      int               `json:"sellCount"`
	Holders        int               `json:"holders"`
	CreateTime     EpochMillis       `json:"createTime"` // epoch millis, string or number
	DexID          string            `json:"dexId"`
	DexName        string            `json:"dexName"`
	LaunchFrom     string            `json:"launchFrom"`
	ChainID        string            `json:"chainId"`
	QuoteSymbol    string            `json:"quoteSymbol"`
	Links          map[string]string `json:"links"`
	Security       Security          `json:"security"`
	AuditInfo      AuditInfo         `json:"auditInfo"`
}

// Price returns the USD price, 0 when the API sent nothing usable.
func (t *TrendingToken) Price() float64 { return t.PriceUSD.Float() }

// MarketCap returns the USD market cap, 0 when absent.
func (t *TrendingToken) MarketCap() float64 { return t.MarketCapUSD.Float() }

// CreatedAt parses the creation timestamp. ok is false when the field
// is empty or not a millisecond epoch.
func (t *TrendingToken) CreatedAt() (time.Time, bool) {
	if t.CreateTime <= 0 {
		return time.Time{}, false
	}
	return tz.FromEpochMillis(int64(t.CreateTime)), true
}

// TrendingResponse is the envelope of the trending endpoint.
type TrendingResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data []TrendingToken `json:"data"`
}

// KolHolder is one KOL wallet holding a token.
type KolHolder struct {
	Address       string      `json:"address"`
	Name          string      `json:"name"`
	HoldAmount    FloatString `json:"holdAmount"`
	HoldPercent   FloatString `json:"holdPercent"`
	HoldValueUSD  FloatString `json:"holdValueUSD"`
	TradeCount    int         `json:"tradeCount"`
	BuyCount      int         `json:"buyCount"`
	SellCount     int         `json:"sellCount"`
	LastTradeTime int64       `json:"lastTradeTime"` // epoch millis
	ProfitUSD     FloatString `json:"profitUSD"`
}

// KolHoldersResponse is the envelope of the KOL holders endpoint.
type KolHoldersResponse struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data []KolHolder `json:"data"`
}

// StoryRating is the editorial score attached to a narrative.
type StoryRating struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// StoryOrigin describes where the token's narrative came from.
type StoryOrigin struct {
	Text string `json:"text"`
}

// StoryBackground wraps origin info of a narrative.
type StoryBackground struct {
	Origin StoryOrigin `json:"origin"`
}

// Story is the narrative payload stored per contract and rendered in
// narrative notifications.
type Story struct {
	NarrativeType string          `json:"narrative_type"`
	Rating        StoryRating     `json:"rating"`
	Background    StoryBackground `json:"background"`
}

// Empty reports whether the story carries no usable content.
func (s *Story) Empty() bool {
	if s == nil {
		return true
	}
	return s.NarrativeType == "" && s.Rating.Score == 0 &&
		s.Rating.Reason == "" && s.Background.Origin.Text == ""
}

type narrativeHistory struct {
	Name  string `json:"name"`
	Story *Story `json:"story"`
}

type narrativeData struct {
	History *narrativeHistory `json:"history"`
}

// NarrativeResponse is the envelope of the narrative endpoint.
type NarrativeResponse struct {
	Success bool          `json:"success"`
	Data    narrativeData `json:"data"`
}

// Story extracts the narrative story, nil when the response carries
// none.
func (r *NarrativeResponse) Story() *Story {
	if !r.Success || r.Data.History == nil {
		return nil
	}
	s := r.Data.History.Story
	if s.Empty() {
		return nil
	}
	return s
}
