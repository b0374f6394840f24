package market

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trending-alert/internal/infra/tz"
)

func TestFloatStringDecodesStringsAndNumbers(t *testing.T) {
	var payload struct {
		A FloatString `json:"a"`
		B FloatString `json:"b"`
		C FloatString `json:"c"`
		D FloatString `json:"d"`
	}

	err := json.Unmarshal([]byte(`{"a":"0.0000433","b":12345.5,"c":null,"d":"not-a-number"}`), &payload)
	require.NoError(t, err)

	assert.InDelta(t, 0.0000433, payload.A.Float(), 1e-12)
	assert.Equal(t, 12345.5, payload.B.Float())
	assert.Equal(t, 0.0, payload.C.Float())
	assert.Equal(t, 0.0, payload.D.Float())
}

func TestEpochMillisDecodesStringsAndNumbers(t *testing.T) {
	var payload struct {
		A EpochMillis `json:"a"`
		B EpochMillis `json:"b"`
		C EpochMillis `json:"c"`
	}

	err := json.Unmarshal([]byte(`{"a":"1704067200000","b":1704067200000,"c":"soon"}`), &payload)
	require.NoError(t, err)

	assert.Equal(t, EpochMillis(1704067200000), payload.A)
	assert.Equal(t, EpochMillis(1704067200000), payload.B)
	assert.Equal(t, EpochMillis(0), payload.C)
}

func TestSecurityCheckValueShapes(t *testing.T) {
	var sec Security
	err := json.Unmarshal([]byte(`{
		"honeyPot": {"passed": false, "value": true},
		"topHolder": {"passed": true, "value": 12.7},
		"lpBurned": {"passed": true, "value": "99.5"}
	}`), &sec)
	require.NoError(t, err)

	assert.True(t, sec.HoneyPot.Bool())
	assert.Equal(t, 12.7, sec.TopHolder.Percent())
	assert.Equal(t, 99.5, sec.LpBurned.Percent())

	// asking for the wrong shape degrades to the zero value
	assert.False(t, sec.TopHolder.Bool())
	assert.Equal(t, 0.0, sec.HoneyPot.Percent())
}

func TestTrendingTokenDecode(t *testing.T) {
	raw := []byte(`{
		"pairAddress": "PAIR1",
		"tokenAddress": "TOKEN1",
		"symbol": "PEPE",
		"name": "Pepe Coin",
		"imageUrl": "https://img.example/pepe.png",
		"priceUSD": "0.0000433",
		"marketCapUSD": "43300000",
		"priceChange24H": "12.5",
		"volume": 1500000.25,
		"liquid": "320000",
		"buyCount": 1200,
		"sellCount": 800,
		"holders": 5400,
		"createTime": "1704067200000",
		"dexId": "pan2",
		"dexName": "Pancake V2",
		"launchFrom": "four",
		"chainId": "bsc",
		"links": {"x": "https://x.com/pepe", "web": "https://pepe.example"},
		"security": {"honeyPot": {"passed": true, "value": false}},
		"auditInfo": {"devHp": "2.1", "snipers": 3, "insiderHp": 5, "newHp": "10", "bundleHp": 0, "dexPaid": true}
	}`)

	var tok TrendingToken
	require.NoError(t, json.Unmarshal(raw, &tok))

	assert.Equal(t, "TOKEN1", tok.TokenAddress)
	assert.InDelta(t, 0.0000433, tok.Price(), 1e-12)
	assert.Equal(t, 43300000.0, tok.MarketCap())
	assert.Equal(t, "https://x.com/pepe", tok.Links["x"])
	assert.False(t, tok.Security.HoneyPot.Bool())
	assert.Equal(t, 2.1, tok.AuditInfo.DevHp.Float())
	assert.Equal(t, 10.0, tok.AuditInfo.NewHp.Float())

	created, ok := tok.CreatedAt()
	require.True(t, ok)
	assert.Equal(t, "2024-01-01 08:00:00", tz.Format(created))
}

func TestCreatedAtMissing(t *testing.T) {
	var tok TrendingToken
	require.NoError(t, json.Unmarshal([]byte(`{"tokenAddress":"T","createTime":""}`), &tok))

	_, ok := tok.CreatedAt()
	assert.False(t, ok)
}

func TestNarrativeResponseStory(t *testing.T) {
	t.Run("full story", func(t *testing.T) {
		var resp NarrativeResponse
		err := json.Unmarshal([]byte(`{
			"success": true,
			"data": {"history": {"name": "Pepe", "story": {
				"narrative_type": "meme revival",
				"rating": {"score": 4, "reason": "strong community"},
				"background": {"origin": {"text": "Started as a parody."}}
			}}}
		}`), &resp)
		require.NoError(t, err)

		story := resp.Story()
		require.NotNil(t, story)
		assert.Equal(t, "meme revival", story.NarrativeType)
		assert.Equal(t, 4, story.Rating.Score)
		assert.Equal(t, "Started as a parody.", story.Background.Origin.Text)
	})

	t.Run("no history", func(t *testing.T) {
		var resp NarrativeResponse
		require.NoError(t, json.Unmarshal([]byte(`{"success": true, "data": {}}`), &resp))
		assert.Nil(t, resp.Story())
	})

	t.Run("unsuccessful", func(t *testing.T) {
		var resp NarrativeResponse
		require.NoError(t, json.Unmarshal([]byte(`{"success": false}`), &resp))
		assert.Nil(t, resp.Story())
	})

	t.Run("empty story object", func(t *testing.T) {
		var resp NarrativeResponse
		require.NoError(t, json.Unmarshal([]byte(`{"success": true, "data": {"history": {"name": "X", "story": {}}}}`), &resp))
		assert.Nil(t, resp.Story())
	})
}
