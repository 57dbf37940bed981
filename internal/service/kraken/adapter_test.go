package kraken

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePairs(t *testing.T) {
	raw := map[string]interface{}{
		"XXBTZUSD": map[string]interface{}{
			"altname":       "XBTUSD",
			"base":          "XXBT",
			"quote":         "ZUSD",
			"pair_decimals": 1,
			"lot_decimals":  8,
		},
		"SOLUSD": map[string]interface{}{
			"altname":       "SOLUSD",
			"base":          "SOL",
			"quote":         "ZUSD",
			"pair_decimals": 2,
			"lot_decimals":  8,
		},
	}

	pairs, err := decodePairs(raw)
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	btc := pairs["XXBTZUSD"]
	assert.Equal(t, "XBTUSD", btc.Altname)
	assert.Equal(t, 1, btc.PairDecimals)
	assert.Equal(t, 8, btc.LotDecimals)

	sol := pairs["SOLUSD"]
	assert.Equal(t, "SOLUSD", sol.Altname)
}

func TestDecodePairsRejectsNonMap(t *testing.T) {
	_, err := decodePairs([]interface{}{"XBTUSD"})
	assert.ErrorContains(t, err, "unexpected response")
}

func TestPair(t *testing.T) {
	assert.Equal(t, "XBTUSD", Pair("BTC/USD"))
	assert.Equal(t, "XBTUSDT", Pair("btc-usdt"))
	assert.Equal(t, "ETHUSD", Pair("ETH_USD"))
}

func TestNormalizeAsset(t *testing.T) {
	assert.Equal(t, "BTC", normalizeAsset("XXBT"))
	assert.Equal(t, "USD", normalizeAsset("ZUSD"))
	assert.Equal(t, "SOL", normalizeAsset("SOL"))
}
