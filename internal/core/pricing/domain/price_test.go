package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	for _, in := range []string{"BTC/USDT", "btc-usdt", " btc_usdt "} {
		p, err := ParsePair(in)
		require.NoError(t, err, in)
		assert.Equal(t, Pair{Base: "BTC", Quote: "USDT"}, p)
		assert.Equal(t, "BTC/USDT", p.String())
		assert.Equal(t, "btc/usdt", p.CacheKey())
	}

	for _, in := range []string{"BTCUSDT", "/USDT", "BTC/", ""} {
		_, err := ParsePair(in)
		assert.ErrorIs(t, err, ErrInvalidPair, in)
	}
}

func TestCoinGeckoID(t *testing.T) {
	assert.Equal(t, "bitcoin", CoinGeckoID("BTC"))
	assert.Equal(t, "avalanche-2", CoinGeckoID("avax"))
	assert.Equal(t, "pepe", CoinGeckoID("PEPE"))
}

func TestVsCurrency(t *testing.T) {
	assert.Equal(t, "usd", VsCurrency("USDT"))
	assert.Equal(t, "usd", VsCurrency("usd"))
	assert.Equal(t, "eur", VsCurrency("EUR"))
	assert.Equal(t, "btc", VsCurrency("BTC"))
}
