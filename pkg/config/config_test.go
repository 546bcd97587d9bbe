package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("QT_CONFIG_DIR", "")
	t.Setenv("PORT", "")
	t.Setenv("PRICE_CACHE_TTL", "")
	t.Setenv("PRICE_REFRESH_INTERVAL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "config", cfg.ConfigDir)
	assert.Equal(t, "8765", cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.PriceCacheTTL)
	assert.Equal(t, 45*time.Second, cfg.PriceRefreshInterval)
	assert.Equal(t, time.Second, cfg.TradeLatency)
	assert.Equal(t, 2*time.Second, cfg.WatchInterval)
	assert.Equal(t, "trade_executor.log", filepath.Base(cfg.TradeLogPath))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("QT_CONFIG_DIR", "/tmp/qt")
	t.Setenv("PRICE_CACHE_TTL", "5s")
	t.Setenv("TRADE_LATENCY", "0s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/qt", cfg.ConfigDir)
	assert.Equal(t, 5*time.Second, cfg.PriceCacheTTL)
	assert.Equal(t, time.Duration(0), cfg.TradeLatency)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := &Config{ConfigDir: "config", Port: "99999", PriceCacheTTL: time.Minute, WatchInterval: time.Second}
	assert.Error(t, cfg.Validate())
}

func TestDefaultExchanges(t *testing.T) {
	cfg := DefaultExchanges()

	assert.Len(t, cfg.Names(), 9)
	assert.True(t, cfg.IsSupported("Kraken"))
	assert.False(t, cfg.IsSupported("kraken"), "names are case-sensitive")

	ex, ok := cfg.Get("Binance")
	require.True(t, ok)
	assert.Equal(t, "USDT", ex.DefaultQuote)
}

func TestLoadExchangesConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchanges.yaml")
	yamlData := "exchanges:\n  - name: Kraken\n    default_quote: EUR\n  - name: Binance\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	cfg, err := LoadExchangesConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Kraken", "Binance"}, cfg.Names())
	ex, _ := cfg.Get("Binance")
	assert.Equal(t, "USD", ex.DefaultQuote)
}

func TestParseExchangesConfig_Invalid(t *testing.T) {
	_, err := ParseExchangesConfig([]byte("exchanges: []\n"))
	assert.Error(t, err)

	_, err = ParseExchangesConfig([]byte("exchanges:\n  - name: OKX\n  - name: OKX\n"))
	assert.Error(t, err)
}
