package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/domain"
	"github.com/kislikjeka/quicktrade/internal/core/trading"
	"github.com/kislikjeka/quicktrade/internal/module/account"
	"github.com/kislikjeka/quicktrade/internal/platform/credential"
	"github.com/kislikjeka/quicktrade/internal/platform/document"
	"github.com/kislikjeka/quicktrade/internal/platform/preference"
	"github.com/kislikjeka/quicktrade/internal/transport/httpapi"
	"github.com/kislikjeka/quicktrade/internal/transport/httpapi/handler"
	"github.com/kislikjeka/quicktrade/pkg/config"
)

type stubPrices map[string]decimal.Decimal

func (s stubPrices) Lookup(_ context.Context, base, quote string) (domain.Quote, error) {
	pair, err := domain.NewPair(base, quote)
	if err != nil {
		return domain.Quote{}, err
	}
	price, ok := s[pair.String()]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrPriceNotFound, pair)
	}
	return domain.Quote{Pair: pair, Price: price, Source: domain.PriceSourceCache, FetchedAt: time.Unix(0, 0)}, nil
}

func (s stubPrices) GetPrice(ctx context.Context, base, quote string) decimal.Decimal {
	q, err := s.Lookup(ctx, base, quote)
	if err != nil {
		return decimal.Zero
	}
	return q.Price
}

type testServer struct {
	srv   *httptest.Server
	creds *credential.Store
	prefs *preference.Store

	mu      sync.Mutex
	changes []preference.Preferences
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir, err := document.Open(t.TempDir())
	require.NoError(t, err)
	exchanges := config.DefaultExchanges()

	creds, err := credential.NewStore(dir, exchanges, nil)
	require.NoError(t, err)
	prefs, err := preference.NewStore(dir, exchanges, nil)
	require.NoError(t, err)

	prices := stubPrices{
		"BTC/USDT": decimal.NewFromInt(60000),
		"BTC/USD":  decimal.NewFromInt(60000),
	}
	executor := trading.NewExecutor(creds, trading.Config{}, nil)
	svc := account.NewService(creds, prefs, exchanges, prices, executor, nil)

	ts := &testServer{creds: creds, prefs: prefs}
	router := httpapi.NewRouter(httpapi.Config{
		AllowedOrigins:    []string{"http://localhost:5173"},
		SubaccountHandler: handler.NewSubaccountHandler(svc, creds, exchanges),
		PreferenceHandler: handler.NewPreferenceHandler(prefs, creds, func(p preference.Preferences) {
			ts.mu.Lock()
			ts.changes = append(ts.changes, p)
			ts.mu.Unlock()
		}),
		TradingHandler: handler.NewTradingHandler(prices, svc, executor.Balances()),
		HealthHandler:  handler.NewHealthHandler(nil),
		Metrics:        true,
	})
	ts.srv = httptest.NewServer(router)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestSubaccountLifecycle(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodPost, "/api/v1/exchanges/Kraken/subaccounts", "")
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "Sub1", body["subaccount"])
	assert.Equal(t, "new", body["state"])

	code, body = ts.do(t, http.MethodGet, "/api/v1/edit", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["locked"])

	// Only one subaccount may be under edit.
	code, body = ts.do(t, http.MethodPost, "/api/v1/exchanges/Binance/subaccounts", `{"name":"Main"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", body["code"])

	code, body = ts.do(t, http.MethodPut, "/api/v1/exchanges/Kraken/subaccounts/Sub1/credentials",
		`{"api_key":"  abcdef123456 ","api_secret":"s3cret"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "saved", body["state"])

	code, body = ts.do(t, http.MethodGet, "/api/v1/edit", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["locked"])

	code, body = ts.do(t, http.MethodPut, "/api/v1/exchanges/Kraken/subaccounts/Sub1", `{"name":" Main "}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Main", body["subaccount"])

	code, body = ts.do(t, http.MethodGet, "/api/v1/exchanges/Kraken/subaccounts", "")
	require.Equal(t, http.StatusOK, code)
	rows := body["subaccounts"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "****3456", row["masked_key"])
	assert.NotContains(t, fmt.Sprint(body), "s3cret")

	code, _ = ts.do(t, http.MethodDelete, "/api/v1/exchanges/Kraken/subaccounts/Main", "")
	assert.Equal(t, http.StatusNoContent, code)
	assert.False(t, ts.creds.HasExchange("Kraken"))
}

func TestSubaccountNamesWithEscapes(t *testing.T) {
	ts := newTestServer(t)
	for _, name := range []string{"a%20b", "a b", "x/y"} {
		_, err := ts.creds.AddSubaccount("Kraken", name)
		require.NoError(t, err)
	}

	// The literal name "a%20b" is sent escaped once more.
	code, body := ts.do(t, http.MethodDelete, "/api/v1/exchanges/Kraken/subaccounts/a%2520b", "")
	require.Equal(t, http.StatusNoContent, code, body)
	assert.Equal(t, []string{"a b", "x/y"}, ts.creds.Subaccounts("Kraken"))

	code, body = ts.do(t, http.MethodPut, "/api/v1/exchanges/Kraken/subaccounts/x%2Fy/credentials",
		`{"api_key":"key","api_secret":"secret"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "x/y", body["subaccount"])
	assert.Equal(t, "saved", body["state"])

	code, body = ts.do(t, http.MethodPut, "/api/v1/exchanges/Kraken/subaccounts/a%20b", `{"name":"100%"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, []string{"100%", "x/y"}, ts.creds.Subaccounts("Kraken"))

	code, _ = ts.do(t, http.MethodDelete, "/api/v1/exchanges/Kraken/subaccounts/100%25", "")
	require.Equal(t, http.StatusNoContent, code)
	assert.Equal(t, []string{"x/y"}, ts.creds.Subaccounts("Kraken"))
}

func TestCreateSubaccount_Errors(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodPost, "/api/v1/exchanges/Nowhere/subaccounts", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	code, _ = ts.do(t, http.MethodPost, "/api/v1/exchanges/Kraken/subaccounts", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodPut, "/api/v1/exchanges/Kraken/subaccounts/Ghost/credentials", `{"api_key":"k","api_secret":"s"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestEditLock_BeginAndCancel(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.creds.AddSubaccount("Binance", "A")
	require.NoError(t, err)

	code, body := ts.do(t, http.MethodPost, "/api/v1/exchanges/Binance/subaccounts/A/edit", "")
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "new", body["state"])

	code, body = ts.do(t, http.MethodDelete, "/api/v1/edit", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["locked"])
	assert.Equal(t, map[string]any{"exchange": "Binance", "subaccount": "A"}, body["key"])

	_, held := ts.creds.EditLock()
	assert.False(t, held)
}

func TestPreferences(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodGet, "/api/v1/preferences", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "USD", body["display_currency"])

	code, body = ts.do(t, http.MethodPut, "/api/v1/preferences/theme", `{"theme":"Light"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "light", body["theme"])

	code, body = ts.do(t, http.MethodPut, "/api/v1/preferences/theme", `{"theme":"neon"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	code, _ = ts.do(t, http.MethodPut, "/api/v1/preferences/show-dust", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(t, http.MethodPut, "/api/v1/preferences/exchanges", `{"exchanges":["Kraken","Binance","Kraken"]}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, []any{"Kraken", "Binance"}, body["enabled_exchanges"])

	code, body = ts.do(t, http.MethodPut, "/api/v1/preferences/display-currency", `{"currency":" eur "}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "EUR", body["display_currency"])

	// Theme survived the later updates.
	assert.Equal(t, preference.ThemeLight, ts.prefs.Theme())

	ts.mu.Lock()
	notified := len(ts.changes)
	ts.mu.Unlock()
	assert.Equal(t, 3, notified)

	code, body = ts.do(t, http.MethodDelete, "/api/v1/preferences", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "dark", body["theme"])
}

func TestSubaccountSettings(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.creds.AddSubaccount("Kraken", "Main")
	require.NoError(t, err)

	code, body := ts.do(t, http.MethodGet, "/api/v1/exchanges/Kraken/subaccounts/Main/settings", "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body)

	code, _ = ts.do(t, http.MethodPut, "/api/v1/exchanges/Kraken/subaccounts/Main/settings", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPut, "/api/v1/exchanges/Kraken/subaccounts/Ghost/settings", `{"a":1}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = ts.do(t, http.MethodPut, "/api/v1/exchanges/Kraken/subaccounts/Main/settings", `{"slippage": 0.5, "confirm": true}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0.5, body["slippage"])
	assert.Equal(t, true, body["confirm"])
}

func TestOrdersAndHoldings(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.creds.AddSubaccount("Binance", "Main")
	require.NoError(t, err)

	order := `{"exchange":"Binance","subaccount":"Main","symbol":"btc-usdt","side":"buy","order_type":"market","amount":"0.5"}`

	// No credentials yet.
	code, body := ts.do(t, http.MethodPost, "/api/v1/orders", order)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	require.NoError(t, ts.creds.UpdateCredentials("Binance", "Main", "key", "secret"))

	code, body = ts.do(t, http.MethodPost, "/api/v1/orders", order)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "BTC/USDT", body["symbol"])
	assert.Equal(t, "Buy", body["side"])
	assert.Equal(t, "market", body["price"])
	assert.Equal(t, trading.StatusSuccess, body["status"])

	assert.Equal(t, "BTC/USDT", ts.prefs.LastPair("Binance", "Main"))

	code, body = ts.do(t, http.MethodGet, "/api/v1/balances", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["balances"], 1)

	code, body = ts.do(t, http.MethodGet, "/api/v1/holdings", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "USD", body["currency"])
	assert.Equal(t, "30000.00 USD", body["total"])

	code, _ = ts.do(t, http.MethodPost, "/api/v1/orders",
		`{"exchange":"Binance","subaccount":"Main","symbol":"BTC/USDT","side":"sell","order_type":"limit","amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/orders",
		`{"exchange":"Binance","subaccount":"Main","symbol":"BTC/USDT","side":"hold","order_type":"market","amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPrices(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/v1/prices?symbol=btc-usdt")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cache", resp.Header.Get(handler.HeaderPriceSource))

	var price handler.PriceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&price))
	assert.Equal(t, "BTC/USDT", price.Symbol)
	assert.Equal(t, "60000", price.Price)

	code, _ := ts.do(t, http.MethodGet, "/api/v1/prices/btc/usd", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = ts.do(t, http.MethodGet, "/api/v1/prices", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := ts.do(t, http.MethodGet, "/api/v1/prices/DOGE/EUR", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, _ = ts.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, code)

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")
}
