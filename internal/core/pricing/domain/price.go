package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/kislikjeka/quicktrade/internal/shared/errors"
)

// PriceSource represents where a quote came from
type PriceSource string

const (
	PriceSourceCoinGecko PriceSource = "coingecko"
	PriceSourceCache     PriceSource = "cache"
)

// Pair is a base/quote trading pair such as BTC/USDT
type Pair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// NewPair builds a pair from two symbols, upper-casing both
func NewPair(base, quote string) (Pair, error) {
	p := Pair{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
	if p.Base == "" || p.Quote == "" {
		return Pair{}, fmt.Errorf("%w: %q/%q", ErrInvalidPair, base, quote)
	}
	return p, nil
}

// ParsePair parses "BTC/USDT", "BTC-USDT" or "btc_usdt"
func ParsePair(s string) (Pair, error) {
	for _, sep := range []string{"/", "-", "_"} {
		if base, quote, ok := strings.Cut(s, sep); ok {
			return NewPair(base, quote)
		}
	}
	return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
}

// String renders the pair as BASE/QUOTE
func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// CacheKey is the lower-cased key quotes are cached under
func (p Pair) CacheKey() string {
	return strings.ToLower(p.Base) + "/" + strings.ToLower(p.Quote)
}

// Quote is a spot price for a pair
type Quote struct {
	Pair      Pair            `json:"pair"`
	Price     decimal.Decimal `json:"price"`
	Source    PriceSource     `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

var coinGeckoIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"AVAX":  "avalanche-2",
	"LTC":   "litecoin",
	"LINK":  "chainlink",
	"TRX":   "tron",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
	"DAI":   "dai",
}

// CoinGeckoID maps a ticker to its CoinGecko coin id. Unknown tickers are
// assumed to already be ids and are lower-cased.
func CoinGeckoID(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if id, ok := coinGeckoIDs[symbol]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// stablecoins are quoted against their peg currency
var stablecoins = map[string]string{
	"USDT":  "usd",
	"USDC":  "usd",
	"BUSD":  "usd",
	"DAI":   "usd",
	"TUSD":  "usd",
	"FDUSD": "usd",
	"EURT":  "eur",
}

// VsCurrency maps a quote symbol to a CoinGecko vs_currency
func VsCurrency(quote string) string {
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if vs, ok := stablecoins[quote]; ok {
		return vs
	}
	return strings.ToLower(quote)
}

var (
	ErrInvalidPair         = apperrors.Validation("invalid trading pair")
	ErrPriceNotFound       = apperrors.NotFound("price not found")
	ErrPriceAPIUnavailable = apperrors.Unavailable("price API unavailable")
)
