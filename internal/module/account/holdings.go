package account

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/domain"
	"github.com/kislikjeka/quicktrade/pkg/money"
)

// Holding is one valued position.
type Holding struct {
	Exchange   string          `json:"exchange"`
	Subaccount string          `json:"subaccount"`
	Asset      string          `json:"asset"`
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
	Value      decimal.Decimal `json:"value"`
	Dust       bool            `json:"dust"`
}

// Holdings is the dashboard view of all simulated positions.
type Holdings struct {
	Currency   string    `json:"currency"`
	Holdings   []Holding `json:"holdings"`
	Total      string    `json:"total"`
	HiddenDust int       `json:"hidden_dust"`
	UpdatedAt  string    `json:"updated_at"`
}

// Holdings values every simulated position in the display currency. Dust
// positions are hidden unless the user enabled show_dust. Assets without a
// price are valued at zero and therefore count as dust.
func (s *Service) Holdings(ctx context.Context) Holdings {
	currency := s.prefs.DisplayCurrency()
	showDust := s.prefs.ShowDust()

	out := Holdings{
		Currency: currency,
		Holdings: []Holding{},
	}

	prices := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, b := range s.executor.Balances().List() {
		price, ok := prices[b.Asset]
		if !ok {
			price = s.priceOf(ctx, b.Asset, currency)
			prices[b.Asset] = price
		}

		value := money.Value(b.Amount, price)
		h := Holding{
			Exchange:   b.Exchange,
			Subaccount: b.Subaccount,
			Asset:      b.Asset,
			Amount:     b.Amount,
			Price:      price,
			Value:      value,
			Dust:       money.IsDust(value, s.dustThreshold),
		}
		if h.Dust && !showDust {
			out.HiddenDust++
			continue
		}
		out.Holdings = append(out.Holdings, h)
		total = total.Add(value)
	}

	out.Total = money.Format(total, currency)
	out.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	return out
}

func (s *Service) priceOf(ctx context.Context, asset, currency string) decimal.Decimal {
	if strings.EqualFold(asset, currency) {
		return decimal.NewFromInt(1)
	}
	return s.prices.GetPrice(ctx, asset, currency)
}

// HeldPairs returns each held asset paired with the display currency, the
// set the background refresher keeps warm.
func (s *Service) HeldPairs() []domain.Pair {
	currency := s.prefs.DisplayCurrency()
	seen := make(map[string]bool)
	var out []domain.Pair
	for _, b := range s.executor.Balances().List() {
		if seen[b.Asset] || strings.EqualFold(b.Asset, currency) {
			continue
		}
		seen[b.Asset] = true
		if p, err := domain.NewPair(b.Asset, currency); err == nil {
			out = append(out, p)
		}
	}
	return out
}
