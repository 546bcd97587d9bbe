// Package trading simulates order submission against configured subaccounts.
package trading

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/domain"
)

// Side is the direction of an order
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// ParseSide accepts any casing of buy or sell
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

// OrderType is how an order is priced
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
)

// ParseOrderType accepts any casing of market or limit
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "market":
		return OrderTypeMarket, nil
	case "limit":
		return OrderTypeLimit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOrderType, s)
}

// TradeRequest is an order as submitted from a trading panel
type TradeRequest struct {
	Exchange   string           `json:"exchange"`
	Subaccount string           `json:"subaccount"`
	Symbol     string           `json:"symbol"`
	Side       Side             `json:"side"`
	Amount     decimal.Decimal  `json:"amount"`
	OrderType  OrderType        `json:"order_type"`
	Price      *decimal.Decimal `json:"price,omitempty"`
}

// Validate checks the request and returns its parsed pair
func (r *TradeRequest) Validate() (domain.Pair, error) {
	if strings.TrimSpace(r.Exchange) == "" {
		return domain.Pair{}, ErrMissingExchange
	}
	if strings.TrimSpace(r.Subaccount) == "" {
		return domain.Pair{}, ErrMissingSubaccount
	}
	pair, err := domain.ParsePair(r.Symbol)
	if err != nil {
		return domain.Pair{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, r.Symbol)
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return domain.Pair{}, fmt.Errorf("%w: %q", ErrInvalidSide, r.Side)
	}
	if r.OrderType != OrderTypeMarket && r.OrderType != OrderTypeLimit {
		return domain.Pair{}, fmt.Errorf("%w: %q", ErrInvalidOrderType, r.OrderType)
	}
	if !r.Amount.IsPositive() {
		return domain.Pair{}, ErrInvalidAmount
	}
	if r.OrderType == OrderTypeLimit && (r.Price == nil || !r.Price.IsPositive()) {
		return domain.Pair{}, ErrInvalidPrice
	}
	return pair, nil
}

// PriceLabel is the limit price, or "market" for market orders
func (r *TradeRequest) PriceLabel() string {
	if r.OrderType == OrderTypeLimit && r.Price != nil {
		return r.Price.String()
	}
	return "market"
}

// Confirmation is the synthetic result of an executed order
type Confirmation struct {
	ID         uuid.UUID       `json:"id"`
	Status     string          `json:"status"`
	Exchange   string          `json:"exchange"`
	Subaccount string          `json:"subaccount"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	OrderType  OrderType       `json:"order_type"`
	Price      string          `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  int64           `json:"timestamp"`
}

// StatusSuccess is the only status the simulator reports
const StatusSuccess = "success"
