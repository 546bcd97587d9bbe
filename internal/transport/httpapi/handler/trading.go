package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/domain"
	"github.com/kislikjeka/quicktrade/internal/core/trading"
	"github.com/kislikjeka/quicktrade/internal/module/account"
	"github.com/kislikjeka/quicktrade/pkg/money"
)

// HeaderPriceSource reports whether a price came from cache or upstream
const HeaderPriceSource = "X-Price-Source"

// PriceServiceInterface defines spot price lookups
type PriceServiceInterface interface {
	Lookup(ctx context.Context, base, quote string) (domain.Quote, error)
}

// OrderServiceInterface defines order submission and valuation
type OrderServiceInterface interface {
	SubmitOrder(ctx context.Context, req trading.TradeRequest) (*trading.Confirmation, error)
	Holdings(ctx context.Context) account.Holdings
}

// BalanceLister lists simulated balances
type BalanceLister interface {
	List() []trading.Balance
}

// TradingHandler handles price, order and holdings requests
type TradingHandler struct {
	prices   PriceServiceInterface
	orders   OrderServiceInterface
	balances BalanceLister
}

// NewTradingHandler creates a new trading handler
func NewTradingHandler(prices PriceServiceInterface, orders OrderServiceInterface, balances BalanceLister) *TradingHandler {
	return &TradingHandler{
		prices:   prices,
		orders:   orders,
		balances: balances,
	}
}

// SubmitOrderRequest represents an order from a trading panel. Amounts are
// decimal strings.
type SubmitOrderRequest struct {
	Exchange   string `json:"exchange"`
	Subaccount string `json:"subaccount"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	OrderType  string `json:"order_type"`
	Amount     string `json:"amount"`
	Price      string `json:"price,omitempty"`
}

// PriceResponse represents a spot price
type PriceResponse struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Source    string `json:"source"`
	FetchedAt string `json:"fetched_at"`
}

// GetPrice handles GET /prices?symbol=BTC/USDT and GET /prices/{base}/{quote}
func (h *TradingHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	base, quote := pathParam(r, "base"), pathParam(r, "quote")
	if base == "" {
		symbol := r.URL.Query().Get("symbol")
		if symbol == "" {
			respondWithError(w, http.StatusBadRequest, "symbol is required")
			return
		}
		pair, err := domain.ParsePair(symbol)
		if err != nil {
			respondWithAppError(w, err)
			return
		}
		base, quote = pair.Base, pair.Quote
	}

	q, err := h.prices.Lookup(r.Context(), base, quote)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	w.Header().Set(HeaderPriceSource, string(q.Source))
	respondWithJSON(w, http.StatusOK, PriceResponse{
		Symbol:    q.Pair.String(),
		Price:     q.Price.String(),
		Source:    string(q.Source),
		FetchedAt: q.FetchedAt.UTC().Format(time.RFC3339),
	})
}

// SubmitOrder handles POST /orders
func (h *TradingHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tr, err := req.toTradeRequest()
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	conf, err := h.orders.SubmitOrder(r.Context(), tr)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, conf)
}

// GetHoldings handles GET /holdings
func (h *TradingHandler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.orders.Holdings(r.Context()))
}

// GetBalances handles GET /balances
func (h *TradingHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"balances": h.balances.List()})
}

func (req SubmitOrderRequest) toTradeRequest() (trading.TradeRequest, error) {
	side, err := trading.ParseSide(req.Side)
	if err != nil {
		return trading.TradeRequest{}, err
	}
	orderType, err := trading.ParseOrderType(req.OrderType)
	if err != nil {
		return trading.TradeRequest{}, err
	}
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		return trading.TradeRequest{}, fmt.Errorf("%w: %v", trading.ErrInvalidAmount, err)
	}

	tr := trading.TradeRequest{
		Exchange:   strings.TrimSpace(req.Exchange),
		Subaccount: strings.TrimSpace(req.Subaccount),
		Symbol:     req.Symbol,
		Side:       side,
		Amount:     amount,
		OrderType:  orderType,
	}
	if orderType == trading.OrderTypeLimit {
		var price decimal.Decimal
		if price, err = money.ParsePositive(req.Price); err != nil {
			return trading.TradeRequest{}, fmt.Errorf("%w: %v", trading.ErrInvalidPrice, err)
		}
		tr.Price = &price
	}
	return tr, nil
}
