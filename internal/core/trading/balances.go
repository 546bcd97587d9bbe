package trading

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/quicktrade/internal/core/pricing/domain"
)

// Balance is a simulated asset position on one subaccount.
type Balance struct {
	Exchange   string          `json:"exchange"`
	Subaccount string          `json:"subaccount"`
	Asset      string          `json:"asset"`
	Amount     decimal.Decimal `json:"amount"`
}

type balanceKey struct {
	exchange, subaccount, asset string
}

// Balances tracks simulated positions built from executed orders. Nothing
// is persisted.
type Balances struct {
	mu      sync.RWMutex
	amounts map[balanceKey]decimal.Decimal
}

// NewBalances returns an empty ledger.
func NewBalances() *Balances {
	return &Balances{amounts: make(map[balanceKey]decimal.Decimal)}
}

// Credit adds amount (negative to debit) of asset to a subaccount.
func (b *Balances) Credit(exchange, sub, asset string, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(balanceKey{exchange, sub, asset}, amount)
}

func (b *Balances) credit(k balanceKey, amount decimal.Decimal) {
	next := b.amounts[k].Add(amount)
	if next.IsZero() {
		delete(b.amounts, k)
		return
	}
	b.amounts[k] = next
}

// Apply books an executed order. The base asset moves by the order amount;
// limit orders also move the quote asset by amount × price.
func (b *Balances) Apply(pair domain.Pair, req TradeRequest) {
	sign := decimal.NewFromInt(1)
	if req.Side == SideSell {
		sign = sign.Neg()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.credit(balanceKey{req.Exchange, req.Subaccount, pair.Base}, req.Amount.Mul(sign))
	if req.OrderType == OrderTypeLimit && req.Price != nil {
		cost := req.Amount.Mul(*req.Price)
		b.credit(balanceKey{req.Exchange, req.Subaccount, pair.Quote}, cost.Mul(sign).Neg())
	}
}

// List returns every non-zero position ordered by exchange, subaccount and asset.
func (b *Balances) List() []Balance {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Balance, 0, len(b.amounts))
	for k, amount := range b.amounts {
		out = append(out, Balance{Exchange: k.exchange, Subaccount: k.subaccount, Asset: k.asset, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exchange != out[j].Exchange {
			return out[i].Exchange < out[j].Exchange
		}
		if out[i].Subaccount != out[j].Subaccount {
			return out[i].Subaccount < out[j].Subaccount
		}
		return out[i].Asset < out[j].Asset
	})
	return out
}

// Forget drops every position of a subaccount.
func (b *Balances) Forget(exchange, sub string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.amounts {
		if k.exchange == exchange && k.subaccount == sub {
			delete(b.amounts, k)
		}
	}
}

// Rename moves every position of a subaccount to its new name.
func (b *Balances) Rename(exchange, oldName, newName string) {
	if oldName == newName {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, amount := range b.amounts {
		if k.exchange == exchange && k.subaccount == oldName {
			delete(b.amounts, k)
			b.credit(balanceKey{exchange, newName, k.asset}, amount)
		}
	}
}
