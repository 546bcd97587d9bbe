// Package account keeps the credential store, the preference store and the
// simulated balances consistent with each other.
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kislikjeka/quicktrade/internal/core/trading"
	"github.com/kislikjeka/quicktrade/internal/platform/credential"
	"github.com/kislikjeka/quicktrade/internal/platform/preference"
	"github.com/kislikjeka/quicktrade/pkg/config"
	"github.com/kislikjeka/quicktrade/pkg/logger"
	"github.com/kislikjeka/quicktrade/pkg/money"
)

// PriceLookup returns a spot price, zero when unknown.
type PriceLookup interface {
	GetPrice(ctx context.Context, base, quote string) decimal.Decimal
}

// OrderExecutor runs simulated orders.
type OrderExecutor interface {
	Execute(ctx context.Context, req trading.TradeRequest) (*trading.Confirmation, error)
	Balances() *trading.Balances
}

// Service is the workspace UI surfaces talk to.
type Service struct {
	creds     *credential.Store
	prefs     *preference.Store
	exchanges *config.ExchangesConfig
	prices    PriceLookup
	executor  OrderExecutor
	logger    *logger.Logger

	dustThreshold decimal.Decimal
	now           func() time.Time
}

// NewService creates an account service.
func NewService(
	creds *credential.Store,
	prefs *preference.Store,
	exchanges *config.ExchangesConfig,
	prices PriceLookup,
	executor OrderExecutor,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Service{
		creds:         creds,
		prefs:         prefs,
		exchanges:     exchanges,
		prices:        prices,
		executor:      executor,
		logger:        log.WithField("component", "account_service"),
		dustThreshold: money.DefaultDustThreshold,
		now:           time.Now,
	}
}

// Credentials exposes the credential store.
func (s *Service) Credentials() *credential.Store {
	return s.creds
}

// Preferences exposes the preference store.
func (s *Service) Preferences() *preference.Store {
	return s.prefs
}

// AddSubaccount creates a placeholder subaccount and opens it for editing.
// It fails while another subaccount is being edited.
func (s *Service) AddSubaccount(exchange, name string) (string, error) {
	if holder, held := s.creds.EditLock(); held {
		return "", fmt.Errorf("%w: %s", credential.ErrEditInProgress, holder)
	}

	created, err := s.creds.AddSubaccount(exchange, name)
	if err != nil {
		return "", err
	}
	if err := s.creds.BeginEdit(exchange, created); err != nil {
		// Another caller grabbed the lock in between; the row stays NEW.
		s.logger.Warn("subaccount created without edit lock", "exchange", exchange, "subaccount", created, "error", err)
	}
	return created, nil
}

// RenameSubaccount renames a subaccount and moves everything that refers to it.
func (s *Service) RenameSubaccount(exchange, oldName, newName string) error {
	if err := s.creds.RenameSubaccount(exchange, oldName, newName); err != nil {
		return err
	}
	renamed := strings.TrimSpace(newName)

	s.executor.Balances().Rename(exchange, oldName, renamed)
	if err := s.prefs.RenameSubaccount(exchange, oldName, renamed); err != nil {
		return fmt.Errorf("subaccount renamed but preferences were not updated: %w", err)
	}
	return nil
}

// DeleteSubaccount removes a subaccount together with its preference
// references and simulated balances.
func (s *Service) DeleteSubaccount(exchange, sub string) error {
	if err := s.creds.DeleteSubaccount(exchange, sub); err != nil {
		return err
	}
	s.executor.Balances().Forget(exchange, sub)
	if err := s.prefs.ForgetSubaccount(exchange, sub); err != nil {
		return fmt.Errorf("subaccount deleted but preferences were not updated: %w", err)
	}
	return nil
}

// SelectSubaccount records sub as the active subaccount of its exchange and
// returns the pair last traded on it.
func (s *Service) SelectSubaccount(exchange, sub string) (string, error) {
	if !s.creds.HasSubaccount(exchange, sub) {
		return "", fmt.Errorf("%w: %s/%s", credential.ErrSubaccountNotFound, exchange, sub)
	}
	if err := s.prefs.RecordLastUsed(exchange, sub, ""); err != nil {
		return "", err
	}
	return s.prefs.LastPair(exchange, sub), nil
}

// ExchangeOverview is one exchange tab.
type ExchangeOverview struct {
	Name           string           `json:"name"`
	DefaultQuote   string           `json:"default_quote"`
	Rows           []credential.Row `json:"rows"`
	LastSubaccount string           `json:"last_subaccount,omitempty"`
	LastPair       string           `json:"last_pair,omitempty"`
}

// Overview lists the enabled exchanges with their subaccount rows. With no
// exchange enabled every exchange holding subaccounts is listed.
func (s *Service) Overview() []ExchangeOverview {
	names := s.prefs.EnabledExchanges()
	if len(names) == 0 {
		names = s.creds.Exchanges()
	}

	out := make([]ExchangeOverview, 0, len(names))
	for _, name := range names {
		ov := ExchangeOverview{
			Name: name,
			Rows: s.creds.ExchangeRows(name),
		}
		if ex, ok := s.exchanges.Get(name); ok {
			ov.DefaultQuote = ex.DefaultQuote
		}
		if sub, pair := s.prefs.LastUsed(name); s.creds.HasSubaccount(name, sub) {
			ov.LastSubaccount, ov.LastPair = sub, pair
		}
		out = append(out, ov)
	}
	return out
}

// SubmitOrder executes a simulated order and remembers its pair for the
// subaccount.
func (s *Service) SubmitOrder(ctx context.Context, req trading.TradeRequest) (*trading.Confirmation, error) {
	conf, err := s.executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.prefs.RecordLastUsed(conf.Exchange, conf.Subaccount, conf.Symbol); err != nil {
		s.logger.Warn("failed to record last used pair", "exchange", conf.Exchange, "subaccount", conf.Subaccount, "error", err)
	}
	return conf, nil
}
