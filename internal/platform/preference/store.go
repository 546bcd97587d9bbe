package preference

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/kislikjeka/quicktrade/internal/platform/document"
	"github.com/kislikjeka/quicktrade/internal/platform/metrics"
	"github.com/kislikjeka/quicktrade/pkg/logger"
)

const storeName = "preferences"

// Persister loads, saves and removes named documents.
type Persister interface {
	Load(name string, v any) (bool, error)
	Save(name string, v any) error
	Remove(name string) error
}

// ExchangeSet tells which exchange names are supported.
type ExchangeSet interface {
	IsSupported(name string) bool
}

// Store owns user_prefs.json. Setters change one field of the full
// in-memory document and write the whole document back, so unrelated
// settings and unknown keys survive every update.
type Store struct {
	mu        sync.Mutex
	persister Persister
	exchanges ExchangeSet
	logger    *logger.Logger
	prefs     Preferences
}

// NewStore creates a store and loads the current document.
func NewStore(persister Persister, exchanges ExchangeSet, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewDiscard()
	}
	s := &Store{
		persister: persister,
		exchanges: exchanges,
		logger:    log.WithField("component", "preference_store"),
		prefs:     Defaults(),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory preferences with the persisted document.
// A missing document yields the defaults. On failure the current state is kept.
func (s *Store) Reload() error {
	prefs := Defaults()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.persister.Load(document.UserPrefs, &prefs); err != nil {
		metrics.StoreReloads.WithLabelValues(storeName, metrics.ResultError).Inc()
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	s.prefs = prefs
	metrics.StoreReloads.WithLabelValues(storeName, metrics.ResultOK).Inc()
	return nil
}

func (s *Store) save(p Preferences) error {
	if err := s.persister.Save(document.UserPrefs, p); err != nil {
		return fmt.Errorf("failed to persist preferences: %w", err)
	}
	return nil
}

// update applies fn to a copy of the preferences and commits the copy once
// it is persisted. fn returns false when nothing changed.
func (s *Store) update(op string, fn func(p *Preferences) bool) error {
	s.mu.Lock()
	next := s.prefs.Clone()
	changed := fn(&next)
	var err error
	if changed {
		if err = s.save(next); err == nil {
			s.prefs = next
		}
	}
	s.mu.Unlock()

	if !changed {
		return nil
	}
	metrics.ObserveMutation(storeName, op, err)
	if err != nil {
		s.logger.Warn("preference update failed", "op", op, "error", err)
		return err
	}
	s.logger.Debug("preference updated", "op", op)
	return nil
}

// Snapshot returns a deep copy of the current preferences.
func (s *Store) Snapshot() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Clone()
}

// Reset deletes the preference document and restores the defaults.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.persister.Remove(document.UserPrefs)
	metrics.ObserveMutation(storeName, "reset", err)
	if err != nil {
		return fmt.Errorf("failed to reset preferences: %w", err)
	}
	s.prefs = Defaults()
	s.logger.Info("preferences reset")
	return nil
}

// EnabledExchanges returns the exchanges the user chose to show, in order.
func (s *Store) EnabledExchanges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.prefs.EnabledExchanges)
}

// SetEnabledExchanges replaces the enabled exchange list. Every name must be
// supported; duplicates are dropped keeping the first occurrence.
func (s *Store) SetEnabledExchanges(names []string) error {
	list := make([]string, 0, len(names))
	for _, name := range names {
		if !s.exchanges.IsSupported(name) {
			return fmt.Errorf("%w: %q", ErrUnsupportedExchange, name)
		}
		if !slices.Contains(list, name) {
			list = append(list, name)
		}
	}

	return s.update("set_enabled_exchanges", func(p *Preferences) bool {
		if slices.Equal(p.EnabledExchanges, list) {
			return false
		}
		p.EnabledExchanges = list
		return true
	})
}

// DisplayCurrency returns the currency used for valuations.
func (s *Store) DisplayCurrency() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.DisplayCurrency
}

// SetDisplayCurrency stores the currency code upper-cased.
func (s *Store) SetDisplayCurrency(currency string) error {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return ErrMissingCurrency
	}
	return s.update("set_display_currency", func(p *Preferences) bool {
		if p.DisplayCurrency == currency {
			return false
		}
		p.DisplayCurrency = currency
		return true
	})
}

// ShowDust reports whether balances below the dust threshold are shown.
func (s *Store) ShowDust() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.ShowDust
}

func (s *Store) SetShowDust(show bool) error {
	return s.update("set_show_dust", func(p *Preferences) bool {
		if p.ShowDust == show {
			return false
		}
		p.ShowDust = show
		return true
	})
}

// Theme returns the UI theme. An unknown value on disk reads as dark.
func (s *Store) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.prefs.Theme.Valid() {
		return ThemeDark
	}
	return s.prefs.Theme
}

func (s *Store) SetTheme(theme Theme) error {
	theme = Theme(strings.ToLower(strings.TrimSpace(string(theme))))
	if !theme.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	return s.update("set_theme", func(p *Preferences) bool {
		if p.Theme == theme {
			return false
		}
		p.Theme = theme
		return true
	})
}

// RecordLastUsed remembers the subaccount selected on an exchange and, when
// pair is set, the pair last traded on that subaccount.
func (s *Store) RecordLastUsed(exchange, sub, pair string) error {
	return s.update("record_last_used", func(p *Preferences) bool {
		changed := false
		if p.LastUsed[exchange].Subaccount != sub {
			entry := p.LastUsed[exchange]
			entry.Subaccount = sub
			p.LastUsed[exchange] = entry
			changed = true
		}
		key := subaccountKey(exchange, sub)
		if pair != "" && p.LastUsed[key].Pair != pair {
			entry := p.LastUsed[key]
			entry.Pair = pair
			p.LastUsed[key] = entry
			changed = true
		}
		return changed
	})
}

// LastUsed returns the subaccount last selected on an exchange and the pair
// last traded on it. Both are empty when nothing was recorded.
func (s *Store) LastUsed(exchange string) (sub, pair string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub = s.prefs.LastUsed[exchange].Subaccount
	if sub == "" {
		return "", ""
	}
	return sub, s.prefs.LastUsed[subaccountKey(exchange, sub)].Pair
}

// LastPair returns the pair last traded on a subaccount.
func (s *Store) LastPair(exchange, sub string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.LastUsed[subaccountKey(exchange, sub)].Pair
}

// SubaccountSettings returns the stored settings object of a subaccount.
func (s *Store) SubaccountSettings(exchange, sub string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.prefs.SubaccountSettings[subaccountKey(exchange, sub)]
	if !ok {
		return nil, false
	}
	return slices.Clone(raw), true
}

// SetSubaccountSettings stores an opaque JSON object for a subaccount.
func (s *Store) SetSubaccountSettings(exchange, sub string, settings json.RawMessage) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(settings, &obj); err != nil || obj == nil {
		return ErrInvalidSettings
	}
	key := subaccountKey(exchange, sub)
	return s.update("set_subaccount_settings", func(p *Preferences) bool {
		p.SubaccountSettings[key] = compact(settings)
		return true
	})
}

// ForgetSubaccount drops every reference to a subaccount.
func (s *Store) ForgetSubaccount(exchange, sub string) error {
	key := subaccountKey(exchange, sub)
	return s.update("forget_subaccount", func(p *Preferences) bool {
		changed := false
		if p.LastUsed[exchange].Subaccount == sub {
			delete(p.LastUsed, exchange)
			changed = true
		}
		if _, ok := p.LastUsed[key]; ok {
			delete(p.LastUsed, key)
			changed = true
		}
		if _, ok := p.SubaccountSettings[key]; ok {
			delete(p.SubaccountSettings, key)
			changed = true
		}
		return changed
	})
}

// RenameSubaccount moves every reference from oldName to newName.
func (s *Store) RenameSubaccount(exchange, oldName, newName string) error {
	if oldName == newName {
		return nil
	}
	oldKey, newKey := subaccountKey(exchange, oldName), subaccountKey(exchange, newName)
	return s.update("rename_subaccount", func(p *Preferences) bool {
		changed := false
		if entry, ok := p.LastUsed[exchange]; ok && entry.Subaccount == oldName {
			entry.Subaccount = newName
			p.LastUsed[exchange] = entry
			changed = true
		}
		if entry, ok := p.LastUsed[oldKey]; ok {
			delete(p.LastUsed, oldKey)
			p.LastUsed[newKey] = entry
			changed = true
		}
		if raw, ok := p.SubaccountSettings[oldKey]; ok {
			delete(p.SubaccountSettings, oldKey)
			p.SubaccountSettings[newKey] = raw
			changed = true
		}
		return changed
	})
}
