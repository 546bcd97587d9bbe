package credential

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kislikjeka/quicktrade/internal/platform/document"
	"github.com/kislikjeka/quicktrade/internal/platform/metrics"
	"github.com/kislikjeka/quicktrade/pkg/logger"
)

const storeName = "credentials"

// Persister loads and saves named documents.
type Persister interface {
	Load(name string, v any) (bool, error)
	Save(name string, v any) error
}

// ExchangeSet tells which exchange names are supported.
type ExchangeSet interface {
	IsSupported(name string) bool
}

// Change describes a committed mutation.
type Change struct {
	Op  string `json:"op"`
	Key Key    `json:"key"`
	// Previous is set on rename.
	Previous string `json:"previous,omitempty"`
}

// Change operations.
const (
	OpAdd    = "add"
	OpUpdate = "update"
	OpRename = "rename"
	OpDelete = "delete"
	OpReload = "reload"
	OpEdit   = "edit"
)

// Listener is notified after a change is committed.
type Listener func(Change)

// Store is the exchange → subaccount → credential model backed by
// api_keys.json. Every mutation is persisted before it returns; when the
// write fails the in-memory state is rolled back.
type Store struct {
	mu        sync.Mutex
	persister Persister
	exchanges ExchangeSet
	logger    *logger.Logger

	doc  *Document
	lock *Key

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewStore creates a store and loads the current document.
func NewStore(persister Persister, exchanges ExchangeSet, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewDiscard()
	}
	s := &Store{
		persister: persister,
		exchanges: exchanges,
		logger:    log.WithField("component", "credential_store"),
		doc:       &Document{},
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Subscribe registers a listener for committed changes.
func (s *Store) Subscribe(l Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notify(c Change) {
	s.listenersMu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l(c)
	}
}

// Reload replaces the in-memory state with the persisted document. On
// failure the current state is kept. An edit lock whose subaccount no longer
// exists is released.
func (s *Store) Reload() error {
	s.mu.Lock()
	var doc Document
	_, err := s.persister.Load(document.APIKeys, &doc)
	if err != nil {
		s.mu.Unlock()
		metrics.StoreReloads.WithLabelValues(storeName, metrics.ResultError).Inc()
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	s.doc = &doc
	if s.lock != nil && s.doc.lookup(s.lock.Exchange, s.lock.Subaccount) == nil {
		s.lock = nil
	}
	s.mu.Unlock()

	metrics.StoreReloads.WithLabelValues(storeName, metrics.ResultOK).Inc()
	s.notify(Change{Op: OpReload})
	return nil
}

func (s *Store) save() error {
	if err := s.persister.Save(document.APIKeys, s.doc); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}
	return nil
}

// mutate runs fn against the document and persists the result. fn must
// leave the document untouched when it returns an error.
func (s *Store) mutate(op string, fn func(doc *Document) (Change, error)) (Change, error) {
	s.mu.Lock()
	prevDoc := s.doc.Clone()
	prevLock := s.lock

	change, err := fn(s.doc)
	if err == nil {
		if err = s.save(); err != nil {
			s.doc = prevDoc
			s.lock = prevLock
		}
	}
	s.mu.Unlock()

	metrics.ObserveMutation(storeName, op, err)
	if err != nil {
		s.logger.Warn("credential mutation failed", "op", op, "error", err)
		return Change{}, err
	}

	s.logger.Debug("credential mutation committed", "op", op, "exchange", change.Key.Exchange, "subaccount", change.Key.Subaccount)
	s.notify(change)
	return change, nil
}

// AddSubaccount creates a subaccount with an empty credential. When name is
// empty the smallest unused "Sub{n}" is chosen. Returns the final name.
func (s *Store) AddSubaccount(exchange, name string) (string, error) {
	if !s.exchanges.IsSupported(exchange) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedExchange, exchange)
	}

	change, err := s.mutate(OpAdd, func(doc *Document) (Change, error) {
		final := strings.TrimSpace(name)
		if final == "" {
			final = nextSubaccountName(doc.exchange(exchange))
		} else {
			var err error
			if final, err = normalizeName(final); err != nil {
				return Change{}, err
			}
			if doc.lookup(exchange, final) != nil {
				return Change{}, fmt.Errorf("%w: %s/%s", ErrDuplicateSubaccount, exchange, final)
			}
		}
		doc.add(exchange, Subaccount{Name: final})
		return Change{Op: OpAdd, Key: Key{Exchange: exchange, Subaccount: final}}, nil
	})
	if err != nil {
		return "", err
	}
	return change.Key.Subaccount, nil
}

// nextSubaccountName returns the smallest "Sub{n}", n >= 1, not in use.
func nextSubaccountName(ex *ExchangeEntry) string {
	used := make(map[int]bool)
	if ex != nil {
		for _, sub := range ex.Subaccounts {
			if n, ok := parseDefaultName(sub.Name); ok {
				used[n] = true
			}
		}
	}
	n := 1
	for used[n] {
		n++
	}
	return "Sub" + strconv.Itoa(n)
}

func parseDefaultName(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "Sub")
	if !ok || digits == "" || digits[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// UpdateCredentials stores a trimmed key and secret for an existing
// subaccount. Both must be non-empty. A held edit lock on the subaccount is
// released.
func (s *Store) UpdateCredentials(exchange, sub, apiKey, apiSecret string) error {
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" {
		return ErrMissingAPIKey
	}
	if apiSecret == "" {
		return ErrMissingAPISecret
	}

	_, err := s.mutate(OpUpdate, func(doc *Document) (Change, error) {
		entry := doc.lookup(exchange, sub)
		if entry == nil {
			return Change{}, fmt.Errorf("%w: %s/%s", ErrSubaccountNotFound, exchange, sub)
		}
		entry.Credential = Credential{APIKey: apiKey, APISecret: apiSecret}
		key := Key{Exchange: exchange, Subaccount: sub}
		if s.lock != nil && *s.lock == key {
			s.lock = nil
		}
		return Change{Op: OpUpdate, Key: key}, nil
	})
	return err
}

// RenameSubaccount moves a subaccount to a new name within its exchange,
// keeping its position and credential. Renaming to the same name is a no-op.
func (s *Store) RenameSubaccount(exchange, oldName, newName string) error {
	newName, err := normalizeName(newName)
	if err != nil {
		return err
	}

	s.mu.Lock()
	unchanged := oldName == newName && s.doc.lookup(exchange, oldName) != nil
	s.mu.Unlock()
	if unchanged {
		return nil
	}

	_, err = s.mutate(OpRename, func(doc *Document) (Change, error) {
		entry := doc.lookup(exchange, oldName)
		if entry == nil {
			return Change{}, fmt.Errorf("%w: %s/%s", ErrSubaccountNotFound, exchange, oldName)
		}
		if doc.lookup(exchange, newName) != nil {
			return Change{}, fmt.Errorf("%w: %s/%s", ErrDuplicateSubaccount, exchange, newName)
		}
		entry.Name = newName
		if s.lock != nil && *s.lock == (Key{Exchange: exchange, Subaccount: oldName}) {
			s.lock = &Key{Exchange: exchange, Subaccount: newName}
		}
		return Change{Op: OpRename, Key: Key{Exchange: exchange, Subaccount: newName}, Previous: oldName}, nil
	})
	return err
}

// DeleteSubaccount removes a subaccount and prunes its exchange when it was
// the last one. Deleting a missing subaccount is a no-op.
func (s *Store) DeleteSubaccount(exchange, sub string) error {
	s.mu.Lock()
	exists := s.doc.lookup(exchange, sub) != nil
	s.mu.Unlock()
	if !exists {
		return nil
	}

	_, err := s.mutate(OpDelete, func(doc *Document) (Change, error) {
		key := Key{Exchange: exchange, Subaccount: sub}
		doc.remove(exchange, sub)
		if s.lock != nil && *s.lock == key {
			s.lock = nil
		}
		return Change{Op: OpDelete, Key: key}, nil
	})
	return err
}

// GetCredentials returns the credential of a subaccount.
func (s *Store) GetCredentials(exchange, sub string) (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.doc.lookup(exchange, sub)
	if entry == nil {
		return Credential{}, false
	}
	return entry.Credential, true
}

// HasSubaccount reports whether the subaccount exists.
func (s *Store) HasSubaccount(exchange, sub string) bool {
	_, ok := s.GetCredentials(exchange, sub)
	return ok
}

// HasExchange reports whether the exchange has at least one subaccount.
func (s *Store) HasExchange(exchange string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.exchange(exchange) != nil
}

// Exchanges returns exchange names in insertion order.
func (s *Store) Exchanges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.doc.Exchanges))
	for _, ex := range s.doc.Exchanges {
		names = append(names, ex.Name)
	}
	return names
}

// Subaccounts returns the subaccount names of an exchange in insertion order.
func (s *Store) Subaccounts(exchange string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex := s.doc.exchange(exchange)
	if ex == nil {
		return []string{}
	}
	names := make([]string, 0, len(ex.Subaccounts))
	for _, sub := range ex.Subaccounts {
		names = append(names, sub.Name)
	}
	return names
}

// Snapshot returns a deep copy of the whole store.
func (s *Store) Snapshot() []ExchangeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone().Exchanges
}
