package credential

import "fmt"

// EditState is the UI-facing lifecycle state of a subaccount.
//
//	NEW ──save──▶ SAVED ──edit──▶ EDITING ──save──▶ SAVED
//	 │                               │
//	 └────────────delete─────────────┴──▶ DELETED
type EditState string

const (
	StateNew     EditState = "new"
	StateSaved   EditState = "saved"
	StateEditing EditState = "editing"
	StateDeleted EditState = "deleted"
)

// Row is one subaccount as a settings surface displays it. Surfaces key
// their callbacks by Row.Key and look the current state up again on
// dispatch instead of capturing it.
type Row struct {
	Key       Key       `json:"key"`
	State     EditState `json:"state"`
	MaskedKey string    `json:"masked_key"`
	Locked    bool      `json:"locked"`
	Editable  bool      `json:"editable"`
}

// BeginEdit takes the store-wide edit lock for a subaccount. Only one
// subaccount may be under edit at a time; taking the lock again for the
// same subaccount succeeds.
func (s *Store) BeginEdit(exchange, sub string) error {
	key := Key{Exchange: exchange, Subaccount: sub}

	s.mu.Lock()
	if s.doc.lookup(exchange, sub) == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrSubaccountNotFound, exchange, sub)
	}
	if s.lock != nil && *s.lock != key {
		holder := *s.lock
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEditInProgress, holder)
	}
	already := s.lock != nil
	s.lock = &key
	s.mu.Unlock()

	if !already {
		s.notify(Change{Op: OpEdit, Key: key})
	}
	return nil
}

// CancelEdit releases the edit lock, if any, and returns the key that held it.
func (s *Store) CancelEdit() (Key, bool) {
	s.mu.Lock()
	if s.lock == nil {
		s.mu.Unlock()
		return Key{}, false
	}
	key := *s.lock
	s.lock = nil
	s.mu.Unlock()

	s.notify(Change{Op: OpEdit, Key: key})
	return key, true
}

// EditLock returns the subaccount currently under edit.
func (s *Store) EditLock() (Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock == nil {
		return Key{}, false
	}
	return *s.lock, true
}

// State returns the lifecycle state of a subaccount. A missing subaccount
// reports StateDeleted together with ErrSubaccountNotFound.
func (s *Store) State(exchange, sub string) (EditState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.doc.lookup(exchange, sub)
	if entry == nil {
		return StateDeleted, fmt.Errorf("%w: %s/%s", ErrSubaccountNotFound, exchange, sub)
	}
	return s.stateOf(Key{Exchange: exchange, Subaccount: sub}, entry.Credential), nil
}

func (s *Store) stateOf(key Key, cred Credential) EditState {
	switch {
	case !cred.Complete():
		return StateNew
	case s.lock != nil && *s.lock == key:
		return StateEditing
	default:
		return StateSaved
	}
}

// Rows returns every subaccount in display order. While an edit lock is
// held only the locked row is editable.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := []Row{}
	for _, ex := range s.doc.Exchanges {
		rows = append(rows, s.rowsOf(ex)...)
	}
	return rows
}

// ExchangeRows returns the rows of one exchange.
func (s *Store) ExchangeRows(exchange string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex := s.doc.exchange(exchange)
	if ex == nil {
		return []Row{}
	}
	return s.rowsOf(*ex)
}

func (s *Store) rowsOf(ex ExchangeEntry) []Row {
	rows := make([]Row, 0, len(ex.Subaccounts))
	for _, sub := range ex.Subaccounts {
		key := Key{Exchange: ex.Name, Subaccount: sub.Name}
		locked := s.lock != nil && *s.lock == key
		rows = append(rows, Row{
			Key:       key,
			State:     s.stateOf(key, sub.Credential),
			MaskedKey: sub.Credential.MaskedKey(),
			Locked:    locked,
			Editable:  s.lock == nil || locked,
		})
	}
	return rows
}
