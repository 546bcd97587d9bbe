package credential

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/quicktrade/internal/platform/document"
	apperrors "github.com/kislikjeka/quicktrade/internal/shared/errors"
	"github.com/kislikjeka/quicktrade/pkg/config"
)

// memPersister keeps documents as encoded JSON so tests exercise the codec.
type memPersister struct {
	docs     map[string][]byte
	saveErr  error
	loadErr  error
	saveHits int
}

func newMemPersister() *memPersister {
	return &memPersister{docs: make(map[string][]byte)}
}

func (m *memPersister) Load(name string, v any) (bool, error) {
	if m.loadErr != nil {
		return false, m.loadErr
	}
	data, ok := m.docs[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, v)
}

func (m *memPersister) Save(name string, v any) error {
	m.saveHits++
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.docs[name] = data
	return nil
}

func newTestStore(t *testing.T) (*Store, *memPersister) {
	t.Helper()
	p := newMemPersister()
	s, err := NewStore(p, config.DefaultExchanges(), nil)
	require.NoError(t, err)
	return s, p
}

func TestAddSubaccount_ScenarioKraken(t *testing.T) {
	s, _ := newTestStore(t)

	name, err := s.AddSubaccount("Kraken", "")
	require.NoError(t, err)
	assert.Equal(t, "Sub1", name)

	require.NoError(t, s.UpdateCredentials("Kraken", "Sub1", "k", "s"))

	cred, ok := s.GetCredentials("Kraken", "Sub1")
	require.True(t, ok)
	assert.Equal(t, Credential{APIKey: "k", APISecret: "s"}, cred)
}

func TestAddSubaccount_ReusesSmallestFreeSuffix(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.AddSubaccount("Kraken", "")
	require.NoError(t, err)
	_, err = s.AddSubaccount("Kraken", "")
	require.NoError(t, err)
	require.NoError(t, s.DeleteSubaccount("Kraken", "Sub1"))
	assert.Equal(t, []string{"Sub2"}, s.Subaccounts("Kraken"))

	name, err := s.AddSubaccount("Kraken", "")
	require.NoError(t, err)
	assert.Equal(t, "Sub1", name, "smallest unused suffix")

	name, err = s.AddSubaccount("Kraken", "")
	require.NoError(t, err)
	assert.Equal(t, "Sub3", name, "count+1 would have collided with Sub2")
}

func TestAddSubaccount_NamesAreAlwaysUnique(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.AddSubaccount("Binance", "Sub2")
	require.NoError(t, err)
	_, err = s.AddSubaccount("Binance", "Sub007")
	require.NoError(t, err)

	seen := map[string]bool{"Sub2": true, "Sub007": true}
	for i := 0; i < 5; i++ {
		name, err := s.AddSubaccount("Binance", "")
		require.NoError(t, err)
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
	assert.Len(t, s.Subaccounts("Binance"), 7)
}

func TestAddSubaccount_Validation(t *testing.T) {
	s, p := newTestStore(t)

	_, err := s.AddSubaccount("NotAnExchange", "")
	assert.ErrorIs(t, err, ErrUnsupportedExchange)

	_, err = s.AddSubaccount("Kraken", "Main")
	require.NoError(t, err)
	_, err = s.AddSubaccount("Kraken", "  Main ")
	assert.ErrorIs(t, err, ErrDuplicateSubaccount)
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.CodeOf(err))

	_, err = s.AddSubaccount("Kraken", "main")
	assert.NoError(t, err, "names are case-sensitive")

	long := make([]byte, MaxSubaccountNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = s.AddSubaccount("Kraken", string(long))
	assert.ErrorIs(t, err, ErrSubaccountNameTooLong)

	assert.Equal(t, 2, p.saveHits, "failed validation must not write")
}

func TestAddSubaccount_NameLengthCountsCharacters(t *testing.T) {
	s, _ := newTestStore(t)

	name := strings.Repeat("账", MaxSubaccountNameLength)
	created, err := s.AddSubaccount("Bybit", name)
	require.NoError(t, err)
	assert.Equal(t, name, created)

	_, err = s.AddSubaccount("Bybit", name+"户")
	assert.ErrorIs(t, err, ErrSubaccountNameTooLong)
}

func TestUpdateCredentials_Validation(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddSubaccount("OKX", "")
	require.NoError(t, err)

	assert.ErrorIs(t, s.UpdateCredentials("OKX", "Sub1", "   ", "s"), ErrMissingAPIKey)
	assert.ErrorIs(t, s.UpdateCredentials("OKX", "Sub1", "k", "\t"), ErrMissingAPISecret)
	assert.ErrorIs(t, s.UpdateCredentials("OKX", "Missing", "k", "s"), ErrSubaccountNotFound)

	require.NoError(t, s.UpdateCredentials("OKX", "Sub1", "  key ", " secret\n"))
	cred, _ := s.GetCredentials("OKX", "Sub1")
	assert.Equal(t, Credential{APIKey: "key", APISecret: "secret"}, cred)
}

func TestRenameSubaccount(t *testing.T) {
	s, _ := newTestStore(t)
	for _, name := range []string{"A", "B", "C"} {
		_, err := s.AddSubaccount("Bybit", name)
		require.NoError(t, err)
	}
	require.NoError(t, s.UpdateCredentials("Bybit", "A", "k", "s"))

	t.Run("conflict", func(t *testing.T) {
		err := s.RenameSubaccount("Bybit", "A", "B")
		assert.ErrorIs(t, err, ErrDuplicateSubaccount)
		assert.Equal(t, []string{"A", "B", "C"}, s.Subaccounts("Bybit"))
	})

	t.Run("same name is a no-op", func(t *testing.T) {
		assert.NoError(t, s.RenameSubaccount("Bybit", "A", "A"))
	})

	t.Run("missing", func(t *testing.T) {
		assert.ErrorIs(t, s.RenameSubaccount("Bybit", "Z", "Y"), ErrSubaccountNotFound)
	})

	t.Run("empty new name", func(t *testing.T) {
		assert.ErrorIs(t, s.RenameSubaccount("Bybit", "A", "  "), ErrMissingSubaccountName)
	})

	t.Run("success keeps position and credential", func(t *testing.T) {
		require.NoError(t, s.RenameSubaccount("Bybit", "A", "Main"))
		assert.Equal(t, []string{"Main", "B", "C"}, s.Subaccounts("Bybit"))
		assert.False(t, s.HasSubaccount("Bybit", "A"))
		cred, ok := s.GetCredentials("Bybit", "Main")
		require.True(t, ok)
		assert.Equal(t, "k", cred.APIKey)
	})
}

func TestDeleteSubaccount_PrunesEmptyExchange(t *testing.T) {
	s, p := newTestStore(t)
	_, err := s.AddSubaccount("Kraken", "")
	require.NoError(t, err)
	_, err = s.AddSubaccount("Binance", "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteSubaccount("Kraken", "Sub1"))

	assert.False(t, s.HasExchange("Kraken"))
	assert.Equal(t, []string{"Binance"}, s.Exchanges())
	assert.NotContains(t, string(p.docs[document.APIKeys]), "Kraken")

	hits := p.saveHits
	require.NoError(t, s.DeleteSubaccount("Kraken", "Sub1"))
	assert.Equal(t, hits, p.saveHits, "deleting a missing subaccount does not write")
}

func TestMutation_RollsBackOnPersistenceFailure(t *testing.T) {
	s, p := newTestStore(t)
	_, err := s.AddSubaccount("Kraken", "")
	require.NoError(t, err)
	require.NoError(t, s.BeginEdit("Kraken", "Sub1"))

	p.saveErr = apperrors.Persistence("disk full")

	_, err = s.AddSubaccount("Kraken", "")
	assert.ErrorIs(t, err, p.saveErr)
	assert.Equal(t, []string{"Sub1"}, s.Subaccounts("Kraken"))

	err = s.UpdateCredentials("Kraken", "Sub1", "k", "s")
	assert.Error(t, err)
	cred, _ := s.GetCredentials("Kraken", "Sub1")
	assert.False(t, cred.Complete())
	lock, held := s.EditLock()
	assert.True(t, held, "lock must be restored with the rollback")
	assert.Equal(t, Key{Exchange: "Kraken", Subaccount: "Sub1"}, lock)

	assert.Error(t, s.DeleteSubaccount("Kraken", "Sub1"))
	assert.True(t, s.HasSubaccount("Kraken", "Sub1"))
}

func TestNewStore_LoadError(t *testing.T) {
	p := newMemPersister()
	p.loadErr = document.ErrCorrupt

	_, err := NewStore(p, config.DefaultExchanges(), nil)
	assert.ErrorIs(t, err, document.ErrCorrupt)
}

func TestReload_KeepsStateOnError(t *testing.T) {
	s, p := newTestStore(t)
	_, err := s.AddSubaccount("Kraken", "")
	require.NoError(t, err)

	p.loadErr = errors.New("unreadable")
	assert.Error(t, s.Reload())
	assert.True(t, s.HasSubaccount("Kraken", "Sub1"))
}

func TestReload_PicksUpExternalChanges(t *testing.T) {
	s, p := newTestStore(t)
	_, err := s.AddSubaccount("Kraken", "")
	require.NoError(t, err)
	require.NoError(t, s.BeginEdit("Kraken", "Sub1"))

	p.docs[document.APIKeys] = []byte(`{"Binance":{"Main":{"api_key":"k","api_secret":"s"}}}`)

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })
	require.NoError(t, s.Reload())

	assert.Equal(t, []string{"Binance"}, s.Exchanges())
	_, held := s.EditLock()
	assert.False(t, held, "lock on a vanished subaccount is released")
	require.Len(t, changes, 1)
	assert.Equal(t, OpReload, changes[0].Op)
}

func TestSubscribe_ReceivesCommittedChanges(t *testing.T) {
	s, _ := newTestStore(t)

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	_, err := s.AddSubaccount("Kraken", "")
	require.NoError(t, err)
	require.NoError(t, s.RenameSubaccount("Kraken", "Sub1", "Main"))
	_, err = s.AddSubaccount("Kraken", "Main")
	require.Error(t, err)

	require.Len(t, changes, 2)
	assert.Equal(t, Change{Op: OpAdd, Key: Key{Exchange: "Kraken", Subaccount: "Sub1"}}, changes[0])
	assert.Equal(t, Change{Op: OpRename, Key: Key{Exchange: "Kraken", Subaccount: "Main"}, Previous: "Sub1"}, changes[1])
}

func TestStore_RoundTripThroughDisk(t *testing.T) {
	dir, err := document.Open(t.TempDir())
	require.NoError(t, err)

	s, err := NewStore(dir, config.DefaultExchanges(), nil)
	require.NoError(t, err)

	for _, ex := range []string{"Kraken", "Binance", "Bitstamp"} {
		for i := 0; i < 3; i++ {
			_, err := s.AddSubaccount(ex, "")
			require.NoError(t, err)
		}
	}
	require.NoError(t, s.RenameSubaccount("Binance", "Sub1", "zeta"))
	require.NoError(t, s.UpdateCredentials("Bitstamp", "Sub2", "key", "secret"))
	before := s.Snapshot()

	reloaded, err := NewStore(dir, config.DefaultExchanges(), nil)
	require.NoError(t, err)

	assert.Equal(t, before, reloaded.Snapshot())
	assert.Equal(t, []string{"Kraken", "Binance", "Bitstamp"}, reloaded.Exchanges())
	assert.Equal(t, []string{"zeta", "Sub2", "Sub3"}, reloaded.Subaccounts("Binance"))

	raw, err := os.ReadFile(dir.Path(document.APIKeys))
	require.NoError(t, err)
	var generic map[string]map[string]Credential
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, Credential{APIKey: "key", APISecret: "secret"}, generic["Bitstamp"]["Sub2"])
}

func TestStore_CorruptDocumentIsNotOverwritten(t *testing.T) {
	dir, err := document.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dir.Path(document.APIKeys), []byte("{not json"), 0o600))

	_, err = NewStore(dir, config.DefaultExchanges(), nil)
	require.ErrorIs(t, err, document.ErrCorrupt)

	raw, err := os.ReadFile(dir.Path(document.APIKeys))
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw))
}
