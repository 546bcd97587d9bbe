package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kislikjeka/quicktrade/internal/platform/credential"
	"github.com/kislikjeka/quicktrade/internal/platform/document"
	"github.com/kislikjeka/quicktrade/internal/platform/preference"
	"github.com/kislikjeka/quicktrade/pkg/config"
)

type fakeDir struct {
	states map[string]fingerprint
	err    error
}

func (f *fakeDir) ModTime(name string) (time.Time, int64, bool, error) {
	if f.err != nil {
		return time.Time{}, 0, false, f.err
	}
	s := f.states[name]
	return s.mod, s.size, s.exists, nil
}

func TestPoll_ReloadsOnlyChangedDocuments(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dir := &fakeDir{states: map[string]fingerprint{
		document.APIKeys:   {mod: base, size: 10, exists: true},
		document.UserPrefs: {},
	}}

	var keysReloads, prefsReloads int
	w := NewWatcher(dir, []Target{
		{Document: document.APIKeys, Reload: func() error { keysReloads++; return nil }},
		{Document: document.UserPrefs, Reload: func() error { prefsReloads++; return nil }},
	}, nil)

	w.Prime()
	assert.Equal(t, 0, w.Poll())

	dir.states[document.APIKeys] = fingerprint{mod: base.Add(time.Second), size: 10, exists: true}
	assert.Equal(t, 1, w.Poll())
	assert.Equal(t, 1, keysReloads)
	assert.Equal(t, 0, prefsReloads)

	dir.states[document.UserPrefs] = fingerprint{mod: base, size: 2, exists: true}
	assert.Equal(t, 1, w.Poll())
	assert.Equal(t, 1, prefsReloads)

	dir.states[document.APIKeys] = fingerprint{}
	assert.Equal(t, 1, w.Poll(), "deletion is a change")
	assert.Equal(t, 2, keysReloads)
}

func TestPoll_FailedReloadIsReportedOnce(t *testing.T) {
	dir := &fakeDir{states: map[string]fingerprint{
		document.APIKeys: {mod: time.Unix(1, 0), size: 1, exists: true},
	}}
	calls := 0
	w := NewWatcher(dir, []Target{
		{Document: document.APIKeys, Reload: func() error { calls++; return document.ErrCorrupt }},
	}, nil)

	assert.Equal(t, 0, w.Poll())
	assert.Equal(t, 0, w.Poll())
	assert.Equal(t, 1, calls)
}

func TestPoll_StatErrorSkips(t *testing.T) {
	dir := &fakeDir{err: errors.New("permission denied")}
	w := NewWatcher(dir, []Target{
		{Document: document.APIKeys, Reload: func() error { t.Fatal("unexpected reload"); return nil }},
	}, nil)
	assert.Equal(t, 0, w.Poll())
}

func TestWatcher_PicksUpExternalEdit(t *testing.T) {
	dir, err := document.Open(t.TempDir())
	require.NoError(t, err)
	store, err := credential.NewStore(dir, config.DefaultExchanges(), nil)
	require.NoError(t, err)

	w := NewWatcher(dir, []Target{{Document: document.APIKeys, Reload: store.Reload}}, nil)
	w.Prime()

	// Another process writes the document.
	other, err := credential.NewStore(dir, config.DefaultExchanges(), nil)
	require.NoError(t, err)
	_, err = other.AddSubaccount("Kraken", "FromElsewhere")
	require.NoError(t, err)

	assert.Equal(t, 1, w.Poll())
	assert.True(t, store.HasSubaccount("Kraken", "FromElsewhere"))
}

func TestRun_StopsOnCancel(t *testing.T) {
	var polls atomic.Int32
	dir := &fakeDir{states: map[string]fingerprint{}}
	w := NewWatcher(dir, []Target{{Document: document.APIKeys, Reload: func() error { polls.Add(1); return nil }}},
		&Config{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Zero(t, polls.Load(), "unchanged document is never reloaded")
}

func TestRun_NotificationTriggersReload(t *testing.T) {
	dir, err := document.Open(t.TempDir())
	require.NoError(t, err)
	store, err := credential.NewStore(dir, config.DefaultExchanges(), nil)
	require.NoError(t, err)

	reloaded := make(chan struct{}, 1)
	w := NewWatcher(dir, []Target{{Document: document.APIKeys, Reload: func() error {
		err := store.Reload()
		select {
		case reloaded <- struct{}{}:
		default:
		}
		return err
	}}}, &Config{Interval: time.Hour, NotifyDir: dir.Root()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	other, err := credential.NewStore(dir, config.DefaultExchanges(), nil)
	require.NoError(t, err)
	_, err = other.AddSubaccount("Binance", "Notified")
	require.NoError(t, err)

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after the document was written")
	}
	assert.True(t, store.HasSubaccount("Binance", "Notified"))
}

func TestTracker_OwnWritesAreNotReloaded(t *testing.T) {
	dir, err := document.Open(t.TempDir())
	require.NoError(t, err)

	w := NewWatcher(dir, nil, nil)
	tracked := w.Track(dir)
	creds, err := credential.NewStore(tracked, config.DefaultExchanges(), nil)
	require.NoError(t, err)
	prefs, err := preference.NewStore(tracked, config.DefaultExchanges(), nil)
	require.NoError(t, err)

	var credReloads, prefReloads int
	w.Add(
		Target{Document: document.APIKeys, Reload: func() error { credReloads++; return creds.Reload() }},
		Target{Document: document.UserPrefs, Reload: func() error { prefReloads++; return prefs.Reload() }},
	)
	w.Prime()

	_, err = creds.AddSubaccount("Kraken", "Main")
	require.NoError(t, err)
	require.NoError(t, creds.UpdateCredentials("Kraken", "Main", "key", "secret"))
	require.NoError(t, prefs.SetTheme(preference.ThemeLight))
	require.NoError(t, prefs.Reset())
	assert.Equal(t, 0, w.Poll())

	other, err := credential.NewStore(dir, config.DefaultExchanges(), nil)
	require.NoError(t, err)
	_, err = other.AddSubaccount("Binance", "External")
	require.NoError(t, err)

	assert.Equal(t, 1, w.Poll())
	assert.Equal(t, 1, credReloads)
	assert.Zero(t, prefReloads)
	assert.True(t, creds.HasSubaccount("Binance", "External"))
}
