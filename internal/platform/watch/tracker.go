package watch

// Persister is the document store a Tracker wraps.
type Persister interface {
	Stater
	Load(name string, v any) (bool, error)
	Save(name string, v any) error
	Remove(name string) error
}

// Tracker is a Persister that reports its own writes to a watcher, so a
// process only reloads documents changed by someone else.
type Tracker struct {
	Persister
	watcher *Watcher
}

// Track wraps p so writes through it are not seen as external changes.
func (w *Watcher) Track(p Persister) *Tracker {
	return &Tracker{Persister: p, watcher: w}
}

func (t *Tracker) Save(name string, v any) error {
	return t.watcher.Observe(name, func() error { return t.Persister.Save(name, v) })
}

func (t *Tracker) Remove(name string) error {
	return t.watcher.Observe(name, func() error { return t.Persister.Remove(name) })
}
