package verses

import (
	"fmt"
	"sync"
	"time"

	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
)

// Loader builds a Store from some dataset source.
type Loader func() (*Store, error)

// LazyStore loads its dataset on first use. Concurrent first callers block
// until the single load finishes and then share the result. A failed load
// leaves an empty store with the configured translation label.
type LazyStore struct {
	loader      Loader
	translation string

	once  sync.Once
	store *Store
	err   error
}

// NewLazy returns a LazyStore that calls loader at most once.
func NewLazy(loader Loader, translation string) *LazyStore {
	return &LazyStore{loader: loader, translation: translation}
}

// Store returns the loaded store, loading it if needed. It never returns nil.
func (l *LazyStore) Store() *Store {
	l.once.Do(l.load)
	return l.store
}

// Err returns the load error, if any. It triggers the load.
func (l *LazyStore) Err() error {
	l.once.Do(l.load)
	return l.err
}

func (l *LazyStore) load() {
	start := time.Now()

	s, err := l.safeLoad()
	if err == nil && s == nil {
		err = fmt.Errorf("loader returned no store")
	}
	if err != nil {
		l.err = err
		l.store = New(l.translation, nil)
		logging.DatasetUnavailable(l.translation, err)
		return
	}

	l.store = s
	logging.DatasetLoaded(s.Translation(), s.Len(), time.Since(start))
}

// safeLoad converts a loader panic into an error so the once-guarded load
// still leaves a usable store behind.
func (l *LazyStore) safeLoad() (s *Store, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("loader panic: %v", r)
		}
	}()
	if l.loader == nil {
		return nil, fmt.Errorf("no dataset loader configured")
	}
	return l.loader()
}

// Lookup is Store().Lookup(ref).
func (l *LazyStore) Lookup(ref scripture.Reference) (*Passage, bool) {
	return l.Store().Lookup(ref)
}

// Search is Store().Search(query, limit).
func (l *LazyStore) Search(query string, limit int) []Match {
	return l.Store().Search(query, limit)
}
