// Package modelcache holds the process-wide note-type registry. Note types
// are fetched once from the engine and shared across consumers; the cache is
// never invalidated within the process lifetime except by an explicit Reset.
package modelcache

import (
	"context"
	"sort"
	"sync"

	"ankitui/pkg/models"
)

// FetchFunc loads all note-type definitions from the engine.
type FetchFunc func(ctx context.Context) ([]models.NoteType, error)

// Registry is a read-through cache of note types. It has two states,
// uninitialized and initialized; concurrent initialization attempts collapse
// to a single underlying fetch.
type Registry struct {
	mu       sync.Mutex
	loading  chan struct{} // non-nil while a fetch is in flight
	loadErr  error
	ready    bool
	types    map[string]models.NoteType
	watchers map[int]chan struct{}
	nextID   int
}

// NewRegistry creates an empty, uninitialized registry.
func NewRegistry() *Registry {
	return &Registry{
		types:    make(map[string]models.NoteType),
		watchers: make(map[int]chan struct{}),
	}
}

var (
	sharedOnce sync.Once
	shared     *Registry
)

// Shared returns the process-wide registry.
func Shared() *Registry {
	sharedOnce.Do(func() {
		shared = NewRegistry()
	})
	return shared
}

// Initialized reports whether the registry holds fetched note types.
func (r *Registry) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// Ensure initializes the registry through fetch unless it is already
// initialized. If another caller's fetch is in flight, Ensure waits for it
// instead of issuing a duplicate.
func (r *Registry) Ensure(ctx context.Context, fetch FetchFunc) error {
	for {
		r.mu.Lock()
		if r.ready {
			r.mu.Unlock()
			return nil
		}
		if r.loading != nil {
			done := r.loading
			r.mu.Unlock()
			select {
			case <-done:
				// The in-flight fetch's failure is surfaced to every waiter.
				// Looping back to fetch again only happens when a Reset
				// cleared both flags between completion and wake-up.
				r.mu.Lock()
				ready, loadErr := r.ready, r.loadErr
				r.mu.Unlock()
				if ready {
					return nil
				}
				if loadErr != nil {
					return loadErr
				}
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		done := make(chan struct{})
		r.loading = done
		r.mu.Unlock()

		types, err := fetch(ctx)

		r.mu.Lock()
		r.loading = nil
		r.loadErr = err
		if err == nil {
			r.types = make(map[string]models.NoteType, len(types))
			for _, nt := range types {
				r.types[nt.Name] = nt
			}
			r.ready = true
		}
		watchers := r.snapshotWatchersLocked()
		r.mu.Unlock()
		close(done)

		if err == nil {
			notify(watchers)
		}
		return err
	}
}

// Get returns the note type with the given name.
func (r *Registry) Get(name string) (models.NoteType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nt, ok := r.types[name]
	return nt, ok
}

// All returns every cached note type, sorted by name.
func (r *Registry) All() []models.NoteType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.NoteType, 0, len(r.types))
	for _, nt := range r.types {
		out = append(out, nt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset drops all cached note types, returning the registry to the
// uninitialized state. Subscribers are notified.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.types = make(map[string]models.NoteType)
	r.ready = false
	r.loadErr = nil
	watchers := r.snapshotWatchersLocked()
	r.mu.Unlock()
	notify(watchers)
}

// Subscribe registers for change notification. The returned channel receives
// one token per initialization or reset; cancel removes the subscription.
func (r *Registry) Subscribe() (<-chan struct{}, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	ch := make(chan struct{}, 1)
	r.watchers[id] = ch
	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.watchers, id)
	}
	return ch, cancel
}

func (r *Registry) snapshotWatchersLocked() []chan struct{} {
	out := make([]chan struct{}, 0, len(r.watchers))
	for _, ch := range r.watchers {
		out = append(out, ch)
	}
	return out
}

// notify delivers a non-blocking token to each watcher; a watcher that has
// not drained its previous token is skipped rather than blocked on.
func notify(watchers []chan struct{}) {
	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
