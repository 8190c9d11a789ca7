package router

import "sync"

// keyGroup hands out per-key mutexes with reference counting, so that only
// keys with in-flight work occupy memory. It is what guarantees at most one
// event per correlation id is inside the saga at any instant, while events
// for different ids proceed in parallel.
type keyGroup struct {
	mu      sync.Mutex
	entries map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyGroup() *keyGroup {
	return &keyGroup{entries: map[string]*keyEntry{}}
}

// lock acquires the mutex for the supplied key and returns its release
// function.
func (g *keyGroup) lock(key string) func() {
	g.mu.Lock()
	entry, ok := g.entries[key]
	if !ok {
		entry = &keyEntry{}
		g.entries[key] = entry
	}
	entry.refs++
	g.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		g.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(g.entries, key)
		}
		g.mu.Unlock()
	}
}
