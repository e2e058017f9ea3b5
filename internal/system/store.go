package system

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrUnknownSystem is returned when a system name is neither a preset nor in the catalog.
var ErrUnknownSystem = errors.New("unknown system")

// ErrEmptyCatalog is returned when a fetched catalog holds no systems.
var ErrEmptyCatalog = errors.New("catalog has no systems")

// Store provides thread-safe access to the current catalog. Lookups fall back to
// the built-in presets.
type Store struct {
	catalog atomic.Pointer[Catalog]
	mu      sync.Mutex // serializes loads
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current catalog, or nil if none has been loaded.
func (s *Store) Get() *Catalog {
	return s.catalog.Load()
}

// Set atomically replaces the current catalog.
func (s *Store) Set(c *Catalog) {
	s.catalog.Store(c)
}

// AgeSeconds returns the age of the current catalog in seconds, or -1 if none is loaded.
func (s *Store) AgeSeconds() float64 {
	c := s.catalog.Load()
	if c == nil {
		return -1
	}
	return time.Since(c.LoadedAt).Seconds()
}

// Lock acquires the load mutex.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the load mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}

// Lookup finds a system by name. Catalog entries shadow presets of the same name.
func (s *Store) Lookup(name string) (System, error) {
	if c := s.catalog.Load(); c != nil {
		for _, sys := range c.Systems {
			if sys.Name == name {
				return clone(sys), nil
			}
		}
	}
	return Preset(name)
}

// All returns presets and catalog systems, sorted by name, with catalog entries
// replacing presets of the same name.
func (s *Store) All() []System {
	byName := make(map[string]System)
	for _, sys := range Presets() {
		byName[sys.Name] = sys
	}
	if c := s.catalog.Load(); c != nil {
		for _, sys := range c.Systems {
			byName[sys.Name] = clone(sys)
		}
	}
	out := make([]System, 0, len(byName))
	for _, sys := range byName {
		out = append(out, sys)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func clone(s System) System {
	s.Planets = append([]Planet(nil), s.Planets...)
	return s
}
