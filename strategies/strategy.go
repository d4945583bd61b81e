package strategies

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/market"
)

var (
	ErrDuplicate = errors.New("strategies: already registered")
	ErrUnknown   = errors.New("strategies: unknown strategy")
)

// Strategy turns market events into trade signals. OnTick must not block.
// OnOrderFill is called once per trade the strategy's signals produced.
type Strategy interface {
	Name() string
	OnTick(ev market.Event, acct ledger.Account) []market.Signal
	OnOrderFill(tr ledger.Trade)
}

// Info describes a strategy for listings and reports.
type Info struct {
	Name        string         `json:"name"`
	Author      string         `json:"author,omitempty"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Describer is implemented by strategies that carry metadata.
type Describer interface {
	Info() Info
}

// Describe returns the strategy's metadata, or just its name.
func Describe(s Strategy) Info {
	if d, ok := s.(Describer); ok {
		return d.Info()
	}
	return Info{Name: s.Name()}
}

// Registry holds named strategies and tracks which of them are active.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	active     map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		active:     make(map[string]bool),
	}
}

// Register adds s under its name. New strategies start inactive.
func (r *Registry) Register(s Strategy) error {
	name := s.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("strategies: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.strategies[name] = s
	return nil
}

func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	delete(r.strategies, name)
	delete(r.active, name)
	return nil
}

func (r *Registry) Activate(name string) error {
	return r.setActive(name, true)
}

func (r *Registry) Deactivate(name string) error {
	return r.setActive(name, false)
}

func (r *Registry) setActive(name string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	if on {
		r.active[name] = true
	} else {
		delete(r.active, name)
	}
	return nil
}

func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// IsActive reports whether name is registered and active.
func (r *Registry) IsActive(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[name]
}

// Active returns the active strategies ordered by name.
func (r *Registry) Active() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.active))
	for n := range r.active {
		names = append(names, n)
	}
	slices.Sort(names)

	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		out = append(out, r.strategies[n])
	}
	return out
}

// Names returns every registered name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
