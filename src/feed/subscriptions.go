package feed

import (
	"sort"
	"sync"
)

// -----------------------------------------------------------------------------

// SubscriptionRegistry tracks which symbols the feed currently wants, with set
// semantics: a symbol requested by multiple subscribers is represented once.
// There is no reference counting; eager unsubscribe is best-effort only.
type SubscriptionRegistry struct {
	mu      sync.Mutex
	symbols map[string]struct{}
}

// -----------------------------------------------------------------------------

// NewSubscriptionRegistry creates an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{
		symbols: make(map[string]struct{}),
	}
}

// -----------------------------------------------------------------------------

// Add inserts a symbol, reporting whether it was newly added.
func (r *SubscriptionRegistry) Add(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.symbols[symbol]; exists {
		return false
	}
	r.symbols[symbol] = struct{}{}
	return true
}

// -----------------------------------------------------------------------------

// Remove deletes a symbol, reporting whether it was present.
func (r *SubscriptionRegistry) Remove(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.symbols[symbol]; !exists {
		return false
	}
	delete(r.symbols, symbol)
	return true
}

// -----------------------------------------------------------------------------

// Has reports whether a symbol is currently subscribed.
func (r *SubscriptionRegistry) Has(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.symbols[symbol]
	return exists
}

// -----------------------------------------------------------------------------

// List returns the subscribed symbols in sorted order.
func (r *SubscriptionRegistry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbols := make([]string, 0, len(r.symbols))
	for symbol := range r.symbols {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// -----------------------------------------------------------------------------

// Len returns the number of subscribed symbols.
func (r *SubscriptionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.symbols)
}
