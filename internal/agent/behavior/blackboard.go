package behavior

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Blackboard is the key/value store shared by every node of one tree and
// by the simulation callbacks bound to it. Writes are visible to the next
// read immediately; there is no per-tick snapshot.
type Blackboard struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewBlackboard() *Blackboard {
	return &Blackboard{
		data: make(map[string]any),
	}
}

// NewBlackboardFrom seeds a blackboard with a copy of values.
func NewBlackboardFrom(values map[string]any) *Blackboard {
	b := NewBlackboard()
	maps.Copy(b.data, values)
	return b
}

func (b *Blackboard) Set(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
}

func (b *Blackboard) Get(key string) any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data[key]
}

func (b *Blackboard) Has(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[key]
	return ok
}

func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
}

// GetString returns the string form of the value at key. Missing keys and
// nil values read as "".
func (b *Blackboard) GetString(key string) string {
	return stringForm(b.Get(key))
}

// Keys returns the keys in sorted order.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.data))
}

// Snapshot returns a shallow copy suitable for saving.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.data)
}

// Replace drops every key and loads values in their place.
func (b *Blackboard) Replace(values map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.data)
	maps.Copy(b.data, values)
}

func stringForm(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
