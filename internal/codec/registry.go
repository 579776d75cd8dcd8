package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Preset is a format-version configuration selected by the user before
// loading a file (for example "PES 2017" or "PES 2021").
type Preset struct {
	Key   string // Unique identifier used in forms and flags: "2017"
	Label string // Display name: "PES 2017"
	Codec Codec  // Codec that understands Config
	// Config is passed through to Codec.Parse untouched.
	Config any
}

// ErrUnknownPreset is returned by Resolve for an unregistered key.
var ErrUnknownPreset = errors.New("unknown preset")

var (
	registry   = make(map[string]Preset)
	registryMu sync.RWMutex
)

// Register adds a preset to the registry.
// Panics if a preset with the same key is already registered.
func Register(p Preset) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if p.Key == "" {
		panic("codec: preset key is empty")
	}
	if _, exists := registry[p.Key]; exists {
		panic(fmt.Sprintf("codec: preset already registered: %s", p.Key))
	}
	if p.Label == "" {
		p.Label = p.Key
	}

	registry[p.Key] = p
}

// Lookup returns a preset by key.
func Lookup(key string) (Preset, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[key]
	return p, ok
}

// Resolve returns a preset by key or an "unknown preset" error.
func Resolve(key string) (Preset, error) {
	p, ok := Lookup(key)
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, key)
	}
	return p, nil
}

// Presets returns all registered presets sorted by key.
func Presets() []Preset {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Preset, 0, len(registry))
	for _, p := range registry {
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Clear removes all registered presets.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Preset)
}
