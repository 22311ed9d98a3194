package reading

import (
	"sort"
	"time"
)

// Reading is a single generation measurement for one energy source.
// Canonical form holds at most one Reading per (source, timestamp).
type Reading struct {
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`

	// Synthetic marks a value produced by gap interpolation rather than
	// observed upstream.
	Synthetic bool `json:"synthetic,omitempty"`
}

// DefaultSources lists the fuel types reported by the upstream grid feed.
var DefaultSources = []string{
	"biomass",
	"fossil_gas",
	"fossil_hard_coal",
	"fossil_oil",
	"hydro_pumped_storage",
	"hydro_run_of_river",
	"nuclear",
	"other",
	"solar",
	"wind_offshore",
	"wind_onshore",
}

// Registry is the set of source names the service accepts. Unknown names
// in ingest payloads, query parameters, or group definitions are rejected
// eagerly against it.
type Registry struct {
	names map[string]struct{}
}

// NewRegistry builds a registry from the given source names.
func NewRegistry(names ...string) *Registry {
	r := &Registry{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		r.names[n] = struct{}{}
	}
	return r
}

// DefaultRegistry returns a registry of the standard fuel types.
func DefaultRegistry() *Registry {
	return NewRegistry(DefaultSources...)
}

// Known reports whether name is a registered source.
func (r *Registry) Known(name string) bool {
	_, ok := r.names[name]
	return ok
}

// Names returns all registered sources in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.names)
}
