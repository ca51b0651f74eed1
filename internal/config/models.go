package config

import "sort"

// ModelDefinition is one entry of the adapter-scoped model_registry
// config section.
type ModelDefinition struct {
	ID      string `mapstructure:"id"`
	Label   string `mapstructure:"label"`
	Tier    string `mapstructure:"tier"`
	Note    string `mapstructure:"note"`
	Default bool   `mapstructure:"default"`
	Enabled bool   `mapstructure:"enabled"`
}

// ModelRegistry resolves short model aliases (e.g. "opus") to
// fully-qualified model ids per backend, so callers and
// query_decisions/analyze_decisions output don't need to track full
// ids.
type ModelRegistry struct {
	byBackend map[string][]ModelDefinition
}

// NewModelRegistry builds a registry from the config's model_registry
// section, keyed by backend id.
func NewModelRegistry(raw map[string][]ModelDefinition) *ModelRegistry {
	r := &ModelRegistry{byBackend: make(map[string][]ModelDefinition, len(raw))}
	for backendID, defs := range raw {
		normalized := make([]ModelDefinition, len(defs))
		copy(normalized, defs)
		for i := range normalized {
			if normalized[i].Label == "" {
				normalized[i].Label = normalized[i].ID
			}
		}
		sort.SliceStable(normalized, func(i, j int) bool {
			if normalized[i].Default != normalized[j].Default {
				return normalized[i].Default
			}
			return normalized[i].Label < normalized[j].Label
		})
		r.byBackend[backendID] = normalized
	}
	return r
}

// Resolve expands a short alias to its fully-qualified model id for
// backendID. If modelOrAlias is not a known alias, it is returned
// unchanged: unrestricted/unregistered backends pass any id through.
func (r *ModelRegistry) Resolve(backendID, modelOrAlias string) string {
	for _, def := range r.enabled(backendID) {
		if def.Label == modelOrAlias || def.ID == modelOrAlias {
			return def.ID
		}
	}
	return modelOrAlias
}

// Default returns the default model id for backendID, if configured.
// It prefers the entry marked default among enabled entries, falling
// back to the first enabled entry.
func (r *ModelRegistry) Default(backendID string) (string, bool) {
	entries := r.enabled(backendID)
	if len(entries) == 0 {
		return "", false
	}
	for _, e := range entries {
		if e.Default {
			return e.ID, true
		}
	}
	return entries[0].ID, true
}

// IsAllowed reports whether modelID is allowlisted for backendID.
// Backends with no registry entries at all are unrestricted.
func (r *ModelRegistry) IsAllowed(backendID, modelID string) bool {
	defs, ok := r.byBackend[backendID]
	if !ok {
		return true
	}
	for _, d := range defs {
		if d.Enabled && d.ID == modelID {
			return true
		}
	}
	return false
}

// DisplayName returns the human label for modelID on backendID,
// falling back to modelID itself when unregistered.
func (r *ModelRegistry) DisplayName(backendID, modelID string) string {
	for _, d := range r.byBackend[backendID] {
		if d.ID == modelID {
			return d.Label
		}
	}
	return modelID
}

func (r *ModelRegistry) enabled(backendID string) []ModelDefinition {
	var out []ModelDefinition
	for _, d := range r.byBackend[backendID] {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}
