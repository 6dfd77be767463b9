package obstacle

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultLabel is the mandatory profile used for unrecognized labels.
const DefaultLabel = "default"

// ClassProfile holds the static per-class filtering and scoring parameters.
type ClassProfile struct {
	Label         string  `yaml:"label" json:"label" mapstructure:"label"`
	AreaThreshold float32 `yaml:"area_threshold" json:"area_threshold" mapstructure:"area_threshold"`
	Relevance     float32 `yaml:"relevance" json:"relevance" mapstructure:"relevance"`
	// CompactGround classes only count as on the ground when their box is
	// short; a wide box alone is not enough.
	CompactGround bool `yaml:"compact_ground" json:"compact_ground" mapstructure:"compact_ground"`
}

// IsDefault reports whether p is the fallback profile.
func (p ClassProfile) IsDefault() bool {
	return p.Label == DefaultLabel
}

// ClassTable is an immutable, case-insensitive label -> profile map.
type ClassTable struct {
	profiles map[string]ClassProfile
	fallback ClassProfile
}

// NewClassTable validates profiles and builds a table. Exactly one profile
// must be labelled "default".
func NewClassTable(profiles []ClassProfile) (*ClassTable, error) {
	t := &ClassTable{profiles: make(map[string]ClassProfile, len(profiles))}
	hasDefault := false

	for i, p := range profiles {
		p.Label = NormalizeLabel(p.Label)
		if p.Label == "" {
			return nil, fmt.Errorf("class profile %d: empty label", i)
		}
		if p.AreaThreshold < 0 || p.AreaThreshold > 1 {
			return nil, fmt.Errorf("class %q: area threshold %v outside [0,1]", p.Label, p.AreaThreshold)
		}
		if p.Relevance < 0 || p.Relevance > 1 {
			return nil, fmt.Errorf("class %q: relevance %v outside [0,1]", p.Label, p.Relevance)
		}
		if _, dup := t.profiles[p.Label]; dup || (p.Label == DefaultLabel && hasDefault) {
			return nil, fmt.Errorf("class %q defined more than once", p.Label)
		}

		if p.Label == DefaultLabel {
			t.fallback = p
			hasDefault = true
			continue
		}
		t.profiles[p.Label] = p
	}

	if !hasDefault {
		return nil, fmt.Errorf("class table requires a %q profile", DefaultLabel)
	}
	return t, nil
}

// MustClassTable is NewClassTable for static tables known to be valid.
func MustClassTable(profiles []ClassProfile) *ClassTable {
	t, err := NewClassTable(profiles)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup resolves label to its profile, falling back to the default profile.
// The second result reports whether the label was known.
func (t *ClassTable) Lookup(label string) (ClassProfile, bool) {
	p, ok := t.profiles[NormalizeLabel(label)]
	if !ok {
		return t.fallback, false
	}
	return p, true
}

// Default returns the fallback profile.
func (t *ClassTable) Default() ClassProfile {
	return t.fallback
}

// Profiles returns all profiles sorted by label, default last.
func (t *ClassTable) Profiles() []ClassProfile {
	out := make([]ClassProfile, 0, len(t.profiles)+1)
	for _, p := range t.profiles {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b ClassProfile) int { return strings.Compare(a.Label, b.Label) })
	return append(out, t.fallback)
}

// DefaultProfiles is the built-in class table for the street-obstacle model
// labels. Small or rarely relevant classes carry a higher area threshold.
func DefaultProfiles() []ClassProfile {
	return []ClassProfile{
		{Label: "person", AreaThreshold: 0.03, Relevance: 1.0},
		{Label: "bicycle", AreaThreshold: 0.04, Relevance: 0.8},
		{Label: "car", AreaThreshold: 0.04, Relevance: 0.9},
		{Label: "motorcycle", AreaThreshold: 0.04, Relevance: 0.85},
		{Label: "bus", AreaThreshold: 0.06, Relevance: 0.9},
		{Label: "truck", AreaThreshold: 0.07, Relevance: 0.9},
		{Label: "traffic light", AreaThreshold: 0.02, Relevance: 0.6},
		{Label: "fire hydrant", AreaThreshold: 0.015, Relevance: 0.5},
		{Label: "stop sign", AreaThreshold: 0.01, Relevance: 0.6},
		{Label: "bench", AreaThreshold: 0.04, Relevance: 0.55},
		{Label: "dog", AreaThreshold: 0.02, Relevance: 0.7},
		{Label: "cat", AreaThreshold: 0.015, Relevance: 0.6},
		{Label: "chair", AreaThreshold: 0.05, Relevance: 0.6, CompactGround: true},
		{Label: "potted plant", AreaThreshold: 0.04, Relevance: 0.4, CompactGround: true},
		{Label: DefaultLabel, AreaThreshold: 0.05, Relevance: 0.3},
	}
}
