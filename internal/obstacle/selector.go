package obstacle

import (
	"slices"
)

// Config bundles the tunables that define selection and scoring.
type Config struct {
	Geometry Geometry
	Weights  Weights
	Position PositionWeights
}

// DefaultConfig returns the documented constant set.
func DefaultConfig() Config {
	return Config{
		Geometry: DefaultGeometry(),
		Weights:  DefaultWeights(),
		Position: DefaultPositionWeights(),
	}
}

// Validate checks every part of the configuration.
func (c Config) Validate() error {
	if err := c.Geometry.Validate(); err != nil {
		return err
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	return c.Position.Validate()
}

// Scored is a surviving detection annotated with everything downstream
// stages need.
type Scored struct {
	Detection  Detection    `json:"detection"`
	Profile    ClassProfile `json:"-"`
	Priority   float32      `json:"priority"`
	Region     Region       `json:"region"`
	Closeness  Closeness    `json:"closeness"`
	OnGround   bool         `json:"on_ground"`
	HistoryKey string       `json:"history_key"`
	// Index is the position of the detection in the input frame.
	Index int `json:"index"`
}

// Rejection records a detection dropped for a malformed box.
type Rejection struct {
	Index int
	Err   error
}

// Selection is the ranked output of one frame.
type Selection struct {
	Candidates     []Scored
	Rejected       []Rejection
	BelowThreshold int
}

// Best returns the highest-priority candidate.
func (s Selection) Best() (Scored, bool) {
	if len(s.Candidates) == 0 {
		return Scored{}, false
	}
	return s.Candidates[0], true
}

// Top returns at most n leading candidates.
func (s Selection) Top(n int) []Scored {
	if n <= 0 {
		return nil
	}
	if n > len(s.Candidates) {
		n = len(s.Candidates)
	}
	return s.Candidates[:n]
}

// Selector filters and ranks a frame's detections.
type Selector struct {
	table    *ClassTable
	scorer   *Scorer
	geometry Geometry
}

// NewSelector creates a selector over table using cfg.
func NewSelector(table *ClassTable, cfg Config) *Selector {
	return &Selector{
		table:    table,
		scorer:   NewScorer(cfg.Weights, cfg.Position, cfg.Geometry),
		geometry: cfg.Geometry,
	}
}

// Scorer returns the scorer used for ranking.
func (s *Selector) Scorer() *Scorer {
	return s.scorer
}

// Geometry returns the shared threshold set.
func (s *Selector) Geometry() Geometry {
	return s.geometry
}

// Select resolves profiles, rejects malformed boxes, drops detections below
// their class area threshold and returns survivors sorted by descending
// priority. Equal priorities keep input order. No input yields an error.
func (s *Selector) Select(dets []Detection) Selection {
	var sel Selection
	if len(dets) == 0 {
		return sel
	}

	sel.Candidates = make([]Scored, 0, len(dets))
	for i, det := range dets {
		if err := det.Box.Validate(); err != nil {
			sel.Rejected = append(sel.Rejected, Rejection{Index: i, Err: err})
			continue
		}

		det.Label = NormalizeLabel(det.Label)
		profile, _ := s.table.Lookup(det.Label)
		if det.Box.Area() < profile.AreaThreshold {
			sel.BelowThreshold++
			continue
		}

		sel.Candidates = append(sel.Candidates, Scored{
			Detection:  det,
			Profile:    profile,
			Priority:   s.scorer.Score(det, profile),
			Region:     s.geometry.HorizontalRegion(det.Box),
			Closeness:  s.geometry.ClosenessBucket(det.Box),
			OnGround:   s.geometry.IsOnGround(det, profile),
			HistoryKey: s.geometry.HistoryKey(det),
			Index:      i,
		})
	}

	slices.SortStableFunc(sel.Candidates, func(a, b Scored) int {
		switch {
		case a.Priority > b.Priority:
			return -1
		case a.Priority < b.Priority:
			return 1
		default:
			return 0
		}
	})
	return sel
}
