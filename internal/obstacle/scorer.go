package obstacle

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Weights are the linear coefficients of the priority score.
type Weights struct {
	Area      float32
	Relevance float32
	Position  float32
	Closeness float32
}

// DefaultWeights returns Wa=1.5, Wr=3.0, Wp=1.0, Wc=2.5.
func DefaultWeights() Weights {
	return Weights{Area: 1.5, Relevance: 3.0, Position: 1.0, Closeness: 2.5}
}

// PositionWeights shape the position term:
// regionWeight * (ElevationBase + ElevationRange*(1-centerY)) + FloorBonus.
type PositionWeights struct {
	Center         float32
	Side           float32
	FloorBonus     float32
	ElevationBase  float32
	ElevationRange float32
}

// DefaultPositionWeights favours the center and adds a floor bonus.
func DefaultPositionWeights() PositionWeights {
	return PositionWeights{
		Center:         1.0,
		Side:           0.7,
		FloorBonus:     0.3,
		ElevationBase:  0.8,
		ElevationRange: 0.4,
	}
}

// Validate rejects negative coefficients, which would break monotonicity.
func (w Weights) Validate() error {
	for _, v := range [...]float32{w.Area, w.Relevance, w.Position, w.Closeness} {
		if math32.IsNaN(v) || v < 0 {
			return fmt.Errorf("scoring weight %v must be a non-negative number", v)
		}
	}
	return nil
}

// Validate rejects negative values and a side weight above the center weight.
func (p PositionWeights) Validate() error {
	for _, v := range [...]float32{p.Center, p.Side, p.FloorBonus, p.ElevationBase, p.ElevationRange} {
		if math32.IsNaN(v) || v < 0 {
			return fmt.Errorf("position weight %v must be a non-negative number", v)
		}
	}
	if p.Side > p.Center {
		return fmt.Errorf("side weight %v exceeds center weight %v", p.Side, p.Center)
	}
	return nil
}

// Terms is the per-term breakdown of a score, used for debug logging.
type Terms struct {
	Area      float32
	Relevance float32
	Position  float32
	Closeness float32
}

// Scorer computes a detection's priority. It is stateless and deterministic.
type Scorer struct {
	weights  Weights
	position PositionWeights
	geometry Geometry
}

// NewScorer creates a scorer from weights and the shared geometry.
func NewScorer(weights Weights, position PositionWeights, geometry Geometry) *Scorer {
	return &Scorer{weights: weights, position: position, geometry: geometry}
}

// Score returns Wa*area + Wr*relevance + Wp*position + Wc*closeness.
func (s *Scorer) Score(det Detection, profile ClassProfile) float32 {
	t := s.Terms(det, profile)
	return s.weights.Area*t.Area +
		s.weights.Relevance*t.Relevance +
		s.weights.Position*t.Position +
		s.weights.Closeness*t.Closeness
}

// Terms computes each bounded term of the score.
func (s *Scorer) Terms(det Detection, profile ClassProfile) Terms {
	b := det.Box
	return Terms{
		Area:      clamp01(b.Area()),
		Relevance: clamp01(profile.Relevance),
		Position:  s.positionTerm(det, profile),
		Closeness: clamp01(b.Height()),
	}
}

func (s *Scorer) positionTerm(det Detection, profile ClassProfile) float32 {
	regionWeight := s.position.Side
	if s.geometry.HorizontalRegion(det.Box) == RegionCenter {
		regionWeight = s.position.Center
	}

	elevation := s.position.ElevationBase + s.position.ElevationRange*(1-clamp01(det.Box.CenterY()))
	term := regionWeight * elevation
	if s.geometry.IsOnGround(det, profile) {
		term += s.position.FloorBonus
	}
	return term
}
