package obstacle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultScorer() *Scorer {
	return NewScorer(DefaultWeights(), DefaultPositionWeights(), DefaultGeometry())
}

func TestScorer_KnownValue(t *testing.T) {
	t.Parallel()

	// center, centerY 0.5, not on ground: position = 1.0 * (0.8 + 0.4*0.5) = 1.0
	det := Detection{Label: "car", Box: Box{X1: 0.4, Y1: 0.3, X2: 0.6, Y2: 0.7}}
	profile := ClassProfile{Label: "car", Relevance: 0.9}

	terms := defaultScorer().Terms(det, profile)
	assert.InDelta(t, 0.08, terms.Area, 1e-5)
	assert.InDelta(t, 0.9, terms.Relevance, 1e-6)
	assert.InDelta(t, 1.0, terms.Position, 1e-5)
	assert.InDelta(t, 0.4, terms.Closeness, 1e-5)

	want := 1.5*0.08 + 3.0*0.9 + 1.0*1.0 + 2.5*0.4
	assert.InDelta(t, want, defaultScorer().Score(det, profile), 1e-4)
}

func TestScorer_AreaMonotonic(t *testing.T) {
	t.Parallel()

	s := defaultScorer()
	profile := ClassProfile{Label: "bench", Relevance: 0.5}
	// same class, center and height; only width (and so area) differs
	wide := Detection{Label: "bench", Box: Box{X1: 0.35, Y1: 0.2, X2: 0.65, Y2: 0.6}}
	narrow := Detection{Label: "bench", Box: Box{X1: 0.45, Y1: 0.2, X2: 0.55, Y2: 0.6}}

	require.Greater(t, wide.Box.Area(), narrow.Box.Area())
	assert.Greater(t, s.Score(wide, profile), s.Score(narrow, profile))
}

func TestScorer_EachTermMonotonic(t *testing.T) {
	t.Parallel()

	s := defaultScorer()
	base := Detection{Label: "dog", Box: Box{X1: 0.4, Y1: 0.3, X2: 0.6, Y2: 0.6}}
	profile := ClassProfile{Label: "dog", Relevance: 0.5}

	t.Run("relevance", func(t *testing.T) {
		t.Parallel()
		higher := profile
		higher.Relevance = 0.9
		assert.Greater(t, s.Score(base, higher), s.Score(base, profile))
	})

	t.Run("center beats side", func(t *testing.T) {
		t.Parallel()
		side := base
		side.Box = Box{X1: 0.0, Y1: 0.3, X2: 0.2, Y2: 0.6}
		assert.Greater(t, s.Score(base, profile), s.Score(side, profile))
	})

	t.Run("taller box scores higher", func(t *testing.T) {
		t.Parallel()
		zero := NewScorer(Weights{Closeness: 1}, DefaultPositionWeights(), DefaultGeometry())
		taller := base
		taller.Box.Y1 = 0.1
		assert.Greater(t, zero.Score(taller, profile), zero.Score(base, profile))
	})

	t.Run("floor bonus", func(t *testing.T) {
		t.Parallel()
		onlyPosition := NewScorer(Weights{Position: 1}, DefaultPositionWeights(), DefaultGeometry())
		floor := Detection{Label: "dog", Box: Box{X1: 0.45, Y1: 0.8, X2: 0.55, Y2: 0.95}}
		require.True(t, DefaultGeometry().IsOnGround(floor, profile))

		noBonus := DefaultPositionWeights()
		noBonus.FloorBonus = 0
		without := NewScorer(Weights{Position: 1}, noBonus, DefaultGeometry())
		assert.InDelta(t, 0.3, onlyPosition.Score(floor, profile)-without.Score(floor, profile), 1e-5)
	})

	t.Run("elevation favours higher objects", func(t *testing.T) {
		t.Parallel()
		onlyPosition := NewScorer(Weights{Position: 1}, DefaultPositionWeights(), DefaultGeometry())
		high := Detection{Label: "dog", Box: Box{X1: 0.4, Y1: 0.05, X2: 0.6, Y2: 0.25}}
		low := Detection{Label: "dog", Box: Box{X1: 0.4, Y1: 0.55, X2: 0.6, Y2: 0.75}}
		assert.Greater(t, onlyPosition.Score(high, profile), onlyPosition.Score(low, profile))
	})
}

func TestScorer_Deterministic(t *testing.T) {
	t.Parallel()

	s := defaultScorer()
	det := Detection{Label: "cat", Box: Box{X1: 0.1, Y1: 0.5, X2: 0.3, Y2: 0.9}}
	profile := ClassProfile{Label: "cat", Relevance: 0.6}
	first := s.Score(det, profile)
	for range 100 {
		require.InDelta(t, first, s.Score(det, profile), 0)
	}
}

func TestWeights_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultWeights().Validate())
	require.Error(t, Weights{Area: -1}.Validate())

	require.NoError(t, DefaultPositionWeights().Validate())
	bad := DefaultPositionWeights()
	bad.Side = 1.5
	require.Error(t, bad.Validate())
}
