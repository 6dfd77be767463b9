package obstacle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		box     Box
		wantErr bool
	}{
		{"valid", Box{0.1, 0.1, 0.5, 0.5}, false},
		{"full frame", Box{0, 0, 1, 1}, false},
		{"negative x1", Box{-0.1, 0.1, 0.5, 0.5}, true},
		{"y2 beyond frame", Box{0.1, 0.1, 0.5, 1.01}, true},
		{"x1 equals x2", Box{0.3, 0.1, 0.3, 0.5}, true},
		{"y1 after y2", Box{0.1, 0.6, 0.5, 0.5}, true},
		{"zero box", Box{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.box.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedDetection)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBox_Derived(t *testing.T) {
	t.Parallel()

	b := Box{X1: 0.2, Y1: 0.4, X2: 0.6, Y2: 0.9}
	assert.InDelta(t, 0.4, b.Width(), 1e-6)
	assert.InDelta(t, 0.5, b.Height(), 1e-6)
	assert.InDelta(t, 0.2, b.Area(), 1e-6)
	assert.InDelta(t, 0.4, b.CenterX(), 1e-6)
	assert.InDelta(t, 0.65, b.CenterY(), 1e-6)
}

func TestIsOnGround(t *testing.T) {
	t.Parallel()

	g := DefaultGeometry()
	plain := ClassProfile{Label: "bench"}
	compactOnly := ClassProfile{Label: "chair", CompactGround: true}

	tests := []struct {
		name    string
		label   string
		profile ClassProfile
		box     Box
		want    bool
	}{
		{"compact box at bottom", "bench", plain, Box{0.4, 0.8, 0.5, 0.95}, true},
		{"wide box at bottom", "bench", plain, Box{0.1, 0.5, 0.6, 0.9}, true},
		{"tall narrow box at bottom", "bench", plain, Box{0.4, 0.2, 0.5, 0.9}, false},
		{"bottom edge above zone", "bench", plain, Box{0.4, 0.7, 0.5, 0.8}, false},
		{"bottom edge exactly on zone", "bench", plain, Box{0.4, 0.7, 0.5, 0.85}, true},
		{"compact-only class with wide box", "chair", compactOnly, Box{0.1, 0.5, 0.6, 0.9}, false},
		{"compact-only class with compact box", "chair", compactOnly, Box{0.4, 0.8, 0.5, 0.95}, true},
		{"person compact at bottom", "person", plain, Box{0.4, 0.8, 0.5, 0.95}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := g.IsOnGround(Detection{Label: tt.label, Box: tt.box}, tt.profile)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsOnGround_PersonNeverGround(t *testing.T) {
	t.Parallel()

	det := Detection{Label: "person", Box: Box{0.1, 0.1, 0.3, 0.9}}
	lax := Geometry{
		LeftSplit: 0.35, RightSplit: 0.65,
		GroundBottomZone:    0,
		GroundCompactHeight: 1,
		GroundWideWidth:     0,
	}

	for _, g := range []Geometry{DefaultGeometry(), lax} {
		assert.False(t, g.IsOnGround(det, ClassProfile{Label: "person"}))
	}
	assert.False(t, lax.IsOnGround(Detection{Label: "PERSON", Box: det.Box}, ClassProfile{}))
	assert.True(t, lax.IsOnGround(Detection{Label: "dog", Box: det.Box}, ClassProfile{}))
}

func TestHorizontalRegion(t *testing.T) {
	t.Parallel()

	g := DefaultGeometry()
	assert.Equal(t, RegionLeft, g.HorizontalRegion(Box{0.0, 0, 0.3, 1}))
	assert.Equal(t, RegionLeft, g.HorizontalRegion(Box{0.3, 0, 0.38, 1}))
	assert.Equal(t, RegionCenter, g.HorizontalRegion(Box{0.32, 0, 0.4, 1}))
	assert.Equal(t, RegionCenter, g.HorizontalRegion(Box{0.3, 0, 0.7, 1}))
	assert.Equal(t, RegionCenter, g.HorizontalRegion(Box{0.6, 0, 0.68, 1}))
	assert.Equal(t, RegionRight, g.HorizontalRegion(Box{0.62, 0, 0.7, 1}))
	assert.Equal(t, RegionRight, g.HorizontalRegion(Box{0.7, 0, 1.0, 1}))
}

func TestClosenessBucket(t *testing.T) {
	t.Parallel()

	g := DefaultGeometry()
	tests := []struct {
		height float32
		want   Closeness
	}{
		{0.9, VeryClose},
		{0.61, VeryClose},
		{0.6, Close},
		{0.36, Close},
		{0.35, Medium},
		{0.16, Medium},
		{0.15, Far},
		{0.05, Far},
	}
	for _, tt := range tests {
		box := Box{X1: 0.1, Y1: 0, X2: 0.2, Y2: tt.height}
		assert.Equal(t, tt.want, g.ClosenessBucket(box), "height %v", tt.height)
	}
}

func TestHistoryKey(t *testing.T) {
	t.Parallel()

	g := DefaultGeometry()
	det := Detection{Label: "Dog", Box: Box{X1: 0.05, Y1: 0.4, X2: 0.25, Y2: 0.9}}
	assert.Equal(t, "dog_left_close", g.HistoryKey(det))

	moved := Detection{Label: "dog", Box: Box{X1: 0.75, Y1: 0.4, X2: 0.95, Y2: 0.9}}
	assert.Equal(t, "dog_right_close", g.HistoryKey(moved))

	nearer := Detection{Label: "dog", Box: Box{X1: 0.05, Y1: 0.1, X2: 0.25, Y2: 0.9}}
	assert.Equal(t, "dog_left_very-close", g.HistoryKey(nearer))
}

func TestGeometry_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultGeometry().Validate())

	swapped := DefaultGeometry()
	swapped.LeftSplit, swapped.RightSplit = 0.7, 0.3
	require.Error(t, swapped.Validate())

	unordered := DefaultGeometry()
	unordered.CloseHeight = 0.7
	require.Error(t, unordered.Validate())

	outOfRange := DefaultGeometry()
	outOfRange.GroundBottomZone = 1.5
	require.Error(t, outOfRange.Validate())
}

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "traffic light", NormalizeLabel("  Traffic Light "))
	assert.Equal(t, "dog", NormalizeLabel("dog"))
	assert.Equal(t, "école", NormalizeLabel("ÉCOLE"))
}
