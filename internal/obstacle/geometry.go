package obstacle

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Region is the horizontal third of the frame an object sits in.
type Region string

const (
	RegionLeft   Region = "left"
	RegionCenter Region = "center"
	RegionRight  Region = "right"
)

// Closeness buckets box height into coarse distance classes.
type Closeness string

const (
	VeryClose Closeness = "very-close"
	Close     Closeness = "close"
	Medium    Closeness = "medium"
	Far       Closeness = "far"
)

// labels that are never classified as floor-level clutter
const personLabel = "person"

// Geometry holds every positional threshold. One value is shared by the
// scorer, the debounce key and the phrasing so they bucket identically.
type Geometry struct {
	// LeftSplit and RightSplit bound the center region on center-x.
	LeftSplit  float32
	RightSplit float32

	// GroundBottomZone is the minimum y2 for ground contact.
	GroundBottomZone float32
	// GroundCompactHeight and GroundWideWidth are the shape alternatives.
	GroundCompactHeight float32
	GroundWideWidth     float32

	VeryCloseHeight float32
	CloseHeight     float32
	MediumHeight    float32

	// HighUpCenterY and LowDownCenterY drive vertical phrasing.
	HighUpCenterY  float32
	LowDownCenterY float32
}

// DefaultGeometry returns the documented threshold set.
func DefaultGeometry() Geometry {
	return Geometry{
		LeftSplit:           0.35,
		RightSplit:          0.65,
		GroundBottomZone:    0.85,
		GroundCompactHeight: 0.25,
		GroundWideWidth:     0.4,
		VeryCloseHeight:     0.60,
		CloseHeight:         0.35,
		MediumHeight:        0.15,
		HighUpCenterY:       0.3,
		LowDownCenterY:      0.7,
	}
}

// Validate checks ordering and range of the thresholds.
func (g Geometry) Validate() error {
	inUnit := func(name string, v float32) error {
		if math32.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%s %v outside [0,1]", name, v)
		}
		return nil
	}
	for _, th := range []struct {
		name string
		v    float32
	}{
		{"left_split", g.LeftSplit},
		{"right_split", g.RightSplit},
		{"ground_bottom_zone", g.GroundBottomZone},
		{"ground_compact_height", g.GroundCompactHeight},
		{"ground_wide_width", g.GroundWideWidth},
		{"very_close_height", g.VeryCloseHeight},
		{"close_height", g.CloseHeight},
		{"medium_height", g.MediumHeight},
		{"high_up_center_y", g.HighUpCenterY},
		{"low_down_center_y", g.LowDownCenterY},
	} {
		if err := inUnit(th.name, th.v); err != nil {
			return err
		}
	}
	if g.LeftSplit >= g.RightSplit {
		return fmt.Errorf("left_split %v must be below right_split %v", g.LeftSplit, g.RightSplit)
	}
	if !(g.MediumHeight < g.CloseHeight && g.CloseHeight < g.VeryCloseHeight) {
		return fmt.Errorf("closeness heights must increase: medium %v < close %v < very_close %v",
			g.MediumHeight, g.CloseHeight, g.VeryCloseHeight)
	}
	if g.HighUpCenterY >= g.LowDownCenterY {
		return fmt.Errorf("high_up_center_y %v must be below low_down_center_y %v", g.HighUpCenterY, g.LowDownCenterY)
	}
	return nil
}

// IsOnGround applies the ground-contact heuristic: the box bottom lies in
// the bottom zone and the box is either compact or wide. People are never
// ground-level; CompactGround classes must be compact.
func (g Geometry) IsOnGround(det Detection, profile ClassProfile) bool {
	if NormalizeLabel(det.Label) == personLabel {
		return false
	}
	b := det.Box
	if b.Y2 < g.GroundBottomZone {
		return false
	}
	compact := b.Height() < g.GroundCompactHeight
	if profile.CompactGround {
		return compact
	}
	return compact || b.Width() > g.GroundWideWidth
}

// HorizontalRegion classifies the box center-x.
func (g Geometry) HorizontalRegion(b Box) Region {
	cx := b.CenterX()
	switch {
	case cx < g.LeftSplit:
		return RegionLeft
	case cx > g.RightSplit:
		return RegionRight
	default:
		return RegionCenter
	}
}

// ClosenessBucket discretizes box height.
func (g Geometry) ClosenessBucket(b Box) Closeness {
	h := b.Height()
	switch {
	case h > g.VeryCloseHeight:
		return VeryClose
	case h > g.CloseHeight:
		return Close
	case h > g.MediumHeight:
		return Medium
	default:
		return Far
	}
}

// HistoryKey derives the debounce key "label_region_closeness".
func (g Geometry) HistoryKey(det Detection) string {
	return NormalizeLabel(det.Label) + "_" + string(g.HorizontalRegion(det.Box)) + "_" + string(g.ClosenessBucket(det.Box))
}

func clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}
