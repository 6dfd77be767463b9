// Package obstacle turns raw per-frame detections into ranked obstacle
// candidates: class profile lookup, noise-floor filtering, geometric
// classification, scoring and alert phrasing. Everything here is pure and
// safe for concurrent use once constructed.
package obstacle

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"golang.org/x/text/cases"

	"github.com/tphakala/sightline-go/internal/errors"
)

// ErrMalformedDetection marks a detection whose box violates the
// normalized-coordinate invariants.
var ErrMalformedDetection = errors.NewStd("malformed detection")

// Box is a bounding box in normalized frame coordinates, top-left (X1,Y1)
// to bottom-right (X2,Y2).
type Box struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

func (b Box) Width() float32   { return b.X2 - b.X1 }
func (b Box) Height() float32  { return b.Y2 - b.Y1 }
func (b Box) Area() float32    { return b.Width() * b.Height() }
func (b Box) CenterX() float32 { return (b.X1 + b.X2) / 2 }
func (b Box) CenterY() float32 { return (b.Y1 + b.Y2) / 2 }

// Validate reports whether every coordinate is within [0,1] and the box has
// positive extent on both axes.
func (b Box) Validate() error {
	for _, v := range [...]float32{b.X1, b.Y1, b.X2, b.Y2} {
		if math32.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: coordinate %v outside [0,1]", ErrMalformedDetection, v)
		}
	}
	if b.X1 >= b.X2 {
		return fmt.Errorf("%w: x1 %v >= x2 %v", ErrMalformedDetection, b.X1, b.X2)
	}
	if b.Y1 >= b.Y2 {
		return fmt.Errorf("%w: y1 %v >= y2 %v", ErrMalformedDetection, b.Y1, b.Y2)
	}
	return nil
}

// Detection is one object reported by the detector for a single frame.
// Confidence is carried for display only.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
	Box        Box     `json:"box"`
}

// NormalizeLabel trims and case-folds a class label.
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if isLowerASCII(label) {
		return label
	}
	// Casers are stateful; a fresh one per call keeps this goroutine-safe.
	return cases.Fold().String(label)
}

func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 || ('A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}
