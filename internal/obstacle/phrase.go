package obstacle

import (
	"strings"
)

// unknownDisplayName is spoken for labels missing from the class table.
const unknownDisplayName = "obstacle"

// DisplayName returns the spoken name of a candidate's class.
func DisplayName(c Scored) string {
	if c.Profile.IsDefault() || c.Detection.Label == "" {
		return unknownDisplayName
	}
	return strings.ReplaceAll(c.Detection.Label, "_", " ")
}

// Describe builds the alert text for a candidate, for example
// "chair on the floor to your left, close" or "car ahead, very close".
func (s *Selector) Describe(c Scored) string {
	parts := []string{DisplayName(c)}

	if c.OnGround {
		parts = append(parts, "on the floor")
	} else {
		cy := c.Detection.Box.CenterY()
		switch {
		case cy < s.geometry.HighUpCenterY:
			parts = append(parts, "high up")
		case cy > s.geometry.LowDownCenterY:
			parts = append(parts, "low down")
		}
	}

	switch c.Region {
	case RegionLeft:
		parts = append(parts, "to your left")
	case RegionRight:
		parts = append(parts, "to your right")
	default:
		parts = append(parts, "ahead")
	}

	text := strings.Join(parts, " ")
	switch c.Closeness {
	case VeryClose:
		text += ", very close"
	case Close:
		text += ", close"
	}
	return text
}
