package render

import (
	"fmt"
	"image/color"
	"strings"
)

// ParseHexColor parses "#RGB", "#RRGGBB", or "#RRGGBBAA" (leading '#'
// optional) into an NRGBA color. Alpha defaults to opaque.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3:
		var r, g, b uint8
		if _, err := fmt.Sscanf(hex, "%1x%1x%1x", &r, &g, &b); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
		}
		return color.NRGBA{R: r * 17, G: g * 17, B: b * 17, A: 0xff}, nil
	case 6:
		var r, g, b uint8
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
		}
		return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
	case 8:
		var r, g, b, a uint8
		if _, err := fmt.Sscanf(hex, "%02x%02x%02x%02x", &r, &g, &b, &a); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
		}
		return color.NRGBA{R: r, G: g, B: b, A: a}, nil
	}
	return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
}
