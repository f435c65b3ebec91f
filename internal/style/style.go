// Package style holds the declarative series styles and chart definitions
// consumed by the chart exporter.
package style

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"decred-onchain-lab/internal/metrics"
)

// Theme selects the chart palette.
type Theme string

const (
	Dark  Theme = "dark"
	Light Theme = "light"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case Dark:
		return Dark, nil
	case Light:
		return Light, nil
	}
	return "", fmt.Errorf("%w: theme %q", metrics.ErrUnsupportedOption, s)
}

// SeriesStyle is the presentation of one series.
type SeriesStyle struct {
	Color   string  `json:"color"`
	Width   float64 `json:"width"`
	Dash    string  `json:"dash"`
	Opacity float64 `json:"opacity"`
	// Invert marks colors designed for the dark theme that must be
	// inverted on the light one.
	Invert bool `json:"-"`
}

var colorRE = regexp.MustCompile(`^rgba?\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*(?:,\s*([0-9.]+)\s*)?\)$`)

// Invert returns the RGB complement of an rgb(...) or rgba(...) color,
// keeping any alpha. Other color strings are returned unchanged.
func Invert(color string) string {
	m := colorRE.FindStringSubmatch(strings.TrimSpace(color))
	if m == nil {
		return color
	}
	var ch [3]int
	for i := 0; i < 3; i++ {
		v, _ := strconv.Atoi(m[i+1])
		if v > 255 {
			return color
		}
		ch[i] = 255 - v
	}
	if m[4] != "" {
		return fmt.Sprintf("rgba(%d, %d, %d, %s)", ch[0], ch[1], ch[2], m[4])
	}
	return fmt.Sprintf("rgb(%d, %d, %d)", ch[0], ch[1], ch[2])
}

// Resolve returns the style to render under theme.
func (th Theme) Resolve(s SeriesStyle) SeriesStyle {
	if th == Light && s.Invert {
		s.Color = Invert(s.Color)
	}
	return s
}

// Background returns the paper and font colors of the theme.
func (th Theme) Background() (paper, font string) {
	if th == Light {
		return "rgb(255, 255, 255)", "rgb(0, 0, 0)"
	}
	return "rgb(20, 21, 25)", "rgb(255, 255, 255)"
}
