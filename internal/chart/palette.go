package chart

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fonreal/internal/core"
)

// Style is the visual identity of one jurisdiction.
type Style struct {
	Color     string `yaml:"color" json:"color"`          // CSS color passed to the browser chart
	ColorHex  string `yaml:"hex" json:"hex"`              // same color as #rrggbb for the image renderer
	FontColor string `yaml:"font_color" json:"fontColor"` // hover label text color
}

// Palette resolves jurisdiction styles and item markers. Pinned styles win;
// everything else cycles through Colors by position.
type Palette struct {
	Colors  []Style
	Markers []string
	Pinned  map[string]Style
}

var defaultColors = []Style{
	{Color: "olive", ColorHex: "#808000", FontColor: "white"},
	{Color: "coral", ColorHex: "#ff7f50", FontColor: "black"},
	{Color: "lightseagreen", ColorHex: "#20b2aa", FontColor: "white"},
	{Color: "red", ColorHex: "#ff0000", FontColor: "white"},
	{Color: "gold", ColorHex: "#ffd700", FontColor: "black"},
	{Color: "magenta", ColorHex: "#ff00ff", FontColor: "white"},
	{Color: "slategray", ColorHex: "#708090", FontColor: "white"},
	{Color: "peru", ColorHex: "#cd853f", FontColor: "black"},
	{Color: "chocolate", ColorHex: "#d2691e", FontColor: "black"},
	{Color: "dodgerblue", ColorHex: "#1e90ff", FontColor: "white"},
	{Color: "rosybrown", ColorHex: "#bc8f8f", FontColor: "white"},
	{Color: "firebrick", ColorHex: "#b22222", FontColor: "white"},
	{Color: "forestgreen", ColorHex: "#228b22", FontColor: "white"},
	{Color: "midnightblue", ColorHex: "#191970", FontColor: "white"},
	{Color: "goldenrod", ColorHex: "#daa520", FontColor: "black"},
	{Color: "yellow", ColorHex: "#ffff00", FontColor: "black"},
}

var defaultMarkers = []string{"square", "circle-open", "triangle-up", "diamond-open", "hexagram"}

// DefaultPalette returns the built-in 16 colors and 5 markers.
func DefaultPalette() Palette {
	return Palette{
		Colors:  append([]Style(nil), defaultColors...),
		Markers: append([]string(nil), defaultMarkers...),
	}
}

// paletteFile is the on-disk shape of STYLE_FILE.
type paletteFile struct {
	Colors        []Style          `yaml:"colors"`
	Markers       []string         `yaml:"markers"`
	Jurisdictions map[string]Style `yaml:"jurisdictions"`
}

// LoadPalette reads a YAML override file on top of the default palette.
// An empty path returns the defaults.
func LoadPalette(path string) (Palette, error) {
	p := DefaultPalette()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read style file: %w", err)
	}
	return ParsePalette(data)
}

// ParsePalette decodes YAML palette overrides.
func ParsePalette(data []byte) (Palette, error) {
	p := DefaultPalette()
	var f paletteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return p, fmt.Errorf("parse style file: %w", err)
	}
	if len(f.Colors) > 0 {
		for i, s := range f.Colors {
			if s.Color == "" {
				return p, fmt.Errorf("style file: colors[%d] has no color", i)
			}
		}
		p.Colors = f.Colors
	}
	if len(f.Markers) > 0 {
		p.Markers = f.Markers
	}
	if len(f.Jurisdictions) > 0 {
		p.Pinned = make(map[string]Style, len(f.Jurisdictions))
		for name, s := range f.Jurisdictions {
			if s.Color == "" {
				return p, fmt.Errorf("style file: jurisdiction %q has no color", name)
			}
			p.Pinned[name] = s
		}
	}
	return p, nil
}

// Assign maps every jurisdiction name to a style. Position in jurs decides
// the color of unpinned jurisdictions, wrapping past the palette size.
func (p Palette) Assign(jurs []core.Jurisdiction) map[string]Style {
	out := make(map[string]Style, len(jurs))
	for i, j := range jurs {
		if s, ok := p.Pinned[j.Name]; ok {
			out[j.Name] = s
			continue
		}
		if len(p.Colors) == 0 {
			out[j.Name] = Style{Color: "black", ColorHex: "#000000", FontColor: "white"}
			continue
		}
		out[j.Name] = p.Colors[i%len(p.Colors)]
	}
	return out
}

// Marker returns the marker symbol for the item at rank within the selection.
func (p Palette) Marker(rank int) string {
	if len(p.Markers) == 0 || rank < 0 {
		return "circle"
	}
	return p.Markers[rank%len(p.Markers)]
}
