// Package render writes a result's grids and tables to an output tree:
// grid JSON, PNG heatmaps over the field oval, the analytics table and an
// HTML report.
package render

import (
	"image/color"
	"strconv"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// viridisStops are the colour stops shared by the PNG and HTML renderers.
var viridisStops = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// fieldColour is the oval fill drawn under each heatmap.
var fieldColour = color.NRGBA{R: 13, G: 89, B: 13, A: 255}

const (
	paletteSize  = 256
	heatmapAlpha = 0.9
)

// heatPalette returns the viridis ramp. If the stops cannot form a luminance
// map it falls back to moreland's extended black body.
func heatPalette() palette.Palette {
	controls := make([]color.Color, len(viridisStops))
	for i, hex := range viridisStops {
		controls[i] = parseHex(hex)
	}
	cm, err := moreland.NewLuminance(controls)
	if err != nil {
		cm = moreland.ExtendedBlackBody()
	}
	cm.SetMin(0)
	cm.SetMax(1)
	cm.SetAlpha(heatmapAlpha)
	return cm.Palette(paletteSize)
}

func parseHex(s string) color.NRGBA {
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil || len(s) != 7 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
