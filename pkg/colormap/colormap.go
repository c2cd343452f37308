// Package colormap provides color ramps for map markers.
package colormap

import (
	"image/color"
	"math"
	"sort"
)

// Ramp maps a normalized value in [0, 1] to a color.
type Ramp struct {
	stops []color.RGBA
}

// At returns the color at position t. Values outside [0, 1] and NaN are
// clamped to the nearest end.
func (r Ramp) At(t float64) color.RGBA {
	if math.IsNaN(t) || t <= 0 {
		return r.stops[0]
	}
	if t >= 1 {
		return r.stops[len(r.stops)-1]
	}

	pos := t * float64(len(r.stops)-1)
	lo := int(pos)
	return mix(r.stops[lo], r.stops[lo+1], pos-float64(lo))
}

// Len returns the number of color stops.
func (r Ramp) Len() int { return len(r.stops) }

func mix(a, b color.RGBA, t float64) color.RGBA {
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + t*(float64(y)-float64(x))))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}

// Viridis (matplotlib)
var Viridis = Ramp{stops: []color.RGBA{
	{68, 1, 84, 255},
	{72, 35, 116, 255},
	{64, 67, 135, 255},
	{52, 94, 141, 255},
	{41, 120, 142, 255},
	{32, 144, 140, 255},
	{34, 167, 132, 255},
	{68, 190, 112, 255},
	{121, 209, 81, 255},
	{189, 222, 38, 255},
	{253, 231, 37, 255},
}}

// Magma (matplotlib)
var Magma = Ramp{stops: []color.RGBA{
	{0, 0, 4, 255},
	{28, 16, 68, 255},
	{79, 18, 123, 255},
	{129, 37, 129, 255},
	{181, 54, 122, 255},
	{229, 80, 100, 255},
	{251, 135, 97, 255},
	{254, 194, 135, 255},
	{252, 253, 191, 255},
}}

// Reds runs from pale pink to dark red, close to the default marker colour
// of the hosted dashboard.
var Reds = Ramp{stops: []color.RGBA{
	{254, 224, 210, 255},
	{252, 146, 114, 255},
	{239, 59, 44, 255},
	{165, 15, 21, 255},
}}

var byName = map[string]Ramp{
	"viridis": Viridis,
	"magma":   Magma,
	"reds":    Reds,
}

// Lookup returns the ramp registered under name.
func Lookup(name string) (Ramp, bool) {
	r, ok := byName[name]
	return r, ok
}

// Names lists the registered ramps in sorted order.
func Names() []string {
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
