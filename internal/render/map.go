// Package render draws sampling-location maps using fogleman/gg.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"math"
	"sync"

	"github.com/fogleman/gg"

	"github.com/ag3dash/server/pkg/colormap"
)

// Config contains renderer configuration.
type Config struct {
	Width       int
	Height      int
	PointRadius float64
	Ramp        string
}

// Point is one marker. Weight scales its colour, typically a sample count.
type Point struct {
	Longitude float64
	Latitude  float64
	Weight    float64
}

var (
	oceanColor     = color.RGBA{R: 232, G: 240, B: 247, A: 255}
	graticuleColor = color.RGBA{R: 200, G: 212, B: 224, A: 255}
	outlineColor   = color.RGBA{R: 60, G: 60, B: 60, A: 255}
)

// MapRenderer renders points onto an equirectangular world canvas.
type MapRenderer struct {
	config      Config
	ramp        colormap.Ramp
	contextPool sync.Pool
	bufferPool  sync.Pool
}

// NewMapRenderer creates a new map renderer.
func NewMapRenderer(cfg Config) (*MapRenderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.PointRadius <= 0 {
		cfg.PointRadius = 3
	}
	if cfg.Ramp == "" {
		cfg.Ramp = "reds"
	}
	ramp, ok := colormap.Lookup(cfg.Ramp)
	if !ok {
		return nil, fmt.Errorf("unknown colour ramp %q (have %v)", cfg.Ramp, colormap.Names())
	}

	r := &MapRenderer{
		config: cfg,
		ramp:   ramp,
		contextPool: sync.Pool{
			New: func() interface{} {
				return gg.NewContext(cfg.Width, cfg.Height)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
	return r, nil
}

// Project maps a coordinate to canvas pixels.
func (r *MapRenderer) Project(lon, lat float64) (x, y float64) {
	x = (lon + 180) / 360 * float64(r.config.Width)
	y = (90 - lat) / 180 * float64(r.config.Height)
	return x, y
}

// RenderPoints draws the points and returns PNG bytes. Points with
// non-finite coordinates are skipped.
func (r *MapRenderer) RenderPoints(points []Point) ([]byte, error) {
	dc := r.contextPool.Get().(*gg.Context)
	defer r.contextPool.Put(dc)

	dc.SetColor(oceanColor)
	dc.Clear()
	r.drawGraticule(dc)

	maxWeight := 0.0
	for _, p := range points {
		if p.Weight > maxWeight {
			maxWeight = p.Weight
		}
	}

	radius := r.config.PointRadius
	for _, p := range points {
		if !finite(p.Longitude) || !finite(p.Latitude) {
			continue
		}
		x, y := r.Project(p.Longitude, p.Latitude)

		// log scale so a few large collections do not wash out the rest
		t := 1.0
		if maxWeight > 0 {
			t = math.Log1p(math.Max(p.Weight, 0)) / math.Log1p(maxWeight)
		}
		dc.DrawCircle(x, y, radius)
		dc.SetColor(r.ramp.At(t))
		dc.FillPreserve()
		dc.SetColor(outlineColor)
		dc.SetLineWidth(0.5)
		dc.Stroke()
	}

	return r.encodeContext(dc)
}

func (r *MapRenderer) drawGraticule(dc *gg.Context) {
	dc.SetColor(graticuleColor)
	dc.SetLineWidth(1)
	for lon := -150.0; lon < 180; lon += 30 {
		x, _ := r.Project(lon, 0)
		dc.DrawLine(x, 0, x, float64(r.config.Height))
	}
	for lat := -60.0; lat <= 60; lat += 30 {
		_, y := r.Project(0, lat)
		dc.DrawLine(0, y, float64(r.config.Width), y)
	}
	dc.Stroke()
}

func (r *MapRenderer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
