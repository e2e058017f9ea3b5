// Package plot renders the phase-folded light curve and the TTV series as PNG.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/tchin/transit-timing-variation/internal/transit"
)

// Light-curve folding parameters.
const (
	FoldOffset = 0.0003 // flux shift applied per elapsed fold
	FoldWindow = 500.0  // steps kept either side of mid-fold
	FluxMin    = 0.998
	FluxMax    = 1.0
)

const (
	defaultWidth  = 800
	defaultHeight = 500
	margin        = 60.0
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("nothing to plot")

// Options sets the image size.
type Options struct {
	Width  int
	Height int
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

// Point is one plotted sample.
type Point struct {
	X float64
	Y float64
}

// FoldLength returns the average transit spacing in driver steps, the period
// the light curve is folded on. It is zero when it cannot be determined.
func FoldLength(transits []float64, stepTime float64) int {
	if len(transits) == 0 || stepTime <= 0 {
		return 0
	}
	return int(transits[len(transits)-1] / float64(len(transits)) / stepTime)
}

// Fold maps flux samples onto one fold so every transit lands mid-fold. Each
// successive fold is shifted down by FoldOffset so the transits stack, and only
// samples within FoldWindow steps of mid-fold are kept.
func Fold(flux []transit.FluxSample, fold int) []Point {
	if fold <= 0 {
		return nil
	}
	n := float64(fold)
	half := 0.5 * n

	var out []Point
	for _, s := range flux {
		shifted := float64(s.Step) - half
		x := math.Mod(shifted, n)
		if x < 0 {
			x += n
		}
		if math.Abs(x-half) >= FoldWindow {
			continue
		}
		out = append(out, Point{
			X: x,
			Y: s.Flux - FoldOffset*math.Floor(shifted/n),
		})
	}
	return out
}

// LightCurve renders the phase-folded light curve.
func LightCurve(flux []transit.FluxSample, transits []float64, stepTime float64, opts Options) ([]byte, error) {
	fold := FoldLength(transits, stepTime)
	if fold <= 0 {
		return nil, fmt.Errorf("%w: need at least one transit to fold on", ErrNoData)
	}
	points := Fold(flux, fold)
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no flux samples near transit", ErrNoData)
	}

	half := 0.5 * float64(fold)
	c := newChart(opts, "flux",
		math.Max(0, half-FoldWindow), math.Min(float64(fold), half+FoldWindow),
		FluxMin, FluxMax)
	c.axes("step within fold", "relative flux")
	c.dc.SetColor(color.NRGBA{R: 31, G: 119, B: 180, A: 255})
	for _, p := range points {
		c.dot(p.X, p.Y, 1.5)
	}
	return c.encode()
}

// Variations renders the TTV series, one point per value.
func Variations(ttv []float64, interval int, opts Options) ([]byte, error) {
	if len(ttv) == 0 {
		return nil, fmt.Errorf("%w: no transit timing variations", ErrNoData)
	}

	lo, hi := ttv[0], ttv[0]
	for _, v := range ttv {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := 0.1 * (hi - lo)
	if pad == 0 {
		pad = math.Max(1, math.Abs(hi)*0.1)
	}

	c := newChart(opts, fmt.Sprintf("transit period changes (interval %d)", interval),
		-0.5, float64(len(ttv))-0.5, lo-pad, hi+pad)
	c.axes("comparison", "period change (s)")
	c.dc.SetColor(color.NRGBA{B: 255, A: 255})
	for i, v := range ttv {
		c.dot(float64(i), v, 3)
	}
	return c.encode()
}

// chart maps data coordinates onto a gg context.
type chart struct {
	dc             *gg.Context
	w, h           float64
	x0, x1, y0, y1 float64
	title          string
}

func newChart(opts Options, title string, x0, x1, y0, y1 float64) *chart {
	w, h := opts.size()
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()
	return &chart{dc: dc, w: float64(w), h: float64(h), x0: x0, x1: x1, y0: y0, y1: y1, title: title}
}

func (c *chart) px(x float64) float64 {
	return margin + (x-c.x0)/(c.x1-c.x0)*(c.w-2*margin)
}

func (c *chart) py(y float64) float64 {
	return c.h - margin - (y-c.y0)/(c.y1-c.y0)*(c.h-2*margin)
}

func (c *chart) axes(xLabel, yLabel string) {
	dc := c.dc
	dc.SetColor(color.Black)
	dc.SetLineWidth(1)
	dc.DrawRectangle(margin, margin, c.w-2*margin, c.h-2*margin)
	dc.Stroke()

	dc.DrawStringAnchored(c.title, c.w/2, margin/2, 0.5, 0.5)
	dc.DrawStringAnchored(xLabel, c.w/2, c.h-margin/4, 0.5, 0.5)
	dc.DrawStringAnchored(yLabel, margin/4, margin/2, 0, 0.5)

	const ticks = 4
	for i := 0; i <= ticks; i++ {
		f := float64(i) / ticks
		x := c.x0 + f*(c.x1-c.x0)
		y := c.y0 + f*(c.y1-c.y0)
		dc.DrawStringAnchored(fmt.Sprintf("%.4g", x), c.px(x), c.h-margin+12, 0.5, 0.5)
		dc.DrawStringAnchored(fmt.Sprintf("%.6g", y), margin-4, c.py(y), 1, 0.5)
	}
}

// dot draws a point, skipping values outside the plotted range.
func (c *chart) dot(x, y, r float64) {
	if x < c.x0 || x > c.x1 || y < c.y0 || y > c.y1 {
		return
	}
	c.dc.DrawCircle(c.px(x), c.py(y), r)
	c.dc.Fill()
}

func (c *chart) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
