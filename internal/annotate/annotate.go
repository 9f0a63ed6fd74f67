// Package annotate draws grading marks onto worksheet pages — a check
// for correct answers, an ellipse for incorrect ones, a rectangle for
// unanswered slots — and re-encodes the result to JPEG, spec.md §4.7.
package annotate

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f32"
	"golang.org/x/image/vector"

	"github.com/parentgrade/gradecore/internal/model"
)

var (
	colorCorrect    = color.RGBA{R: 0x07, G: 0xA8, B: 0x6C, A: 0xFF}
	colorIncorrect  = color.RGBA{R: 0xE5, G: 0x48, B: 0x4D, A: 0xFF}
	colorUnanswered = color.RGBA{R: 0xF5, G: 0x9E, B: 0x0B, A: 0xFF}
)

const (
	checkStrokeWidth     = 6
	ellipseStrokeWidth   = 6
	rectangleStrokeWidth = 4
)

// Page draws every item belonging to pageIndex onto a private copy of
// decoded, in Position order so later marks overlay earlier ones, and
// returns the re-encoded JPEG bytes.
func Page(decoded image.Image, items []model.GradedItem, pageIndex int, jpegQuality int) ([]byte, error) {
	bounds := decoded.Bounds()
	canvas := image.NewNRGBA(bounds)
	draw.Draw(canvas, bounds, decoded, bounds.Min, draw.Src)

	ordered := make([]model.GradedItem, 0, len(items))
	for _, it := range items {
		if it.PageIndex == pageIndex {
			ordered = append(ordered, it)
		}
	}
	sortByPosition(ordered)

	for _, it := range ordered {
		switch {
		case it.MatchMethod == string(model.MatchEmptyAnswer):
			drawRectangle(canvas, it.BBox)
		case it.IsCorrect:
			drawCheck(canvas, it.BBox)
		default:
			drawEllipse(canvas, it.BBox)
		}
	}

	if jpegQuality <= 0 {
		jpegQuality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortByPosition(items []model.GradedItem) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Position < items[j-1].Position; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}

// drawCheck draws a green check immediately to the right of the answer
// bbox. Position (x2+8, y1-6); adaptive size s = clip(height*0.8, 30,
// 50); three-point polyline (x,y+0.55s) -> (x+0.35s,y+s) -> (x+s,y).
func drawCheck(dst *image.NRGBA, bbox model.Box) {
	x := bbox.X2 + 8
	y := bbox.Y1 - 6
	s := clip(bbox.Height()*0.8, 30, 50)

	p0 := [2]float64{x, y + 0.55*s}
	p1 := [2]float64{x + 0.35*s, y + s}
	p2 := [2]float64{x + s, y}

	r := newStrokeRasterizer(dst.Bounds())
	r.addSegment(p0, p1, checkStrokeWidth)
	r.addSegment(p1, p2, checkStrokeWidth)
	r.fill(dst, colorCorrect)
}

// drawEllipse draws a red ellipse ring centered at the bbox center,
// with axes (w/2+6, h/2+6), stroke width 6.
func drawEllipse(dst *image.NRGBA, bbox model.Box) {
	cx, cy := bbox.CenterX(), bbox.CenterY()
	rx := bbox.Width()/2 + 6
	ry := bbox.Height()/2 + 6

	r := newStrokeRasterizer(dst.Bounds())
	r.addEllipseRing(cx, cy, rx, ry, ellipseStrokeWidth)
	r.fill(dst, colorIncorrect)
}

// drawRectangle draws an orange rectangle border exactly at bbox,
// stroke width 4.
func drawRectangle(dst *image.NRGBA, bbox model.Box) {
	w := rectangleStrokeWidth / 2.0
	outer := image.Rect(int(bbox.X1-w), int(bbox.Y1-w), int(bbox.X2+w), int(bbox.Y2+w))
	inner := image.Rect(int(bbox.X1+w), int(bbox.Y1+w), int(bbox.X2-w), int(bbox.Y2-w))

	fillRectBand(dst, outer, inner, colorUnanswered)
}

func fillRectBand(dst *image.NRGBA, outer, inner image.Rectangle, c color.Color) {
	bounds := dst.Bounds().Intersect(outer)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if image.Pt(x, y).In(inner) {
				continue
			}
			dst.Set(x, y, c)
		}
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// strokeRasterizer accumulates stroked-path geometry as filled polygons
// (quad strips for line segments, concentric-ring ellipses) and
// rasterizes them anti-aliased via golang.org/x/image/vector.
type strokeRasterizer struct {
	raster *vector.Rasterizer
	bounds image.Rectangle
}

func newStrokeRasterizer(bounds image.Rectangle) *strokeRasterizer {
	return &strokeRasterizer{
		raster: vector.NewRasterizer(bounds.Dx(), bounds.Dy()),
		bounds: bounds,
	}
}

func (r *strokeRasterizer) pt(x, y float64) f32.Vec2 {
	return f32.Vec2{
		float32(x - float64(r.bounds.Min.X)),
		float32(y - float64(r.bounds.Min.Y)),
	}
}

// addSegment adds a stroked line segment as a filled quad of the given
// width, with a small filled disc at each end to approximate a round
// join/cap.
func (r *strokeRasterizer) addSegment(p0, p1 [2]float64, width float64) {
	dx, dy := p1[0]-p0[0], p1[1]-p0[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	v0 := r.pt(p0[0]+nx, p0[1]+ny)
	v1 := r.pt(p1[0]+nx, p1[1]+ny)
	v2 := r.pt(p1[0]-nx, p1[1]-ny)
	v3 := r.pt(p0[0]-nx, p0[1]-ny)

	r.raster.MoveTo(v0)
	r.raster.LineTo(v1)
	r.raster.LineTo(v2)
	r.raster.LineTo(v3)
	r.raster.ClosePath()

	r.addDisc(p0[0], p0[1], width/2)
	r.addDisc(p1[0], p1[1], width/2)
}

// addDisc adds a filled circle approximated with a 16-gon, used for
// round line caps/joins.
func (r *strokeRasterizer) addDisc(cx, cy, radius float64) {
	const segments = 16
	var first f32.Vec2
	for i := 0; i <= segments; i++ {
		theta := 2 * math.Pi * float64(i) / segments
		v := r.pt(cx+radius*math.Cos(theta), cy+radius*math.Sin(theta))
		if i == 0 {
			r.raster.MoveTo(v)
			first = v
			continue
		}
		r.raster.LineTo(v)
	}
	r.raster.LineTo(first)
	r.raster.ClosePath()
}

// addEllipseRing adds a stroked ellipse: the outer boundary traced
// clockwise and the inner boundary traced counter-clockwise, so the
// rasterizer's nonzero winding rule fills only the band between them.
func (r *strokeRasterizer) addEllipseRing(cx, cy, rx, ry, width float64) {
	const segments = 72
	outerRx, outerRy := rx+width/2, ry+width/2
	innerRx, innerRy := rx-width/2, ry-width/2
	if innerRx < 0 {
		innerRx = 0
	}
	if innerRy < 0 {
		innerRy = 0
	}

	var first f32.Vec2
	for i := 0; i <= segments; i++ {
		theta := 2 * math.Pi * float64(i) / segments
		v := r.pt(cx+outerRx*math.Cos(theta), cy+outerRy*math.Sin(theta))
		if i == 0 {
			r.raster.MoveTo(v)
			first = v
		} else {
			r.raster.LineTo(v)
		}
	}
	r.raster.LineTo(first)
	r.raster.ClosePath()

	for i := 0; i <= segments; i++ {
		theta := -2 * math.Pi * float64(i) / segments
		v := r.pt(cx+innerRx*math.Cos(theta), cy+innerRy*math.Sin(theta))
		if i == 0 {
			r.raster.MoveTo(v)
			first = v
		} else {
			r.raster.LineTo(v)
		}
	}
	r.raster.LineTo(first)
	r.raster.ClosePath()
}

func (r *strokeRasterizer) fill(dst *image.NRGBA, c color.Color) {
	mask := image.NewAlpha(image.Rect(0, 0, r.bounds.Dx(), r.bounds.Dy()))
	r.raster.Draw(mask, mask.Bounds(), image.NewUniform(c), image.Point{})
	xdraw.DrawMask(dst, r.bounds, image.NewUniform(c), image.Point{}, mask, image.Point{}, xdraw.Over)
}
