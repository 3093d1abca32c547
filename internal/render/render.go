// Package render paints placed text onto a template image and serializes
// the result as PNG or print-ready PDF.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/certforge/certforge/internal/fit"
)

// Measure reports the ink box of text in face, in whole pixels. The box is
// conservative: the left and top edges round outward, as do the right and
// bottom.
func Measure(face font.Face, text string) fit.Box {
	bounds, _ := font.BoundString(face, text)
	return fit.Box{
		Left:   bounds.Min.X.Floor(),
		Top:    bounds.Min.Y.Floor(),
		Right:  bounds.Max.X.Ceil(),
		Bottom: bounds.Max.Y.Ceil(),
	}
}

// LoadTemplate decodes the certificate background image (PNG or JPEG).
func LoadTemplate(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode template %s: %w", path, err)
	}
	return img, nil
}

// NewCanvas copies the template into a mutable canvas anchored at (0, 0).
func NewCanvas(tmpl image.Image) *image.NRGBA {
	b := tmpl.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), tmpl, b.Min, draw.Src)
	return dst
}

// Paint draws one placed line onto dst. With spacing set the line is drawn
// glyph by glyph, advancing the cursor by the spaced advance the fitter
// measured with.
func Paint(dst draw.Image, face font.Face, line fit.Line, ink color.Color, spacing float64) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(ink),
		Face: face,
	}
	y := int(math.Round(line.Y))
	if spacing == 0 {
		d.Dot = fixed.P(int(math.Round(line.X)), y)
		d.DrawString(line.Text)
		return
	}
	x := int(math.Round(line.X))
	for _, r := range line.Text {
		d.Dot = fixed.P(x, y)
		d.DrawString(string(r))
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			continue
		}
		x += fit.SpacedAdvance(adv, spacing)
	}
}

// Draw paints a placement onto the template and returns the flattened
// opaque canvas ready for encoding.
func Draw(tmpl image.Image, load fit.LoadFunc, pl fit.Placement, style fit.Style) (*image.RGBA, error) {
	canvas := NewCanvas(tmpl)
	ink := style.Color
	if ink == (color.NRGBA{}) {
		ink = color.NRGBA{A: 0xff}
	}
	face, err := load(pl.Primary.Size)
	if err != nil {
		return nil, err
	}
	Paint(canvas, face, pl.Primary, ink, style.LetterSpacing)
	if pl.Secondary != nil {
		face, err = load(pl.Secondary.Size)
		if err != nil {
			return nil, err
		}
		Paint(canvas, face, *pl.Secondary, ink, style.LetterSpacing)
	}
	return Flatten(canvas), nil
}

// Flatten composites img over a white background, discarding alpha. PDF
// export and printers want an opaque page.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}
