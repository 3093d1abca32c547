// Package fit sizes, truncates, and positions text on a fixed canvas.
//
// The package is pure: it performs no I/O and holds no state between calls.
// Font access goes through two injected functions, a loader that produces a
// face at a requested size and a measurer that reports the ink extent of a
// string. Faces returned by the loader must not be shared across concurrent
// calls; opentype faces carry mutable glyph caches.
package fit

import (
	"errors"
	"image/color"
	"math"
	"strings"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Ellipsis terminates truncated text.
const Ellipsis = "…"

// ErrEmptyText is returned when the text to place is empty or whitespace.
var ErrEmptyText = errors.New("fit: empty text")

// sizeStep is the fixed decrement of the font size search. A linear scan is
// used instead of binary search because rendered width is not strictly
// monotonic in size at integer granularity.
const sizeStep = 2

// ///////////////////////////////////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////////////////////////////////

// Box is the ink extent of rendered text in pixels, relative to the draw
// origin. Top is typically negative (ink above the baseline).
type Box struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Width returns the horizontal ink extent.
func (b Box) Width() int { return b.Right - b.Left }

// Height returns the vertical ink extent.
func (b Box) Height() int { return b.Bottom - b.Top }

// MeasuredText pairs a string with its measured extent at some size.
type MeasuredText struct {
	Content string
	Box     Box
}

// FitResult is the outcome of a font size search. When Size == the minimum
// the measured width may still exceed the budget; the caller truncates.
type FitResult struct {
	Size     int
	Measured MeasuredText
}

// LoadFunc returns a font face at the given pixel size. It fails only when
// no usable font resource can be resolved, which is fatal for a deployment.
type LoadFunc func(size int) (font.Face, error)

// MeasureFunc reports the ink box of text rendered with face.
type MeasureFunc func(face font.Face, text string) Box

// Style holds every tunable of a placement call. It is resolved once from
// configuration and passed by value; the package never reads ambient state.
type Style struct {
	StartSize int // largest size to try; 0 derives max(24, 6% of canvas width)
	MinSize   int // smallest size before truncation engages; 0 means 14

	MarginPx    int     // fixed horizontal margin; 0 derives from MarginRatio
	MarginRatio float64 // margin as a fraction of canvas width; 0 means 0.12

	YAnchorRatio float64 // vertical anchor as a fraction of canvas height; 0 means 0.62
	YOffset      float64 // pixel nudge applied to the anchor
	XOffset      float64 // cosmetic pixel nudge applied after clamping

	Color color.NRGBA // ink color, consumed by the paint step

	LetterSpacing float64 // extra advance per glyph as a fraction of its width

	SubtitleScale float64 // secondary start size as a fraction of StartSize; 0 means 0.6
	GapRatio      float64 // gap below the primary as a fraction of its height; 0 means 0.25
}

// Line is one positioned run of text. X and Y are draw-origin coordinates
// for the paint step (the dot of a font.Drawer).
type Line struct {
	Text string
	Size int
	X    float64
	Y    float64
	Box  Box
}

// Placement is the final outcome of Place, consumed immediately by the
// paint step.
type Placement struct {
	Primary   Line
	Secondary *Line
}

// Placer binds the two font collaborators. The zero value is unusable; both
// functions must be set.
type Placer struct {
	Load    LoadFunc
	Measure MeasureFunc
}

// ///////////////////////////////////////////////////////////////////////////
// Fitting
// ///////////////////////////////////////////////////////////////////////////

// Fit finds the largest size in [minSize, startSize] at which text measures
// within maxWidth, scanning down from startSize in steps of 2. When even
// minSize overflows, the minSize measurement is returned and the caller is
// expected to truncate.
func (p *Placer) Fit(text string, maxWidth, startSize, minSize int) (FitResult, error) {
	if minSize < 1 {
		minSize = 1
	}
	if startSize < minSize {
		startSize = minSize
	}
	size := startSize
	for {
		face, err := p.Load(size)
		if err != nil {
			return FitResult{}, err
		}
		box := p.Measure(face, text)
		if box.Width() <= maxWidth || size == minSize {
			return FitResult{Size: size, Measured: MeasuredText{Content: text, Box: box}}, nil
		}
		size -= sizeStep
		if size < minSize {
			size = minSize
		}
	}
}

// ///////////////////////////////////////////////////////////////////////////
// Truncation
// ///////////////////////////////////////////////////////////////////////////

// TruncateToFit returns text unchanged when it measures within maxWidth.
// Otherwise it binary-searches the longest rune prefix whose right-stripped
// form plus an ellipsis fits. If nothing fits the ellipsis alone is
// returned; empty or whitespace-only input yields "".
//
// The binary search relies on measured width being non-decreasing in prefix
// length, which holds for left-to-right scripts without shrinking kerning.
func (p *Placer) TruncateToFit(face font.Face, text string, maxWidth int) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if p.Measure(face, text).Width() <= maxWidth {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	best := ""
	for lo <= hi {
		mid := (lo + hi) / 2
		cand := strings.TrimRightFunc(string(runes[:mid]), unicode.IsSpace) + Ellipsis
		if p.Measure(face, cand).Width() <= maxWidth {
			best = cand
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best == "" {
		return Ellipsis
	}
	return best
}

// ///////////////////////////////////////////////////////////////////////////
// Placement
// ///////////////////////////////////////////////////////////////////////////

// Place fits, truncates, and positions text (and an optional subtitle) on a
// canvasW by canvasH canvas. The returned coordinates center the ink
// horizontally, clamp it inside the margin, and anchor it vertically at
// YAnchorRatio of the canvas height. The cosmetic XOffset is applied after
// clamping; callers that configure an offset large enough to breach the
// margin get an intentional override.
func (p *Placer) Place(text, subtitle string, canvasW, canvasH int, style Style) (Placement, error) {
	if strings.TrimSpace(text) == "" {
		return Placement{}, ErrEmptyText
	}

	margin := style.margin(canvasW)
	maxWidth := canvasW - 2*margin
	if maxWidth < 1 {
		maxWidth = 1
	}
	start := style.startSize(canvasW)
	min := style.minSize()

	// With letter spacing enabled both fitting and truncation use the
	// spaced measure, so the width drawn by a per-glyph cursor is the
	// width that was fitted.
	inner := p
	if style.LetterSpacing != 0 {
		inner = &Placer{Load: p.Load, Measure: SpacedMeasure(p.Measure, style.LetterSpacing)}
	}

	primary, err := inner.line(text, start, min, maxWidth, margin, canvasW)
	if err != nil {
		return Placement{}, err
	}
	primary.Y = float64(canvasH)*style.yAnchor() + style.YOffset -
		float64(primary.Box.Height())/2 - float64(primary.Box.Top)
	primary.X += style.XOffset

	placement := Placement{Primary: primary}

	if strings.TrimSpace(subtitle) != "" {
		subStart := int(math.Round(float64(start) * style.subtitleScale()))
		if subStart < min {
			subStart = min
		}
		secondary, err := inner.line(subtitle, subStart, min, maxWidth, margin, canvasW)
		if err != nil {
			return Placement{}, err
		}
		h := float64(primary.Box.Height())
		secondary.Y = primary.Y + h + h*style.gapRatio()
		placement.Secondary = &secondary
	}
	return placement, nil
}

// line fits and truncates one run of text, then computes its clamped
// horizontal position. The caller fills in Y.
func (p *Placer) line(text string, start, min, maxWidth, margin, canvasW int) (Line, error) {
	fitted, err := p.Fit(text, maxWidth, start, min)
	if err != nil {
		return Line{}, err
	}
	final := fitted.Measured.Content
	box := fitted.Measured.Box
	if box.Width() > maxWidth {
		face, err := p.Load(fitted.Size)
		if err != nil {
			return Line{}, err
		}
		final = p.TruncateToFit(face, text, maxWidth)
		box = p.Measure(face, final)
	}

	w := box.Width()
	x := float64(canvasW-w)/2 - float64(box.Left)
	if hi := float64(canvasW - margin - w); x > hi {
		x = hi
	}
	if lo := float64(margin); x < lo {
		x = lo
	}
	return Line{Text: final, Size: fitted.Size, X: x, Box: box}, nil
}

// ///////////////////////////////////////////////////////////////////////////
// Letter spacing
// ///////////////////////////////////////////////////////////////////////////

// SpacedAdvance converts a glyph advance to the whole-pixel cursor step used
// when letter spacing is enabled. Rounding up keeps the drawn width at or
// under the spaced measurement.
func SpacedAdvance(advance fixed.Int26_6, ratio float64) int {
	return int(math.Ceil(float64(advance) / 64 * (1 + ratio)))
}

// SpacedMeasure widens m to account for per-glyph cursor advances at the
// given spacing ratio. The reported box is never narrower than the sum of
// spaced advances, so text fitted with it cannot overflow when drawn glyph
// by glyph.
func SpacedMeasure(m MeasureFunc, ratio float64) MeasureFunc {
	if ratio == 0 {
		return m
	}
	return func(face font.Face, text string) Box {
		box := m(face, text)
		w := 0
		for _, r := range text {
			adv, ok := face.GlyphAdvance(r)
			if !ok {
				continue
			}
			w += SpacedAdvance(adv, ratio)
		}
		if w > box.Width() {
			box.Right = box.Left + w
		}
		return box
	}
}

// ///////////////////////////////////////////////////////////////////////////
// Style defaults
// ///////////////////////////////////////////////////////////////////////////

func (s Style) margin(canvasW int) int {
	m := s.MarginPx
	if m <= 0 {
		ratio := s.MarginRatio
		if ratio <= 0 {
			ratio = 0.12
		}
		m = int(ratio * float64(canvasW))
	}
	if m < 0 {
		m = 0
	}
	return m
}

func (s Style) startSize(canvasW int) int {
	if s.StartSize > 0 {
		return s.StartSize
	}
	derived := int(0.06 * float64(canvasW))
	if derived < 24 {
		derived = 24
	}
	return derived
}

func (s Style) minSize() int {
	if s.MinSize > 0 {
		return s.MinSize
	}
	return 14
}

func (s Style) yAnchor() float64 {
	if s.YAnchorRatio > 0 {
		return s.YAnchorRatio
	}
	return 0.62
}

func (s Style) subtitleScale() float64 {
	if s.SubtitleScale > 0 {
		return s.SubtitleScale
	}
	return 0.6
}

func (s Style) gapRatio() float64 {
	if s.GapRatio > 0 {
		return s.GapRatio
	}
	return 0.25
}
