package fit

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

func testPlacer(t *testing.T) *Placer {
	t.Helper()
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("parse builtin font: %v", err)
	}
	load := func(size int) (font.Face, error) {
		return opentype.NewFace(parsed, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
	}
	measure := func(face font.Face, text string) Box {
		bounds, _ := font.BoundString(face, text)
		return Box{
			Left:   bounds.Min.X.Floor(),
			Top:    bounds.Min.Y.Floor(),
			Right:  bounds.Max.X.Ceil(),
			Bottom: bounds.Max.Y.Ceil(),
		}
	}
	return &Placer{Load: load, Measure: measure}
}

func TestFitShortTextKeepsStartSize(t *testing.T) {
	p := testPlacer(t)
	res, err := p.Fit("Alex", 500, 48, 14)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Size != 48 {
		t.Errorf("size = %d, want 48", res.Size)
	}
	if w := res.Measured.Box.Width(); w > 500 {
		t.Errorf("width = %d, want <= 500", w)
	}
}

func TestFitDegradesToMinimum(t *testing.T) {
	p := testPlacer(t)
	long := strings.Repeat("Wilhelmina ", 8) // 88 chars
	res, err := p.Fit(long, 300, 48, 14)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Size != 14 {
		t.Errorf("size = %d, want floor 14", res.Size)
	}
	if w := res.Measured.Box.Width(); w <= 300 {
		t.Errorf("width = %d, expected overflow at the floor for this input", w)
	}
}

func TestFitSizeStaysInRange(t *testing.T) {
	p := testPlacer(t)
	cases := []struct {
		text       string
		maxWidth   int
		start, min int
	}{
		{"A", 1000, 72, 14},
		{"A reasonably long certificate name", 400, 48, 14},
		{strings.Repeat("M", 120), 200, 48, 14},
		{"Tiny", 50, 20, 16},
	}
	for _, tc := range cases {
		res, err := p.Fit(tc.text, tc.maxWidth, tc.start, tc.min)
		if err != nil {
			t.Fatalf("Fit(%q): %v", tc.text, err)
		}
		if res.Size < tc.min || res.Size > tc.start {
			t.Errorf("Fit(%q) size = %d, want in [%d, %d]", tc.text, res.Size, tc.min, tc.start)
		}
	}
}

func TestFitPropagatesLoadError(t *testing.T) {
	wantErr := errors.New("no usable font")
	p := &Placer{
		Load:    func(int) (font.Face, error) { return nil, wantErr },
		Measure: func(font.Face, string) Box { return Box{} },
	}
	if _, err := p.Fit("x", 100, 48, 14); !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestTruncateToFit(t *testing.T) {
	p := testPlacer(t)
	face, err := p.Load(14)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	t.Run("fits unchanged", func(t *testing.T) {
		if got := p.TruncateToFit(face, "Alex", 500); got != "Alex" {
			t.Errorf("got %q, want unchanged input", got)
		}
	})

	t.Run("overflow gains ellipsis within budget", func(t *testing.T) {
		long := strings.Repeat("Maximiliano Fernandez ", 4)
		got := p.TruncateToFit(face, long, 300)
		if !strings.HasSuffix(got, Ellipsis) {
			t.Errorf("got %q, want ellipsis suffix", got)
		}
		if w := p.Measure(face, got).Width(); w > 300 {
			t.Errorf("width = %d, want <= 300", w)
		}
		if strings.HasSuffix(strings.TrimSuffix(got, Ellipsis), " ") {
			t.Errorf("got %q, trailing space kept before ellipsis", got)
		}
	})

	t.Run("nothing fits yields bare ellipsis", func(t *testing.T) {
		if got := p.TruncateToFit(face, "Wide", 1); got != Ellipsis {
			t.Errorf("got %q, want %q", got, Ellipsis)
		}
	})

	t.Run("blank input yields empty", func(t *testing.T) {
		for _, in := range []string{"", "   ", "\t\n"} {
			if got := p.TruncateToFit(face, in, 300); got != "" {
				t.Errorf("TruncateToFit(%q) = %q, want empty", in, got)
			}
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		long := strings.Repeat("Anastasia Konstantinopoulos ", 3)
		once := p.TruncateToFit(face, long, 250)
		twice := p.TruncateToFit(face, once, 250)
		if once != twice {
			t.Errorf("second pass changed %q to %q", once, twice)
		}
	})

	t.Run("monotone in budget", func(t *testing.T) {
		long := strings.Repeat("Bartholomew Montgomery ", 4)
		prev := ""
		for _, w := range []int{60, 120, 240, 480, 960} {
			got := p.TruncateToFit(face, long, w)
			if len([]rune(got)) < len([]rune(prev)) {
				t.Errorf("budget %d produced %q, shorter than previous %q", w, got, prev)
			}
			prev = got
		}
	})
}

func TestPlaceEmptyText(t *testing.T) {
	p := testPlacer(t)
	for _, in := range []string{"", "   ", "\n\t"} {
		if _, err := p.Place(in, "", 800, 600, Style{}); !errors.Is(err, ErrEmptyText) {
			t.Errorf("Place(%q) err = %v, want ErrEmptyText", in, err)
		}
	}
}

func TestPlaceCentersWithinMargin(t *testing.T) {
	p := testPlacer(t)
	style := Style{StartSize: 48, MinSize: 14, MarginPx: 80}
	pl, err := p.Place("Alex", "", 800, 600, style)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	w := pl.Primary.Box.Width()
	if lo, hi := 80.0, float64(800-80-w); pl.Primary.X < lo || pl.Primary.X > hi {
		t.Errorf("x = %.1f, want in [%.1f, %.1f]", pl.Primary.X, lo, hi)
	}
	wantX := float64(800-w)/2 - float64(pl.Primary.Box.Left)
	if pl.Primary.X != wantX {
		t.Errorf("x = %.1f, want centered %.1f", pl.Primary.X, wantX)
	}
}

func TestPlaceXOffsetAppliedAfterClamp(t *testing.T) {
	p := testPlacer(t)
	base := Style{StartSize: 48, MinSize: 14, MarginPx: 80}
	nudged := base
	nudged.XOffset = 500 // far past the margin, kept by design

	plain, err := p.Place("Alex", "", 800, 600, base)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	moved, err := p.Place("Alex", "", 800, 600, nudged)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if got, want := moved.Primary.X, plain.Primary.X+500; got != want {
		t.Errorf("x = %.1f, want clamped position plus offset %.1f", got, want)
	}
}

func TestPlaceLongNameTruncates(t *testing.T) {
	p := testPlacer(t)
	style := Style{StartSize: 48, MinSize: 14, MarginPx: 250}
	long := strings.Repeat("Wilhelmina Vandermeer ", 4)
	pl, err := p.Place(long, "", 800, 600, style)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !strings.HasSuffix(pl.Primary.Text, Ellipsis) {
		t.Errorf("text %q, want ellipsis suffix", pl.Primary.Text)
	}
	if w := pl.Primary.Box.Width(); w > 800-2*250 {
		t.Errorf("width = %d exceeds budget %d", w, 800-2*250)
	}
	if pl.Primary.Size != 14 {
		t.Errorf("size = %d, want floor 14", pl.Primary.Size)
	}
}

func TestPlaceSecondaryStacksBelowPrimary(t *testing.T) {
	p := testPlacer(t)
	style := Style{StartSize: 48, MinSize: 14, MarginPx: 40, GapRatio: 0.25}
	pl, err := p.Place("Alex Johnson", "Advanced Networking", 800, 600, style)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if pl.Secondary == nil {
		t.Fatal("no secondary line placed")
	}
	h := float64(pl.Primary.Box.Height())
	if got, want := pl.Secondary.Y, pl.Primary.Y+h+0.25*h; got != want {
		t.Errorf("secondary y = %.2f, want %.2f", got, want)
	}
	if pl.Secondary.Size >= pl.Primary.Size {
		t.Errorf("secondary size %d not smaller than primary %d", pl.Secondary.Size, pl.Primary.Size)
	}
	w := pl.Secondary.Box.Width()
	if lo, hi := 40.0, float64(800-40-w); pl.Secondary.X < lo || pl.Secondary.X > hi {
		t.Errorf("secondary x = %.1f, want in [%.1f, %.1f]", pl.Secondary.X, lo, hi)
	}
}

func TestPlaceVerticalAnchor(t *testing.T) {
	p := testPlacer(t)
	style := Style{StartSize: 48, MinSize: 14, MarginPx: 40, YAnchorRatio: 0.5, YOffset: 10}
	pl, err := p.Place("Alex", "", 800, 600, style)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	box := pl.Primary.Box
	want := 600*0.5 + 10 - float64(box.Height())/2 - float64(box.Top)
	if pl.Primary.Y != want {
		t.Errorf("y = %.2f, want %.2f", pl.Primary.Y, want)
	}
}

func TestSpacedAdvance(t *testing.T) {
	p := testPlacer(t)
	face, err := p.Load(32)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	prev := 0
	cursor := 0
	for _, r := range "ADMIN" {
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			t.Fatalf("no glyph for %q", r)
		}
		step := SpacedAdvance(adv, 0.015)
		if plain := SpacedAdvance(adv, 0); step < plain {
			t.Errorf("spaced advance %d smaller than plain %d for %q", step, plain, r)
		}
		cursor += step
		if cursor <= prev {
			t.Errorf("cursor did not advance past %d for %q", prev, r)
		}
		prev = cursor
	}
}

func TestSpacedMeasureCoversPerGlyphDrawing(t *testing.T) {
	p := testPlacer(t)
	face, err := p.Load(32)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	const ratio = 0.1
	spaced := SpacedMeasure(p.Measure, ratio)

	text := "CERTIFIED"
	plainW := p.Measure(face, text).Width()
	spacedW := spaced(face, text).Width()
	if spacedW <= plainW {
		t.Errorf("spaced width %d not wider than plain %d", spacedW, plainW)
	}

	// Drawn width under a per-glyph cursor never exceeds the spaced measure.
	drawn := 0
	for _, r := range text {
		adv, _ := face.GlyphAdvance(r)
		drawn += SpacedAdvance(adv, ratio)
	}
	if drawn > spacedW {
		t.Errorf("drawn width %d exceeds spaced measure %d", drawn, spacedW)
	}
}

func TestPlaceWithLetterSpacingFitsBudget(t *testing.T) {
	p := testPlacer(t)
	style := Style{StartSize: 48, MinSize: 14, MarginPx: 200, LetterSpacing: 0.2}
	pl, err := p.Place("Extraordinary Achievement", "", 800, 600, style)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if w := pl.Primary.Box.Width(); w > 800-2*200 {
		t.Errorf("spaced width %d exceeds budget %d", w, 800-2*200)
	}
}

func TestStyleDefaults(t *testing.T) {
	var s Style
	if got := s.margin(1000); got != 120 {
		t.Errorf("margin = %d, want ratio default 120", got)
	}
	if got := s.startSize(1000); got != 60 {
		t.Errorf("start size = %d, want 6%% of width", got)
	}
	if got := s.startSize(100); got != 24 {
		t.Errorf("start size = %d, want floor 24", got)
	}
	if got := s.minSize(); got != 14 {
		t.Errorf("min size = %d, want 14", got)
	}
	if got := s.yAnchor(); got != 0.62 {
		t.Errorf("y anchor = %v, want 0.62", got)
	}
	if got := (Style{MarginPx: -5}).margin(1000); got != 120 {
		t.Errorf("negative margin = %d, want ratio fallback", got)
	}
}

func TestDegenerateCanvasFloorsBudget(t *testing.T) {
	p := testPlacer(t)
	// Margin wider than the canvas: budget floors at 1 and the result is
	// at most a bare ellipsis.
	pl, err := p.Place("Alex", "", 100, 100, Style{StartSize: 48, MinSize: 14, MarginPx: 90})
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if pl.Primary.Text != Ellipsis {
		t.Errorf("text = %q, want bare ellipsis", pl.Primary.Text)
	}
}
