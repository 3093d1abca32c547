package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/go-pdf/fpdf"
)

const mmPerInch = 25.4

// EncodePNG serializes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePDF wraps an encoded PNG in a single-page PDF whose page is sized
// so the image prints full-bleed at the given DPI.
func EncodePDF(pngData []byte, widthPx, heightPx, dpi int) ([]byte, error) {
	if dpi <= 0 {
		dpi = 300
	}
	wMM := float64(widthPx) / float64(dpi) * mmPerInch
	hMM := float64(heightPx) / float64(dpi) * mmPerInch

	orientation := "P"
	if wMM > hMM {
		orientation = "L"
	}
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: wMM, Ht: hMM},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("certificate", opts, bytes.NewReader(pngData))
	pdf.ImageOptions("certificate", 0, 0, wMM, hMM, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("encode pdf: %w", err)
	}
	return buf.Bytes(), nil
}
