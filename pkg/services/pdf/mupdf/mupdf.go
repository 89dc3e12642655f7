// Package mupdf renders PDF pages with MuPDF.
package mupdf

import (
	"context"
	"fmt"
	"image"

	"invoice-scanner/pkg/services/ocr"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// DefaultDPI is a good trade-off between Tesseract accuracy and speed.
const DefaultDPI = 300

// Renderer is a Rasterizer that draws every page at a fixed resolution.
type Renderer struct {
	dpi    float64
	logger *zap.Logger
}

var _ ocr.Rasterizer = (*Renderer)(nil)

// NewRenderer creates a Renderer. A non-positive dpi uses DefaultDPI.
func NewRenderer(dpi int, logger *zap.Logger) *Renderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Renderer{dpi: float64(dpi), logger: logger}
}

// Rasterize renders the pages of the document at path, in order.
func (r *Renderer) Rasterize(ctx context.Context, path string) ([]image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]image.Image, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(n, r.dpi)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", n+1, err)
		}
		pages = append(pages, img)
	}

	r.logger.Debug("pdf rendered", zap.String("file", path), zap.Int("pages", len(pages)), zap.Float64("dpi", r.dpi))
	return pages, nil
}
