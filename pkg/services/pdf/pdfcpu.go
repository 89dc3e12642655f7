// Package pdf turns PDF uploads into page images for OCR.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"

	"invoice-scanner/pkg/services/ocr"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
	_ "golang.org/x/image/tiff"
)

// ErrNoPageImages is returned when a PDF has no embedded raster images, such
// as a document produced by a word processor rather than a scanner.
var ErrNoPageImages = errors.New("pdf has no embedded page images")

// EmbeddedImages is a pure-Go Rasterizer for scanned PDFs. It does not render
// vector content; each page contributes the raster images embedded in it.
type EmbeddedImages struct {
	conf   *model.Configuration
	logger *zap.Logger
}

var _ ocr.Rasterizer = (*EmbeddedImages)(nil)

// NewEmbeddedImages returns a pdfcpu-backed rasterizer.
func NewEmbeddedImages(logger *zap.Logger) *EmbeddedImages {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &EmbeddedImages{conf: conf, logger: logger}
}

// Rasterize decodes the images of every page, ordered by page then object number.
func (r *EmbeddedImages) Rasterize(ctx context.Context, path string) ([]image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	pages, err := api.ExtractImagesRaw(f, nil, r.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf images: %w", err)
	}

	var images []image.Image
	for _, ref := range orderImages(pages) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, _, err := image.Decode(ref.img)
		if err != nil {
			r.logger.Warn("skipping undecodable page image",
				zap.Int("page", ref.img.PageNr),
				zap.String("type", ref.img.FileType),
				zap.Error(err))
			continue
		}
		images = append(images, img)
	}

	if len(images) == 0 {
		return nil, ErrNoPageImages
	}
	return images, nil
}

type imageRef struct {
	objNr int
	img   model.Image
}

func orderImages(pages []map[int]model.Image) []imageRef {
	var refs []imageRef
	for _, page := range pages {
		for objNr, img := range page {
			refs = append(refs, imageRef{objNr: objNr, img: img})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].img.PageNr != refs[j].img.PageNr {
			return refs[i].img.PageNr < refs[j].img.PageNr
		}
		return refs[i].objNr < refs[j].objNr
	})
	return refs
}
