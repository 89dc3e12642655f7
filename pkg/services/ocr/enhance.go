package ocr

import (
	"image"

	"github.com/disintegration/imaging"
)

// maxSide keeps very large scans from slowing recognition down.
const maxSide = 3000

// EnhanceImageForOCR enhances the image for better OCR results
func EnhanceImageForOCR(src image.Image) image.Image {
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)
	img = imaging.AdjustBrightness(img, 10)
	img = imaging.AdjustGamma(img, 1.2)

	b := img.Bounds()
	switch {
	case b.Dx() > maxSide || b.Dy() > maxSide:
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	case b.Dy() > 0 && b.Dy() < 800:
		// Small photos recognize poorly; upscale like a phone receipt shot.
		img = imaging.Resize(img, 0, 1200, imaging.Lanczos)
	}
	return img
}
