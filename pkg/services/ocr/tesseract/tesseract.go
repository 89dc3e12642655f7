// Package tesseract recognizes text with a local Tesseract install via gosseract.
package tesseract

import (
	"context"
	"fmt"
	"image"

	"invoice-scanner/pkg/services/ocr"

	"github.com/otiai10/gosseract/v2"
)

// Engine creates one gosseract client per call; clients are not safe for
// concurrent use, pages may be recognized in parallel.
type Engine struct {
	languages []string
	variables map[gosseract.SettableVariable]string
}

var _ ocr.Engine = (*Engine)(nil)

// NewEngine returns a Tesseract engine for the given languages (e.g. "eng").
func NewEngine(languages ...string) *Engine {
	return &Engine{
		languages: languages,
		variables: map[gosseract.SettableVariable]string{
			"tessedit_pageseg_mode":     "3",
			"preserve_interword_spaces": "1",
		},
	}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize performs OCR on a single image.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := ocr.EncodePNG(img)
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	for k, v := range e.variables {
		if err := client.SetVariable(k, v); err != nil {
			return "", fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
