// Package azurecv recognizes printed text with Azure Computer Vision.
package azurecv

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"sort"
	"strconv"
	"strings"

	"invoice-scanner/pkg/models"
	"invoice-scanner/pkg/services/ocr"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// Engine sends images to the Computer Vision OCR endpoint
type Engine struct {
	client   *computervision.BaseClient
	language computervision.OcrLanguages
}

var _ ocr.Engine = (*Engine)(nil)

// NewEngine creates a new Computer Vision engine. An empty language lets the
// service detect it.
func NewEngine(endpoint, apiKey, language string) *Engine {
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	lang := computervision.OcrLanguagesUnk
	if language != "" {
		lang = computervision.OcrLanguages(language)
	}
	return &Engine{
		client:   &client,
		language: lang,
	}
}

func (e *Engine) Name() string { return "azure" }

// Recognize uploads the image and returns its lines top to bottom, one per row.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := ocr.EncodePNG(img)
	if err != nil {
		return "", err
	}

	result, err := e.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(data)),
		e.language,
	)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}

	return joinLines(extractTextFromOCRResult(result)), nil
}

// extractTextFromOCRResult extracts text lines with position information from OCR result
func extractTextFromOCRResult(result computervision.OcrResult) []models.TextLine {
	if result.Regions == nil {
		return nil
	}

	var textLines []models.TextLine
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}

			var words []string
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}

			box := parseBoundingBox(line.BoundingBox)
			textLines = append(textLines, models.TextLine{
				Text:   strings.Join(words, " "),
				X:      box[0],
				Y:      box[1],
				Width:  box[2],
				Height: box[3],
			})
		}
	}
	return textLines
}

// parseBoundingBox reads "x,y,w,h"; missing or bad parts are zero.
func parseBoundingBox(s *string) [4]int {
	var box [4]int
	if s == nil {
		return box
	}
	for i, part := range strings.SplitN(*s, ",", 4) {
		box[i], _ = strconv.Atoi(strings.TrimSpace(part))
	}
	return box
}

// joinLines orders lines by their top edge, then left edge, and merges lines
// whose top edges are within half a line height into one row. Regions come
// back column by column, which would otherwise split a label from its value.
func joinLines(lines []models.TextLine) string {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Y != lines[j].Y {
			return lines[i].Y < lines[j].Y
		}
		return lines[i].X < lines[j].X
	})

	var rows [][]models.TextLine
	for _, l := range lines {
		if n := len(rows); n > 0 {
			head := rows[n-1][0]
			if l.Y-head.Y <= head.Height/2 {
				rows[n-1] = append(rows[n-1], l)
				continue
			}
		}
		rows = append(rows, []models.TextLine{l})
	}

	var b strings.Builder
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		for i, l := range row {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(l.Text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
