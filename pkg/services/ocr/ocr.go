package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnsupportedImage is returned when an upload cannot be decoded as a raster image.
var ErrUnsupportedImage = errors.New("unsupported image")

// Engine recognizes text in a single raster image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Rasterizer renders every page of a document, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string) ([]image.Image, error)
}

// Config controls how documents are fed to the engine.
type Config struct {
	// Preprocess enhances images before recognition.
	Preprocess bool
	// Workers bounds concurrent page recognition. Values below 1 mean 1.
	Workers int
}

// Service handles OCR operations
type Service struct {
	engine     Engine
	rasterizer Rasterizer
	cfg        Config
	logger     *zap.Logger
}

// NewService creates a new OCR service
func NewService(engine Engine, rasterizer Rasterizer, cfg Config, logger *zap.Logger) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Service{
		engine:     engine,
		rasterizer: rasterizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Extract returns all recognized text in the file at path. PDFs are rendered
// page by page and the page texts are concatenated in order with no separator;
// any other extension is treated as a single image.
func (s *Service) Extract(ctx context.Context, path string) (string, error) {
	start := time.Now()

	var (
		text string
		err  error
	)
	if isPageDocument(path) {
		text, err = s.extractDocument(ctx, path)
	} else {
		text, err = s.extractImage(ctx, path)
	}
	if err != nil {
		return "", err
	}

	s.logger.Info("text extracted",
		zap.String("file", filepath.Base(path)),
		zap.String("engine", s.engine.Name()),
		zap.Int("chars", len(text)),
		zap.Duration("took", time.Since(start)))
	return text, nil
}

func isPageDocument(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (s *Service) extractImage(ctx context.Context, path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return s.recognize(ctx, img)
}

func (s *Service) extractDocument(ctx context.Context, path string) (string, error) {
	if s.rasterizer == nil {
		return "", errors.New("no page rasterizer configured")
	}
	pages, err := s.rasterizer.Rasterize(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to rasterize document: %w", err)
	}

	texts := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, page := range pages {
		g.Go(func() error {
			text, err := s.recognize(gctx, page)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	s.logger.Debug("document recognized", zap.String("file", filepath.Base(path)), zap.Int("pages", len(pages)))
	return strings.Join(texts, ""), nil
}

func (s *Service) recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.cfg.Preprocess {
		img = EnhanceImageForOCR(img)
	}
	text, err := s.engine.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}

// EncodePNG serializes img for engines that take encoded bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
