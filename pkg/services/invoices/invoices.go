package invoices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"invoice-scanner/pkg/models"
	"invoice-scanner/pkg/services/parser"
	"invoice-scanner/pkg/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrExtraction wraps any failure to read text out of an upload.
var ErrExtraction = errors.New("text extraction failed")

// TextExtractor reads the text of a stored upload.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Service runs the upload pipeline: save, extract, parse, store.
type Service struct {
	uploadDir string
	extractor TextExtractor
	parser    parser.FieldExtractor
	store     store.Store
	logger    *zap.Logger
	newID     func() string
}

// NewService creates the upload directory if needed.
func NewService(uploadDir string, extractor TextExtractor, p parser.FieldExtractor, s store.Store, logger *zap.Logger) (*Service, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Service{
		uploadDir: uploadDir,
		extractor: extractor,
		parser:    p,
		store:     s,
		logger:    logger,
		newID:     uuid.NewString,
	}, nil
}

// Process saves the upload as {id}{ext}, extracts and parses it, and stores
// the result. The identifier is generated here and never reused.
func (s *Service) Process(ctx context.Context, filename string, src io.Reader) (models.Invoice, error) {
	id := s.newID()
	path := filepath.Join(s.uploadDir, id+filepath.Ext(filepath.Base(filename)))

	if err := save(path, src); err != nil {
		return models.Invoice{}, err
	}

	text, err := s.extractor.Extract(ctx, path)
	if err != nil {
		s.logger.Warn("extraction failed", zap.String("id", id), zap.String("filename", filename), zap.Error(err))
		return models.Invoice{}, fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	inv := s.parser.Parse(text)
	inv.ID = id

	if err := s.store.Put(ctx, inv); err != nil {
		return models.Invoice{}, fmt.Errorf("failed to store invoice: %w", err)
	}

	s.logger.Info("invoice processed",
		zap.String("id", id),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int("line_items", len(inv.LineItems)),
		zap.Float64("total", inv.Total))
	return inv, nil
}

// Get returns a stored invoice or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (models.Invoice, error) {
	return s.store.Get(ctx, id)
}

// List returns all stored invoices.
func (s *Service) List(ctx context.Context) ([]models.Invoice, error) {
	return s.store.List(ctx)
}

func save(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return nil
}
