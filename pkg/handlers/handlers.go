package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"invoice-scanner/pkg/models"
	"invoice-scanner/pkg/services/invoices"
	"invoice-scanner/pkg/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InvoiceService is the pipeline behind the invoice routes.
type InvoiceService interface {
	Process(ctx context.Context, filename string, src io.Reader) (models.Invoice, error)
	Get(ctx context.Context, id string) (models.Invoice, error)
	List(ctx context.Context) ([]models.Invoice, error)
}

// Handler serves the invoice HTTP endpoints.
type Handler struct {
	invoices       InvoiceService
	maxUploadBytes int64
	logger         *zap.Logger
}

// New creates a Handler. Uploads larger than maxUploadBytes are rejected.
func New(svc InvoiceService, maxUploadBytes int64, logger *zap.Logger) *Handler {
	return &Handler{invoices: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// UploadInvoice accepts a multipart "file", runs OCR and field extraction and
// returns the stored record.
func (h *Handler) UploadInvoice(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		case errors.Is(err, http.ErrMissingFile) && hasFormValue(c, "file"):
			// A file input submitted with nothing chosen arrives without a filename.
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		}
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error("failed to open upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer f.Close()

	inv, err := h.invoices.Process(c.Request.Context(), fh.Filename, f)
	if errors.Is(err, invoices.ErrExtraction) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Text extraction failed", "detail": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to process invoice", zap.String("filename", fh.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process invoice"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": inv.ID, "data": inv})
}

func hasFormValue(c *gin.Context, key string) bool {
	form := c.Request.MultipartForm
	return form != nil && len(form.Value[key]) > 0
}

// GetInvoice returns a stored invoice by its identifier.
func (h *Handler) GetInvoice(c *gin.Context) {
	inv, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load invoice", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load invoice"})
		return
	}
	c.JSON(http.StatusOK, inv)
}

// ListInvoices returns every stored invoice.
func (h *Handler) ListInvoices(c *gin.Context) {
	list, err := h.invoices.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list invoices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list invoices"})
		return
	}
	c.JSON(http.StatusOK, list)
}

// AccountingEntry stands in for the accounting system: it echoes the posted
// entry back as accepted.
func (h *Handler) AccountingEntry(c *gin.Context) {
	var entry any
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": entry})
}

// Index renders the upload page.
func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

// Health reports that the server is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
