package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"invoice-scanner/pkg/config"
	"invoice-scanner/pkg/handlers"
	"invoice-scanner/pkg/services/invoices"
	"invoice-scanner/pkg/services/ocr"
	"invoice-scanner/pkg/services/ocr/azurecv"
	"invoice-scanner/pkg/services/ocr/tesseract"
	"invoice-scanner/pkg/services/parser"
	"invoice-scanner/pkg/services/pdf"
	"invoice-scanner/pkg/services/pdf/mupdf"
	"invoice-scanner/pkg/services/retention"
	"invoice-scanner/pkg/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up the invoice store
	invoiceStore, err := newStore(cfg)
	if err != nil {
		logger.Fatal("failed to set up store", zap.Error(err))
	}

	// Set up OCR
	ocrService := ocr.NewService(newEngine(cfg), newRasterizer(cfg, logger), ocr.Config{
		Preprocess: cfg.OCR.Preprocess,
		Workers:    cfg.OCR.Workers,
	}, logger)

	fieldParser, err := parser.New(cfg.Labels, logger)
	if err != nil {
		logger.Fatal("invalid label configuration", zap.Error(err))
	}

	invoiceService, err := invoices.NewService(cfg.UploadDir, ocrService, fieldParser, invoiceStore, logger)
	if err != nil {
		logger.Fatal("failed to create invoice service", zap.Error(err))
	}

	policy := retention.Policy{
		MaxAge:   cfg.Retention.MaxAge,
		MaxBytes: cfg.Retention.MaxBytes,
		Grace:    cfg.Retention.Interval,
	}
	if policy.Enabled() {
		go retention.NewJanitor(cfg.UploadDir, policy, logger).Run(ctx, cfg.Retention.Interval)
	}

	// Set up Gin router
	r := handlers.NewRouter(handlers.New(invoiceService, cfg.MaxUploadBytes, logger), logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("ocr_engine", cfg.OCR.Engine),
		zap.String("pdf_rasterizer", cfg.OCR.Rasterizer),
		zap.String("store", cfg.Store.Driver))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Driver == config.StorePostgres {
		return store.OpenPostgres(cfg.Store.DatabaseURL)
	}
	return store.NewMemoryStore(), nil
}

func newEngine(cfg *config.Config) ocr.Engine {
	if cfg.OCR.Engine == config.EngineAzure {
		return azurecv.NewEngine(cfg.OCR.AzureEndpoint, cfg.OCR.AzureKey, cfg.OCR.AzureLanguage)
	}
	return tesseract.NewEngine(cfg.OCR.Languages...)
}

func newRasterizer(cfg *config.Config, logger *zap.Logger) ocr.Rasterizer {
	if cfg.OCR.Rasterizer == config.RasterizerPdfcpu {
		return pdf.NewEmbeddedImages(logger)
	}
	return mupdf.NewRenderer(cfg.OCR.DPI, logger)
}
