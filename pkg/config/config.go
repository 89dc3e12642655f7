package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"invoice-scanner/pkg/services/parser"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EngineTesseract = "tesseract"
	EngineAzure     = "azure"

	RasterizerFitz   = "fitz"
	RasterizerPdfcpu = "pdfcpu"

	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds the application settings.
type Config struct {
	Port    string `yaml:"port"`
	Env     string `yaml:"env"`
	GinMode string `yaml:"gin_mode"`

	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	OCR       OCRConfig       `yaml:"ocr"`
	Store     StoreConfig     `yaml:"store"`
	Retention RetentionConfig `yaml:"retention"`

	Labels parser.Labels `yaml:"labels"`
}

// OCRConfig selects and tunes the text extractor.
type OCRConfig struct {
	Engine        string   `yaml:"engine"`
	Languages     []string `yaml:"languages"`
	Workers       int      `yaml:"workers"`
	Preprocess    bool     `yaml:"preprocess"`
	Rasterizer    string   `yaml:"rasterizer"`
	DPI           int      `yaml:"dpi"`
	AzureEndpoint string   `yaml:"azure_endpoint"`
	AzureKey      string   `yaml:"azure_key"`
	AzureLanguage string   `yaml:"azure_language"`
}

// StoreConfig selects the invoice store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
}

// RetentionConfig bounds the upload directory.
type RetentionConfig struct {
	MaxAge   time.Duration `yaml:"max_age"`
	MaxBytes int64         `yaml:"max_bytes"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:           "8080",
		Env:            "production",
		GinMode:        "release",
		UploadDir:      "uploads",
		MaxUploadBytes: 32 << 20,
		OCR: OCRConfig{
			Engine:     EngineTesseract,
			Languages:  []string{"eng"},
			Workers:    2,
			Preprocess: true,
			Rasterizer: RasterizerFitz,
			DPI:        300,
		},
		Store: StoreConfig{Driver: StoreMemory},
		Retention: RetentionConfig{
			Interval: 10 * time.Minute,
		},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then environment variables, each layer overriding the previous one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("PORT", &c.Port)
	str("APP_ENV", &c.Env)
	str("GIN_MODE", &c.GinMode)
	str("UPLOAD_DIR", &c.UploadDir)
	num("MAX_UPLOAD_BYTES", &c.MaxUploadBytes)

	str("OCR_ENGINE", &c.OCR.Engine)
	if v := os.Getenv("OCR_LANGUAGES"); v != "" {
		c.OCR.Languages = splitList(v)
	}
	workers := int64(c.OCR.Workers)
	num("OCR_WORKERS", &workers)
	c.OCR.Workers = int(workers)
	flag("OCR_PREPROCESS", &c.OCR.Preprocess)
	str("PDF_RASTERIZER", &c.OCR.Rasterizer)
	dpi := int64(c.OCR.DPI)
	num("PDF_DPI", &dpi)
	c.OCR.DPI = int(dpi)
	str("AZURE_CV_ENDPOINT", &c.OCR.AzureEndpoint)
	str("AZURE_CV_KEY", &c.OCR.AzureKey)
	str("AZURE_CV_LANGUAGE", &c.OCR.AzureLanguage)

	str("STORE_DRIVER", &c.Store.Driver)
	str("DATABASE_URL", &c.Store.DatabaseURL)

	dur("UPLOAD_RETENTION", &c.Retention.MaxAge)
	num("UPLOAD_MAX_BYTES", &c.Retention.MaxBytes)
	dur("RETENTION_INTERVAL", &c.Retention.Interval)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks option values and the settings each choice requires.
func (c *Config) Validate() error {
	var errs []error
	switch c.OCR.Engine {
	case EngineTesseract:
	case EngineAzure:
		if c.OCR.AzureEndpoint == "" || c.OCR.AzureKey == "" {
			errs = append(errs, errors.New("azure engine requires AZURE_CV_ENDPOINT and AZURE_CV_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown OCR engine %q", c.OCR.Engine))
	}
	switch c.OCR.Rasterizer {
	case RasterizerFitz, RasterizerPdfcpu:
	default:
		errs = append(errs, fmt.Errorf("unknown PDF rasterizer %q", c.OCR.Rasterizer))
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres store requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.UploadDir == "" {
		errs = append(errs, errors.New("upload directory must be set"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload size must be positive"))
	}
	if c.Retention.Interval <= 0 {
		errs = append(errs, errors.New("retention interval must be positive"))
	}
	return errors.Join(errs...)
}

// Development reports whether human-readable logs are wanted.
func (c *Config) Development() bool {
	return c.Env == "development"
}
