package parser

import (
	"fmt"
	"regexp"
	"strings"

	"invoice-scanner/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FieldExtractor turns raw OCR text into structured invoice fields.
type FieldExtractor interface {
	Parse(text string) models.Invoice
}

// Labels holds the label synonyms for each field. Entries are regular
// expression fragments, e.g. `Ref\s*No\.?`.
type Labels struct {
	InvoiceNumber []string `yaml:"invoice_number"`
	Date          []string `yaml:"date"`
	Vendor        []string `yaml:"vendor"`
	Total         []string `yaml:"total"`
}

// DefaultLabels returns the built-in synonyms. Longer alternatives come first
// so "Invoice Number" is not read as "Invoice" followed by the value "Number",
// and a bare "Invoice" needs a marker so "Invoice Date" is not a number.
func DefaultLabels() Labels {
	return Labels{
		InvoiceNumber: []string{`Invoice\s*Number`, `Invoice\s*(?:#|No\b\.?|:)`, `Order\s*No\.?`, `Ref\s*No\.?`},
		Date:          []string{`Invoice\s*Date`, `Issue\s*Date`, `Due\s*Date`, `Date`},
		Vendor:        []string{`From`, `Vendor`, `Bill\s*To`, `Sold\s*To`, `Supplier`, `Company`},
		Total:         []string{`Grand\s*Total`, `Total`, `Amount\s*Due`, `Balance\s*Due`},
	}
}

// merge fills empty label sets from the defaults.
func (l Labels) merge(def Labels) Labels {
	if len(l.InvoiceNumber) == 0 {
		l.InvoiceNumber = def.InvoiceNumber
	}
	if len(l.Date) == 0 {
		l.Date = def.Date
	}
	if len(l.Vendor) == 0 {
		l.Vendor = def.Vendor
	}
	if len(l.Total) == 0 {
		l.Total = def.Total
	}
	return l
}

// lineItemPattern matches "<qty> <description> <price>" without crossing a
// line break. Text before the quantity or after the price is ignored.
var lineItemPattern = regexp.MustCompile(`\b(\d+)[ \t]+([^\d$\n]+?)[ \t]+\$?([\d,.]*\d)`)

// Parser is the regular-expression FieldExtractor.
type Parser struct {
	invoiceNumber *regexp.Regexp
	date          *regexp.Regexp
	vendor        *regexp.Regexp
	total         *regexp.Regexp
	logger        *zap.Logger
}

var _ FieldExtractor = (*Parser)(nil)

// New compiles the field patterns for the given labels. Empty label sets fall
// back to DefaultLabels.
func New(labels Labels, logger *zap.Logger) (*Parser, error) {
	labels = labels.merge(DefaultLabels())

	invoiceNumber, err := compile(labels.InvoiceNumber, `\s*[:\s]*([\w-]+)`)
	if err != nil {
		return nil, fmt.Errorf("invoice number pattern: %w", err)
	}
	date, err := compile(labels.Date, `\s*[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`)
	if err != nil {
		return nil, fmt.Errorf("date pattern: %w", err)
	}
	vendor, err := compile(labels.Vendor, `\s*[:\s]*([^\n]+)`)
	if err != nil {
		return nil, fmt.Errorf("vendor pattern: %w", err)
	}
	total, err := compile(labels.Total, `\s*[:\s]*\$?([\d,.]+)`)
	if err != nil {
		return nil, fmt.Errorf("total pattern: %w", err)
	}

	return &Parser{
		invoiceNumber: invoiceNumber,
		date:          date,
		vendor:        vendor,
		total:         total,
		logger:        logger,
	}, nil
}

// MustNew is like New but panics on an invalid label.
func MustNew(labels Labels, logger *zap.Logger) *Parser {
	p, err := New(labels, logger)
	if err != nil {
		panic(err)
	}
	return p
}

func compile(labels []string, value string) (*regexp.Regexp, error) {
	return regexp.Compile(`(?i)\b(?:` + strings.Join(labels, "|") + `)` + value)
}

// Parse extracts invoice fields from text. It never fails: fields without a
// match keep their zero value.
func (p *Parser) Parse(text string) models.Invoice {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	inv := models.Invoice{LineItems: []models.LineItem{}}

	// First line in document order wins for each field.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if inv.InvoiceNumber == "" {
			inv.InvoiceNumber = firstGroup(p.invoiceNumber, line)
		}
		if inv.Date == "" {
			inv.Date = firstGroup(p.date, line)
		}
		if inv.Vendor == "" {
			inv.Vendor = firstGroup(p.vendor, line)
		}
	}

	for _, m := range p.total.FindAllStringSubmatch(text, -1) {
		total, err := parseAmount(m[1])
		if err != nil {
			p.logger.Debug("skipping malformed total", zap.String("token", m[1]), zap.Error(err))
			continue
		}
		inv.Total = total
		break
	}

	for _, m := range lineItemPattern.FindAllStringSubmatch(text, -1) {
		item, err := parseLineItem(m[1], m[2], m[3])
		if err != nil {
			p.logger.Debug("skipping malformed line item", zap.String("line", strings.TrimSpace(m[0])), zap.Error(err))
			continue
		}
		inv.LineItems = append(inv.LineItems, item)
	}

	return inv
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func parseLineItem(qty, desc, price string) (models.LineItem, error) {
	q, err := decimal.NewFromString(qty)
	if err != nil || !q.IsInteger() || q.GreaterThan(decimal.NewFromInt(maxQuantity)) {
		return models.LineItem{}, fmt.Errorf("invalid quantity %q", qty)
	}
	p, err := parseAmount(price)
	if err != nil {
		return models.LineItem{}, err
	}
	return models.LineItem{
		Quantity:    int(q.IntPart()),
		Description: strings.TrimSpace(desc),
		Price:       p,
	}, nil
}

const maxQuantity = 1<<31 - 1

// parseAmount strips thousands separators and converts the token.
func parseAmount(token string) (float64, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(token, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", token, err)
	}
	return d.InexactFloat64(), nil
}
