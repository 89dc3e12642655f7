package models

// Invoice represents an invoice document with extracted information
type Invoice struct {
	ID            string     `json:"id"`
	InvoiceNumber string     `json:"invoice_number"`
	Date          string     `json:"date"`
	Vendor        string     `json:"vendor"`
	LineItems     []LineItem `json:"line_items"`
	Total         float64    `json:"total"`
}

// LineItem is one purchased row of an invoice
type LineItem struct {
	Quantity    int     `json:"quantity"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Clone returns a deep copy so callers cannot mutate a stored record.
func (inv Invoice) Clone() Invoice {
	out := inv
	out.LineItems = make([]LineItem, len(inv.LineItems))
	copy(out.LineItems, inv.LineItems)
	return out
}

// TextLine represents a line of text with its position from OCR
type TextLine struct {
	Text   string
	X      int
	Y      int
	Width  int
	Height int
}
