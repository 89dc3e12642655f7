package store

import (
	"context"
	"errors"
	"fmt"

	"invoice-scanner/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// invoiceRow is the database shape of an invoice.
type invoiceRow struct {
	gorm.Model
	PublicID      string `gorm:"uniqueIndex;size:36"`
	InvoiceNumber string
	Date          string
	Vendor        string
	Total         float64
	LineItems     []lineItemRow `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

func (invoiceRow) TableName() string { return "invoices" }

type lineItemRow struct {
	ID          uint `gorm:"primarykey"`
	InvoiceID   uint `gorm:"index"`
	Position    int
	Quantity    int
	Description string
	Price       float64
}

func (lineItemRow) TableName() string { return "invoice_line_items" }

// GormStore persists invoices in a SQL database through gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// OpenPostgres connects to dsn and migrates the schema.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an open connection and migrates the schema.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&invoiceRow{}, &lineItemRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Put replaces any invoice stored under the same identifier. An overwritten
// invoice keeps its row, so List order does not change.
func (s *GormStore) Put(ctx context.Context, inv models.Invoice) error {
	row := toRow(inv)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing invoiceRow
		err := tx.Where("public_id = ?", inv.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&row).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Where("invoice_id = ?", existing.ID).Delete(&lineItemRow{}).Error; err != nil {
			return err
		}
		items := row.LineItems
		row.LineItems = nil
		row.Model = existing.Model
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		for i := range items {
			items[i].InvoiceID = existing.ID
		}
		return tx.Create(&items).Error
	})
}

// Get returns ErrNotFound for an unknown identifier.
func (s *GormStore) Get(ctx context.Context, id string) (models.Invoice, error) {
	var row invoiceRow
	err := s.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("public_id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Invoice{}, ErrNotFound
	}
	if err != nil {
		return models.Invoice{}, fmt.Errorf("failed to load invoice: %w", err)
	}
	return fromRow(row), nil
}

// List returns all invoices in insertion order.
func (s *GormStore) List(ctx context.Context) ([]models.Invoice, error) {
	var rows []invoiceRow
	err := s.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	out := make([]models.Invoice, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func toRow(inv models.Invoice) invoiceRow {
	row := invoiceRow{
		PublicID:      inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Date:          inv.Date,
		Vendor:        inv.Vendor,
		Total:         inv.Total,
	}
	for i, item := range inv.LineItems {
		row.LineItems = append(row.LineItems, lineItemRow{
			Position:    i,
			Quantity:    item.Quantity,
			Description: item.Description,
			Price:       item.Price,
		})
	}
	return row
}

func fromRow(row invoiceRow) models.Invoice {
	inv := models.Invoice{
		ID:            row.PublicID,
		InvoiceNumber: row.InvoiceNumber,
		Date:          row.Date,
		Vendor:        row.Vendor,
		Total:         row.Total,
		LineItems:     make([]models.LineItem, 0, len(row.LineItems)),
	}
	for _, item := range row.LineItems {
		inv.LineItems = append(inv.LineItems, models.LineItem{
			Quantity:    item.Quantity,
			Description: item.Description,
			Price:       item.Price,
		})
	}
	return inv
}
