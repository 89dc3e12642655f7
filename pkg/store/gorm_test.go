package store

import (
	"context"
	"testing"

	"invoice-scanner/pkg/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	// Every connection to :memory: opens its own database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	s, err := NewGormStore(db)
	require.NoError(t, err)
	return s
}

func TestGormStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	inv := models.Invoice{
		ID:            "id-1",
		InvoiceNumber: "ORD2025-001",
		Date:          "02/08/2025",
		Vendor:        "ABC Corp",
		LineItems: []models.LineItem{
			{Quantity: 2, Description: "Product Y", Price: 25},
			{Quantity: 1, Description: "Product X", Price: 15},
			{Quantity: 3, Description: "Product A", Price: 1.5},
		},
		Total: 44.5,
	}
	require.NoError(t, s.Put(ctx, inv))

	got, err := s.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, inv, got)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_NoLineItems(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.Put(ctx, models.Invoice{ID: "blank", LineItems: []models.LineItem{}}))

	got, err := s.Get(ctx, "blank")
	require.NoError(t, err)
	assert.NotNil(t, got.LineItems)
	assert.Empty(t, got.LineItems)
}

func TestGormStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	require.NoError(t, s.Put(ctx, sampleInvoice("a")))
	require.NoError(t, s.Put(ctx, sampleInvoice("b")))

	replaced := models.Invoice{
		ID:            "a",
		InvoiceNumber: "INV-a2",
		Vendor:        "Other Co",
		LineItems: []models.LineItem{
			{Quantity: 5, Description: "Bolts", Price: 0.2},
			{Quantity: 1, Description: "Nuts", Price: 3},
		},
		Total: 4,
	}
	require.NoError(t, s.Put(ctx, replaced))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, replaced, got)

	other, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, sampleInvoice("b"), other)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, replaced, list[0])
	assert.Equal(t, "b", list[1].ID)
}

func TestGormStore_ListInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	empty, err := s.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, sampleInvoice(id)))
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, id := range []string{"c", "a", "b"} {
		assert.Equal(t, sampleInvoice(id), list[i])
	}
}
