// Package store keeps parsed invoices keyed by their identifier.
package store

import (
	"context"
	"errors"
	"sync"

	"invoice-scanner/pkg/models"
)

// ErrNotFound is returned by Get for an unknown identifier.
var ErrNotFound = errors.New("invoice not found")

// Store is the capability the HTTP layer depends on. Implementations must be
// safe for concurrent use.
type Store interface {
	Put(ctx context.Context, inv models.Invoice) error
	Get(ctx context.Context, id string) (models.Invoice, error)
	List(ctx context.Context) ([]models.Invoice, error)
}

// MemoryStore holds invoices for the life of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices map[string]models.Invoice
	order    []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{invoices: make(map[string]models.Invoice)}
}

// Put inserts or overwrites the invoice under inv.ID.
func (s *MemoryStore) Put(_ context.Context, inv models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[inv.ID]; !ok {
		s.order = append(s.order, inv.ID)
	}
	s.invoices[inv.ID] = inv.Clone()
	return nil
}

// Get returns a copy of the invoice stored under id.
func (s *MemoryStore) Get(_ context.Context, id string) (models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return models.Invoice{}, ErrNotFound
	}
	return inv.Clone(), nil
}

// List returns all invoices in insertion order.
func (s *MemoryStore) List(_ context.Context) ([]models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Invoice, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.invoices[id].Clone())
	}
	return out, nil
}
