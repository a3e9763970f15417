// Package memstore keeps products and orders in process memory. It backs
// STORE_DRIVER=memory and the unit tests of the packages above it.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/ariefcatur/go-order-intake/internal/page"
)

// entry guards one product. Reservations on different products never
// share a lock.
type entry struct {
	mu sync.Mutex
	p  catalog.Product
}

type Products struct {
	mu   sync.RWMutex
	byID map[string]*entry
}

func NewProducts() *Products {
	return &Products{byID: make(map[string]*entry)}
}

var (
	_ catalog.Store    = (*Products)(nil)
	_ orders.Inventory = (*Products)(nil)
)

func (s *Products) Create(ctx context.Context, p catalog.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; ok {
		return fmt.Errorf("product %s already exists", p.ID)
	}
	s.byID[p.ID] = &entry{p: p.Clone()}
	return nil
}

func (s *Products) Get(ctx context.Context, id string) (catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Product{}, err
	}
	e := s.lookup(id)
	if e == nil {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return e.read(), nil
}

// ByIDs returns the products that exist; unknown ids are skipped.
func (s *Products) ByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if e := s.lookup(id); e != nil {
			out = append(out, e.read())
		}
	}
	return out, nil
}

func (s *Products) List(ctx context.Context, f catalog.Filter, req page.Request) ([]catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	all := make([]catalog.Product, 0, len(s.byID))
	for _, e := range s.byID {
		if p := e.read(); f.Match(p) {
			all = append(all, p)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(all, func(a, b catalog.Product) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return window(all, req), nil
}

func (s *Products) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Products) Snapshot(ctx context.Context, ids []string) (orders.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := make(orders.Snapshot, len(ids))
	for _, id := range ids {
		if e := s.lookup(id); e != nil {
			snap[id] = e.read()
		}
	}
	return snap, nil
}

// Decrement lowers the quantity of (productID, size) only if at least qty
// is available.
func (s *Products) Decrement(ctx context.Context, productID, size string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.lookup(productID)
	if e == nil {
		return catalog.ErrProductNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.p.Sizes {
		if e.p.Sizes[i].Label != size {
			continue
		}
		if e.p.Sizes[i].Quantity < qty {
			return catalog.ErrInsufficientStock
		}
		e.p.Sizes[i].Quantity -= qty
		return nil
	}
	return catalog.ErrUnknownSize
}

func (s *Products) Increment(ctx context.Context, productID, size string, qty int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.lookup(productID)
	if e == nil {
		return catalog.ErrProductNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.p.Sizes {
		if e.p.Sizes[i].Label == size {
			e.p.Sizes[i].Quantity += qty
			return nil
		}
	}
	return catalog.ErrUnknownSize
}

func (s *Products) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

func (e *entry) read() catalog.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p.Clone()
}

func window[T any](all []T, req page.Request) []T {
	if req.Offset >= len(all) {
		return []T{}
	}
	end := min(req.Offset+req.Limit, len(all))
	return all[req.Offset:end]
}
