package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/ariefcatur/go-order-intake/internal/page"
)

type Orders struct {
	mu     sync.RWMutex
	byUser map[string][]orders.Order
	ids    map[string]struct{}
}

func NewOrders() *Orders {
	return &Orders{
		byUser: make(map[string][]orders.Order),
		ids:    make(map[string]struct{}),
	}
}

var _ orders.OrderStore = (*Orders)(nil)

func (s *Orders) Insert(ctx context.Context, o orders.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	o.Items = slices.Clone(o.Items)
	s.ids[o.ID] = struct{}{}
	s.byUser[o.UserID] = append(s.byUser[o.UserID], o)
	return nil
}

func (s *Orders) Exists(ctx context.Context, orderID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[orderID]
	return ok, nil
}

func (s *Orders) ListByUser(ctx context.Context, userID string, req page.Request) ([]orders.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	list := slices.Clone(s.byUser[userID])
	s.mu.RUnlock()

	slices.SortFunc(list, func(a, b orders.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return window(list, req), nil
}
