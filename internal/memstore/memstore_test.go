package memstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func product(id, name string, at time.Time, sizes ...catalog.Size) catalog.Product {
	return catalog.Product{
		ID:        id,
		Name:      name,
		Price:     decimal.RequireFromString("10.00"),
		Sizes:     sizes,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestProducts_DecrementIsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewProducts()
	require.NoError(t, s.Create(ctx, product("p1", "Shirt", base, catalog.Size{Label: "M", Quantity: 2})))

	require.ErrorIs(t, s.Decrement(ctx, "p1", "M", 3), catalog.ErrInsufficientStock)
	require.NoError(t, s.Decrement(ctx, "p1", "M", 2))
	require.ErrorIs(t, s.Decrement(ctx, "p1", "M", 1), catalog.ErrInsufficientStock)
	require.ErrorIs(t, s.Decrement(ctx, "p1", "XL", 1), catalog.ErrUnknownSize)
	require.ErrorIs(t, s.Decrement(ctx, "nope", "M", 1), catalog.ErrProductNotFound)

	require.NoError(t, s.Increment(ctx, "p1", "M", 1))
	p, err := s.Get(ctx, "p1")
	require.NoError(t, err)
	q, _ := p.Quantity("M")
	require.Equal(t, 1, q)
}

func TestProducts_ConcurrentDecrementNeverOversells(t *testing.T) {
	ctx := context.Background()
	s := NewProducts()
	require.NoError(t, s.Create(ctx, product("p1", "Shirt", base, catalog.Size{Label: "M", Quantity: 50})))

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Decrement(ctx, "p1", "M", 1) == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 50, ok.Load())
	p, _ := s.Get(ctx, "p1")
	q, _ := p.Quantity("M")
	require.Zero(t, q)
}

func TestProducts_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewProducts()
	require.NoError(t, s.Create(ctx, product("p1", "Shirt", base, catalog.Size{Label: "M", Quantity: 5})))

	snap, err := s.Snapshot(ctx, []string{"p1", "missing"})
	require.NoError(t, err)
	require.Len(t, snap, 1)
	snap["p1"].Sizes[0].Quantity = 0

	p, _ := s.Get(ctx, "p1")
	q, _ := p.Quantity("M")
	require.Equal(t, 5, q)
}

func TestProducts_ListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := NewProducts()
	require.NoError(t, s.Create(ctx, product("c", "Red Shirt", base.Add(2*time.Minute), catalog.Size{Label: "M", Quantity: 0})))
	require.NoError(t, s.Create(ctx, product("a", "Blue shirt", base, catalog.Size{Label: "M", Quantity: 3})))
	require.NoError(t, s.Create(ctx, product("b", "Green SHIRT", base, catalog.Size{Label: "L", Quantity: 3})))
	require.NoError(t, s.Create(ctx, product("d", "Hat", base, catalog.Size{Label: "M", Quantity: 3})))

	got, err := s.List(ctx, catalog.Filter{Name: "shirt", Size: "M"}, page.Request{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, ids(got))

	got, err = s.List(ctx, catalog.Filter{}, page.Request{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "d"}, ids(got))

	got, err = s.List(ctx, catalog.Filter{}, page.Request{Limit: 2, Offset: 10})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestProducts_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewProducts()
	require.ErrorIs(t, s.Decrement(ctx, "p1", "M", 1), context.Canceled)
	require.ErrorIs(t, s.Ping(ctx), context.Canceled)
}

func TestOrders_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewOrders()
	for i, id := range []string{"o1", "o2", "o3"} {
		require.NoError(t, s.Insert(ctx, orders.Order{ID: id, UserID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}
	require.NoError(t, s.Insert(ctx, orders.Order{ID: "o0", UserID: "u1", CreatedAt: base.Add(2 * time.Second)}))
	require.NoError(t, s.Insert(ctx, orders.Order{ID: "x", UserID: "u2", CreatedAt: base}))
	require.Error(t, s.Insert(ctx, orders.Order{ID: "o1", UserID: "u1"}))

	got, err := s.ListByUser(ctx, "u1", page.Request{Limit: 10})
	require.NoError(t, err)
	var gotIDs []string
	for _, o := range got {
		gotIDs = append(gotIDs, o.ID)
	}
	require.Equal(t, []string{"o3", "o0", "o2", "o1"}, gotIDs)

	got, err = s.ListByUser(ctx, "u1", page.Request{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "o2", got[0].ID)
}

func ids(ps []catalog.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestOrders_Exists(t *testing.T) {
	ctx := context.Background()
	s := NewOrders()
	require.NoError(t, s.Insert(ctx, orders.Order{ID: "o1", UserID: "u1", CreatedAt: base}))

	ok, err := s.Exists(ctx, "o1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Exists(ctx, "o2")
	require.NoError(t, err)
	require.False(t, ok)
}
