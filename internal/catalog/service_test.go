package catalog_test

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/ariefcatur/go-order-intake/internal/memstore"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestService_RegisterAndNames(t *testing.T) {
	ctx := context.Background()
	svc := catalog.NewService(memstore.NewProducts(), zap.NewNop())

	p, err := svc.Register(ctx, catalog.Draft{
		Name:  " Wool Scarf ",
		Price: decimal.RequireFromString("12.50"),
		Sizes: []catalog.Size{{Label: "OS", Quantity: 4}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, "Wool Scarf", p.Name)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)

	names, err := svc.Names(ctx, []string{p.ID, "gone"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{p.ID: "Wool Scarf", "gone": catalog.MissingProductName}, names)

	list, err := svc.List(ctx, catalog.Filter{Name: "scarf", Size: "os"}, page.Request{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestService_RegisterRejectsInvalidDraft(t *testing.T) {
	svc := catalog.NewService(memstore.NewProducts(), zap.NewNop())
	_, err := svc.Register(context.Background(), catalog.Draft{Name: "x", Price: decimal.Zero})
	require.ErrorIs(t, err, catalog.ErrInvalidProduct)
}

func TestService_GetMissing(t *testing.T) {
	svc := catalog.NewService(memstore.NewProducts(), zap.NewNop())
	_, err := svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}
