package orders_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/memstore"
	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stallingInventory blocks decrements of one product until the context ends.
type stallingInventory struct {
	*memstore.Products
	stall string
}

func (s stallingInventory) Decrement(ctx context.Context, productID, size string, qty int) error {
	if productID == s.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.Products.Decrement(ctx, productID, size, qty)
}

func TestReserve_TimeoutReleasesEarlierLines(t *testing.T) {
	products := memstore.NewProducts()
	require.NoError(t, products.Create(context.Background(), prod("a", "1.00", size("M", 5))))
	require.NoError(t, products.Create(context.Background(), prod("b", "1.00", size("M", 5))))

	engine := orders.NewEngine(stallingInventory{Products: products, stall: "b"}, 50*time.Millisecond, zap.NewNop())
	_, err := engine.Reserve(context.Background(), []orders.LineRequest{
		{ProductID: "b", Size: "M", Quantity: 1},
		{ProductID: "a", Size: "M", Quantity: 2},
	})
	require.Equal(t, orders.KindReservationTimeout, orders.KindOf(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	p, _ := products.Get(context.Background(), "a")
	q, _ := p.Quantity("M")
	require.Equal(t, 5, q)
}

func TestReserve_LinesComeBackInRequestOrder(t *testing.T) {
	products := memstore.NewProducts()
	require.NoError(t, products.Create(context.Background(), prod("a", "1.00", size("M", 5))))
	require.NoError(t, products.Create(context.Background(), prod("b", "2.00", size("One", 5))))

	engine := orders.NewEngine(products, time.Second, zap.NewNop())
	res, err := engine.Reserve(context.Background(), []orders.LineRequest{
		{ProductID: "b", Quantity: 1},
		{ProductID: "a", Size: "M", Quantity: 2},
	})
	require.NoError(t, err)
	require.Equal(t, []orders.ReservedLine{
		{ProductID: "b", Size: "One", Quantity: 1},
		{ProductID: "a", Size: "M", Quantity: 2},
	}, res.Lines)
	require.Equal(t, []string{"b", "a"}, res.ProductIDs())
	require.Len(t, res.Snapshot, 2)

	require.NoError(t, engine.Release(context.Background(), res.Lines))
	p, _ := products.Get(context.Background(), "b")
	q, _ := p.Quantity("One")
	require.Equal(t, 5, q)
}

// txInventory runs fn against the memory store and undoes its decrements
// when fn fails, the way a database rollback would.
type txInventory struct {
	*memstore.Products
	txs        atomic.Int32
	rollbacks  atomic.Int32
	increments atomic.Int32
}

type journal struct {
	*txInventory
	done []orders.ReservedLine
}

func (j *journal) Decrement(ctx context.Context, productID, size string, qty int) error {
	if err := j.Products.Decrement(ctx, productID, size, qty); err != nil {
		return err
	}
	j.done = append(j.done, orders.ReservedLine{ProductID: productID, Size: size, Quantity: qty})
	return nil
}

func (t *txInventory) Increment(ctx context.Context, productID, size string, qty int) error {
	t.increments.Add(1)
	return t.Products.Increment(ctx, productID, size, qty)
}

func (t *txInventory) InTx(ctx context.Context, fn func(ctx context.Context, inv orders.Inventory) error) error {
	t.txs.Add(1)
	j := &journal{txInventory: t}
	if err := fn(ctx, j); err != nil {
		t.rollbacks.Add(1)
		for _, l := range j.done {
			_ = t.Products.Increment(context.Background(), l.ProductID, l.Size, l.Quantity)
		}
		return err
	}
	return nil
}

func TestReserve_UsesTransactionWhenAvailable(t *testing.T) {
	products := memstore.NewProducts()
	require.NoError(t, products.Create(context.Background(), prod("a", "1.00", size("M", 5))))
	require.NoError(t, products.Create(context.Background(), prod("b", "1.00", size("M", 1))))
	inv := &txInventory{Products: products}

	engine := orders.NewEngine(inv, time.Second, zap.NewNop())
	_, err := engine.Reserve(context.Background(), []orders.LineRequest{
		{ProductID: "a", Size: "M", Quantity: 3},
		{ProductID: "b", Size: "M", Quantity: 2},
	})
	require.Equal(t, orders.KindInsufficientStock, orders.KindOf(err))
	require.EqualValues(t, 1, inv.txs.Load())
	require.EqualValues(t, 1, inv.rollbacks.Load())
	require.Zero(t, inv.increments.Load(), "no compensation inside a transaction")

	p, _ := products.Get(context.Background(), "a")
	q, _ := p.Quantity("M")
	require.Equal(t, 5, q)
}

func TestValidateLines(t *testing.T) {
	require.NoError(t, orders.ValidateLines([]orders.LineRequest{{ProductID: "a", Quantity: 1}}))

	err := orders.ValidateLines([]orders.LineRequest{{ProductID: "a", Quantity: 1}, {ProductID: "a", Size: "M", Quantity: 1}})
	require.Equal(t, orders.KindValidation, orders.KindOf(err))
	require.ErrorContains(t, err, "duplicate productId a")
}
