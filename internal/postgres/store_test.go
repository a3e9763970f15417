package postgres_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/ariefcatur/go-order-intake/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

type StoreSuite struct {
	suite.Suite
	ctx       context.Context
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	products  *postgres.ProductStore
	orders    *postgres.OrderStore
}

func TestStoreSuite(t *testing.T) {
	if os.Getenv("INTEGRATION") != "1" {
		t.Skip("set INTEGRATION=1 to run postgres integration tests")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.container, err = tcpostgres.Run(s.ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("orders_test"),
		tcpostgres.WithUsername("test_user"),
		tcpostgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)

	dsn, err := s.container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.Require().NoError(postgres.Migrate(dsn))
	s.Require().NoError(postgres.Migrate(dsn), "second run is a no-op")

	s.pool, err = postgres.Connect(s.ctx, dsn, 16)
	s.Require().NoError(err)
	s.products = postgres.NewProductStore(s.pool)
	s.orders = postgres.NewOrderStore(s.pool)
}

func (s *StoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(s.ctx))
	}
}

func (s *StoreSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE products, orders CASCADE")
	s.Require().NoError(err)
}

func (s *StoreSuite) seed(id, name, price string, at time.Time, sizes ...catalog.Size) {
	s.Require().NoError(s.products.Create(s.ctx, catalog.Product{
		ID:        id,
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Sizes:     sizes,
		CreatedAt: at,
		UpdatedAt: at,
	}))
}

func (s *StoreSuite) quantity(id, size string) int {
	p, err := s.products.Get(s.ctx, id)
	s.Require().NoError(err)
	q, ok := p.Quantity(size)
	s.Require().True(ok)
	return q
}

func (s *StoreSuite) TestProductRoundTrip() {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.seed("p1", "Linen Shirt", "19.990", at, catalog.Size{Label: "S", Quantity: 1}, catalog.Size{Label: "M", Quantity: 0})

	p, err := s.products.Get(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal("Linen Shirt", p.Name)
	s.True(p.Price.Equal(decimal.RequireFromString("19.99")))
	s.Equal([]catalog.Size{{Label: "S", Quantity: 1}, {Label: "M", Quantity: 0}}, p.Sizes)
	s.True(p.CreatedAt.Equal(at))

	_, err = s.products.Get(s.ctx, "missing")
	s.ErrorIs(err, catalog.ErrProductNotFound)
}

func (s *StoreSuite) TestListFilters() {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.seed("a", "Blue shirt", "1", at, catalog.Size{Label: "M", Quantity: 0})
	s.seed("b", "Green SHIRT", "1", at, catalog.Size{Label: "L", Quantity: 3})
	s.seed("c", "Hat", "1", at, catalog.Size{Label: "M", Quantity: 3})
	s.seed("d", "Red Shirt", "1", at.Add(time.Minute), catalog.Size{Label: "m", Quantity: 1})

	list, err := s.products.List(s.ctx, catalog.Filter{Name: "shirt", Size: "M"}, page.Request{Limit: 10})
	s.Require().NoError(err)
	s.Equal([]string{"a", "d"}, productIDs(list))

	list, err = s.products.List(s.ctx, catalog.Filter{}, page.Request{Limit: 2, Offset: 2})
	s.Require().NoError(err)
	s.Equal([]string{"c", "d"}, productIDs(list))

	list, err = s.products.List(s.ctx, catalog.Filter{Name: "50%"}, page.Request{Limit: 10})
	s.Require().NoError(err)
	s.Empty(list, "name is matched literally")
}

func (s *StoreSuite) TestDecrementErrors() {
	s.seed("p1", "Shirt", "1", time.Now(), catalog.Size{Label: "M", Quantity: 1})

	s.ErrorIs(s.products.Decrement(s.ctx, "p1", "M", 2), catalog.ErrInsufficientStock)
	s.ErrorIs(s.products.Decrement(s.ctx, "p1", "XL", 1), catalog.ErrUnknownSize)
	s.ErrorIs(s.products.Decrement(s.ctx, "nope", "M", 1), catalog.ErrProductNotFound)
	s.NoError(s.products.Decrement(s.ctx, "p1", "M", 1))
	s.Equal(0, s.quantity("p1", "M"))
}

func (s *StoreSuite) TestReservationRollsBack() {
	s.seed("a", "A", "5", time.Now(), catalog.Size{Label: "M", Quantity: 10})
	s.seed("b", "B", "5", time.Now(), catalog.Size{Label: "M", Quantity: 10})
	engine := orders.NewEngine(s.products, 5*time.Second, zap.NewNop())

	_, err := engine.Reserve(s.ctx, []orders.LineRequest{
		{ProductID: "a", Size: "M", Quantity: 5},
		{ProductID: "b", Size: "M", Quantity: 1000000},
	})
	s.Equal(orders.KindInsufficientStock, orders.KindOf(err))
	s.Equal(10, s.quantity("a", "M"))
	s.Equal(10, s.quantity("b", "M"))
}

func (s *StoreSuite) TestConcurrentPlacementNeverOversells() {
	s.seed("a", "A", "2.50", time.Now(), catalog.Size{Label: "M", Quantity: 10})
	s.seed("b", "B", "1.00", time.Now(), catalog.Size{Label: "M", Quantity: 100})
	svc := orders.NewService(
		orders.NewEngine(s.products, 10*time.Second, zap.NewNop()),
		orders.NewLedger(s.orders),
		zap.NewNop(),
	)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			lines := []orders.LineRequest{
				{ProductID: "b", Size: "M", Quantity: 1},
				{ProductID: "a", Size: "M", Quantity: 1},
			}
			if i%2 == 0 {
				lines[0], lines[1] = lines[1], lines[0]
			}
			if _, err := svc.PlaceOrder(s.ctx, "u1", lines); err == nil {
				ok.Add(1)
			} else {
				s.Equal(orders.KindInsufficientStock, orders.KindOf(err))
			}
		}()
	}
	wg.Wait()

	s.EqualValues(10, ok.Load())
	s.Equal(0, s.quantity("a", "M"))
	s.Equal(90, s.quantity("b", "M"))
}

func (s *StoreSuite) TestOrdersNewestFirst() {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"o1", "o2", "o3"} {
		at := base.Add(time.Duration(i) * time.Second)
		s.Require().NoError(s.orders.Insert(s.ctx, orders.Order{
			ID:     id,
			UserID: "u1",
			Items: []orders.OrderItem{
				{ProductID: "a", Size: "M", Quantity: 2, UnitPrice: decimal.RequireFromString("0.10")},
				{ProductID: "b", Size: "L", Quantity: 1, UnitPrice: decimal.RequireFromString("3")},
			},
			Total:     decimal.RequireFromString("3.20"),
			CreatedAt: at,
			UpdatedAt: at,
		}))
	}

	list, err := s.orders.ListByUser(s.ctx, "u1", page.Request{Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("o3", list[0].ID)
	s.Equal("o2", list[1].ID)
	s.Equal("3.2", list[0].Total.String())
	s.Require().Len(list[0].Items, 2)
	s.Equal("a", list[0].Items[0].ProductID)
	s.Equal("0.1", list[0].Items[0].UnitPrice.String())

	list, err = s.orders.ListByUser(s.ctx, "nobody", page.Request{Limit: 2})
	s.Require().NoError(err)
	s.Empty(list)

	ok, err := s.orders.Exists(s.ctx, "o2")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.orders.Exists(s.ctx, "o9")
	s.Require().NoError(err)
	s.False(ok)
}

func productIDs(list []catalog.Product) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.ID)
	}
	return out
}
