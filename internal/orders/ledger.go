package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OrderStore persists orders. ListByUser returns newest first by stored
// creation time, id descending on ties.
type OrderStore interface {
	Insert(ctx context.Context, o Order) error
	Exists(ctx context.Context, orderID string) (bool, error)
	ListByUser(ctx context.Context, userID string, req page.Request) ([]Order, error)
}

type Ledger struct {
	store  OrderStore
	now    func() time.Time
	tracer trace.Tracer
}

func NewLedger(store OrderStore) *Ledger {
	return &Ledger{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otel.Tracer("orders/ledger"),
	}
}

// WithClock replaces the timestamp source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Persist prices the reserved lines, assigns identity and writes the order
// once. A failed write is reported as LedgerWriteFailed carrying the order
// id, since the write may have landed before the error surfaced.
func (l *Ledger) Persist(ctx context.Context, userID string, lines []ReservedLine, prices map[string]decimal.Decimal) (Order, error) {
	ctx, span := l.tracer.Start(ctx, "Ledger.Persist")
	defer span.End()

	items := make([]OrderItem, 0, len(lines))
	for _, ln := range lines {
		price, ok := prices[ln.ProductID]
		if !ok {
			return Order{}, &Error{Kind: KindProductNotFound, ProductID: ln.ProductID, Err: ErrPriceUnresolved}
		}
		items = append(items, OrderItem{
			ProductID: ln.ProductID,
			Size:      ln.Size,
			Quantity:  ln.Quantity,
			UnitPrice: price,
		})
	}

	now := l.now()
	o := Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Items:     items,
		Total:     Total(items),
		CreatedAt: now,
		UpdatedAt: now,
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.total", o.Total.String()))

	if err := l.store.Insert(ctx, o); err != nil {
		span.RecordError(err)
		return Order{}, &Error{Kind: KindLedgerWriteFailed, OrderID: o.ID, Err: err}
	}
	return o, nil
}

func (l *Ledger) ListByUser(ctx context.Context, userID string, req page.Request) ([]Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("", "userId cannot be empty")
	}
	list, err := l.store.ListByUser(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return list, nil
}
