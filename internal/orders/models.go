package orders

import (
	"time"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/shopspring/decimal"
)

// LineRequest is one requested order line. Size may be empty for
// single-size products.
type LineRequest struct {
	ProductID string
	Size      string
	Quantity  int
}

type ReservedLine struct {
	ProductID string
	Size      string
	Quantity  int
}

// Snapshot holds the product rows read at reservation time, keyed by id.
type Snapshot map[string]catalog.Product

// Reservation is the outcome of a successful reserve: the decremented lines
// in request order and the snapshot their prices come from.
type Reservation struct {
	Lines    []ReservedLine
	Snapshot Snapshot
}

func (r Reservation) ProductIDs() []string {
	ids := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

type OrderItem struct {
	ProductID string
	Size      string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Order struct {
	ID        string
	UserID    string
	Items     []OrderItem
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Total sums quantity x unit price over items.
func Total(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// LedgerFailure describes stock that was reserved for an order the ledger
// could not record.
type LedgerFailure struct {
	OrderID    string
	UserID     string
	Lines      []ReservedLine
	Reason     string
	OccurredAt time.Time
}
