package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced       = "OrderPlaced"
	EventLedgerWriteFailed = "LedgerWriteFailed"
	EventStockReleased     = "StockReleased"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
}

type ItemPrice struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unit_price"`
}

type OrderPlacedPayload struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	Items   []ItemPrice `json:"items"`
	Total   string      `json:"total"`
}

// LedgerFailedPayload carries what a compensator needs to put the stock back.
// OrderID lets it confirm the order really is missing first.
type LedgerFailedPayload struct {
	OrderID string    `json:"order_id"`
	UserID  string    `json:"user_id"`
	Items   []ItemQty `json:"items"`
	Reason  string    `json:"reason"`
}

type StockReleasedPayload struct {
	SourceEventID string    `json:"source_event_id"`
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	Items         []ItemQty `json:"items"`
}

func ItemsFromLines(lines []ReservedLine) []ItemQty {
	out := make([]ItemQty, 0, len(lines))
	for _, l := range lines {
		out = append(out, ItemQty{ProductID: l.ProductID, Size: l.Size, Qty: l.Quantity})
	}
	return out
}
