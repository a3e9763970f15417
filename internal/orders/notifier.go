package orders

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-order-intake/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

// Notifier is told about placement outcomes that other services react to.
type Notifier interface {
	OrderPlaced(ctx context.Context, o Order)
	LedgerWriteFailed(ctx context.Context, f LedgerFailure)
}

// Publisher is the write side of a single-topic producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// EventNotifier publishes placement outcomes as versioned envelopes.
type EventNotifier struct {
	Placed  Publisher
	Failed  Publisher
	Service string
}

func (n *EventNotifier) OrderPlaced(ctx context.Context, o Order) {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{
			ProductID: it.ProductID,
			Size:      it.Size,
			Qty:       it.Quantity,
			UnitPrice: it.UnitPrice.String(),
		})
	}
	env := n.envelope(ctx, EventOrderPlaced, o.ID, OrderPlacedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Items:   items,
		Total:   o.Total.String(),
	})
	n.Placed.Publish(PartitionKey(o.ID), kafkax.MustMarshal(env), headers(EventOrderPlaced)...)
}

func (n *EventNotifier) LedgerWriteFailed(ctx context.Context, f LedgerFailure) {
	env := n.envelope(ctx, EventLedgerWriteFailed, f.OrderID, LedgerFailedPayload{
		OrderID: f.OrderID,
		UserID:  f.UserID,
		Items:   ItemsFromLines(f.Lines),
		Reason:  f.Reason,
	})
	n.Failed.Publish(PartitionKey(f.UserID), kafkax.MustMarshal(env), headers(EventLedgerWriteFailed)...)
}

func (n *EventNotifier) envelope(ctx context.Context, eventType, correlationID string, payload any) Envelope {
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		env.TraceID = sc.TraceID().String()
	}
	return env
}

func headers(eventType string) []kafkago.Header {
	return []kafkago.Header{
		{Key: "x-event-type", Value: []byte(eventType)},
		{Key: "x-event-version", Value: []byte("1")},
	}
}

type nopNotifier struct{}

func (nopNotifier) OrderPlaced(context.Context, Order)             {}
func (nopNotifier) LedgerWriteFailed(context.Context, LedgerFailure) {}
