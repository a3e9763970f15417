// Package inventory puts back stock that was reserved for orders the ledger
// failed to record.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	kafkax "github.com/ariefcatur/go-order-intake/internal/kafka"
	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Restocker interface {
	Increment(ctx context.Context, productID, size string, qty int) error
}

// OrderLookup reports whether the ledger holds an order.
type OrderLookup interface {
	Exists(ctx context.Context, orderID string) (bool, error)
}

// Deduper remembers processed ids across redeliveries.
type Deduper interface {
	First(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Service struct {
	Stock       Restocker
	Orders      OrderLookup
	Dedup       Deduper // nil disables dedup
	Released    orders.Publisher
	ServiceName string
	Logger      *zap.Logger
}

// HandleLedgerFailed is installed as the consumer handler for
// order.ledger.failed. Stock is only put back when the order is confirmed
// absent from the ledger. Each line is restocked at most once per event, so
// a redelivery after a partial failure only retries the missing lines.
func (s *Service) HandleLedgerFailed(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := kafkax.DecodeEnvelope(m.Value, &env); err != nil {
		s.Logger.Error("drop undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventLedgerWriteFailed {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.LedgerFailedPayload](env.Payload)
	if err != nil {
		s.Logger.Error("drop undecodable payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	if p.OrderID != "" {
		recorded, err := s.Orders.Exists(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("check order %s: %w", p.OrderID, err)
		}
		if recorded {
			s.Logger.Warn("order was recorded despite the ledger error, keeping stock reserved",
				zap.String("event_id", env.EventID),
				zap.String("order_id", p.OrderID),
				zap.String("user_id", p.UserID),
			)
			return nil
		}
	}

	for i, it := range p.Items {
		if err := s.restock(ctx, env.EventID+":"+strconv.Itoa(i), it); err != nil {
			return err
		}
	}

	s.publishReleased(env, p)
	s.Logger.Info("stock released for unrecorded order",
		zap.String("event_id", env.EventID),
		zap.String("order_id", p.OrderID),
		zap.String("user_id", p.UserID),
		zap.Int("lines", len(p.Items)),
	)
	return nil
}

func (s *Service) restock(ctx context.Context, lineID string, it orders.ItemQty) error {
	if s.Dedup != nil {
		first, err := s.Dedup.First(ctx, lineID)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}
	}

	err := s.Stock.Increment(ctx, it.ProductID, it.Size, it.Qty)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, catalog.ErrUnknownSize):
		// nothing left to restock into; retrying cannot help
		s.Logger.Warn("restock target gone",
			zap.String("product_id", it.ProductID),
			zap.String("size", it.Size),
			zap.Int("quantity", it.Qty),
		)
		return nil
	}

	if s.Dedup != nil {
		if ferr := s.Dedup.Forget(context.WithoutCancel(ctx), lineID); ferr != nil {
			s.Logger.Error("dedup forget failed, line may need manual restock",
				zap.String("line_id", lineID), zap.Error(ferr))
		}
	}
	return fmt.Errorf("restock %s/%s: %w", it.ProductID, it.Size, err)
}

func (s *Service) publishReleased(src orders.Envelope, p orders.LedgerFailedPayload) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockReleased,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       src.TraceID,
		CorrelationID: src.EventID,
		Payload: kafkax.MustMarshal(orders.StockReleasedPayload{
			SourceEventID: src.EventID,
			OrderID:       p.OrderID,
			UserID:        p.UserID,
			Items:         p.Items,
		}),
	}
	s.Released.Publish(orders.PartitionKey(p.UserID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockReleased)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
