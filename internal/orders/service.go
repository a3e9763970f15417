package orders

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/logging"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"go.uber.org/zap"
)

// Recorder receives placement metrics.
type Recorder interface {
	OrderPlaced()
	OrderRejected(kind Kind)
	ReservationObserved(d time.Duration)
	LedgerWriteFailed()
}

type nopRecorder struct{}

func (nopRecorder) OrderPlaced()                      {}
func (nopRecorder) OrderRejected(Kind)                {}
func (nopRecorder) ReservationObserved(time.Duration) {}
func (nopRecorder) LedgerWriteFailed()                {}

type Service struct {
	engine   *Engine
	pricing  Resolver
	ledger   *Ledger
	notifier Notifier
	metrics  Recorder
	logger   *zap.Logger
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithRecorder(r Recorder) Option { return func(s *Service) { s.metrics = r } }

func NewService(engine *Engine, ledger *Ledger, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		engine:   engine,
		ledger:   ledger,
		notifier: nopNotifier{},
		metrics:  nopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder reserves stock, prices the reservation and records the order.
func (s *Service) PlaceOrder(ctx context.Context, userID string, lines []LineRequest) (Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		err := validationError("", "userId cannot be empty")
		s.metrics.OrderRejected(err.Kind)
		return Order{}, err
	}

	start := time.Now()
	res, err := s.engine.Reserve(ctx, lines)
	s.metrics.ReservationObserved(time.Since(start))
	if err != nil {
		s.rejected(ctx, userID, err)
		return Order{}, err
	}

	prices, err := s.pricing.Resolve(res.Snapshot, res.ProductIDs())
	if err != nil {
		logging.Error(ctx, s.logger, "price resolution failed after reservation, releasing stock",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		_ = s.engine.Release(ctx, res.Lines)
		s.metrics.OrderRejected(KindOf(err))
		return Order{}, err
	}

	o, err := s.ledger.Persist(ctx, userID, res.Lines, prices)
	if err != nil {
		s.ledgerFailed(ctx, userID, res.Lines, err)
		return Order{}, err
	}

	s.metrics.OrderPlaced()
	s.notifier.OrderPlaced(ctx, o)
	logging.Info(ctx, s.logger, "order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", userID),
		zap.String("total", o.Total.String()),
	)
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string, req page.Request) ([]Order, error) {
	list, err := s.ledger.ListByUser(ctx, userID, req)
	if err != nil && KindOf(err) == "" {
		logging.Error(ctx, s.logger, "list orders failed", zap.String("user_id", userID), zap.Error(err))
	}
	return list, err
}

func (s *Service) rejected(ctx context.Context, userID string, err error) {
	kind := KindOf(err)
	s.metrics.OrderRejected(kind)
	if Rejected(kind) {
		logging.Warn(ctx, s.logger, "order rejected", zap.String("user_id", userID), zap.Error(err))
		return
	}
	logging.Error(ctx, s.logger, "reservation failed", zap.String("user_id", userID), zap.Error(err))
}

// ledgerFailed escalates stock that is reserved without an order.
func (s *Service) ledgerFailed(ctx context.Context, userID string, lines []ReservedLine, err error) {
	s.metrics.LedgerWriteFailed()

	var (
		orderID string
		lerr    *Error
	)
	if errors.As(err, &lerr) {
		orderID = lerr.OrderID
	}

	fields := []zap.Field{zap.String("order_id", orderID), zap.String("user_id", userID), zap.Error(err)}
	for i, l := range lines {
		fields = append(fields, zap.Dict("line_"+strconv.Itoa(i),
			zap.String("product_id", l.ProductID),
			zap.String("size", l.Size),
			zap.Int("quantity", l.Quantity),
		))
	}
	logging.Error(ctx, s.logger, "ledger write failed after reservation, stock needs compensation", fields...)

	s.notifier.LedgerWriteFailed(ctx, LedgerFailure{
		OrderID:    orderID,
		UserID:     userID,
		Lines:      lines,
		Reason:     err.Error(),
		OccurredAt: time.Now().UTC(),
	})
}
