package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/ariefcatur/go-order-intake/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const releaseTimeout = 10 * time.Second

// Inventory is the stock store. Decrement must be an atomic
// compare-and-decrement on one (product, size) pair: it lowers the quantity
// only when it is at least qty and otherwise fails with
// catalog.ErrInsufficientStock without side effects.
type Inventory interface {
	Snapshot(ctx context.Context, productIDs []string) (Snapshot, error)
	Decrement(ctx context.Context, productID, size string, qty int) error
	Increment(ctx context.Context, productID, size string, qty int) error
}

// Transactor is implemented by stores that can scope several inventory
// operations in one transaction. fn's error rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, inv Inventory) error) error
}

type Engine struct {
	inv    Inventory
	budget time.Duration
	logger *zap.Logger
	tracer trace.Tracer
}

// NewEngine builds a reservation engine. A non-positive budget disables the
// reservation deadline.
func NewEngine(inv Inventory, budget time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		inv:    inv,
		budget: budget,
		logger: logger,
		tracer: otel.Tracer("orders/reservation"),
	}
}

// ValidateLines checks request preconditions before any store access.
func ValidateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return validationError("", "order must contain at least one item")
	}
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return validationError("", "productId cannot be empty")
		}
		if l.Quantity <= 0 {
			return validationError(l.ProductID, "quantity must be greater than 0")
		}
		if _, dup := seen[l.ProductID]; dup {
			return validationError(l.ProductID, "duplicate productId %s", l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}

// Reserve decrements stock for every line or for none of them.
func (e *Engine) Reserve(ctx context.Context, lines []LineRequest) (Reservation, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Reserve")
	defer span.End()
	span.SetAttributes(attribute.Int("order.lines", len(lines)))

	if err := ValidateLines(lines); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Reservation{}, err
	}

	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b LineRequest) int { return strings.Compare(a.ProductID, b.ProductID) })

	rctx, cancel := e.withBudget(ctx)
	defer cancel()

	var (
		res Reservation
		err error
	)
	if tx, ok := e.inv.(Transactor); ok {
		err = tx.InTx(rctx, func(ctx context.Context, inv Inventory) error {
			res, err = e.reserve(ctx, inv, sorted, false)
			return err
		})
	} else {
		res, err = e.reserve(rctx, e.inv, sorted, true)
	}
	if err != nil {
		err = classify(rctx, err)
		span.SetStatus(codes.Error, err.Error())
		return Reservation{}, err
	}

	res.Lines = inRequestOrder(lines, res.Lines)
	return res, nil
}

// Release returns reserved stock to the store. It is used when a step after
// a successful reservation fails before the order exists.
func (e *Engine) Release(ctx context.Context, lines []ReservedLine) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	var errs []error
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		if err := e.inv.Increment(rctx, l.ProductID, l.Size, l.Quantity); err != nil {
			logging.Error(ctx, e.logger, "release stock failed, manual restock needed",
				zap.String("product_id", l.ProductID),
				zap.String("size", l.Size),
				zap.Int("quantity", l.Quantity),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("release %s/%s: %w", l.ProductID, l.Size, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) reserve(ctx context.Context, inv Inventory, lines []LineRequest, compensate bool) (Reservation, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	snap, err := inv.Snapshot(ctx, ids)
	if err != nil {
		return Reservation{}, fmt.Errorf("load snapshot: %w", err)
	}

	// resolve every line before the first decrement
	planned := make([]ReservedLine, 0, len(lines))
	for _, l := range lines {
		p, ok := snap[l.ProductID]
		if !ok {
			return Reservation{}, &Error{Kind: KindProductNotFound, ProductID: l.ProductID, Err: catalog.ErrProductNotFound}
		}
		size, err := p.ResolveSize(l.Size)
		if err != nil {
			return Reservation{}, &Error{Kind: KindInvalidSize, ProductID: l.ProductID, Err: err}
		}
		planned = append(planned, ReservedLine{ProductID: l.ProductID, Size: size, Quantity: l.Quantity})
	}

	done := make([]ReservedLine, 0, len(planned))
	for _, l := range planned {
		if err := inv.Decrement(ctx, l.ProductID, l.Size, l.Quantity); err != nil {
			if compensate && len(done) > 0 {
				_ = e.Release(ctx, done)
			}
			return Reservation{}, storeError(l.ProductID, err)
		}
		done = append(done, l)
	}

	return Reservation{Lines: done, Snapshot: snap}, nil
}

func (e *Engine) withBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.budget)
}

func storeError(productID string, err error) error {
	switch {
	case errors.Is(err, catalog.ErrInsufficientStock):
		return &Error{Kind: KindInsufficientStock, ProductID: productID, Err: err}
	case errors.Is(err, catalog.ErrProductNotFound):
		return &Error{Kind: KindProductNotFound, ProductID: productID, Err: err}
	case errors.Is(err, catalog.ErrUnknownSize), errors.Is(err, catalog.ErrSizeRequired):
		return &Error{Kind: KindInvalidSize, ProductID: productID, Err: err}
	}
	return fmt.Errorf("decrement %s: %w", productID, err)
}

// classify turns deadline expiry of the reservation budget into
// ReservationTimeout; tagged errors pass through.
func classify(ctx context.Context, err error) error {
	if KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindReservationTimeout, Err: err}
	}
	return err
}

func inRequestOrder(req []LineRequest, reserved []ReservedLine) []ReservedLine {
	byID := make(map[string]ReservedLine, len(reserved))
	for _, l := range reserved {
		byID[l.ProductID] = l
	}
	out := make([]ReservedLine, 0, len(req))
	for _, l := range req {
		out = append(out, byID[l.ProductID])
	}
	return out
}
