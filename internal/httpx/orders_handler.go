package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/ariefcatur/go-order-intake/internal/logging"
	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/ariefcatur/go-order-intake/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

// Idempotency guards order creation against client retries.
type Idempotency interface {
	Begin(ctx context.Context, scope, key string) (orderID string, claimed bool, err error)
	Complete(ctx context.Context, scope, key, orderID string) error
	Abandon(ctx context.Context, scope, key string) error
}

type OrdersHandler struct {
	orders   *orders.Service
	catalog  *catalog.Service
	idem     Idempotency // nil disables Idempotency-Key support
	pager    page.Calculator
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrdersHandler(svc *orders.Service, cat *catalog.Service, idem Idempotency, pager page.Calculator, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		orders:   svc,
		catalog:  cat,
		idem:     idem,
		pager:    pager,
		validate: newValidator(),
		logger:   logger,
	}
}

type orderItemReq struct {
	ProductID string `json:"productId" validate:"required"`
	Qty       int    `json:"qty" validate:"gt=0"`
	Size      string `json:"size"`
}

type createOrderReq struct {
	UserID string         `json:"userId" validate:"required"`
	Items  []orderItemReq `json:"items" validate:"required,min=1,dive"`
}

type productDetails struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type orderItemResp struct {
	ProductDetails productDetails `json:"productDetails"`
	Qty            int            `json:"qty"`
	Size           string         `json:"size"`
	UnitPrice      json.Number    `json:"unitPrice"`
}

type orderResp struct {
	ID        string          `json:"id"`
	Items     []orderItemResp `json:"items"`
	Total     json.Number     `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{userId}", h.listOrders)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, h.logger, w, err)
		return
	}
	if err := validate(h.validate, req); err != nil {
		writeError(ctx, h.logger, w, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key != "" && h.idem != nil {
		orderID, claimed, err := h.idem.Begin(ctx, userID, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeError(ctx, h.logger, w, err)
			return
		case err != nil:
			// Redis trouble must not block order intake
			logging.Warn(ctx, h.logger, "idempotency unavailable, continuing without it", zap.Error(err))
			key = ""
		case !claimed:
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, map[string]string{"id": orderID})
			return
		}
	}

	lines := make([]orders.LineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, orders.LineRequest{
			ProductID: strings.TrimSpace(it.ProductID),
			Size:      strings.TrimSpace(it.Size),
			Quantity:  it.Qty,
		})
	}

	o, err := h.orders.PlaceOrder(ctx, userID, lines)
	if err != nil {
		if key != "" && h.idem != nil {
			if aerr := h.idem.Abandon(context.WithoutCancel(ctx), userID, key); aerr != nil {
				logging.Warn(ctx, h.logger, "release idempotency key failed", zap.Error(aerr))
			}
		}
		writeError(ctx, h.logger, w, err)
		return
	}

	if key != "" && h.idem != nil {
		if err := h.idem.Complete(context.WithoutCancel(ctx), userID, key, o.ID); err != nil {
			logging.Warn(ctx, h.logger, "store idempotency key failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": o.ID})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	req, err := page.Parse(q.Get("limit"), q.Get("offset"))
	if err != nil {
		writeError(ctx, h.logger, w, err)
		return
	}

	list, err := h.orders.ListByUser(ctx, chi.URLParam(r, "userId"), req)
	if err != nil {
		writeError(ctx, h.logger, w, err)
		return
	}

	names, err := h.catalog.Names(ctx, productIDs(list))
	if err != nil {
		writeError(ctx, h.logger, w, err)
		return
	}

	data := make([]orderResp, 0, len(list))
	for _, o := range list {
		items := make([]orderItemResp, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, orderItemResp{
				ProductDetails: productDetails{Name: names[it.ProductID], ID: it.ProductID},
				Qty:            it.Quantity,
				Size:           it.Size,
				UnitPrice:      money(it.UnitPrice),
			})
		}
		data = append(data, orderResp{ID: o.ID, Items: items, Total: money(o.Total), CreatedAt: o.CreatedAt})
	}
	writeJSON(w, http.StatusOK, listResp[orderResp]{
		Data: data,
		Page: h.pager.Compute(req.Limit, req.Offset, len(list)),
	})
}

func productIDs(list []orders.Order) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, o := range list {
		for _, it := range o.Items {
			if _, ok := seen[it.ProductID]; !ok {
				seen[it.ProductID] = struct{}{}
				ids = append(ids, it.ProductID)
			}
		}
	}
	return ids
}
