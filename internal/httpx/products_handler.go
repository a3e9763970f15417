package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductsHandler struct {
	catalog  *catalog.Service
	pager    page.Calculator
	validate *validator.Validate
	logger   *zap.Logger
}

func NewProductsHandler(svc *catalog.Service, pager page.Calculator, logger *zap.Logger) *ProductsHandler {
	return &ProductsHandler{catalog: svc, pager: pager, validate: newValidator(), logger: logger}
}

type sizeReq struct {
	Size     string `json:"size" validate:"required"`
	Quantity *int   `json:"quantity" validate:"required,gte=0"`
}

type createProductReq struct {
	Name  string      `json:"name" validate:"required,max=200"`
	Price json.Number `json:"price" validate:"required"`
	Sizes []sizeReq   `json:"sizes" validate:"required,min=1,dive"`
}

type productSummary struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
}

type productDetail struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Price     json.Number    `json:"price"`
	Sizes     []catalog.Size `json:"sizes"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type listResp[T any] struct {
	Data []T         `json:"data"`
	Page page.Cursor `json:"page"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Post("/products", h.createProduct)
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	if err := validate(h.validate, req); err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	price, err := decimal.NewFromString(req.Price.String())
	if err != nil {
		writeError(r.Context(), h.logger, w, fmt.Errorf("%w: price is not a decimal", catalog.ErrInvalidProduct))
		return
	}

	draft := catalog.Draft{Name: req.Name, Price: price, Sizes: make([]catalog.Size, 0, len(req.Sizes))}
	for _, s := range req.Sizes {
		draft.Sizes = append(draft.Sizes, catalog.Size{Label: s.Size, Quantity: *s.Quantity})
	}

	p, err := h.catalog.Register(r.Context(), draft)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": p.ID})
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := page.Parse(q.Get("limit"), q.Get("offset"))
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	filter := catalog.Filter{
		Name: strings.TrimSpace(q.Get("name")),
		Size: strings.TrimSpace(q.Get("size")),
	}

	list, err := h.catalog.List(r.Context(), filter, req)
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}

	data := make([]productSummary, 0, len(list))
	for _, p := range list {
		data = append(data, productSummary{ID: p.ID, Name: p.Name, Price: money(p.Price)})
	}
	writeJSON(w, http.StatusOK, listResp[productSummary]{
		Data: data,
		Page: h.pager.Compute(req.Limit, req.Offset, len(list)),
	})
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), h.logger, w, err)
		return
	}
	writeJSON(w, http.StatusOK, productDetail{
		ID:        p.ID,
		Name:      p.Name,
		Price:     money(p.Price),
		Sizes:     p.Sizes,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
}

// money renders a decimal as a bare JSON number without float rounding.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
