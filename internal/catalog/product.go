package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/shopspring/decimal"
)

const MaxNameLength = 200

type Size struct {
	Label    string `json:"size"`
	Quantity int    `json:"quantity"`
}

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Sizes     []Size
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolveSize returns the size label an order line reserves against.
// An empty label is only accepted for single-size products.
func (p Product) ResolveSize(label string) (string, error) {
	if label == "" {
		if len(p.Sizes) == 1 {
			return p.Sizes[0].Label, nil
		}
		return "", ErrSizeRequired
	}
	for _, s := range p.Sizes {
		if s.Label == label {
			return label, nil
		}
	}
	return "", ErrUnknownSize
}

// Quantity reports the stock held for label.
func (p Product) Quantity(label string) (int, bool) {
	for _, s := range p.Sizes {
		if s.Label == label {
			return s.Quantity, true
		}
	}
	return 0, false
}

// Clone returns a deep copy so callers never share the Sizes backing array.
func (p Product) Clone() Product {
	p.Sizes = append([]Size(nil), p.Sizes...)
	return p
}

// Draft is the registration input for a new product.
type Draft struct {
	Name  string
	Price decimal.Decimal
	Sizes []Size
}

// Normalize trims the draft and checks every product invariant.
func (d Draft) Normalize() (Draft, error) {
	out := Draft{Name: strings.TrimSpace(d.Name), Price: d.Price}
	if out.Name == "" {
		return Draft{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidProduct)
	}
	if len([]rune(out.Name)) > MaxNameLength {
		return Draft{}, fmt.Errorf("%w: name longer than %d characters", ErrInvalidProduct, MaxNameLength)
	}
	if !out.Price.IsPositive() {
		return Draft{}, fmt.Errorf("%w: price must be positive", ErrInvalidProduct)
	}
	if len(d.Sizes) == 0 {
		return Draft{}, fmt.Errorf("%w: at least one size must be specified", ErrInvalidProduct)
	}

	seen := make(map[string]struct{}, len(d.Sizes))
	out.Sizes = make([]Size, 0, len(d.Sizes))
	for _, s := range d.Sizes {
		label := strings.TrimSpace(s.Label)
		if label == "" {
			return Draft{}, fmt.Errorf("%w: size cannot be empty", ErrInvalidProduct)
		}
		if s.Quantity < 0 {
			return Draft{}, fmt.Errorf("%w: quantity for size %s must be >= 0", ErrInvalidProduct, label)
		}
		if _, dup := seen[label]; dup {
			return Draft{}, fmt.Errorf("%w: duplicate size: %s", ErrInvalidProduct, label)
		}
		seen[label] = struct{}{}
		out.Sizes = append(out.Sizes, Size{Label: label, Quantity: s.Quantity})
	}
	return out, nil
}

// Filter narrows a product listing. Empty fields match everything.
type Filter struct {
	Name string
	Size string
}

// Match applies the filter semantics: case-insensitive name substring AND
// a size entry with the given label, whatever its quantity.
func (f Filter) Match(p Product) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Size == "" {
		return true
	}
	for _, s := range p.Sizes {
		if strings.EqualFold(s.Label, f.Size) {
			return true
		}
	}
	return false
}

type Store interface {
	Create(ctx context.Context, p Product) error
	Get(ctx context.Context, id string) (Product, error)
	ByIDs(ctx context.Context, ids []string) ([]Product, error)
	List(ctx context.Context, f Filter, req page.Request) ([]Product, error)
	Ping(ctx context.Context) error
}
