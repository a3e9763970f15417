package orders

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Resolver reads unit prices from the reservation snapshot, so the price a
// customer pays is the one seen when stock was taken.
type Resolver struct{}

func (Resolver) Resolve(snap Snapshot, productIDs []string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal, len(productIDs))
	for _, id := range productIDs {
		p, ok := snap[id]
		if !ok {
			return nil, &Error{Kind: KindProductNotFound, ProductID: id, Err: ErrPriceUnresolved}
		}
		if !p.Price.IsPositive() {
			return nil, fmt.Errorf("product %s has non-positive price %s: %w", id, p.Price, ErrPriceUnresolved)
		}
		prices[id] = p.Price
	}
	return prices, nil
}
