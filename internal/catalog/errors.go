package catalog

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownSize       = errors.New("unknown size")
	ErrSizeRequired      = errors.New("size required for multi-size product")
	ErrInvalidProduct    = errors.New("invalid product")
)
