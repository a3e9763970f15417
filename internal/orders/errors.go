package orders

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindInsufficientStock  Kind = "InsufficientStock"
	KindProductNotFound    Kind = "ProductNotFound"
	KindInvalidSize        Kind = "InvalidSize"
	KindReservationTimeout Kind = "ReservationTimeout"
	KindLedgerWriteFailed  Kind = "LedgerWriteFailed"
)

var ErrPriceUnresolved = errors.New("price could not be resolved")

// Error is the tagged failure returned by order placement.
type Error struct {
	Kind      Kind
	ProductID string
	// OrderID is the id assigned to an order the ledger could not confirm
	// writing. Only LedgerWriteFailed sets it.
	OrderID string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.ProductID != "" {
		msg += fmt.Sprintf(" (product %s)", e.ProductID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the tag of err, or "" for untagged infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Rejected reports whether kind is a business rejection that left
// inventory untouched.
func Rejected(kind Kind) bool {
	switch kind {
	case KindValidation, KindInsufficientStock, KindProductNotFound, KindInvalidSize:
		return true
	}
	return false
}

func validationError(productID, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, ProductID: productID, Err: fmt.Errorf(format, args...)}
}
