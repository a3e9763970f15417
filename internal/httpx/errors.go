package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-intake/internal/catalog"
	"github.com/ariefcatur/go-order-intake/internal/logging"
	"github.com/ariefcatur/go-order-intake/internal/orders"
	"github.com/ariefcatur/go-order-intake/internal/page"
	"github.com/ariefcatur/go-order-intake/internal/redisx"
	"go.uber.org/zap"
)

type errorBody struct {
	Kind      string            `json:"kind,omitempty"`
	ProductID string            `json:"productId,omitempty"`
	Error     string            `json:"error,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// statusFor maps a service error to its HTTP status and body. Anything it
// does not recognise is reported as an internal error without detail.
func statusFor(err error) (int, errorBody) {
	var oerr *orders.Error
	if errors.As(err, &oerr) {
		switch {
		case orders.Rejected(oerr.Kind):
			body := errorBody{Kind: string(oerr.Kind), ProductID: oerr.ProductID}
			if oerr.Err != nil {
				body.Error = oerr.Err.Error()
			}
			return http.StatusBadRequest, body
		case oerr.Kind == orders.KindReservationTimeout:
			return http.StatusGatewayTimeout, errorBody{Kind: string(oerr.Kind), Error: "reservation timed out"}
		case oerr.Kind == orders.KindLedgerWriteFailed:
			return http.StatusInternalServerError, errorBody{Kind: string(oerr.Kind)}
		}
	}

	var verr validationErrors
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Kind: string(orders.KindValidation), Error: verr.Error(), Fields: verr}
	case errors.Is(err, errBadJSON), errors.Is(err, catalog.ErrInvalidProduct), errors.Is(err, page.ErrInvalid):
		return http.StatusBadRequest, errorBody{Kind: string(orders.KindValidation), Error: err.Error()}
	case errors.Is(err, catalog.ErrProductNotFound):
		return http.StatusNotFound, errorBody{Kind: string(orders.KindProductNotFound), Error: err.Error()}
	case errors.Is(err, redisx.ErrInFlight):
		return http.StatusConflict, errorBody{Error: err.Error()}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

func writeError(ctx context.Context, logger *zap.Logger, w http.ResponseWriter, err error) {
	code, body := statusFor(err)
	if code == http.StatusInternalServerError && body.Kind == "" {
		logging.Error(ctx, logger, "unhandled error", zap.Error(err))
	}
	writeJSON(w, code, body)
}
