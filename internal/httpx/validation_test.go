package httpx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_UsesJSONFieldPaths(t *testing.T) {
	v := newValidator()

	err := validate(v, createOrderReq{Items: []orderItemReq{{ProductID: "p1", Qty: 0}}})
	var verrs validationErrors
	require.ErrorAs(t, err, &verrs)
	require.Equal(t, "userId is required", verrs["userId"])
	require.Equal(t, "items[0].qty must be greater than 0", verrs["items[0].qty"])
	require.Len(t, verrs, 2)

	err = validate(v, createOrderReq{UserID: "u1"})
	require.ErrorAs(t, err, &verrs)
	require.Equal(t, "items is required", verrs["items"])
}

func TestValidate_Passes(t *testing.T) {
	req := createOrderReq{UserID: "u1", Items: []orderItemReq{{ProductID: "p1", Qty: 2}}}
	require.NoError(t, validate(newValidator(), req))
}

func TestValidationErrors_MessageIsSorted(t *testing.T) {
	errs := validationErrors{"b": "b is required", "a": "a is required"}
	require.Equal(t, "a is required; b is required", errs.Error())
}
