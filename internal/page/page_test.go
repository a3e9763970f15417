package page

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompute_FirstPage(t *testing.T) {
	cur := Compute(10, 0, 10)

	require.NotNil(t, cur.Next)
	require.Equal(t, 10, *cur.Next)
	require.Equal(t, 10, cur.Limit)
	require.Equal(t, -10, cur.Previous)

	b, err := json.Marshal(cur)
	require.NoError(t, err)
	require.JSONEq(t, `{"next":10,"limit":10,"previous":-10}`, string(b))
}

func TestCompute_MiddlePage(t *testing.T) {
	cur := Compute(25, 50, 25)
	require.Equal(t, 75, *cur.Next)
	require.Equal(t, 25, cur.Previous)
}

func TestCompute_ShortPageStillReportsNext(t *testing.T) {
	cur := Compute(10, 20, 3)
	require.NotNil(t, cur.Next)
	require.Equal(t, 30, *cur.Next)
	require.Equal(t, 10, cur.Previous)
}

func TestCompute_EmptyPage(t *testing.T) {
	cur := Compute(10, 0, 0)
	require.Equal(t, 10, *cur.Next)
	require.Equal(t, -10, cur.Previous)
}

func TestCalculator_WhenFull(t *testing.T) {
	calc := Calculator{Policy: WhenFull}

	short := calc.Compute(10, 20, 3)
	require.Nil(t, short.Next)
	require.Equal(t, 10, short.Previous)

	b, err := json.Marshal(short)
	require.NoError(t, err)
	require.JSONEq(t, `{"next":null,"limit":10,"previous":10}`, string(b))

	full := calc.Compute(10, 20, 10)
	require.Equal(t, 30, *full.Next)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		limit, offset string
		want          Request
		wantErr       bool
	}{
		{name: "defaults", want: Request{Limit: 10, Offset: 0}},
		{name: "explicit", limit: "100", offset: "40", want: Request{Limit: 100, Offset: 40}},
		{name: "limit zero", limit: "0", wantErr: true},
		{name: "limit too large", limit: "101", wantErr: true},
		{name: "negative offset", offset: "-1", wantErr: true},
		{name: "not a number", limit: "ten", wantErr: true},
		{name: "offset near max int", limit: "10", offset: strconv.Itoa(math.MaxInt), wantErr: true},
		{name: "offset just past max", limit: "10", offset: strconv.Itoa(MaxOffset + 1), wantErr: true},
		{name: "largest offset", limit: "100", offset: strconv.Itoa(MaxOffset), want: Request{Limit: 100, Offset: MaxOffset}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.limit, tt.offset)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCompute_LargestOffsetDoesNotOverflow(t *testing.T) {
	req, err := NewRequest(MaxLimit, MaxOffset)
	require.NoError(t, err)

	cur := Compute(req.Limit, req.Offset, 0)
	require.Equal(t, math.MaxInt, *cur.Next)
	require.Equal(t, MaxOffset-MaxLimit, cur.Previous)
}
