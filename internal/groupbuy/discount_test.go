package groupbuy

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDiscountedUnitPrice(t *testing.T) {
	cases := []struct {
		unit int64
		pct  string
		want int64
	}{
		{unit: 1000, pct: "15", want: 850},
		{unit: 1000, pct: "0", want: 1000},
		{unit: 1000, pct: "100", want: 0},
		{unit: 999, pct: "50", want: 500},
		{unit: 333, pct: "10", want: 300},
		{unit: 1001, pct: "12.5", want: 876},
		{unit: 1, pct: "50", want: 1},
		{unit: 3, pct: "50", want: 2},
	}
	for _, tc := range cases {
		got := DiscountedUnitPrice(tc.unit, decimal.RequireFromString(tc.pct))
		if got != tc.want {
			t.Fatalf("DiscountedUnitPrice(%d, %s) = %d, want %d", tc.unit, tc.pct, got, tc.want)
		}
	}
}
