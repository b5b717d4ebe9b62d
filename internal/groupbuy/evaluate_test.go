package groupbuy

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-settlement/pkg/enums"
)

var evalNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testDeal(t *testing.T, minQty int, expiresAt time.Time) Deal {
	t.Helper()
	deal, err := NewDeal(DealParams{
		ID:                 uuid.New(),
		ProductRef:         uuid.New(),
		SellerRef:          uuid.New(),
		UnitPriceCents:     1000,
		DiscountPercentage: decimal.NewFromInt(15),
		MinQuantity:        minQty,
		ExpiresAt:          expiresAt,
	})
	if err != nil {
		t.Fatalf("NewDeal: %v", err)
	}
	return deal
}

func pledgesOf(dealID uuid.UUID, quantities ...int) []Pledge {
	out := make([]Pledge, 0, len(quantities))
	for _, q := range quantities {
		out = append(out, Pledge{ID: uuid.New(), DealID: dealID, BuyerID: uuid.New(), Quantity: q})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name      string
		quantities []int
		expiresAt time.Time
		want      Verdict
		wantTotal int
	}{
		{name: "threshold met before expiry", quantities: []int{3, 4, 5}, expiresAt: evalNow.Add(time.Hour), want: VerdictCloseSuccess, wantTotal: 12},
		{name: "threshold met after expiry", quantities: []int{10}, expiresAt: evalNow.Add(-time.Hour), want: VerdictCloseSuccess, wantTotal: 10},
		{name: "short at expiry", quantities: []int{3, 4}, expiresAt: evalNow.Add(-time.Minute), want: VerdictCloseFailure, wantTotal: 7},
		{name: "short exactly at expiry", quantities: []int{3, 4}, expiresAt: evalNow, want: VerdictCloseFailure, wantTotal: 7},
		{name: "short before expiry", quantities: []int{3, 4}, expiresAt: evalNow.Add(time.Minute), want: VerdictNotDue, wantTotal: 7},
		{name: "no pledges before expiry", quantities: nil, expiresAt: evalNow.Add(time.Minute), want: VerdictNotDue, wantTotal: 0},
		{name: "no pledges at expiry", quantities: nil, expiresAt: evalNow, want: VerdictCloseFailure, wantTotal: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deal := testDeal(t, 10, tc.expiresAt)
			got, err := Evaluate(deal, pledgesOf(deal.ID, tc.quantities...), evalNow)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Verdict != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Verdict)
			}
			if got.TotalQuantity != tc.wantTotal {
				t.Fatalf("expected total %d, got %d", tc.wantTotal, got.TotalQuantity)
			}
		})
	}
}

func TestEvaluateIgnoresPledgeOrder(t *testing.T) {
	deal := testDeal(t, 20, evalNow.Add(time.Hour))
	pledges := pledgesOf(deal.ID, 1, 2, 3, 4, 5, 6)
	want, err := Evaluate(deal, pledges, evalNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]Pledge(nil), pledges...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, err := Evaluate(deal, shuffled, evalNow)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("evaluation changed with ordering: want %+v got %+v", want, got)
		}
	}
}

func TestEvaluateRejectsSettledDeal(t *testing.T) {
	for _, status := range []enums.DealStatus{enums.DealStatusCompleted, enums.DealStatusCancelled} {
		deal := testDeal(t, 10, evalNow.Add(time.Hour))
		deal.Status = status
		if _, err := Evaluate(deal, pledgesOf(deal.ID, 20), evalNow); !errors.Is(err, ErrDealNotActive) {
			t.Fatalf("status %s: expected ErrDealNotActive, got %v", status, err)
		}
	}
}
