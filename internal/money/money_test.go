package money_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/predatell/satchmo/internal/money"
)

func TestFloorCents(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"3.333333", "3.33"},
		{"3.339", "3.33"},
		{"10.00", "10.00"},
		{"0.019", "0.01"},
	}

	for _, tc := range cases {
		got := money.FloorCents(money.MustParse(tc.in))
		if got.StringFixed(2) != tc.want {
			t.Errorf("FloorCents(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestRoundCents(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"3.335", "3.34"},
		{"3.345", "3.34"},
		{"3.3449", "3.34"},
		{"0.005", "0.00"},
	}

	for _, tc := range cases {
		got := money.RoundCents(money.MustParse(tc.in))
		if got.StringFixed(2) != tc.want {
			t.Errorf("RoundCents(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSum(t *testing.T) {
	if !money.Sum().Equal(decimal.Zero) {
		t.Error("empty sum should be zero")
	}

	got := money.Sum(money.MustParse("1.10"), money.MustParse("2.20"), money.MustParse("-0.30"))
	if got.StringFixed(2) != "3.00" {
		t.Errorf("Sum = %s, want 3.00", got)
	}
}
