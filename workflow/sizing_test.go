package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestKellySizerQuantity(t *testing.T) {
	cases := []struct {
		name     string
		fraction string
		equity   string
		cost     string
		want     int
	}{
		// 0.10 × 10000 = 1000 预算，$150/张 → 6 张
		{"default fraction", "", "10000", "1.50", 6},
		{"explicit fraction", "0.25", "10000", "1.50", 16},
		{"rounds down", "0.10", "10000", "3.00", 3},
		{"too expensive", "0.10", "1000", "1.50", 0},
		{"zero cost skipped", "0.10", "10000", "0", 0},
		{"inverted spread skipped", "0.10", "10000", "-0.50", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := KellySizer{}
			if tc.fraction != "" {
				s.Fraction = decimal.RequireFromString(tc.fraction)
			}
			got := s.Quantity(decimal.RequireFromString(tc.equity), decimal.RequireFromString(tc.cost))
			if got != tc.want {
				t.Errorf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestKellySizerBudget(t *testing.T) {
	s := KellySizer{Fraction: decimal.RequireFromString("0.10")}
	got := s.Budget(decimal.RequireFromString("12500"))
	if !got.Equal(decimal.RequireFromString("1250")) {
		t.Errorf("got %s, want 1250", got)
	}
}
