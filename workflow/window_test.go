package workflow

import (
	"testing"
	"time"
)

func et(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, eastern)
}

func TestOpenStart(t *testing.T) {
	w := Windows{}
	cases := []struct {
		name   string
		timing string
		want   time.Time
	}{
		// 盘前公布：财报前一天收盘前建仓
		{"bmo opens prior day", TimingBMO, et(2026, 9, 14, 15, 45)},
		// 盘后公布：财报当天收盘前建仓
		{"amc opens same day", TimingAMC, et(2026, 9, 15, 15, 45)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Candidate{Symbol: "AAPL", EarningsDate: "2026-09-15", Timing: tc.timing}
			got, err := w.OpenStart(c)
			if err != nil {
				t.Fatalf("OpenStart: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCloseStart(t *testing.T) {
	w := Windows{}
	cases := []struct {
		name   string
		timing string
		want   time.Time
	}{
		{"bmo closes same day", TimingBMO, et(2026, 9, 15, 9, 45)},
		{"amc closes next day", TimingAMC, et(2026, 9, 16, 9, 45)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := w.CloseStart("2026-09-15", tc.timing)
			if err != nil {
				t.Fatalf("CloseStart: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInOpenWindowBoundaries(t *testing.T) {
	w := Windows{}
	c := Candidate{Symbol: "AAPL", EarningsDate: "2026-09-15", Timing: TimingAMC}
	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"one minute early", et(2026, 9, 15, 15, 44), false},
		{"at start", et(2026, 9, 15, 15, 45), true},
		{"last minute", et(2026, 9, 15, 16, 14), true},
		{"at expiry", et(2026, 9, 15, 16, 15), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := w.InOpenWindow(c, tc.now)
			if err != nil {
				t.Fatalf("InOpenWindow: %v", err)
			}
			if got != tc.want {
				t.Errorf("at %v: got %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestPastCloseWindow(t *testing.T) {
	w := Windows{}
	past, err := w.PastCloseWindow("2026-09-15", TimingBMO, et(2026, 9, 15, 11, 0))
	if err != nil {
		t.Fatalf("PastCloseWindow: %v", err)
	}
	if !past {
		t.Error("expected 11:00 to be past the 09:45+30m window")
	}
	past, _ = w.PastCloseWindow("2026-09-15", TimingBMO, et(2026, 9, 15, 10, 0))
	if past {
		t.Error("10:00 is still inside the window")
	}
}

func TestCustomValidity(t *testing.T) {
	w := Windows{Validity: 5 * time.Minute}
	c := Candidate{Symbol: "AAPL", EarningsDate: "2026-09-15", Timing: TimingAMC}
	in, _ := w.InOpenWindow(c, et(2026, 9, 15, 15, 51))
	if in {
		t.Error("15:51 should be outside a 5 minute window")
	}
}
