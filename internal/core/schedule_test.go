package core

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestNextDue(t *testing.T) {
	tests := []struct {
		name string
		freq Frequency
		from time.Time
		want time.Time
	}{
		{"daily", Daily, date(2024, 3, 10), date(2024, 3, 11)},
		{"daily across month end", Daily, date(2024, 1, 31), date(2024, 2, 1)},
		{"weekly", Weekly, date(2024, 3, 10), date(2024, 3, 17)},
		{"weekly across year end", Weekly, date(2023, 12, 28), date(2024, 1, 4)},
		{"monthly plain", Monthly, date(2024, 3, 10), date(2024, 4, 10)},
		{"monthly jan 31 clamps to feb 29 in leap year", Monthly, date(2024, 1, 31), date(2024, 2, 29)},
		{"monthly jan 31 clamps to feb 28 in non-leap year", Monthly, date(2023, 1, 31), date(2023, 2, 28)},
		{"monthly clamped date stays clamped", Monthly, date(2023, 2, 28), date(2023, 3, 28)},
		{"monthly 31 to 30-day month", Monthly, date(2024, 3, 31), date(2024, 4, 30)},
		{"monthly december wraps year", Monthly, date(2024, 12, 15), date(2025, 1, 15)},
		{"yearly plain", Yearly, date(2024, 7, 4), date(2025, 7, 4)},
		{"yearly feb 29 clamps to feb 28", Yearly, date(2024, 2, 29), date(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDue(tt.freq, tt.from)
			if err != nil {
				t.Fatalf("NextDue() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextDue(%s, %v) = %v, want %v", tt.freq, tt.from, got, tt.want)
			}
		})
	}
}

func TestNextDue_PreservesTimeOfDay(t *testing.T) {
	from := time.Date(2024, 1, 31, 14, 30, 45, 0, time.UTC)
	got, err := NextDue(Monthly, from)
	if err != nil {
		t.Fatal(err)
	}
	h, m, s := got.Clock()
	if h != 14 || m != 30 || s != 45 {
		t.Errorf("time of day = %02d:%02d:%02d, want 14:30:45", h, m, s)
	}
}

func TestNextDue_UnknownFrequency(t *testing.T) {
	_, err := NextDue(Frequency("fortnightly"), date(2024, 3, 10))
	if !errors.Is(err, ErrUnknownFrequency) {
		t.Errorf("error = %v, want ErrUnknownFrequency", err)
	}
}

func TestNextDue_MonthlyChainFromJan31(t *testing.T) {
	// Jan 31 -> Feb 28 -> Mar 28: once clamped, the day stays derived
	// from the previous due date.
	due := date(2023, 1, 31)
	for _, want := range []time.Time{date(2023, 2, 28), date(2023, 3, 28), date(2023, 4, 28)} {
		next, err := NextDue(Monthly, due)
		if err != nil {
			t.Fatal(err)
		}
		if !next.Equal(want) {
			t.Fatalf("advance from %v = %v, want %v", due, next, want)
		}
		due = next
	}
}
