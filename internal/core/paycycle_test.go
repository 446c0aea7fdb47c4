package core

import (
	"testing"
	"time"
)

func TestAdvancePayDate(t *testing.T) {
	tests := []struct {
		name  string
		from  time.Time
		cycle PayCycle
		want  time.Time
	}{
		{
			name:  "weekly adds seven days",
			from:  time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			cycle: PayWeekly,
			want:  time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "fortnightly adds fourteen days",
			from:  time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC),
			cycle: PayFortnightly,
			want:  time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "monthly adds a calendar month",
			from:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
			cycle: PayMonthly,
			want:  time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "monthly clamps to end of short month",
			from:  time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
			cycle: PayMonthly,
			want:  time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "monthly clamps to leap-year february",
			from:  time.Date(2028, 1, 31, 0, 0, 0, 0, time.UTC),
			cycle: PayMonthly,
			want:  time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "monthly from 31st into a 30-day month",
			from:  time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
			cycle: PayMonthly,
			want:  time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "monthly rolls over a year boundary",
			from:  time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC),
			cycle: PayMonthly,
			want:  time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "unknown cycle defaults to monthly",
			from:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			cycle: PayCycle("bizarre"),
			want:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdvancePayDate(tt.from, tt.cycle); !got.Equal(tt.want) {
				t.Errorf("AdvancePayDate(%v, %s) = %v, want %v", tt.from, tt.cycle, got, tt.want)
			}
		})
	}
}
