package alignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func at(day, hour, min int) time.Time {
	return time.Date(2026, 3, day, hour, min, 0, 0, time.UTC)
}

func TestDue(t *testing.T) {
	s := DefaultSchedule()
	tp := func(tm time.Time) *time.Time { return &tm }

	tests := []struct {
		name   string
		now    time.Time
		last   *time.Time
		want   bool
		reason string
	}{
		{"first check-in in hours", at(14, 9, 0), nil, true, ReasonFirstCheckIn},
		{"interval elapsed", at(14, 12, 0), tp(at(14, 9, 0)), true, ReasonIntervalDue},
		{"interval not elapsed", at(14, 11, 59), tp(at(14, 9, 0)), false, ReasonIntervalNotUp},
		{"before start", at(14, 7, 59), nil, false, ReasonOutsideHours},
		{"start hour is inclusive", at(14, 8, 0), nil, true, ReasonFirstCheckIn},
		{"end hour is exclusive", at(14, 20, 0), nil, false, ReasonOutsideHours},
		{"hour 21 never due", at(14, 21, 30), tp(at(13, 9, 0)), false, ReasonOutsideHours},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Due(tt.now, tt.last, s))
			d := Evaluate(tt.now, tt.last, s)
			require.Equal(t, tt.want, d.Due)
			require.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestDue_Hour21NeverDue(t *testing.T) {
	s := DefaultSchedule()
	for min := 0; min < 60; min += 5 {
		now := at(14, 21, min)
		require.False(t, Due(now, nil, s))
		last := now.Add(-48 * time.Hour)
		require.False(t, Due(now, &last, s))
	}
}

func TestNextDue(t *testing.T) {
	s := DefaultSchedule()
	tp := func(tm time.Time) *time.Time { return &tm }

	tests := []struct {
		name string
		now  time.Time
		last *time.Time
		want time.Time
	}{
		{"due now", at(14, 10, 0), nil, at(14, 10, 0)},
		{"before window", at(14, 6, 0), nil, at(14, 8, 0)},
		{"after window", at(14, 21, 0), nil, at(15, 8, 0)},
		{"interval pending", at(14, 11, 0), tp(at(14, 10, 0)), at(14, 13, 0)},
		{"interval ends after window", at(14, 19, 0), tp(at(14, 18, 30)), at(15, 8, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextDue(tt.now, tt.last, s)
			require.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
			require.True(t, Due(got, tt.last, s), "next due instant must satisfy Due")
		})
	}
}

func TestSchedule_Normalized(t *testing.T) {
	s := Schedule{}.normalized()
	require.Equal(t, DefaultSchedule(), s)

	custom := Schedule{StartHour: 0, EndHour: 24, Interval: time.Hour}.normalized()
	require.Equal(t, 0, custom.StartHour)
	require.Equal(t, 24, custom.EndHour)
	require.True(t, Due(at(14, 23, 0), nil, custom))
}
