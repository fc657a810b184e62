package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, time.Local)
	require.NoError(t, err)
	return ts
}

func TestResolveTime(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		now       string
		want      string
		defaulted bool
	}{
		{
			name: "explicit_tomorrow_morning",
			text: "nhắc tôi 9 giờ sáng mai họp",
			now:  "2025-01-01 20:00",
			want: "2025-01-02 09:00",
		},
		{
			name: "passed_hour_rolls_forward",
			text: "nhắc tôi 7 giờ",
			now:  "2025-01-01 08:00",
			want: "2025-01-02 07:00",
		},
		{
			name: "pm_marker_shifts_hour",
			text: "9:00pm ngày mai họp",
			now:  "2025-01-01 10:00",
			want: "2025-01-02 21:00",
		},
		{
			name: "half_hour",
			text: "7 giờ rưỡi tối nay họp team",
			now:  "2025-01-01 10:00",
			want: "2025-01-01 19:30",
		},
		{
			name: "day_month_phrase",
			text: "11:00pm 5 tháng 8 buổi biểu diễn nhảy",
			now:  "2025-01-01 10:00",
			want: "2025-08-05 23:00",
		},
		{
			name: "numeric_date_prefers_future",
			text: "họp lúc 9 giờ ngày 5/3",
			now:  "2025-06-01 10:00",
			want: "2026-03-05 09:00",
		},
		{
			name: "future_hour_today_stays",
			text: "nhắc tôi 10 giờ tối uống thuốc",
			now:  "2025-01-01 08:00",
			want: "2025-01-01 22:00",
		},
		{
			name:      "no_time_defaults_plus_one_minute",
			text:      "nhắc tôi dọn nhà",
			now:       "2025-01-01 08:00",
			want:      "2025-01-01 08:01",
			defaulted: true,
		},
		{
			name:      "out_of_range_hour_defaults",
			text:      "nhắc tôi 25 giờ",
			now:       "2025-01-01 08:00",
			want:      "2025-01-01 08:01",
			defaulted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, defaulted := resolveTime(tt.text, mustTime(t, tt.now))
			assert.Equal(t, tt.want, got.Format("2006-01-02 15:04"))
			assert.Equal(t, tt.defaulted, defaulted)
		})
	}
}

func TestResolveTimeDateOnly(t *testing.T) {
	// A date without any clock time is returned verbatim.
	now := mustTime(t, "2025-01-01 10:00")
	got, defaulted := resolveTime("hẹn ngày mai", now)
	assert.False(t, defaulted)
	assert.Equal(t, "2025-01-02", got.Format("2006-01-02"))
}

func TestResolveTimeIdempotent(t *testing.T) {
	now := mustTime(t, "2025-01-01 20:00")
	first, d1 := resolveTime("nhắc tôi 9 giờ sáng mai họp", now)
	second, d2 := resolveTime("nhắc tôi 9 giờ sáng mai họp", now)
	assert.Equal(t, first, second)
	assert.Equal(t, d1, d2)
}

func TestResolveTimeWeekday(t *testing.T) {
	// 2025-01-01 is a Wednesday; "thứ sáu" is the coming Friday.
	now := mustTime(t, "2025-01-01 10:00")
	got, defaulted := resolveTime("9 giờ thứ sáu họp dự án", now)
	assert.False(t, defaulted)
	assert.Equal(t, "2025-01-03 09:00", got.Format("2006-01-02 15:04"))

	// "tuần sau" pushes one week further out.
	got, _ = resolveTime("9 giờ thứ sáu tuần sau họp dự án", now)
	assert.Equal(t, "2025-01-10 09:00", got.Format("2006-01-02 15:04"))
}
