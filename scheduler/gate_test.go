package scheduler

import (
	"testing"
	"time"

	"budvest_data_service/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cst = time.FixedZone("CST", 8*3600)

func defaultWindow(t *testing.T) TradingWindow {
	t.Helper()
	w, err := NewTradingWindow(config.Default().Market.TradingHours, cst)
	require.NoError(t, err)
	return w
}

func TestShouldRunIntraday(t *testing.T) {
	w := defaultWindow(t)

	// 2024-05-14 is a Tuesday, 2024-05-18 a Saturday
	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"saturday inside hours", time.Date(2024, 5, 18, 10, 0, 0, 0, cst), false},
		{"sunday afternoon", time.Date(2024, 5, 19, 14, 0, 0, 0, cst), false},
		{"lunch break", time.Date(2024, 5, 14, 12, 0, 0, 0, cst), false},
		{"morning open", time.Date(2024, 5, 14, 9, 30, 0, 0, cst), true},
		{"before open", time.Date(2024, 5, 14, 9, 29, 59, 0, cst), false},
		{"morning close", time.Date(2024, 5, 14, 11, 30, 0, 0, cst), true},
		{"after morning close", time.Date(2024, 5, 14, 11, 30, 1, 0, cst), false},
		{"afternoon open", time.Date(2024, 5, 14, 13, 0, 0, 0, cst), true},
		{"afternoon close", time.Date(2024, 5, 14, 15, 0, 0, 0, cst), true},
		{"after close", time.Date(2024, 5, 14, 15, 0, 1, 0, cst), false},
		{"utc input converted", time.Date(2024, 5, 14, 1, 30, 0, 0, time.UTC), true},
		{"utc friday night is saturday", time.Date(2024, 5, 17, 17, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.ShouldRunIntraday(tc.at))
		})
	}
}

func TestTradingWindow_ConfiguredBoundaries(t *testing.T) {
	w, err := NewTradingWindow(config.TradingHours{
		MorningStart:   "09:15",
		MorningEnd:     "11:30",
		AfternoonStart: "13:00",
		AfternoonEnd:   "14:57",
	}, cst)
	require.NoError(t, err)

	assert.True(t, w.ShouldRunIntraday(time.Date(2024, 5, 14, 9, 15, 0, 0, cst)))
	assert.False(t, w.ShouldRunIntraday(time.Date(2024, 5, 14, 14, 58, 0, 0, cst)))
}

func TestNewTradingWindow_Rejects(t *testing.T) {
	hours := config.Default().Market.TradingHours
	hours.AfternoonEnd = "3pm"
	_, err := NewTradingWindow(hours, cst)
	assert.Error(t, err)

	hours = config.Default().Market.TradingHours
	hours.MorningEnd = "09:00"
	_, err = NewTradingWindow(hours, cst)
	assert.Error(t, err)
}
