package scheduler

import (
	"fmt"
	"time"

	"budvest_data_service/config"
)

// Gate decides whether an intraday job may fire at a given instant
type Gate interface {
	ShouldRunIntraday(now time.Time) bool
}

// TradingWindow is the exchange's two intraday sessions. Both sessions
// include their start and end instants.
type TradingWindow struct {
	loc            *time.Location
	morningStart   int
	morningEnd     int
	afternoonStart int
	afternoonEnd   int
}

// NewTradingWindow parses the four HH:MM session boundaries. Times are
// evaluated in loc.
func NewTradingWindow(hours config.TradingHours, loc *time.Location) (TradingWindow, error) {
	if loc == nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	w := TradingWindow{loc: loc}
	for _, b := range []struct {
		name  string
		value string
		dst   *int
	}{
		{"morning_start", hours.MorningStart, &w.morningStart},
		{"morning_end", hours.MorningEnd, &w.morningEnd},
		{"afternoon_start", hours.AfternoonStart, &w.afternoonStart},
		{"afternoon_end", hours.AfternoonEnd, &w.afternoonEnd},
	} {
		h, m, err := config.ParseClock(b.value)
		if err != nil {
			return TradingWindow{}, fmt.Errorf("%s: %w", b.name, err)
		}
		*b.dst = h*3600 + m*60
	}
	if w.morningStart > w.morningEnd || w.afternoonStart > w.afternoonEnd {
		return TradingWindow{}, fmt.Errorf("trading session ends before it starts")
	}
	return w, nil
}

// ShouldRunIntraday reports whether now falls on a weekday inside either
// session.
func (w TradingWindow) ShouldRunIntraday(now time.Time) bool {
	local := now.In(w.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	sec := local.Hour()*3600 + local.Minute()*60 + local.Second()
	return (sec >= w.morningStart && sec <= w.morningEnd) ||
		(sec >= w.afternoonStart && sec <= w.afternoonEnd)
}
