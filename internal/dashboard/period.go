package dashboard

import (
	"fmt"
	"time"
)

// TimeAgg buckets timestamps into calendar periods. The empty value keeps
// timestamps as they are.
type TimeAgg string

const (
	AggNone    TimeAgg = ""
	AggMinute  TimeAgg = "min"
	AggHour    TimeAgg = "H"
	AggDay     TimeAgg = "D"
	AggWeek    TimeAgg = "W"
	AggMonth   TimeAgg = "M"
	AggQuarter TimeAgg = "Q"
	AggYear    TimeAgg = "Y"
)

// ParseTimeAgg accepts the period aliases used by pandas frequency strings.
func ParseTimeAgg(s string) (TimeAgg, error) {
	switch s {
	case "":
		return AggNone, nil
	case "min", "T":
		return AggMinute, nil
	case "H", "h":
		return AggHour, nil
	case "D", "d":
		return AggDay, nil
	case "W", "w":
		return AggWeek, nil
	case "M", "m":
		return AggMonth, nil
	case "Q", "q":
		return AggQuarter, nil
	case "Y", "y", "A":
		return AggYear, nil
	default:
		return "", fmt.Errorf("%w: time_agg %q (expected min, H, D, W, M, Q or Y)", ErrInvalidPanel, s)
	}
}

// Period returns the start of the period containing t, in t's location.
// Weeks start on Monday.
func (a TimeAgg) Period(t time.Time) time.Time {
	y, mo, d := t.Date()
	loc := t.Location()
	switch a {
	case AggMinute:
		return t.Truncate(time.Minute)
	case AggHour:
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, loc)
	case AggDay:
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	case AggWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, mo, d-offset, 0, 0, 0, 0, loc)
	case AggMonth:
		return time.Date(y, mo, 1, 0, 0, 0, 0, loc)
	case AggQuarter:
		q := (int(mo) - 1) / 3
		return time.Date(y, time.Month(q*3+1), 1, 0, 0, 0, 0, loc)
	case AggYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return t
	}
}
