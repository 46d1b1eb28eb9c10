// Package schedule resolves free-text recurrence tokens into an initial fire
// instant and a fixed recurrence interval. Resolution is pure: callers pass
// the reference instant in, nothing here reads the clock.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fixed interval classes, in minutes. Monthly is a 30-day approximation, not
// calendar-month-aware.
const (
	IntervalHourly  = 60
	IntervalDaily   = 1440
	IntervalWeekly  = 10080
	IntervalMonthly = 43200
)

// Resolution is the outcome of resolving a recurrence token.
type Resolution struct {
	FireAt          time.Time
	IntervalMinutes int
	Recurring       bool
}

// ParseTimeOfDay parses a clock time in HH:MM form.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time must be in HH:MM format: %q", s)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("time must be in HH:MM format: %q", s)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("time must be in HH:MM format: %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range: %q", s)
	}
	return hour, minute, nil
}

// rule pairs a token predicate with its resolver. Rules are evaluated in
// declaration order; the first match wins.
type rule struct {
	match   func(token, lower string) bool
	resolve func(hour, minute int, ref time.Time) Resolution
}

func fixedInterval(minutes int) func(hour, minute int, ref time.Time) Resolution {
	return func(hour, minute int, ref time.Time) Resolution {
		return Resolution{
			FireAt:          NextTimeOfDay(ref, hour, minute),
			IntervalMinutes: minutes,
			Recurring:       true,
		}
	}
}

func weekly(day time.Weekday) func(hour, minute int, ref time.Time) Resolution {
	return func(hour, minute int, ref time.Time) Resolution {
		return Resolution{
			FireAt:          NextWeekday(ref, day, hour, minute),
			IntervalMinutes: IntervalWeekly,
			Recurring:       true,
		}
	}
}

func weekdayRule(day time.Weekday, keywords ...string) rule {
	return rule{
		match: func(token, lower string) bool {
			for _, kw := range keywords {
				if strings.Contains(token, kw) || strings.Contains(lower, kw) {
					return true
				}
			}
			return false
		},
		resolve: weekly(day),
	}
}

// Specific weekdays come before the generic weekly rule because tokens such
// as "每周三" also contain "每周".
var rules = []rule{
	{
		match:   func(token, lower string) bool { return strings.Contains(token, "每天") || strings.Contains(lower, "daily") },
		resolve: fixedInterval(IntervalDaily),
	},
	weekdayRule(time.Sunday, "每周日", "周日", "sunday"),
	weekdayRule(time.Monday, "每周一", "周一", "monday"),
	weekdayRule(time.Tuesday, "每周二", "周二", "tuesday"),
	weekdayRule(time.Wednesday, "每周三", "周三", "wednesday"),
	weekdayRule(time.Thursday, "每周四", "周四", "thursday"),
	weekdayRule(time.Friday, "每周五", "周五", "friday"),
	weekdayRule(time.Saturday, "每周六", "周六", "saturday"),
	{
		// weekly without a named weekday anchors on the reference weekday
		match: func(token, lower string) bool { return strings.Contains(token, "每周") || strings.Contains(lower, "weekly") },
		resolve: func(hour, minute int, ref time.Time) Resolution {
			return Resolution{
				FireAt:          NextWeekday(ref, ref.Weekday(), hour, minute),
				IntervalMinutes: IntervalWeekly,
				Recurring:       true,
			}
		},
	},
	{
		match:   func(token, lower string) bool { return strings.Contains(token, "每小时") || strings.Contains(lower, "hourly") },
		resolve: fixedInterval(IntervalHourly),
	},
	{
		match:   func(token, lower string) bool { return strings.Contains(token, "每月") || strings.Contains(lower, "monthly") },
		resolve: fixedInterval(IntervalMonthly),
	},
	{
		match: func(token, lower string) bool {
			n, err := strconv.Atoi(strings.TrimSpace(token))
			return err == nil && n > 0
		},
		resolve: nil, // interval depends on the token, handled in Resolve
	},
}

// Resolve maps a recurrence token, a time-of-day and a reference instant to
// the initial fire instant and interval. An empty token means non-recurring.
// An unrecognized non-empty token falls back to daily; free-text schedules
// are never rejected.
func Resolve(token string, hour, minute int, ref time.Time) Resolution {
	if token == "" {
		return Resolution{FireAt: NextTimeOfDay(ref, hour, minute)}
	}

	lower := strings.ToLower(token)
	for _, r := range rules {
		if !r.match(token, lower) {
			continue
		}
		if r.resolve != nil {
			return r.resolve(hour, minute, ref)
		}
		// plain integer token, interpreted directly as minutes
		n, _ := strconv.Atoi(strings.TrimSpace(token))
		return Resolution{
			FireAt:          NextTimeOfDay(ref, hour, minute),
			IntervalMinutes: n,
			Recurring:       true,
		}
	}

	return fixedInterval(IntervalDaily)(hour, minute, ref)
}

// NextTimeOfDay returns the next occurrence of hh:mm from ref: today if
// still upcoming, otherwise tomorrow.
func NextTimeOfDay(ref time.Time, hour, minute int) time.Time {
	target := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
	if !target.After(ref) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}

// NextWeekday returns the next occurrence of the given weekday at hh:mm from
// ref. If ref already falls on that weekday and hh:mm is still upcoming, the
// result is today; otherwise it is 1 to 7 days ahead.
func NextWeekday(ref time.Time, day time.Weekday, hour, minute int) time.Time {
	target := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
	days := (int(day) - int(ref.Weekday()) + 7) % 7
	if days == 0 && !target.After(ref) {
		days = 7
	}
	return target.AddDate(0, 0, days)
}
