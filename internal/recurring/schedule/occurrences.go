// Package schedule expands a recurring rule's cadence into concrete
// occurrence dates. Everything here is pure: identical non-relative inputs
// always yield identical sequences.
package schedule

import (
	"time"

	"github.com/pjanicki/RecurringLedger/internal/recurring/domain"
)

// defaultHorizon bounds generation when a rule carries neither an end date
// nor an occurrence count. It is relative to the caller's "now", so calling
// again on a later day can yield more dates for the same rule.
const defaultHorizonYears = 1

// Generate returns the ordered occurrence dates for the given cadence,
// starting at startDate inclusive, normalized to midnight UTC.
// Termination, in priority order: occurrenceCount (wins even when an end
// date is also set), endDate, now + 1 year.
func Generate(frequency domain.Frequency, interval int, startDate time.Time, endDate *time.Time, occurrenceCount *int, now time.Time) []time.Time {
	unit, step := normalize(frequency, interval)
	start := DateOnly(startDate)

	var limit time.Time
	switch {
	case occurrenceCount != nil:
		// bounded by count alone
	case endDate != nil:
		limit = DateOnly(*endDate)
	default:
		limit = DateOnly(now).AddDate(defaultHorizonYears, 0, 0)
	}

	var dates []time.Time
	for i := 0; ; i++ {
		d := nth(unit, step, start, i)
		if occurrenceCount != nil {
			if len(dates) >= *occurrenceCount {
				break
			}
		} else if d.After(limit) {
			break
		}
		dates = append(dates, d)
	}
	return dates
}

type cadenceUnit int

const (
	unitDay cadenceUnit = iota
	unitMonth
	unitYear
)

// normalize folds the derived cadences into their base ones: biweekly is
// weekly with a fixed multiplier of 2, quarterly is monthly with 3. The
// caller-supplied interval is ignored for those two. Custom means "every
// interval days".
func normalize(frequency domain.Frequency, interval int) (cadenceUnit, int) {
	if interval < 1 {
		interval = 1
	}
	switch frequency {
	case domain.FrequencyDaily, domain.FrequencyCustom:
		return unitDay, interval
	case domain.FrequencyWeekly:
		return unitDay, 7 * interval
	case domain.FrequencyBiweekly:
		return unitDay, 14
	case domain.FrequencyMonthly:
		return unitMonth, interval
	case domain.FrequencyQuarterly:
		return unitMonth, 3
	case domain.FrequencyAnnually:
		return unitYear, interval
	default:
		return unitDay, interval
	}
}

// nth computes the i-th occurrence from start. Month and year arithmetic is
// anchored on start's day-of-month (and month, for years) and clamps to the
// last valid day instead of skipping or rolling over, so a rule anchored on
// the 31st lands on Feb 28/29.
func nth(unit cadenceUnit, step int, start time.Time, i int) time.Time {
	switch unit {
	case unitMonth:
		months := int(start.Month()) - 1 + i*step
		year := start.Year() + months/12
		month := time.Month(months%12 + 1)
		return time.Date(year, month, clampDay(start.Day(), year, month), 0, 0, 0, 0, time.UTC)
	case unitYear:
		year := start.Year() + i*step
		return time.Date(year, start.Month(), clampDay(start.Day(), year, start.Month()), 0, 0, 0, 0, time.UTC)
	default:
		return start.AddDate(0, 0, i*step)
	}
}

func clampDay(day int, year int, month time.Month) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

// DateOnly truncates a timestamp to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay is the last instant of t's calendar date, the upper bound of the
// historical materialization window.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}
