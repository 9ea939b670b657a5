// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for computing the next occurrence
// of a recurring transaction. Each frequency has its own advancer that
// encapsulates the date arithmetic for that schedule.

package services

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Advancer is the strategy interface for computing a definition's next due date.
type Advancer interface {
	// Next returns the first occurrence strictly after from, ignoring the
	// definition's end date. ok is false when the schedule has no occurrence.
	Next(def core.RecurrenceDefinition, from core.Date) (next core.Date, ok bool)
}

// DailyAdvancer implements Advancer for daily recurrences.
type DailyAdvancer struct{}

func (DailyAdvancer) Next(_ core.RecurrenceDefinition, from core.Date) (core.Date, bool) {
	return from.AddDays(1), true
}

// IntervalAdvancer advances by a fixed number of days (weekly, biweekly).
type IntervalAdvancer struct {
	Days int
}

func (a IntervalAdvancer) Next(_ core.RecurrenceDefinition, from core.Date) (core.Date, bool) {
	return from.AddDays(a.Days), true
}

// MonthlyAdvancer moves one calendar month ahead, clamping the day to the
// target month's last day when it does not exist there (Jan 31 -> Feb 29).
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Next(_ core.RecurrenceDefinition, from core.Date) (core.Date, bool) {
	return addMonthsClamped(from, 1), true
}

// CustomAdvancer picks the next (month, day) pair from the definition's list.
type CustomAdvancer struct{}

// Next returns the earliest custom date strictly after from. Pairs are tried
// in from's year first and then in the following year, so once the list is
// exhausted the schedule wraps to its first pair one year later. A 02-29 pair
// lands on 02-28 in non-leap years.
func (CustomAdvancer) Next(def core.RecurrenceDefinition, from core.Date) (core.Date, bool) {
	var (
		best  core.Date
		found bool
	)
	for _, year := range []int{from.Year(), from.Year() + 1} {
		for _, md := range def.CustomDates {
			candidate := md.In(year)
			if !candidate.After(from) {
				continue
			}
			if !found || candidate.Before(best) {
				best, found = candidate, true
			}
		}
		if found {
			return best, true
		}
	}
	return core.Date{}, false
}

func addMonthsClamped(d core.Date, months int) core.Date {
	first := time.Date(d.Year(), time.Month(d.Month()+months), 1, 0, 0, 0, 0, time.UTC)
	day := d.Day()
	if last := core.DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

// advanceStrategies maps frequencies to their corresponding advancers.
var advanceStrategies = map[core.Frequency]Advancer{
	core.Daily:    DailyAdvancer{},
	core.Weekly:   IntervalAdvancer{Days: 7},
	core.Biweekly: IntervalAdvancer{Days: 14},
	core.Monthly:  MonthlyAdvancer{},
	core.Custom:   CustomAdvancer{},
}

// GetAdvancer returns the advancer for a frequency.
// Returns an error if the frequency is not supported.
func GetAdvancer(frequency core.Frequency) (Advancer, error) {
	advancer, ok := advanceStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidFrequency, frequency)
	}
	return advancer, nil
}

// Advance computes the occurrence following from. ok is false when the
// recurrence has ended: the computed date is past EndDate, the frequency is
// unknown, or a custom schedule has no dates.
func Advance(def core.RecurrenceDefinition, from core.Date) (next core.Date, ok bool) {
	advancer, err := GetAdvancer(def.Frequency)
	if err != nil {
		return core.Date{}, false
	}
	next, ok = advancer.Next(def, from)
	if !ok {
		return core.Date{}, false
	}
	if !def.EndDate.IsEmpty() && next.After(def.EndDate) {
		return core.Date{}, false
	}
	return next, true
}
