package validation

import (
	"fmt"
	"time"
)

const (
	DefaultMinAge = 18
	DefaultMaxAge = 98
)

// Dates holds the candidate's calendar dates that parsed successfully. A nil
// pointer means the field was blank or malformed and already reported.
type Dates struct {
	Birth     *time.Time
	Arrival   *time.Time
	Departure *time.Time
}

// CrossCheck relates several fields. today is the evaluation date (UTC midnight).
type CrossCheck func(d Dates, today time.Time) []Violation

// DateOrdering requires at least one night between arrival and departure.
func DateOrdering(d Dates, _ time.Time) []Violation {
	if d.Arrival == nil || d.Departure == nil {
		return nil
	}
	if !d.Arrival.Before(*d.Departure) {
		return []Violation{{Field: FieldDepartureDate, Code: CodeOrderViolation, Message: "must be after the arrival date"}}
	}
	return nil
}

func NoPastArrival(d Dates, today time.Time) []Violation {
	if d.Arrival == nil {
		return nil
	}
	if d.Arrival.Before(today) {
		return []Violation{{Field: FieldArrivalDate, Code: CodePastDate, Message: "cannot be in the past"}}
	}
	return nil
}

// AgeBounds keeps the guest's age within [minAge, maxAge] whole years. The
// lower bound is checked first and at most one violation is reported.
func AgeBounds(minAge, maxAge int) CrossCheck {
	return func(d Dates, today time.Time) []Violation {
		if d.Birth == nil {
			return nil
		}
		youngest := yearsBefore(today, minAge)
		oldest := yearsBefore(today, maxAge)

		switch {
		case d.Birth.After(youngest):
			return []Violation{{
				Field:   FieldBirthDate,
				Code:    CodeTooYoung,
				Message: fmt.Sprintf("indicates age under %d. Must be at least %d years old to book.", minAge, minAge),
			}}
		case d.Birth.Before(oldest):
			return []Violation{{Field: FieldBirthDate, Code: CodeImplausible, Message: "is not valid. Please check the date."}}
		}
		return nil
	}
}

// yearsBefore moves t back n calendar years. Feb 29 maps to Feb 28 in a
// common year rather than rolling over into March.
func yearsBefore(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	y -= n
	if last := daysIn(y, m); d > last {
		d = last
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
