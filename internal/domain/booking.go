package domain

import "time"

// DateLayout is the ISO calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

type Booking struct {
	ID            int64
	FirstName     string
	LastName      string
	Email         string
	Nationality   string
	University    string
	BirthDate     time.Time
	Interest      string
	RoomType      RoomType
	ArrivalDate   time.Time
	DepartureDate time.Time
	Comments      string
	CreatedAt     time.Time
}

// ValidatedBooking is a booking that passed every validation rule and is ready
// to be persisted. It is produced only by the validation engine.
type ValidatedBooking struct {
	booking Booking
}

func NewValidatedBooking(b Booking) ValidatedBooking {
	b.ID = 0
	b.CreatedAt = time.Time{}
	return ValidatedBooking{booking: b}
}

// Booking returns a copy of the validated fields.
func (v ValidatedBooking) Booking() Booking {
	return v.booking
}

// Today truncates t to a calendar date in UTC.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
