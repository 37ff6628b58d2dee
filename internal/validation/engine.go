package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
)

// Candidate is an unvalidated booking as submitted. Dates are ISO strings.
type Candidate struct {
	FirstName     string
	LastName      string
	Email         string
	Nationality   string
	University    string
	BirthDate     string
	Interest      string
	RoomType      string
	ArrivalDate   string
	DepartureDate string
	Comments      string
}

// EmailLookup answers whether an accepted booking already uses email,
// compared case-insensitively.
type EmailLookup interface {
	EmailTaken(ctx context.Context, email string) (bool, error)
}

type Engine struct {
	fields []FieldRules
	cross  []CrossCheck
	emails EmailLookup
	now    func() time.Time
	minAge int
	maxAge int
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithAgeBounds(minAge, maxAge int) EngineOption {
	return func(e *Engine) {
		e.minAge = minAge
		e.maxAge = maxAge
	}
}

// NewEngine builds an engine with the default booking rules. emails may be nil,
// in which case uniqueness is left to the storage layer alone.
func NewEngine(emails EmailLookup, opts ...EngineOption) *Engine {
	e := &Engine{
		fields: DefaultFieldRules(),
		emails: emails,
		now:    time.Now,
		minAge: DefaultMinAge,
		maxAge: DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cross = []CrossCheck{DateOrdering, NoPastArrival, AgeBounds(e.minAge, e.maxAge)}
	return e
}

// Validate runs every rule against c and returns either a ValidatedBooking or
// a *ViolationSet holding all violations. Any other error comes from the
// email lookup.
func (e *Engine) Validate(ctx context.Context, c Candidate) (domain.ValidatedBooking, error) {
	set := NewViolationSet()

	for _, fr := range e.fields {
		fr.apply(c, set)
	}

	today := domain.Today(e.now())
	dates := Dates{
		Birth:     parseIfClean(set, FieldBirthDate, c.BirthDate),
		Arrival:   parseIfClean(set, FieldArrivalDate, c.ArrivalDate),
		Departure: parseIfClean(set, FieldDepartureDate, c.DepartureDate),
	}
	for _, check := range e.cross {
		for _, v := range check(dates, today) {
			set.Add(v)
		}
	}

	email := strings.TrimSpace(c.Email)
	if e.emails != nil && email != "" {
		taken, err := e.emails.EmailTaken(ctx, email)
		if err != nil {
			return domain.ValidatedBooking{}, fmt.Errorf("check email uniqueness: %w", err)
		}
		if taken {
			set.Add(Violation{Field: FieldEmail, Code: CodeDuplicateEmail, Message: MessageDuplicateEmail})
		}
	}

	if !set.Empty() {
		return domain.ValidatedBooking{}, set
	}

	return domain.NewValidatedBooking(domain.Booking{
		FirstName:     strings.TrimSpace(c.FirstName),
		LastName:      strings.TrimSpace(c.LastName),
		Email:         email,
		Nationality:   strings.TrimSpace(c.Nationality),
		University:    strings.TrimSpace(c.University),
		BirthDate:     *dates.Birth,
		Interest:      strings.TrimSpace(c.Interest),
		RoomType:      domain.RoomType(strings.TrimSpace(c.RoomType)),
		ArrivalDate:   *dates.Arrival,
		DepartureDate: *dates.Departure,
		Comments:      strings.TrimSpace(c.Comments),
	}), nil
}

func parseIfClean(set *ViolationSet, field, raw string) *time.Time {
	if len(set.For(field)) > 0 {
		return nil
	}
	t, err := domain.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &t
}
