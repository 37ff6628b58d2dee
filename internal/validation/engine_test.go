package validation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.October, 16, 15, 30, 0, 0, time.UTC)

func today() time.Time { return domain.Today(fixedNow) }

func date(t time.Time) string { return t.Format(domain.DateLayout) }

type stubEmails struct {
	taken map[string]bool
	err   error
	calls int
}

func (s *stubEmails) EmailTaken(_ context.Context, email string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.taken[strings.ToLower(email)], nil
}

func validCandidate() Candidate {
	return Candidate{
		FirstName:     "John",
		LastName:      "Doe",
		Email:         "john.doe@example.com",
		Nationality:   "USA",
		University:    "MIT",
		BirthDate:     date(today().AddDate(-20, 0, 0)),
		RoomType:      string(domain.RoomTypeLuxus),
		ArrivalDate:   date(today().AddDate(0, 0, 1)),
		DepartureDate: date(today().AddDate(0, 0, 3)),
		Comments:      "Looking forward to my stay",
	}
}

func newTestEngine(emails EmailLookup) *Engine {
	return NewEngine(emails, WithClock(func() time.Time { return fixedNow }))
}

func violations(t *testing.T, err error) *ViolationSet {
	t.Helper()
	set := IsViolationSet(err)
	require.NotNil(t, set, "expected a violation set, got %v", err)
	return set
}

func TestEngine_Validate_ValidCandidate(t *testing.T) {
	engine := newTestEngine(&stubEmails{})

	vb, err := engine.Validate(context.Background(), validCandidate())

	require.NoError(t, err)
	b := vb.Booking()
	assert.Equal(t, "John", b.FirstName)
	assert.Equal(t, domain.RoomTypeLuxus, b.RoomType)
	assert.Equal(t, today().AddDate(0, 0, 1), b.ArrivalDate)
	assert.Zero(t, b.ID)
}

func TestEngine_Validate_TrimsValues(t *testing.T) {
	engine := newTestEngine(nil)
	c := validCandidate()
	c.FirstName = "  Mary-Anne "
	c.Email = " mary@uni.edu "

	vb, err := engine.Validate(context.Background(), c)

	require.NoError(t, err)
	assert.Equal(t, "Mary-Anne", vb.Booking().FirstName)
	assert.Equal(t, "mary@uni.edu", vb.Booking().Email)
}

func TestEngine_Validate_RequiredFields(t *testing.T) {
	engine := newTestEngine(nil)

	testCases := []struct {
		field string
		blank func(*Candidate)
	}{
		{FieldFirstName, func(c *Candidate) { c.FirstName = "" }},
		{FieldLastName, func(c *Candidate) { c.LastName = "   " }},
		{FieldEmail, func(c *Candidate) { c.Email = "" }},
		{FieldNationality, func(c *Candidate) { c.Nationality = "\t" }},
		{FieldUniversity, func(c *Candidate) { c.University = "" }},
		{FieldBirthDate, func(c *Candidate) { c.BirthDate = "" }},
		{FieldRoomType, func(c *Candidate) { c.RoomType = "" }},
		{FieldArrivalDate, func(c *Candidate) { c.ArrivalDate = "" }},
		{FieldDepartureDate, func(c *Candidate) { c.DepartureDate = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.field, func(t *testing.T) {
			c := validCandidate()
			tc.blank(&c)

			_, err := engine.Validate(context.Background(), c)

			set := violations(t, err)
			assert.Equal(t, []string{tc.field}, set.Fields())
			require.Len(t, set.For(tc.field), 1)
			assert.Equal(t, CodeRequired, set.For(tc.field)[0].Code)
			assert.Equal(t, "can't be blank", set.For(tc.field)[0].Message)
		})
	}
}

func TestEngine_Validate_OptionalFieldsMayBeBlank(t *testing.T) {
	engine := newTestEngine(nil)
	c := validCandidate()
	c.Interest = ""
	c.Comments = ""

	_, err := engine.Validate(context.Background(), c)

	assert.NoError(t, err)
}

func TestEngine_Validate_AccumulatesAcrossFields(t *testing.T) {
	engine := newTestEngine(nil)
	c := validCandidate()
	c.FirstName = ""
	c.LastName = "<script>" + strings.Repeat("b", 50)
	c.Email = "invalid_email"
	c.ArrivalDate = date(today().AddDate(0, 0, -1))
	c.DepartureDate = date(today().AddDate(0, 0, -1))

	_, err := engine.Validate(context.Background(), c)

	set := violations(t, err)
	assert.True(t, set.Has(FieldFirstName, CodeRequired))
	assert.Equal(t, []string{"is too long (maximum is 50 characters)", "can only contain letters, spaces, hyphens, and apostrophes"},
		set.Messages()[FieldLastName])
	assert.True(t, set.Has(FieldEmail, CodeInvalidFormat))
	assert.True(t, set.Has(FieldArrivalDate, CodePastDate))
	assert.True(t, set.Has(FieldDepartureDate, CodeOrderViolation))
	assert.Equal(t, 6, set.Len())
}

func TestEngine_Validate_NameAlphabet(t *testing.T) {
	engine := newTestEngine(nil)

	valid := []string{"Mary-Anne", "O'Neil", "José Ñúñez", "Zoë", "Anne Marie", strings.Repeat("a", 50)}
	for _, name := range valid {
		t.Run("valid "+name, func(t *testing.T) {
			c := validCandidate()
			c.FirstName = name
			c.LastName = name

			_, err := engine.Validate(context.Background(), c)

			assert.NoError(t, err)
		})
	}

	invalid := []string{"John<script>", "a>b", "R2D2", "me@home", "Bob;", "Ann\"e"}
	for _, name := range invalid {
		t.Run("invalid "+name, func(t *testing.T) {
			c := validCandidate()
			c.FirstName = name

			_, err := engine.Validate(context.Background(), c)

			set := violations(t, err)
			assert.True(t, set.Has(FieldFirstName, CodeInvalidFormat))
		})
	}
}

func TestEngine_Validate_LengthBounds(t *testing.T) {
	engine := newTestEngine(nil)

	testCases := []struct {
		field string
		max   int
		set   func(*Candidate, string)
	}{
		{FieldFirstName, MaxNameLength, func(c *Candidate, v string) { c.FirstName = v }},
		{FieldNationality, MaxNationalityLength, func(c *Candidate, v string) { c.Nationality = v }},
		{FieldUniversity, MaxUniversityLength, func(c *Candidate, v string) { c.University = v }},
		{FieldInterest, MaxInterestLength, func(c *Candidate, v string) { c.Interest = v }},
		{FieldComments, MaxCommentsLength, func(c *Candidate, v string) { c.Comments = v }},
	}

	for _, tc := range testCases {
		t.Run(tc.field, func(t *testing.T) {
			c := validCandidate()
			tc.set(&c, strings.Repeat("é", tc.max))
			_, err := engine.Validate(context.Background(), c)
			assert.NoError(t, err, "exactly %d characters must pass", tc.max)

			tc.set(&c, strings.Repeat("é", tc.max+1))
			_, err = engine.Validate(context.Background(), c)
			set := violations(t, err)
			assert.True(t, set.Has(tc.field, CodeTooLong))
		})
	}
}

func TestEngine_Validate_Email(t *testing.T) {
	engine := newTestEngine(nil)

	testCases := []struct {
		email string
		valid bool
	}{
		{"mary@uni.edu", true},
		{"first.last+tag@sub.example.co.uk", true},
		{"invalid_email", false},
		{"no-domain@", false},
		{"user@localhost", false},
		{"two@@example.com", false},
		{strings.Repeat("a", 250) + "@test.com", false},
	}

	for _, tc := range testCases {
		t.Run(tc.email, func(t *testing.T) {
			c := validCandidate()
			c.Email = tc.email

			_, err := engine.Validate(context.Background(), c)

			if tc.valid {
				assert.NoError(t, err)
				return
			}
			set := violations(t, err)
			assert.NotEmpty(t, set.For(FieldEmail))
		})
	}
}

func TestEngine_Validate_RoomType(t *testing.T) {
	engine := newTestEngine(nil)

	for _, rt := range domain.RoomTypes() {
		c := validCandidate()
		c.RoomType = string(rt)
		_, err := engine.Validate(context.Background(), c)
		assert.NoError(t, err, rt)
	}

	c := validCandidate()
	c.RoomType = "Invalid Room"
	_, err := engine.Validate(context.Background(), c)

	set := violations(t, err)
	assert.Equal(t, []string{"Invalid Room is not a valid room type"}, set.Messages()[FieldRoomType])
	assert.True(t, set.Has(FieldRoomType, CodeNotAllowed))

	c.RoomType = "DoubleRoom"
	_, err = engine.Validate(context.Background(), c)
	assert.True(t, violations(t, err).Has(FieldRoomType, CodeNotAllowed))
}

func TestEngine_Validate_RoomTypeEchoIsTruncated(t *testing.T) {
	engine := newTestEngine(nil)
	c := validCandidate()
	c.RoomType = strings.Repeat("x", 500)

	_, err := engine.Validate(context.Background(), c)

	msg := violations(t, err).Messages()[FieldRoomType][0]
	assert.Less(t, len(msg), 200)
}

func TestEngine_Validate_AgeBoundaries(t *testing.T) {
	engine := newTestEngine(nil)

	testCases := []struct {
		name  string
		birth time.Time
		code  Code
	}{
		{"exactly 18", today().AddDate(-18, 0, 0), ""},
		{"one day short of 18", today().AddDate(-18, 0, 1), CodeTooYoung},
		{"exactly 98", today().AddDate(-98, 0, 0), ""},
		{"98 and one day", today().AddDate(-98, 0, -1), CodeImplausible},
		{"born today", today(), CodeTooYoung},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCandidate()
			c.BirthDate = date(tc.birth)

			_, err := engine.Validate(context.Background(), c)

			if tc.code == "" {
				assert.NoError(t, err)
				return
			}
			set := violations(t, err)
			require.Len(t, set.For(FieldBirthDate), 1)
			assert.Equal(t, tc.code, set.For(FieldBirthDate)[0].Code)
		})
	}
}

func TestEngine_Validate_AgeBoundariesOnLeapDay(t *testing.T) {
	leapDay := time.Date(2028, time.February, 29, 9, 0, 0, 0, time.UTC)
	engine := NewEngine(nil, WithClock(func() time.Time { return leapDay }))

	testCases := []struct {
		name  string
		birth string
		code  Code
	}{
		{"turns 18 on feb 28", "2010-02-28", ""},
		{"born mar 1 is still 17", "2010-03-01", CodeTooYoung},
		{"exactly 98", "1930-02-28", ""},
		{"98 and one day", "1930-02-27", CodeImplausible},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCandidate()
			c.BirthDate = tc.birth
			c.ArrivalDate = "2028-03-01"
			c.DepartureDate = "2028-03-03"

			_, err := engine.Validate(context.Background(), c)

			if tc.code == "" {
				assert.NoError(t, err)
				return
			}
			set := violations(t, err)
			require.Len(t, set.For(FieldBirthDate), 1)
			assert.Equal(t, tc.code, set.For(FieldBirthDate)[0].Code)
		})
	}
}

func TestYearsBefore(t *testing.T) {
	leapDay := time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2010, time.February, 28, 0, 0, 0, 0, time.UTC), yearsBefore(leapDay, 18))
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), yearsBefore(leapDay, 4))
	assert.Equal(t, time.Date(2008, time.October, 16, 0, 0, 0, 0, time.UTC), yearsBefore(today(), 18))
}

func TestEngine_Validate_ConfigurableAgeBounds(t *testing.T) {
	engine := NewEngine(nil, WithClock(func() time.Time { return fixedNow }), WithAgeBounds(21, 90))
	c := validCandidate()
	c.BirthDate = date(today().AddDate(-20, 0, 0))

	_, err := engine.Validate(context.Background(), c)

	set := violations(t, err)
	assert.Equal(t, []string{"indicates age under 21. Must be at least 21 years old to book."}, set.Messages()[FieldBirthDate])
}

func TestEngine_Validate_DateRules(t *testing.T) {
	engine := newTestEngine(nil)

	testCases := []struct {
		name      string
		arrival   time.Time
		departure time.Time
		field     string
		code      Code
	}{
		{"same day", today().AddDate(0, 0, 1), today().AddDate(0, 0, 1), FieldDepartureDate, CodeOrderViolation},
		{"departure before arrival", today().AddDate(0, 0, 5), today().AddDate(0, 0, 2), FieldDepartureDate, CodeOrderViolation},
		{"one night", today().AddDate(0, 0, 1), today().AddDate(0, 0, 2), "", ""},
		{"arriving today", today(), today().AddDate(0, 0, 1), "", ""},
		{"yesterday", today().AddDate(0, 0, -1), today().AddDate(0, 0, 10), FieldArrivalDate, CodePastDate},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := validCandidate()
			c.ArrivalDate = date(tc.arrival)
			c.DepartureDate = date(tc.departure)

			_, err := engine.Validate(context.Background(), c)

			if tc.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, violations(t, err).Has(tc.field, tc.code))
		})
	}
}

func TestEngine_Validate_MalformedDates(t *testing.T) {
	engine := newTestEngine(nil)
	c := validCandidate()
	c.ArrivalDate = "tomorrow"
	c.BirthDate = "2001-02-30"

	_, err := engine.Validate(context.Background(), c)

	set := violations(t, err)
	assert.Equal(t, []string{"is not a valid date"}, set.Messages()[FieldArrivalDate])
	assert.Equal(t, []string{"is not a valid date"}, set.Messages()[FieldBirthDate])
	assert.Empty(t, set.For(FieldDepartureDate), "ordering needs both dates")
}

func TestEngine_Validate_DuplicateEmail(t *testing.T) {
	emails := &stubEmails{taken: map[string]bool{"john.doe@example.com": true}}
	engine := newTestEngine(emails)
	c := validCandidate()
	c.Email = "JOHN.DOE@EXAMPLE.COM"

	_, err := engine.Validate(context.Background(), c)

	set := violations(t, err)
	assert.Equal(t, []string{MessageDuplicateEmail}, set.Messages()[FieldEmail])
	assert.Equal(t, 1, emails.calls)
}

func TestEngine_Validate_SkipsLookupForBlankEmail(t *testing.T) {
	emails := &stubEmails{}
	engine := newTestEngine(emails)
	c := validCandidate()
	c.Email = " "

	_, err := engine.Validate(context.Background(), c)

	assert.NotNil(t, IsViolationSet(err))
	assert.Zero(t, emails.calls)
}

func TestEngine_Validate_LookupFailureIsNotAViolation(t *testing.T) {
	engine := newTestEngine(&stubEmails{err: errors.New("connection refused")})

	_, err := engine.Validate(context.Background(), validCandidate())

	require.Error(t, err)
	assert.Nil(t, IsViolationSet(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEngine_Validate_Idempotent(t *testing.T) {
	engine := newTestEngine(nil)

	_, err := engine.Validate(context.Background(), validCandidate())
	require.NoError(t, err)
	_, err = engine.Validate(context.Background(), validCandidate())
	require.NoError(t, err)

	bad := validCandidate()
	bad.FirstName = "1<2"
	bad.RoomType = "Suite"
	bad.DepartureDate = bad.ArrivalDate

	_, err1 := engine.Validate(context.Background(), bad)
	_, err2 := engine.Validate(context.Background(), bad)

	assert.Equal(t, violations(t, err1).Messages(), violations(t, err2).Messages())
	assert.Equal(t, violations(t, err1).Fields(), violations(t, err2).Fields())
}
