package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/go-playground/validator/v10"
)

const (
	FieldFirstName     = "first_name"
	FieldLastName      = "last_name"
	FieldEmail         = "email"
	FieldNationality   = "nationality"
	FieldUniversity    = "university"
	FieldBirthDate     = "birth_date"
	FieldInterest      = "interest"
	FieldRoomType      = "room_type"
	FieldArrivalDate   = "arrival_date"
	FieldDepartureDate = "departure_date"
	FieldComments      = "comments"
)

const (
	MaxNameLength        = 50
	MaxEmailLength       = 255
	MaxNationalityLength = 100
	MaxUniversityLength  = 200
	MaxInterestLength    = 100
	MaxCommentsLength    = 1000

	maxEchoedValueLength = 100
)

// Letters (ASCII and the Latin-1 accented block), whitespace, hyphens and
// apostrophes. Anything else, markup included, is rejected.
var nameAlphabet = regexp.MustCompile(`^[a-zA-Z\x{00C0}-\x{00FF}\s\-']+$`)

var validate = validator.New()

// Failure is the outcome of a single failed rule, before it is bound to a field.
type Failure struct {
	Code    Code
	Message string
}

// Check is a single-field rule. It returns nil when value passes.
type Check func(value string) *Failure

// Required fails on empty or whitespace-only values.
func Required(value string) *Failure {
	if strings.TrimSpace(value) == "" {
		return &Failure{Code: CodeRequired, Message: "can't be blank"}
	}
	return nil
}

// MaxLength fails when value has more than n characters.
func MaxLength(n int) Check {
	tag := fmt.Sprintf("max=%d", n)
	return func(value string) *Failure {
		if err := validate.Var(value, tag); err != nil {
			return &Failure{Code: CodeTooLong, Message: fmt.Sprintf("is too long (maximum is %d characters)", n)}
		}
		return nil
	}
}

func NameFormat(value string) *Failure {
	if !nameAlphabet.MatchString(value) {
		return &Failure{Code: CodeInvalidFormat, Message: "can only contain letters, spaces, hyphens, and apostrophes"}
	}
	return nil
}

// EmailFormat accepts local-part@domain where the domain has at least one dot.
func EmailFormat(value string) *Failure {
	invalid := &Failure{Code: CodeInvalidFormat, Message: "is not a valid email address"}
	if err := validate.Var(value, "email"); err != nil {
		return invalid
	}
	at := strings.LastIndex(value, "@")
	domainPart := value[at+1:]
	if !strings.Contains(domainPart, ".") || strings.HasPrefix(domainPart, ".") || strings.HasSuffix(domainPart, ".") {
		return invalid
	}
	return nil
}

func ISODate(value string) *Failure {
	if _, err := domain.ParseDate(value); err != nil {
		return &Failure{Code: CodeInvalidFormat, Message: "is not a valid date"}
	}
	return nil
}

// RoomTypeAllowed echoes the rejected value in its message. The message is for
// display only.
func RoomTypeAllowed(value string) *Failure {
	if domain.RoomType(value).Valid() {
		return nil
	}
	return &Failure{Code: CodeNotAllowed, Message: fmt.Sprintf("%s is not a valid room type", truncate(value, maxEchoedValueLength))}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// FieldRules binds an ordered list of checks to one candidate field. Checks
// other than presence only run on non-blank values.
type FieldRules struct {
	Field    string
	Value    func(Candidate) string
	Required bool
	Checks   []Check
}

func (fr FieldRules) apply(c Candidate, set *ViolationSet) {
	value := strings.TrimSpace(fr.Value(c))
	if value == "" {
		if fr.Required {
			f := Required(value)
			set.Add(Violation{Field: fr.Field, Code: f.Code, Message: f.Message})
		}
		return
	}
	for _, check := range fr.Checks {
		if f := check(value); f != nil {
			set.Add(Violation{Field: fr.Field, Code: f.Code, Message: f.Message})
		}
	}
}

// DefaultFieldRules is the booking field rule list in declaration order.
func DefaultFieldRules() []FieldRules {
	return []FieldRules{
		{Field: FieldFirstName, Value: func(c Candidate) string { return c.FirstName }, Required: true,
			Checks: []Check{MaxLength(MaxNameLength), NameFormat}},
		{Field: FieldLastName, Value: func(c Candidate) string { return c.LastName }, Required: true,
			Checks: []Check{MaxLength(MaxNameLength), NameFormat}},
		{Field: FieldEmail, Value: func(c Candidate) string { return c.Email }, Required: true,
			Checks: []Check{MaxLength(MaxEmailLength), EmailFormat}},
		{Field: FieldNationality, Value: func(c Candidate) string { return c.Nationality }, Required: true,
			Checks: []Check{MaxLength(MaxNationalityLength)}},
		{Field: FieldUniversity, Value: func(c Candidate) string { return c.University }, Required: true,
			Checks: []Check{MaxLength(MaxUniversityLength)}},
		{Field: FieldBirthDate, Value: func(c Candidate) string { return c.BirthDate }, Required: true,
			Checks: []Check{ISODate}},
		{Field: FieldInterest, Value: func(c Candidate) string { return c.Interest },
			Checks: []Check{MaxLength(MaxInterestLength)}},
		{Field: FieldRoomType, Value: func(c Candidate) string { return c.RoomType }, Required: true,
			Checks: []Check{RoomTypeAllowed}},
		{Field: FieldArrivalDate, Value: func(c Candidate) string { return c.ArrivalDate }, Required: true,
			Checks: []Check{ISODate}},
		{Field: FieldDepartureDate, Value: func(c Candidate) string { return c.DepartureDate }, Required: true,
			Checks: []Check{ISODate}},
		{Field: FieldComments, Value: func(c Candidate) string { return c.Comments },
			Checks: []Check{MaxLength(MaxCommentsLength)}},
	}
}
