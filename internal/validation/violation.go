package validation

import (
	"errors"
	"fmt"
	"strings"
)

type Code string

const (
	CodeRequired       Code = "required"
	CodeTooLong        Code = "too_long"
	CodeInvalidFormat  Code = "invalid_format"
	CodeNotAllowed     Code = "not_allowed"
	CodeOrderViolation Code = "order_violation"
	CodePastDate       Code = "past_date"
	CodeTooYoung       Code = "too_young"
	CodeImplausible    Code = "implausible"
	CodeDuplicateEmail Code = "duplicate_email"
)

const MessageDuplicateEmail = "has already been taken"

// Violation is one failed rule on one field.
type Violation struct {
	Field   string
	Code    Code
	Message string
}

// ViolationSet collects every violation of one validation pass, grouped by
// field. Fields keep the order in which their first violation was added and
// violations keep rule order within a field.
type ViolationSet struct {
	fields  []string
	byField map[string][]Violation
}

func NewViolationSet() *ViolationSet {
	return &ViolationSet{byField: make(map[string][]Violation)}
}

// DuplicateEmail is the violation set reported when the storage layer rejects
// an insert on the unique email index.
func DuplicateEmail() *ViolationSet {
	s := NewViolationSet()
	s.Add(Violation{Field: FieldEmail, Code: CodeDuplicateEmail, Message: MessageDuplicateEmail})
	return s
}

// IsViolationSet unwraps err into a *ViolationSet, returning nil when err is
// not a validation failure.
func IsViolationSet(err error) *ViolationSet {
	if err == nil {
		return nil
	}

	var set *ViolationSet
	if errors.As(err, &set) {
		return set
	}

	return nil
}

func (s *ViolationSet) Add(v Violation) {
	if _, ok := s.byField[v.Field]; !ok {
		s.fields = append(s.fields, v.Field)
	}
	s.byField[v.Field] = append(s.byField[v.Field], v)
}

func (s *ViolationSet) Len() int {
	n := 0
	for _, vs := range s.byField {
		n += len(vs)
	}
	return n
}

func (s *ViolationSet) Empty() bool {
	return len(s.fields) == 0
}

func (s *ViolationSet) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *ViolationSet) For(field string) []Violation {
	return s.byField[field]
}

// Has reports whether field carries a violation with the given code.
func (s *ViolationSet) Has(field string, code Code) bool {
	for _, v := range s.byField[field] {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Messages renders the set as field -> ordered human readable reasons.
func (s *ViolationSet) Messages() map[string][]string {
	out := make(map[string][]string, len(s.fields))
	for _, f := range s.fields {
		for _, v := range s.byField[f] {
			out[f] = append(out[f], v.Message)
		}
	}
	return out
}

func (s *ViolationSet) Error() string {
	parts := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		codes := make([]string, 0, len(s.byField[f]))
		for _, v := range s.byField[f] {
			codes = append(codes, string(v.Code))
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(codes, ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
