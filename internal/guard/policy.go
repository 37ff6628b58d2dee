package guard

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	RuleSafelist   = "safelist"
	RuleBlocklist  = "blocklist"
	RuleUserAgent  = "bad_user_agent"
	RuleBanned     = "fail2ban"
	RuleGeneral    = "req/ip"
	RuleBookingIP  = "bookings/ip"
	RuleBookingKey = "bookings/email"
)

const DefaultBadUserAgents = `(?i)curl|wget|python-requests|scrapy`

// Limit is a fixed-window counter allowance.
type Limit struct {
	Requests int
	Period   time.Duration
}

// Ban configures the adaptive ban: MaxRetry suspicious requests within
// FindTime block the client for BanTime.
type Ban struct {
	MaxRetry int
	FindTime time.Duration
	BanTime  time.Duration
}

type Policy struct {
	Safelist      []string
	Blocklist     []string
	BadUserAgents string
	BookingPath   string
	General       Limit
	BookingByIP   Limit
	BookingByMail Limit
	Ban           Ban
}

func DefaultPolicy() Policy {
	return Policy{
		Safelist:      []string{"127.0.0.1", "::1"},
		BadUserAgents: DefaultBadUserAgents,
		BookingPath:   "/api/v1/bookings",
		General:       Limit{Requests: 300, Period: 5 * time.Minute},
		BookingByIP:   Limit{Requests: 5, Period: time.Hour},
		BookingByMail: Limit{Requests: 3, Period: time.Hour},
		Ban:           Ban{MaxRetry: 5, FindTime: time.Minute, BanTime: time.Hour},
	}
}

// Request is the part of an inbound request the guard classifies on. Email is
// read from the submission body before validation and may be empty.
type Request struct {
	IP        string
	Method    string
	Path      string
	RawQuery  string
	UserAgent string
	Email     string
}

// Throttle counts requests that yield a non-empty discriminator.
type Throttle struct {
	Name  string
	Limit Limit
	Key   func(Request) string
}

func (p Policy) throttles() []Throttle {
	submission := func(r Request) bool {
		return r.Method == http.MethodPost && r.Path == p.BookingPath
	}
	return []Throttle{
		{Name: RuleGeneral, Limit: p.General, Key: func(r Request) string { return r.IP }},
		{Name: RuleBookingIP, Limit: p.BookingByIP, Key: func(r Request) string {
			if submission(r) {
				return r.IP
			}
			return ""
		}},
		{Name: RuleBookingKey, Limit: p.BookingByMail, Key: func(r Request) string {
			email := strings.ToLower(strings.TrimSpace(r.Email))
			if submission(r) && email != "" {
				return hashDiscriminator(email)
			}
			return ""
		}},
	}
}

var escapeSequence = regexp.MustCompile(`%[0-9a-fA-F]{2}`)

// Suspicious matches path traversal, sensitive system paths and query strings
// that still carry percent-encoded sequences after one round of unescaping.
func Suspicious(r Request) bool {
	if strings.Contains(r.Path, "..") || strings.Contains(r.Path, "/etc/passwd") {
		return true
	}
	if r.RawQuery == "" {
		return false
	}
	q, err := url.QueryUnescape(r.RawQuery)
	if err != nil {
		return true
	}
	return escapeSequence.MatchString(q)
}
