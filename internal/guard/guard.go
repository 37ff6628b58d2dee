package guard

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"
)

type Outcome int

const (
	Allowed Outcome = iota
	Throttled
	Blocked
)

func (o Outcome) String() string {
	switch o {
	case Throttled:
		return "throttled"
	case Blocked:
		return "blocked"
	default:
		return "allowed"
	}
}

// Decision is the guard's verdict for one request. For throttled requests Limit
// and Period describe the rule that fired and ResetAt is the end of its window.
// Blocked requests report the general limit and the end of the current general
// window so they cannot be told apart from throttled ones.
type Decision struct {
	Outcome    Outcome
	Rule       string
	Limit      int
	Period     time.Duration
	ResetAt    time.Time
	RetryAfter time.Duration
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allowed
}

// Store is an externally owned counting cache shared by every instance.
// Increment must be atomic per key and set the key to expire after ttl.
type Store interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Block(ctx context.Context, key string, ttl time.Duration) error
	BlockRemaining(ctx context.Context, key string) (time.Duration, error)
}

// StatsRecorder receives every decision. Failures are ignored.
type StatsRecorder interface {
	RecordDecision(ctx context.Context, rule string, outcome string, at time.Time) error
}

type Guard struct {
	store     Store
	stats     StatsRecorder
	policy    Policy
	throttles []Throttle
	safe      map[string]struct{}
	blocked   map[string]struct{}
	badAgents *regexp.Regexp
	prefix    string
	now       func() time.Time
	warnings  *rate.Limiter
}

type Option func(*Guard)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

func WithStats(stats StatsRecorder) Option {
	return func(g *Guard) { g.stats = stats }
}

func WithKeyPrefix(prefix string) Option {
	return func(g *Guard) { g.prefix = prefix }
}

// WithWarningRate caps how many rejection warnings are logged per second.
func WithWarningRate(perSecond float64, burst int) Option {
	return func(g *Guard) { g.warnings = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func New(store Store, policy Policy, opts ...Option) (*Guard, error) {
	g := &Guard{
		store:     store,
		policy:    policy,
		throttles: policy.throttles(),
		safe:      toSet(policy.Safelist),
		blocked:   toSet(policy.Blocklist),
		prefix:    "guard",
		now:       time.Now,
		warnings:  rate.NewLimiter(rate.Limit(10), 20),
	}
	if policy.BadUserAgents != "" {
		re, err := regexp.Compile(policy.BadUserAgents)
		if err != nil {
			return nil, fmt.Errorf("compile bad user agent pattern: %w", err)
		}
		g.badAgents = re
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Evaluate classifies req. The order is safelist, blocklists, adaptive ban
// bookkeeping, then throttles; the first rule that rejects wins and later
// throttles are not counted. A non-nil error means the store could not be
// consulted and no verdict was reached.
func (g *Guard) Evaluate(ctx context.Context, req Request) (Decision, error) {
	now := g.now()

	if _, ok := g.safe[req.IP]; ok {
		return g.finish(ctx, req, Decision{Outcome: Allowed, Rule: RuleSafelist}, now), nil
	}

	if _, ok := g.blocked[req.IP]; ok {
		return g.finish(ctx, req, g.blockDecision(RuleBlocklist, now), now), nil
	}

	remaining, err := g.store.BlockRemaining(ctx, g.banKey(req.IP))
	if err != nil {
		return Decision{}, fmt.Errorf("read ban for %s: %w", req.IP, err)
	}
	if remaining > 0 {
		return g.finish(ctx, req, g.blockDecision(RuleBanned, now), now), nil
	}

	if g.badAgents != nil && req.UserAgent != "" && g.badAgents.MatchString(req.UserAgent) {
		return g.finish(ctx, req, g.blockDecision(RuleUserAgent, now), now), nil
	}

	if Suspicious(req) {
		if err := g.recordSuspicious(ctx, req, now); err != nil {
			return Decision{}, err
		}
	}

	for _, th := range g.throttles {
		discriminator := th.Key(req)
		if discriminator == "" || th.Limit.Requests <= 0 || th.Limit.Period <= 0 {
			continue
		}
		count, resetAt, err := g.hit(ctx, th.Name, discriminator, th.Limit.Period, now)
		if err != nil {
			return Decision{}, err
		}
		if count > int64(th.Limit.Requests) {
			return g.finish(ctx, req, Decision{
				Outcome:    Throttled,
				Rule:       th.Name,
				Limit:      th.Limit.Requests,
				Period:     th.Limit.Period,
				ResetAt:    resetAt,
				RetryAfter: retryAfter(resetAt, now),
			}, now), nil
		}
	}

	return g.finish(ctx, req, Decision{Outcome: Allowed}, now), nil
}

// recordSuspicious counts a suspicious request and bans the client once the
// count reaches MaxRetry. The request that trips the ban is not itself blocked.
func (g *Guard) recordSuspicious(ctx context.Context, req Request, now time.Time) error {
	ban := g.policy.Ban
	if ban.MaxRetry <= 0 || ban.FindTime <= 0 || ban.BanTime <= 0 {
		return nil
	}
	count, _, err := g.hit(ctx, RuleBanned, req.IP, ban.FindTime, now)
	if err != nil {
		return err
	}
	if count < int64(ban.MaxRetry) {
		return nil
	}
	if err := g.store.Block(ctx, g.banKey(req.IP), ban.BanTime); err != nil {
		return fmt.Errorf("ban %s: %w", req.IP, err)
	}
	slog.Warn("guard_ban_placed", "ip", req.IP, "path", req.Path, "ban_time", ban.BanTime.String())
	return nil
}

// hit increments the fixed window counter that contains now. Windows are
// aligned to multiples of period since the Unix epoch.
func (g *Guard) hit(ctx context.Context, rule, discriminator string, period time.Duration, now time.Time) (int64, time.Time, error) {
	seconds := windowSeconds(period)
	window := now.Unix() / seconds
	key := fmt.Sprintf("%s:%s:%s:%d", g.prefix, rule, discriminator, window)

	count, err := g.store.Increment(ctx, key, time.Duration(seconds)*time.Second)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("increment %s: %w", rule, err)
	}
	return count, time.Unix((window+1)*seconds, 0), nil
}

func windowSeconds(period time.Duration) int64 {
	seconds := int64(period / time.Second)
	if seconds <= 0 {
		return 1
	}
	return seconds
}

// windowEnd is the boundary of the fixed window of length period holding now.
func windowEnd(period time.Duration, now time.Time) time.Time {
	seconds := windowSeconds(period)
	return time.Unix((now.Unix()/seconds+1)*seconds, 0)
}

// blockDecision reports a block exactly like a general throttle firing in the
// current window, so the response does not reveal how long the block lasts.
func (g *Guard) blockDecision(rule string, now time.Time) Decision {
	resetAt := windowEnd(g.policy.General.Period, now)
	return Decision{
		Outcome:    Blocked,
		Rule:       rule,
		Limit:      g.policy.General.Requests,
		Period:     g.policy.General.Period,
		ResetAt:    resetAt,
		RetryAfter: retryAfter(resetAt, now),
	}
}

func (g *Guard) finish(ctx context.Context, req Request, d Decision, now time.Time) Decision {
	if g.stats != nil {
		rule := d.Rule
		if rule == "" {
			rule = "pass"
		}
		_ = g.stats.RecordDecision(ctx, rule, d.Outcome.String(), now)
	}
	if !d.Allowed() && g.warnings.Allow() {
		slog.Warn("guard_rejected",
			"outcome", d.Outcome.String(),
			"rule", d.Rule,
			"ip", req.IP,
			"method", req.Method,
			"path", req.Path,
		)
	}
	return d
}

func (g *Guard) banKey(ip string) string {
	return g.prefix + ":blocked:" + ip
}

func retryAfter(resetAt, now time.Time) time.Duration {
	d := resetAt.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d.Round(time.Second)
}

// hashDiscriminator keeps raw identities such as e-mail addresses out of the
// counting cache.
func hashDiscriminator(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[item] = struct{}{}
	}
	return out
}
