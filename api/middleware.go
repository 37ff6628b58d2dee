package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/staybooking/internal/guard"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	contentSecurityPolicy = "default-src 'self' https:; script-src 'self' https:; style-src 'self' https: 'unsafe-inline'; " +
		"img-src 'self' https: data:; font-src 'self' https: data:; connect-src 'self' https:; " +
		"object-src 'none'; frame-src 'none'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"

	// The Swagger UI bundle needs inline bootstrap code.
	docsContentSecurityPolicy = "default-src 'self' https:; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:; object-src 'none'; frame-ancestors 'none'; base-uri 'self'"

	rateLimitMessage = "Rate limit exceeded. Please try again later."

	requestIDHeader = "X-Request-ID"
)

// SecurityHeaders sets the static response headers on every response.
func SecurityHeaders(hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		h.Set("X-Download-Options", "noopen")
		if strings.HasPrefix(c.Request.URL.Path, "/docs/") {
			h.Set("Content-Security-Policy", docsContentSecurityPolicy)
		} else {
			h.Set("Content-Security-Policy", contentSecurityPolicy)
		}
		if hsts {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}
		c.Next()
	}
}

// CORS answers preflight requests and rejects requests whose Origin is not on
// the allowlist. Requests without an Origin header pass through.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}
		if _, ok := allowed[strings.TrimRight(origin, "/")]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
			return
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if requested := c.GetHeader("Access-Control-Request-Headers"); requested != "" {
				h.Set("Access-Control-Allow-Headers", requested)
			} else {
				h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
			}
			h.Set("Access-Control-Max-Age", "7200")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Evaluator classifies a request before it reaches any handler.
type Evaluator interface {
	Evaluate(ctx context.Context, req guard.Request) (guard.Decision, error)
}

// Guard runs the abuse guard. For booking submissions it peeks at the JSON
// body for the e-mail and restores the body for the handler. When the guard
// store is unavailable the request is let through and the error logged.
func Guard(evaluator Evaluator, bookingPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := guard.Request{
			IP:        c.ClientIP(),
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			RawQuery:  c.Request.URL.RawQuery,
			UserAgent: c.Request.UserAgent(),
		}
		if req.Method == http.MethodPost && req.Path == bookingPath {
			req.Email = peekEmail(c)
		}

		decision, err := evaluator.Evaluate(c.Request.Context(), req)
		if err != nil {
			slog.Error("guard_unavailable", "error", err, "path", req.Path)
			c.Next()
			return
		}
		if decision.Allowed() {
			c.Next()
			return
		}

		retryAfter := int64(decision.RetryAfter / time.Second)
		h := c.Writer.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
		h.Set("RateLimit-Remaining", "0")
		h.Set("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		h.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       rateLimitMessage,
			"retry_after": retryAfter,
		})
	}
}

func peekEmail(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	data, err := io.ReadAll(c.Request.Body)
	var replay io.Reader = bytes.NewReader(data)
	if err != nil {
		replay = io.MultiReader(replay, failingReader{err: err})
	}
	c.Request.Body = io.NopCloser(replay)
	if err != nil {
		return ""
	}

	var envelope struct {
		Booking struct {
			Email json.RawMessage `json:"email"`
		} `json:"booking"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	var email string
	if err := json.Unmarshal(envelope.Booking.Email, &email); err != nil {
		return ""
	}
	return email
}

// failingReader replays a read error to the next reader of the body.
type failingReader struct {
	err error
}

func (r failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

// BodyLimit caps request bodies at n bytes.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// RequestID tags the request with an X-Request-ID, reusing a well-formed
// inbound one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString("request_id"),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			attrs = append(attrs, "trace_id", sc.TraceID().String())
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			slog.Error("access", attrs...)
		default:
			slog.Info("access", attrs...)
		}
	}
}

// Recovery turns a panic into a generic 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if re := recover(); re != nil {
				slog.Error("panic", "error", fmt.Sprint(re), "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": internalErrorMessage})
			}
		}()
		c.Next()
	}
}
