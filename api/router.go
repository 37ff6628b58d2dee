package api

import (
	"fmt"
	"net/http"

	"github.com/Domenick1991/staybooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

const BookingsPath = "/api/v1/bookings"

type RouterConfig struct {
	AllowedOrigins []string
	TrustedProxies []string
	HSTS           bool
	MaxBodyBytes   int64
	// Docs serves everything under /docs/ when set.
	Docs http.Handler
}

// NewRouter wires the middleware chain and the API routes. evaluator may be
// nil, in which case no abuse guard runs.
func NewRouter(cfg RouterConfig, bookings booking.BookingUseCase, evaluator Evaluator) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	r.Use(
		RequestID(),
		AccessLog(),
		Recovery(),
		SecurityHeaders(cfg.HSTS),
		CORS(cfg.AllowedOrigins),
	)
	if cfg.MaxBodyBytes > 0 {
		r.Use(BodyLimit(cfg.MaxBodyBytes))
	}
	if evaluator != nil {
		r.Use(Guard(evaluator, BookingsPath))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is live!"})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	v1 := r.Group("/api/v1")
	NewBookingHandler(bookings).Register(v1.Group("/bookings"))
	NewRoomTypeHandler().Register(v1.Group("/room_types"))
	v1.OPTIONS("/*path", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	if cfg.Docs != nil {
		r.GET("/docs/*any", gin.WrapH(cfg.Docs))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r, nil
}
