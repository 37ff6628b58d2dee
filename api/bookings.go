package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/Domenick1991/staybooking/internal/service/booking"
	"github.com/Domenick1991/staybooking/internal/validation"
	"github.com/gin-gonic/gin"
)

const internalErrorMessage = "internal server error"

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	Booking *booking.CreateBookingInput `json:"booking"`
}

type bookingResponse struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Nationality   string `json:"nationality"`
	University    string `json:"university"`
	BirthDate     string `json:"birth_date"`
	Interest      string `json:"interest"`
	RoomType      string `json:"room_type"`
	ArrivalDate   string `json:"arrival_date"`
	DepartureDate string `json:"departure_date"`
	Comments      string `json:"comments"`
	CreatedAt     string `json:"created_at"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if status, msg := decodeJSON(c, &req); status != 0 {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	if req.Booking == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "param is missing or the value is empty: booking"})
		return
	}

	created, err := h.service.Submit(c.Request.Context(), *req.Booking)
	if err != nil {
		if set := validation.IsViolationSet(err); set != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": set.Messages()})
			return
		}
		slog.Error("booking_create_failed", "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalErrorMessage})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"booking": toBookingResponse(created)})
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.List(c.Request.Context())
	if err != nil {
		slog.Error("booking_list_failed", "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": internalErrorMessage})
		return
	}

	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

// decodeJSON returns a non-zero status when the body is not a JSON object.
func decodeJSON(c *gin.Context, v any) (int, string) {
	if c.ContentType() != gin.MIMEJSON {
		return http.StatusBadRequest, "content type must be application/json"
	}
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, "request body too large"
		}
		return http.StatusBadRequest, "malformed JSON body"
	}
	return 0, ""
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:            b.ID,
		FirstName:     b.FirstName,
		LastName:      b.LastName,
		Email:         b.Email,
		Nationality:   b.Nationality,
		University:    b.University,
		BirthDate:     b.BirthDate.Format(domain.DateLayout),
		Interest:      b.Interest,
		RoomType:      string(b.RoomType),
		ArrivalDate:   b.ArrivalDate.Format(domain.DateLayout),
		DepartureDate: b.DepartureDate.Format(domain.DateLayout),
		Comments:      b.Comments,
		CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
	}
}
