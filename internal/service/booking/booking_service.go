package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/Domenick1991/staybooking/internal/kafka"
	"github.com/Domenick1991/staybooking/internal/repository"
	"github.com/Domenick1991/staybooking/internal/validation"
)

type BookingUseCase interface {
	Submit(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	List(ctx context.Context) ([]domain.Booking, error)
}

type Validator interface {
	Validate(ctx context.Context, c validation.Candidate) (domain.ValidatedBooking, error)
}

type Cache interface {
	GetBookings(ctx context.Context) ([]domain.Booking, error)
	SetBookings(ctx context.Context, bookings []domain.Booking) error
	InvalidateBookings(ctx context.Context) error
}

type Producer interface {
	PublishWithRetry(ctx context.Context, topic, key string, value interface{}, maxRetries int) error
}

const publishAttempts = 3

// CreateBookingInput is the submitted booking as decoded from the request
// body. Dates are ISO strings and nothing is checked yet.
type CreateBookingInput struct {
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
}

type BookingService struct {
	bookings           repository.BookingRepository
	validator          Validator
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
}

type BookingServiceOption func(*BookingService)

func WithCache(cache Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithProducer(producer Producer, bookingTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.bookingTopic = bookingTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	validator Validator,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:  bookings,
		validator: validator,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Submit validates and stores one booking. Validation failures, including a
// late collision on the unique e-mail index, come back as *validation.ViolationSet.
// The event publish and the cache invalidation run only after the insert has
// committed and their failures do not fail the submission.
func (s *BookingService) Submit(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	validated, err := s.validator.Validate(ctx, validation.Candidate(input))
	if err != nil {
		if set := validation.IsViolationSet(err); set != nil {
			return nil, set
		}
		return nil, fmt.Errorf("validate booking: %w", err)
	}

	booking, err := s.bookings.Create(ctx, validated)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, validation.DuplicateEmail()
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	if err := s.publish(ctx, kafka.EventBookingCreated, booking); err != nil {
		slog.Warn("booking_event_publish_failed", "booking_id", booking.ID, "error", err)
	}
	if s.cache != nil {
		if err := s.cache.InvalidateBookings(ctx); err != nil {
			slog.Warn("bookings_cache_invalidate_failed", "error", err)
		}
	}
	return booking, nil
}

// List returns bookings newest first, read through the cache when one is set.
func (s *BookingService) List(ctx context.Context) ([]domain.Booking, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetBookings(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	bookings, err := s.bookings.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetBookings(ctx, bookings)
	}
	return bookings, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) error {
	if s.producer == nil || s.bookingTopic == "" {
		return nil
	}
	event := kafka.NewBookingEvent(eventType, booking)
	key := strconv.FormatInt(booking.ID, 10)
	if err := s.producer.PublishWithRetry(ctx, s.bookingTopic, key, event, publishAttempts); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.PublishWithRetry(ctx, s.notificationsTopic, key, event, publishAttempts)
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)
