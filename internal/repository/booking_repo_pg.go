package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateEmail is returned by Create when the unique e-mail index rejects
// the insert.
var ErrDuplicateEmail = errors.New("email already booked")

type BookingRepository interface {
	Create(ctx context.Context, booking domain.ValidatedBooking) (*domain.Booking, error)
	List(ctx context.Context) ([]domain.Booking, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	Migrate(ctx context.Context) error
}

const uniqueViolation = "23505"

const pgSchema = `
CREATE TABLE IF NOT EXISTS bookings (
	id             BIGSERIAL PRIMARY KEY,
	first_name     VARCHAR(50)   NOT NULL,
	last_name      VARCHAR(50)   NOT NULL,
	email          VARCHAR(255)  NOT NULL,
	nationality    VARCHAR(100)  NOT NULL,
	university     VARCHAR(200)  NOT NULL,
	birth_date     DATE          NOT NULL,
	interest       VARCHAR(100)  NOT NULL DEFAULT '',
	room_type      VARCHAR(32)   NOT NULL,
	arrival_date   DATE          NOT NULL,
	departure_date DATE          NOT NULL,
	comments       VARCHAR(1000) NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ   NOT NULL DEFAULT now(),
	CHECK (arrival_date < departure_date)
);
CREATE UNIQUE INDEX IF NOT EXISTS bookings_email_lower_idx ON bookings (lower(email));
`

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("migrate bookings: %w", err)
	}
	return nil
}

func (r *PGBookingRepository) Create(ctx context.Context, validated domain.ValidatedBooking) (*domain.Booking, error) {
	b := validated.Booking()
	err := r.db.QueryRow(ctx, `INSERT INTO bookings
		(first_name, last_name, email, nationality, university, birth_date, interest, room_type, arrival_date, departure_date, comments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		b.FirstName, b.LastName, b.Email, b.Nationality, b.University, b.BirthDate,
		b.Interest, string(b.RoomType), b.ArrivalDate, b.DepartureDate, b.Comments).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) List(ctx context.Context) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT id, first_name, last_name, email, nationality, university, birth_date,
		interest, room_type, arrival_date, departure_date, comments, created_at
		FROM bookings ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		var b domain.Booking
		var roomType string
		if err := rows.Scan(&b.ID, &b.FirstName, &b.LastName, &b.Email, &b.Nationality, &b.University, &b.BirthDate,
			&b.Interest, &roomType, &b.ArrivalDate, &b.DepartureDate, &b.Comments, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.RoomType = domain.RoomType(roomType)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE lower(email) = lower($1))`, email).Scan(&taken)
	return taken, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ BookingRepository = (*PGBookingRepository)(nil)
