package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS bookings (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name     TEXT NOT NULL,
	last_name      TEXT NOT NULL,
	email          TEXT NOT NULL,
	email_key      TEXT NOT NULL UNIQUE,
	nationality    TEXT NOT NULL,
	university     TEXT NOT NULL,
	birth_date     TEXT NOT NULL,
	interest       TEXT NOT NULL DEFAULT '',
	room_type      TEXT NOT NULL,
	arrival_date   TEXT NOT NULL,
	departure_date TEXT NOT NULL,
	comments       TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);
`

// created_at is stored fixed-width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteBookingRepository stores bookings through database/sql with the
// modernc.org/sqlite driver registered by the caller.
type SQLiteBookingRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteBookingRepository(db *sql.DB) *SQLiteBookingRepository {
	return &SQLiteBookingRepository{db: db, now: time.Now}
}

func (r *SQLiteBookingRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate bookings: %w", err)
	}
	return nil
}

func (r *SQLiteBookingRepository) Create(ctx context.Context, validated domain.ValidatedBooking) (*domain.Booking, error) {
	b := validated.Booking()
	b.CreatedAt = r.now().UTC()

	res, err := r.db.ExecContext(ctx, `INSERT INTO bookings
		(first_name, last_name, email, email_key, nationality, university, birth_date, interest, room_type, arrival_date, departure_date, comments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.FirstName, b.LastName, b.Email, emailKey(b.Email), b.Nationality, b.University, b.BirthDate.Format(domain.DateLayout),
		b.Interest, string(b.RoomType), b.ArrivalDate.Format(domain.DateLayout), b.DepartureDate.Format(domain.DateLayout),
		b.Comments, b.CreatedAt.Format(sqliteTimeLayout))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	b.ID = id
	return &b, nil
}

func (r *SQLiteBookingRepository) List(ctx context.Context) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, first_name, last_name, email, nationality, university, birth_date,
		interest, room_type, arrival_date, departure_date, comments, created_at
		FROM bookings ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		var b domain.Booking
		var roomType, birth, arrival, departure, created string
		if err := rows.Scan(&b.ID, &b.FirstName, &b.LastName, &b.Email, &b.Nationality, &b.University, &birth,
			&b.Interest, &roomType, &arrival, &departure, &b.Comments, &created); err != nil {
			return nil, err
		}
		b.RoomType = domain.RoomType(roomType)
		if b.BirthDate, err = domain.ParseDate(birth); err != nil {
			return nil, fmt.Errorf("booking %d birth_date: %w", b.ID, err)
		}
		if b.ArrivalDate, err = domain.ParseDate(arrival); err != nil {
			return nil, fmt.Errorf("booking %d arrival_date: %w", b.ID, err)
		}
		if b.DepartureDate, err = domain.ParseDate(departure); err != nil {
			return nil, fmt.Errorf("booking %d departure_date: %w", b.ID, err)
		}
		if b.CreatedAt, err = time.Parse(sqliteTimeLayout, created); err != nil {
			return nil, fmt.Errorf("booking %d created_at: %w", b.ID, err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *SQLiteBookingRepository) EmailTaken(ctx context.Context, email string) (bool, error) {
	var taken bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE email_key = ?)`, emailKey(email)).Scan(&taken)
	return taken, err
}

// emailKey is the value the unique index is built on. SQLite's NOCASE only
// folds ASCII, so folding happens here to match lower(email) in Postgres.
func emailKey(email string) string {
	return strings.ToLower(email)
}

var _ BookingRepository = (*SQLiteBookingRepository)(nil)
