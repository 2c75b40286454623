package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/skytrail/booking-system/shared/models"
)

// PostgresBookingRepository implements domain.BookingRepository using
// PostgreSQL. The unique index on execution_id makes reservation inserts
// idempotent per saga execution.
type PostgresBookingRepository struct {
	db *sqlx.DB
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(db *sqlx.DB) *PostgresBookingRepository {
	return &PostgresBookingRepository{db: db}
}

// postgresBooking represents a booking record in the database
type postgresBooking struct {
	ID           string         `db:"id"`
	ExecutionID  string         `db:"execution_id"`
	FlightID     string         `db:"flight_id"`
	CustomerID   string         `db:"customer_id"`
	FareAmount   int64          `db:"fare_amount"`
	FareCurrency string         `db:"fare_currency"`
	Reference    sql.NullString `db:"reference"`
	Status       string         `db:"status"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	Version      int            `db:"version"`
}

// Save persists a booking record. Pending reservations insert with
// ON CONFLICT on the execution ID; status changes update the existing row.
func (r *PostgresBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	var query string
	if booking.Status == domain.BookingStatusPending {
		query = `
			INSERT INTO bookings (
				id, execution_id, flight_id, customer_id, fare_amount,
				fare_currency, reference, status, created_at, updated_at, version
			) VALUES (
				:id, :execution_id, :flight_id, :customer_id, :fare_amount,
				:fare_currency, :reference, :status, :created_at, :updated_at, :version
			)
			ON CONFLICT (execution_id) DO NOTHING`
	} else {
		query = `
			UPDATE bookings
			SET reference = :reference,
				status = :status,
				updated_at = :updated_at,
				version = :version
			WHERE id = :id`
	}

	_, err := r.db.NamedExecContext(ctx, query, r.toPostgres(booking))
	if err != nil {
		return errors.Wrap(err, "failed to save booking")
	}
	return nil
}

// FindByID finds a booking by ID
func (r *PostgresBookingRepository) FindByID(ctx context.Context, id models.ID) (*domain.Booking, error) {
	return r.findOne(ctx, "id", id.String())
}

// FindByExecutionID finds the booking reserved by a saga execution
func (r *PostgresBookingRepository) FindByExecutionID(ctx context.Context, executionID models.ID) (*domain.Booking, error) {
	return r.findOne(ctx, "execution_id", executionID.String())
}

func (r *PostgresBookingRepository) findOne(ctx context.Context, column, value string) (*domain.Booking, error) {
	query := `
		SELECT id, execution_id, flight_id, customer_id, fare_amount,
			   fare_currency, reference, status, created_at, updated_at, version
		FROM bookings
		WHERE ` + column + ` = $1`

	var pgBooking postgresBooking
	err := r.db.GetContext(ctx, &pgBooking, query, value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrBookingNotFound
		}
		return nil, errors.Wrap(err, "failed to find booking")
	}

	return r.toDomain(&pgBooking), nil
}

func (r *PostgresBookingRepository) toPostgres(booking *domain.Booking) *postgresBooking {
	return &postgresBooking{
		ID:           booking.ID.String(),
		ExecutionID:  booking.ExecutionID.String(),
		FlightID:     booking.FlightID.String(),
		CustomerID:   booking.CustomerID.String(),
		FareAmount:   booking.Fare.Amount,
		FareCurrency: booking.Fare.Currency,
		Reference:    sql.NullString{String: booking.Reference, Valid: booking.Reference != ""},
		Status:       string(booking.Status),
		CreatedAt:    booking.Timestamps.CreatedAt,
		UpdatedAt:    booking.Timestamps.UpdatedAt,
		Version:      booking.Version.Value,
	}
}

func (r *PostgresBookingRepository) toDomain(pgBooking *postgresBooking) *domain.Booking {
	return &domain.Booking{
		ID:          models.ID(pgBooking.ID),
		ExecutionID: models.ID(pgBooking.ExecutionID),
		FlightID:    models.ID(pgBooking.FlightID),
		CustomerID:  models.ID(pgBooking.CustomerID),
		Fare:        models.NewMoney(pgBooking.FareAmount, pgBooking.FareCurrency),
		Reference:   pgBooking.Reference.String,
		Status:      domain.BookingStatus(pgBooking.Status),
		Timestamps: models.Timestamps{
			CreatedAt: pgBooking.CreatedAt,
			UpdatedAt: pgBooking.UpdatedAt,
		},
		Version: models.Version{Value: pgBooking.Version},
	}
}
