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

// PostgresFlightRepository implements domain.FlightRepository using
// PostgreSQL. Seat reservation is a single conditional UPDATE so concurrent
// executions race on the precondition, never on a lock.
type PostgresFlightRepository struct {
	db *sqlx.DB
}

// NewPostgresFlightRepository creates a new PostgresFlightRepository
func NewPostgresFlightRepository(db *sqlx.DB) *PostgresFlightRepository {
	return &PostgresFlightRepository{db: db}
}

// postgresFlight represents a flight in the database
type postgresFlight struct {
	ID             string    `db:"id"`
	FlightNumber   string    `db:"flight_number"`
	Origin         string    `db:"origin"`
	Destination    string    `db:"destination"`
	SeatAllocation int       `db:"seat_allocation"`
	FareAmount     int64     `db:"fare_amount"`
	FareCurrency   string    `db:"fare_currency"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	Version        int       `db:"version"`
}

// Save inserts or updates a flight
func (r *PostgresFlightRepository) Save(ctx context.Context, flight *domain.Flight) error {
	query := `
		INSERT INTO flights (
			id, flight_number, origin, destination, seat_allocation,
			fare_amount, fare_currency, created_at, updated_at, version
		) VALUES (
			:id, :flight_number, :origin, :destination, :seat_allocation,
			:fare_amount, :fare_currency, :created_at, :updated_at, :version
		)
		ON CONFLICT (id) DO UPDATE SET
			seat_allocation = EXCLUDED.seat_allocation,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version`

	_, err := r.db.NamedExecContext(ctx, query, r.toPostgres(flight))
	if err != nil {
		return errors.Wrap(err, "failed to save flight")
	}
	return nil
}

// FindByID finds a flight by ID
func (r *PostgresFlightRepository) FindByID(ctx context.Context, id models.ID) (*domain.Flight, error) {
	query := `
		SELECT id, flight_number, origin, destination, seat_allocation,
			   fare_amount, fare_currency, created_at, updated_at, version
		FROM flights
		WHERE id = $1`

	var pgFlight postgresFlight
	err := r.db.GetContext(ctx, &pgFlight, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrFlightNotFound
		}
		return nil, errors.Wrap(err, "failed to find flight")
	}

	return r.toDomain(&pgFlight), nil
}

// ReserveSeat decrements the seat allocation if any seat remains. The
// WHERE clause is the precondition: zero rows updated with an existing
// flight means the seats are gone.
func (r *PostgresFlightRepository) ReserveSeat(ctx context.Context, id models.ID) (*domain.Flight, error) {
	query := `
		UPDATE flights
		SET seat_allocation = seat_allocation - 1,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $1 AND seat_allocation > 0
		RETURNING id, flight_number, origin, destination, seat_allocation,
				  fare_amount, fare_currency, created_at, updated_at, version`

	var pgFlight postgresFlight
	err := r.db.GetContext(ctx, &pgFlight, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			if _, findErr := r.FindByID(ctx, id); findErr != nil {
				return nil, findErr
			}
			return nil, domain.ErrNoSeatsAvailable
		}
		return nil, errors.Wrap(err, "failed to reserve seat")
	}

	flight := r.toDomain(&pgFlight)
	flight.RecordSeatReserved()
	return flight, nil
}

// ReleaseSeat returns a seat to the allocation
func (r *PostgresFlightRepository) ReleaseSeat(ctx context.Context, id models.ID) (*domain.Flight, error) {
	query := `
		UPDATE flights
		SET seat_allocation = seat_allocation + 1,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $1
		RETURNING id, flight_number, origin, destination, seat_allocation,
				  fare_amount, fare_currency, created_at, updated_at, version`

	var pgFlight postgresFlight
	err := r.db.GetContext(ctx, &pgFlight, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrFlightNotFound
		}
		return nil, errors.Wrap(err, "failed to release seat")
	}

	flight := r.toDomain(&pgFlight)
	flight.RecordSeatReleased()
	return flight, nil
}

func (r *PostgresFlightRepository) toPostgres(flight *domain.Flight) *postgresFlight {
	return &postgresFlight{
		ID:             flight.ID.String(),
		FlightNumber:   flight.FlightNumber,
		Origin:         flight.Origin,
		Destination:    flight.Destination,
		SeatAllocation: flight.SeatAllocation,
		FareAmount:     flight.Fare.Amount,
		FareCurrency:   flight.Fare.Currency,
		CreatedAt:      flight.Timestamps.CreatedAt,
		UpdatedAt:      flight.Timestamps.UpdatedAt,
		Version:        flight.Version.Value,
	}
}

func (r *PostgresFlightRepository) toDomain(pgFlight *postgresFlight) *domain.Flight {
	return &domain.Flight{
		ID:             models.ID(pgFlight.ID),
		FlightNumber:   pgFlight.FlightNumber,
		Origin:         pgFlight.Origin,
		Destination:    pgFlight.Destination,
		SeatAllocation: pgFlight.SeatAllocation,
		Fare:           models.NewMoney(pgFlight.FareAmount, pgFlight.FareCurrency),
		Timestamps: models.Timestamps{
			CreatedAt: pgFlight.CreatedAt,
			UpdatedAt: pgFlight.UpdatedAt,
		},
		Version: models.Version{Value: pgFlight.Version},
	}
}
