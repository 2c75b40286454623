package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/booking-service/domain"
	"github.com/skytrail/booking-system/booking-service/saga"
	"github.com/skytrail/booking-system/shared/models"
)

// PostgresExecutionRepository implements saga.ExecutionRepository using
// PostgreSQL. An execution row is inserted at acceptance and finalized
// exactly once with its terminal outcome.
type PostgresExecutionRepository struct {
	db *sqlx.DB
}

// NewPostgresExecutionRepository creates a new PostgresExecutionRepository
func NewPostgresExecutionRepository(db *sqlx.DB) *PostgresExecutionRepository {
	return &PostgresExecutionRepository{db: db}
}

// postgresExecution represents a saga execution in the database
type postgresExecution struct {
	ID               string         `db:"id"`
	FlightID         string         `db:"flight_id"`
	CustomerID       string         `db:"customer_id"`
	Status           string         `db:"status"`
	BookingReference sql.NullString `db:"booking_reference"`
	FailedStep       sql.NullString `db:"failed_step"`
	ErrorKind        sql.NullString `db:"error_kind"`
	ErrorMessage     sql.NullString `db:"error_message"`
	CreatedAt        time.Time      `db:"created_at"`
	CompletedAt      sql.NullTime   `db:"completed_at"`
}

// SavePending records an accepted execution before it starts running
func (r *PostgresExecutionRepository) SavePending(ctx context.Context, ec *saga.ExecutionContext) error {
	query := `
		INSERT INTO saga_executions (id, flight_id, customer_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		ec.ExecutionID.String(),
		ec.OutboundFlightID.String(),
		ec.CustomerID.String(),
		string(saga.OutcomePending),
		ec.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save pending execution")
	}
	return nil
}

// SaveOutcome finalizes an execution with its terminal outcome. The status
// guard keeps a finalized execution immutable.
func (r *PostgresExecutionRepository) SaveOutcome(ctx context.Context, outcome *saga.Outcome) error {
	query := `
		UPDATE saga_executions
		SET status = $2,
			booking_reference = $3,
			failed_step = $4,
			error_kind = $5,
			error_message = $6,
			completed_at = $7
		WHERE id = $1 AND status = $8`

	result, err := r.db.ExecContext(ctx, query,
		outcome.ExecutionID.String(),
		string(outcome.Status),
		nullString(outcome.BookingReference),
		nullString(outcome.FailedStep),
		nullString(string(outcome.ErrorKind)),
		nullString(outcome.ErrorMessage),
		outcome.CompletedAt,
		string(saga.OutcomePending),
	)
	if err != nil {
		return errors.Wrap(err, "failed to save outcome")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check saved outcome")
	}
	if rows == 0 {
		return errors.New("execution already finalized or unknown")
	}
	return nil
}

// FindOutcome looks up an execution's outcome by ID
func (r *PostgresExecutionRepository) FindOutcome(ctx context.Context, executionID models.ID) (*saga.Outcome, error) {
	query := `
		SELECT id, flight_id, customer_id, status, booking_reference,
			   failed_step, error_kind, error_message, created_at, completed_at
		FROM saga_executions
		WHERE id = $1`

	var pgExecution postgresExecution
	err := r.db.GetContext(ctx, &pgExecution, query, executionID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, errors.Wrap(err, "failed to find execution")
	}

	return r.toDomain(&pgExecution), nil
}

func (r *PostgresExecutionRepository) toDomain(pgExecution *postgresExecution) *saga.Outcome {
	outcome := &saga.Outcome{
		ExecutionID:      models.ID(pgExecution.ID),
		Status:           saga.OutcomeStatus(pgExecution.Status),
		BookingReference: pgExecution.BookingReference.String,
		FailedStep:       pgExecution.FailedStep.String,
		ErrorKind:        domain.ErrorKind(pgExecution.ErrorKind.String),
		ErrorMessage:     pgExecution.ErrorMessage.String,
	}
	if pgExecution.CompletedAt.Valid {
		outcome.CompletedAt = pgExecution.CompletedAt.Time
	}
	return outcome
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
