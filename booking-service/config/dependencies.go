package config

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/skytrail/booking-system/booking-service/activities"
	"github.com/skytrail/booking-system/booking-service/application"
	"github.com/skytrail/booking-system/booking-service/gateway"
	"github.com/skytrail/booking-system/booking-service/handlers"
	"github.com/skytrail/booking-system/booking-service/infrastructure"
	sharedinfra "github.com/skytrail/booking-system/shared/infrastructure"
	"github.com/skytrail/booking-system/booking-service/saga"
	"github.com/skytrail/booking-system/shared/telemetry"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	FlightRepository    infrastructure.PostgresFlightRepository
	BookingRepository   infrastructure.PostgresBookingRepository
	ExecutionRepository infrastructure.PostgresExecutionRepository

	// Saga runtime
	PaymentGateway *gateway.MockGateway
	Notifier       *infrastructure.SNSNotifier
	Activities     *activities.Activities
	Machine        *saga.Machine
	Orchestrator   *saga.Orchestrator

	// Use Cases
	StartBooking     *application.StartBooking
	GetBookingStatus *application.GetBookingStatus

	// HTTP Handlers
	BookingHandlers *handlers.BookingHandlers

	// Event Handlers
	BookingEventHandlers *handlers.BookingEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSPublisherAdapter
	EventSubscriber *sharedinfra.SQSSubscriberAdapter
	EventStore      *sharedinfra.PostgresEventStore

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.BookingServiceConfig.WithOTLPEndpoint(config.Telemetry.OTLPEndpoint)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			log.Printf("Failed to initialize telemetry: %v", err)
			// Continue without telemetry rather than failing
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	// Initialize database
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	deps.DB = db

	// Initialize AWS infrastructure
	eventPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(config.AWS.SQSQueueURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	// Initialize repositories
	deps.FlightRepository = *infrastructure.NewPostgresFlightRepository(db)
	deps.BookingRepository = *infrastructure.NewPostgresBookingRepository(db)
	deps.ExecutionRepository = *infrastructure.NewPostgresExecutionRepository(db)
	deps.EventStore = sharedinfra.NewPostgresEventStore(db)

	// Initialize saga runtime
	deps.PaymentGateway = gateway.NewMockGateway(time.Duration(config.Gateway.MockDelayMillis) * time.Millisecond)
	deps.Notifier = infrastructure.NewSNSNotifier(eventPublisher)
	deps.Activities = activities.NewActivities(
		&deps.FlightRepository,
		&deps.BookingRepository,
		deps.PaymentGateway,
		deps.Notifier,
		eventPublisher,
	)
	deps.Machine = saga.NewMachine(deps.Activities,
		saga.WithGlobalTimeout(time.Duration(config.Saga.GlobalTimeoutSeconds)*time.Second),
	)

	orchestrator, err := saga.NewOrchestrator(
		deps.Machine,
		&deps.ExecutionRepository,
		eventPublisher,
		saga.WithMaxConcurrentExecutions(config.Saga.MaxConcurrentExecutions),
		saga.WithEventStore(deps.EventStore),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	deps.Orchestrator = orchestrator

	// Initialize use cases
	deps.StartBooking = application.NewStartBooking(deps.Orchestrator)
	deps.GetBookingStatus = application.NewGetBookingStatus(deps.Orchestrator)

	// Initialize handlers
	deps.BookingHandlers = handlers.NewBookingHandlers(deps.StartBooking, deps.GetBookingStatus)
	deps.BookingEventHandlers = handlers.NewBookingEventHandlers(deps.StartBooking)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	// Let in-flight sagas finish before tearing anything down.
	if d.Orchestrator != nil {
		d.Orchestrator.Wait()
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
