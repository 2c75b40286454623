package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/skytrail/booking-system/booking-service/application"
	"github.com/skytrail/booking-system/booking-service/domain"
)

// BookingHandlers contains booking HTTP handlers
type BookingHandlers struct {
	startBooking     *application.StartBooking
	getBookingStatus *application.GetBookingStatus
}

// NewBookingHandlers creates new booking handlers
func NewBookingHandlers(
	startBooking *application.StartBooking,
	getBookingStatus *application.GetBookingStatus,
) *BookingHandlers {
	return &BookingHandlers{
		startBooking:     startBooking,
		getBookingStatus: getBookingStatus,
	}
}

// StartBooking handles booking requests. Acceptance is 202: the saga runs
// asynchronously and the caller polls the execution for its outcome.
func (h *BookingHandlers) StartBooking(w http.ResponseWriter, r *http.Request) {
	var cmd application.StartBookingCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.startBooking.Execute(r.Context(), &cmd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(response)
}

// GetBookingStatus handles booking execution status requests
func (h *BookingHandlers) GetBookingStatus(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "id")
	if executionID == "" {
		http.Error(w, "Execution ID is required", http.StatusBadRequest)
		return
	}

	query := &application.GetBookingStatusQuery{
		ExecutionID: executionID,
	}

	response, err := h.getBookingStatus.Execute(r.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrExecutionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// RegisterRoutes registers booking routes
func (h *BookingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", h.StartBooking)
		r.Get("/{id}", h.GetBookingStatus)
	})
}
