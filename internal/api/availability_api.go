package api

import (
	"errors"
	"net/http"

	"reserva/internal/availability"
	"reserva/internal/booking"
	"reserva/internal/metrics"
	"reserva/internal/validate"
)

// AvailabilityResponse is the response for GET /api/availability.
type AvailabilityResponse struct {
	Restaurant string               `json:"restaurant"`
	Date       string               `json:"date"`
	PartySize  int                  `json:"partySize"`
	Slots      []availability.Entry `json:"slots"`
}

// TimeslotsResponse is the response for GET /api/timeslots.
type TimeslotsResponse struct {
	Restaurant string                  `json:"restaurant"`
	View       string                  `json:"view"`
	Count      int                     `json:"count"`
	Slots      []availability.Timeslot `json:"slots"`
}

// handleAvailability returns the open slots for one date.
// GET /api/availability?restaurant=bistro&date=2025-01-15&partySize=2
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireConfig(w) {
		return
	}

	q := r.URL.Query()

	restaurant, err := validate.NonEmpty(q.Get("restaurant"), validate.CodeInvalidRestaurant)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	dateISO, err := validate.DateISOOrToday(q.Get("date"), s.cfg.Location())
	if err != nil {
		writeValidationError(w, err)
		return
	}
	partySize, err := validate.PartySizeOrDefault(q.Get("partySize"), s.cfg.Booking.MinPartySize, s.cfg.Booking.MaxPartySize)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	slots, err := s.reader.Slots(r.Context(), dateISO, partySize)
	if err != nil {
		s.log.Error().Err(err).Str("date", dateISO).Msg("availability read failed")
		writeAPIError(w, http.StatusInternalServerError, booking.CodeStoreError, "could not read availability")
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Restaurant: restaurant,
		Date:       dateISO,
		PartySize:  partySize,
		Slots:      slots,
	})
}

// handleTimeslots lists the raw slot records of a restaurant's view,
// optionally windowed by date (from inclusive, to exclusive).
// GET /api/timeslots?restaurantSlug=bistro&from=2025-01-15&to=2025-02-01
func (s *HTTPServer) handleTimeslots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("timeslots")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireConfig(w) {
		return
	}

	q := r.URL.Query()

	slug, err := validate.NonEmpty(q.Get("restaurantSlug"), validate.CodeInvalidRestaurant)
	if err != nil {
		writeValidationError(w, err)
		return
	}
	view, ok := s.cfg.Restaurant.Views[slug]
	if !ok {
		writeAPIError(w, http.StatusBadRequest, "UNKNOWN_RESTAURANT", "no view configured for restaurant "+slug)
		return
	}

	var fromISO, toISO string
	if raw := q.Get("from"); raw != "" {
		if fromISO, err = validate.DateISO(raw); err != nil {
			writeValidationError(w, err)
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if toISO, err = validate.DateISO(raw); err != nil {
			writeValidationError(w, err)
			return
		}
	}

	slots, err := s.reader.Timeslots(r.Context(), slug, view, fromISO, toISO)
	if err != nil {
		s.log.Error().Err(err).Str("view", view).Msg("timeslot listing failed")
		writeAPIError(w, http.StatusInternalServerError, booking.CodeStoreError, "could not list timeslots")
		return
	}

	writeJSON(w, http.StatusOK, TimeslotsResponse{
		Restaurant: slug,
		View:       view,
		Count:      len(slots),
		Slots:      slots,
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	var f *validate.Failure
	if errors.As(err, &f) {
		writeAPIError(w, http.StatusBadRequest, f.Code, f.Msg)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
