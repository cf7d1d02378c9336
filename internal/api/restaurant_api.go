package api

import (
	"net/http"

	"reserva/internal/booking"
	"reserva/internal/metrics"
	"reserva/internal/models"
	"reserva/internal/validate"
)

// handleRestaurant returns the display metadata for a slug.
// GET /api/restaurant?slug=bistro
func (s *HTTPServer) handleRestaurant(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("restaurant")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireConfig(w) {
		return
	}

	slug, err := validate.NonEmpty(r.URL.Query().Get("slug"), validate.CodeInvalidRestaurant)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	restaurant, err := s.store.GetRestaurantBySlug(r.Context(), slug)
	if err != nil {
		s.log.Error().Err(err).Str("slug", slug).Msg("restaurant lookup failed")
		writeAPIError(w, http.StatusInternalServerError, booking.CodeStoreError, "could not read restaurant")
		return
	}
	if restaurant == nil {
		writeAPIError(w, http.StatusNotFound, "RESTAURANT_NOT_FOUND", "unknown restaurant "+slug)
		return
	}

	writeJSON(w, http.StatusOK, restaurant)
}

// DebugServiceResponse reports how a (restaurant, date, time) triple
// resolves to a midi/soir service record.
type DebugServiceResponse struct {
	Restaurant         string           `json:"restaurant"`
	ResolvedName       string           `json:"resolved_name"`
	RestaurantRecordID string           `json:"restaurant_record_id,omitempty"`
	Date               string           `json:"date"`
	Time               string           `json:"time"`
	Bucket             string           `json:"bucket"`
	ServiceKeyLower    string           `json:"service_key_lower"`
	KeyMatches         []models.Service `json:"key_matches"`
	FallbackMatches    []models.Service `json:"fallback_matches"`
}

// handleDebugService is a read-only diagnostic for service resolution.
// GET /api/debug/service?restaurant=bistro&date=2025-01-15&time=19:30
func (s *HTTPServer) handleDebugService(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("debug_service")
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
	time24h, err := validate.Time24h(q.Get("time"))
	if err != nil {
		writeValidationError(w, err)
		return
	}

	ctx := r.Context()
	bucket := models.ServiceTypeFor(time24h, s.cfg.Booking.ServiceBucketHour)

	name, recordID, err := s.store.ResolveRestaurant(ctx, restaurant)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, booking.CodeStoreError, "restaurant resolution failed")
		return
	}

	keyLower := models.ServiceKeyLower(name, dateISO, bucket)
	keyMatches, err := s.store.FindServicesByKey(ctx, keyLower)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, booking.CodeStoreError, "service lookup failed")
		return
	}

	var fallbackMatches []models.Service
	if recordID != "" {
		fallbackMatches, err = s.store.FindServicesByRestaurantID(ctx, recordID, dateISO, bucket)
		if err != nil {
			writeAPIError(w, http.StatusInternalServerError, booking.CodeStoreError, "service fallback lookup failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, DebugServiceResponse{
		Restaurant:         restaurant,
		ResolvedName:       name,
		RestaurantRecordID: recordID,
		Date:               dateISO,
		Time:               time24h,
		Bucket:             bucket,
		ServiceKeyLower:    keyLower,
		KeyMatches:         emptyIfNil(keyMatches),
		FallbackMatches:    emptyIfNil(fallbackMatches),
	})
}

func emptyIfNil(services []models.Service) []models.Service {
	if services == nil {
		return []models.Service{}
	}
	return services
}
