package api

import (
	"net/http"

	"reserva/internal/booking"
	"reserva/internal/export"
	"reserva/internal/metrics"
	"reserva/internal/validate"
)

// handleExportBookings streams the bookings of a date window as an
// xlsx workbook. from is inclusive, to exclusive.
// GET /api/export/bookings?from=2025-01-01&to=2025-02-01
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_bookings")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.requireConfig(w) {
		return
	}

	q := r.URL.Query()

	var fromISO, toISO string
	var err error
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

	bookings, err := s.store.ListBookings(r.Context(), s.cfg.Restaurant.Slug, fromISO, toISO)
	if err != nil {
		s.log.Error().Err(err).Msg("booking export listing failed")
		writeAPIError(w, http.StatusInternalServerError, booking.CodeStoreError, "could not list bookings")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.xlsx"`)
	if err := export.WriteBookingsXLSX(w, bookings); err != nil {
		s.log.Error().Err(err).Msg("booking export write failed")
	}
}
