// Package api exposes the reservation HTTP JSON surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"reserva/internal/availability"
	"reserva/internal/booking"
	"reserva/internal/config"
	"reserva/internal/models"
)

// Booker is the booking write surface. Tests inject a mock.
type Booker interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// Reader is the availability read surface.
type Reader interface {
	Slots(ctx context.Context, dateISO string, partySize int) ([]availability.Entry, error)
	Timeslots(ctx context.Context, slug, view, fromISO, toISO string) ([]availability.Timeslot, error)
}

// MetaStore covers the non-booking store reads the API serves directly.
type MetaStore interface {
	GetRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error)
	ListBookings(ctx context.Context, slug, fromISO, toISO string) ([]models.Booking, error)
	ResolveRestaurant(ctx context.Context, ref string) (name, recordID string, err error)
	FindServicesByKey(ctx context.Context, keyLower string) ([]models.Service, error)
	FindServicesByRestaurantID(ctx context.Context, restaurantRecordID, dateISO, serviceType string) ([]models.Service, error)
}

// HTTPServer handles the public JSON API.
type HTTPServer struct {
	cfg    *config.Config
	booker Booker
	reader Reader
	store  MetaStore
	log    *zerolog.Logger
}

func NewHTTPServer(cfg *config.Config, booker Booker, reader Reader, store MetaStore, log *zerolog.Logger) *HTTPServer {
	return &HTTPServer{cfg: cfg, booker: booker, reader: reader, store: store, log: log}
}

// Handler builds the route table. Responses are never cacheable; slot
// capacity changes under the client's feet.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ping", s.handlePing)
	mux.HandleFunc("/api/availability", s.handleAvailability)
	mux.HandleFunc("/api/timeslots", s.handleTimeslots)
	mux.HandleFunc("/api/book", s.handleBook)
	mux.HandleFunc("/api/restaurant", s.handleRestaurant)
	mux.HandleFunc("/api/debug/service", s.handleDebugService)
	mux.HandleFunc("/api/export/bookings", s.handleExportBookings)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		mux.ServeHTTP(w, r)
	})
}

// handlePing is a trivial liveness echo.
// GET /api/ping
func (s *HTTPServer) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireConfig answers 500 MISSING_ENV and reports false when the
// store configuration is incomplete. Core endpoints fail fast here
// rather than proceeding with partial configuration.
func (s *HTTPServer) requireConfig(w http.ResponseWriter) bool {
	missing := s.cfg.MissingEnv()
	if len(missing) == 0 {
		return true
	}
	writeAPIError(w, http.StatusInternalServerError, booking.CodeMissingEnv,
		"missing configuration: "+strings.Join(missing, ", "))
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing useful left to do.
		return
	}
}

type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Status: "error", Code: code, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeAPIError(w, status, booking.CodeInternal, message)
}
