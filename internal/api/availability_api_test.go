package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reserva/internal/availability"
)

func TestAvailability(t *testing.T) {
	rd := &mockReader{entries: []availability.Entry{
		{Time: "12:00", CapacityLeft: 6, IsBookable: true},
		{Time: "19:00", CapacityLeft: 1, IsBookable: false},
	}}
	srv := newTestServer(nil, nil, rd, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/availability?restaurant=bistro&date=2025-01-15&partySize=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["restaurant"] != "bistro" || body["date"] != "2025-01-15" {
		t.Errorf("echo fields = %v / %v", body["restaurant"], body["date"])
	}
	if body["partySize"] != float64(2) {
		t.Errorf("partySize = %v, want 2", body["partySize"])
	}
	slots, ok := body["slots"].([]any)
	if !ok || len(slots) != 2 {
		t.Fatalf("slots = %v, want 2 entries", body["slots"])
	}
}

func TestAvailabilityDefaults(t *testing.T) {
	rd := &mockReader{}
	srv := newTestServer(nil, nil, rd, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/availability?restaurant=bistro", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["partySize"] != float64(2) {
		t.Errorf("default partySize = %v, want 2", body["partySize"])
	}
	if rd.lastDate == "" {
		t.Error("date did not default to today")
	}
}

func TestAvailabilityEmptyIsOK(t *testing.T) {
	srv := newTestServer(nil, nil, &mockReader{entries: []availability.Entry{}}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/availability?restaurant=bistro&date=2025-01-15", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	slots, ok := body["slots"].([]any)
	if !ok {
		t.Fatalf("slots missing or null: %v", body["slots"])
	}
	if len(slots) != 0 {
		t.Errorf("slots = %v, want empty array", slots)
	}
}

func TestAvailabilityValidation(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"missing restaurant", "date=2025-01-15", "INVALID_RESTAURANT"},
		{"bad date", "restaurant=bistro&date=2025-13-01", "INVALID_DATE_FORMAT"},
		{"bad party size", "restaurant=bistro&partySize=0", "INVALID_PARTY_SIZE"},
		{"party size not a number", "restaurant=bistro&partySize=two", "INVALID_PARTY_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(nil, nil, &mockReader{}, nil)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/availability?"+tt.query, nil))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decodeBody(t, rec); body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
		})
	}
}

func TestAvailabilityStoreError(t *testing.T) {
	srv := newTestServer(nil, nil, &mockReader{err: errors.New("airtable: http 502")}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/availability?restaurant=bistro&date=2025-01-15", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "STORE_ERROR" {
		t.Errorf("code = %v, want STORE_ERROR", body["code"])
	}
}

func TestTimeslots(t *testing.T) {
	rd := &mockReader{slots: []availability.Timeslot{
		{ID: "rec1", DateISO: "2025-01-15", Time24h: "19:00", IsOpen: true, Capacity: 10, RemainingCapacity: 7},
	}}
	srv := newTestServer(nil, nil, rd, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/timeslots?restaurantSlug=bistro&from=2025-01-15&to=2025-02-01", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["view"] != "v_timeslots_bistro" {
		t.Errorf("view = %v", body["view"])
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
	if rd.lastView != "v_timeslots_bistro" {
		t.Errorf("reader view = %q", rd.lastView)
	}
}

func TestTimeslotsUnknownRestaurant(t *testing.T) {
	srv := newTestServer(nil, nil, &mockReader{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/timeslots?restaurantSlug=nowhere", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "UNKNOWN_RESTAURANT" {
		t.Errorf("code = %v, want UNKNOWN_RESTAURANT", body["code"])
	}
}

func TestTimeslotsBadWindow(t *testing.T) {
	srv := newTestServer(nil, nil, &mockReader{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/timeslots?restaurantSlug=bistro&from=15-01-2025", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "INVALID_DATE_FORMAT" {
		t.Errorf("code = %v, want INVALID_DATE_FORMAT", body["code"])
	}
}
