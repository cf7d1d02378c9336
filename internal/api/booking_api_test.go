package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"reserva/internal/booking"
)

func validBookBody() map[string]any {
	return map[string]any{
		"date":           "2025-01-15",
		"time":           "19:30",
		"partySize":      2,
		"name":           "Alice Martin",
		"email":          "alice@example.org",
		"phone":          "+32470000000",
		"idempotencyKey": "idem-1",
	}
}

func postBook(t *testing.T, srv *HTTPServer, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/book", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestBookSuccess(t *testing.T) {
	bk := &mockBooker{result: &booking.Result{BookingID: "uuid-1", BookingCode: "R20250115-6F1A2B"}}
	srv := newTestServer(nil, bk, nil, nil)

	rec := postBook(t, srv, validBookBody())

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["booking_id"] != "uuid-1" || body["booking_code"] != "R20250115-6F1A2B" {
		t.Errorf("ids = %v / %v", body["booking_id"], body["booking_code"])
	}

	if bk.lastReq == nil {
		t.Fatal("booker never called")
	}
	if bk.lastReq.DateISO != "2025-01-15" || bk.lastReq.Time24h != "19:30" || bk.lastReq.PartySize != 2 {
		t.Errorf("unexpected request: %+v", bk.lastReq)
	}
}

func TestBookAcceptsFrenchDate(t *testing.T) {
	bk := &mockBooker{result: &booking.Result{BookingID: "uuid-1", BookingCode: "R20250115-6F1A2B"}}
	srv := newTestServer(nil, bk, nil, nil)

	body := validBookBody()
	body["date"] = "15/01/2025"
	rec := postBook(t, srv, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	if bk.lastReq.DateISO != "2025-01-15" {
		t.Errorf("DateISO = %q, want canonical 2025-01-15", bk.lastReq.DateISO)
	}
}

func TestBookAcceptsQuotedPartySize(t *testing.T) {
	bk := &mockBooker{result: &booking.Result{BookingID: "uuid-1", BookingCode: "R20250115-6F1A2B"}}
	srv := newTestServer(nil, bk, nil, nil)

	// Some clients serialize form values as strings; "4" must book a
	// party of four, not bounce as a malformed body.
	body := validBookBody()
	body["partySize"] = "4"
	rec := postBook(t, srv, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	if bk.lastReq == nil || bk.lastReq.PartySize != 4 {
		t.Errorf("request = %+v, want party size 4", bk.lastReq)
	}
}

func TestBookValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(map[string]any)
		wantCode string
	}{
		{"invalid month wrong format", func(b map[string]any) { b["date"] = "2025-13-01" }, "INVALID_DATE_FORMAT"},
		{"missing date", func(b map[string]any) { b["date"] = "" }, "INVALID_DATE_FORMAT"},
		{"bad time", func(b map[string]any) { b["time"] = "25:00" }, "INVALID_TIME_FORMAT"},
		{"party size zero", func(b map[string]any) { b["partySize"] = 0 }, "INVALID_PARTY_SIZE"},
		{"party size too large", func(b map[string]any) { b["partySize"] = 13 }, "INVALID_PARTY_SIZE"},
		{"party size missing", func(b map[string]any) { delete(b, "partySize") }, "INVALID_PARTY_SIZE"},
		{"party size not a number", func(b map[string]any) { b["partySize"] = "abc" }, "INVALID_PARTY_SIZE"},
		{"party size null", func(b map[string]any) { b["partySize"] = nil }, "INVALID_PARTY_SIZE"},
		{"missing name", func(b map[string]any) { b["name"] = "  " }, "INVALID_NAME"},
		{"bad email", func(b map[string]any) { b["email"] = "not-an-email" }, "INVALID_EMAIL"},
		{"missing phone", func(b map[string]any) { b["phone"] = "" }, "INVALID_PHONE"},
		{"missing idempotency key", func(b map[string]any) { b["idempotencyKey"] = "" }, "INVALID_IDEMPOTENCY_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bk := &mockBooker{}
			srv := newTestServer(nil, bk, nil, nil)

			body := validBookBody()
			tt.mutate(body)
			rec := postBook(t, srv, body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400\n%s", rec.Code, rec.Body.String())
			}
			resp := decodeBody(t, rec)
			if resp["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", resp["code"], tt.wantCode)
			}
			if resp["status"] != "error" {
				t.Errorf("status = %v, want error", resp["status"])
			}
			if bk.lastReq != nil {
				t.Error("booker called despite validation failure")
			}
		})
	}
}

func TestBookBusinessFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"slot full", &booking.Failure{Code: booking.CodeSlotFull, Status: 409, Msg: "not enough seats"}, 409, "SLOT_FULL"},
		{"slot not found", &booking.Failure{Code: booking.CodeSlotNotFound, Status: 409, Msg: "slot closed"}, 409, "SLOT_NOT_FOUND"},
		{"service full", &booking.Failure{Code: booking.CodeServiceFull, Status: 422, Msg: "service is full"}, 422, "SERVICE_FULL"},
		{"capacity update failed", &booking.Failure{Code: booking.CodeCapacityUpdateFailed, Status: 500, Msg: "could not update capacity"}, 500, "CAPACITY_UPDATE_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(nil, &mockBooker{err: tt.err}, nil, nil)

			rec := postBook(t, srv, validBookBody())

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if body := decodeBody(t, rec); body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
		})
	}
}

func TestBookRejectsUnknownFields(t *testing.T) {
	srv := newTestServer(nil, &mockBooker{}, nil, nil)

	body := validBookBody()
	body["restaurant"] = "someone-elses-restaurant"
	rec := postBook(t, srv, body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBookMethodNotAllowed(t *testing.T) {
	srv := newTestServer(nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/book", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestBookMissingEnv(t *testing.T) {
	cfg := testConfig()
	cfg.Restaurant.Slug = ""
	srv := newTestServer(cfg, &mockBooker{}, nil, nil)

	rec := postBook(t, srv, validBookBody())

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != "MISSING_ENV" {
		t.Errorf("code = %v, want MISSING_ENV", body["code"])
	}
}
