package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"reserva/internal/booking"
	"reserva/internal/metrics"
	"reserva/internal/validate"
)

// BookRequest is the request body for POST /api/book.
type BookRequest struct {
	Date           string    `json:"date"` // YYYY-MM-DD or DD/MM/YYYY
	Time           string    `json:"time"` // HH:MM, 24h
	PartySize      rawNumber `json:"partySize"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Comments       string    `json:"comments,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey"`
}

// rawNumber keeps a numeric field as text whether the client sent a
// JSON number or a quoted string, so shape problems surface as the
// field's own validation code instead of a generic body error.
type rawNumber string

func (n *rawNumber) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*n = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = unquoted
	}
	*n = rawNumber(s)
	return nil
}

// BookResponse is the success body for POST /api/book.
type BookResponse struct {
	Status      string `json:"status"`
	BookingID   string `json:"booking_id"`
	BookingCode string `json:"booking_code"`
}

// handleBook creates a reservation.
// POST /api/book
func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("book")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	if !s.requireConfig(w) {
		return
	}

	var body BookRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
		return
	}

	req, err := s.validateBookRequest(&body)
	if err != nil {
		writeValidationError(w, err)
		return
	}

	result, err := s.booker.Book(r.Context(), *req)
	if err != nil {
		var f *booking.Failure
		if errors.As(err, &f) {
			writeAPIError(w, f.Status, f.Code, f.Msg)
			return
		}
		s.log.Error().Err(err).Msg("booking failed with untyped error")
		writeError(w, http.StatusInternalServerError, "booking failed")
		return
	}

	writeJSON(w, http.StatusOK, BookResponse{
		Status:      "ok",
		BookingID:   result.BookingID,
		BookingCode: result.BookingCode,
	})
}

// validateBookRequest normalizes every client field before any external
// call. The restaurant is never taken from the payload.
func (s *HTTPServer) validateBookRequest(body *BookRequest) (*booking.Request, error) {
	dateISO, err := validate.DateISO(body.Date)
	if err != nil {
		return nil, err
	}
	time24h, err := validate.Time24h(body.Time)
	if err != nil {
		return nil, err
	}
	partySize, err := validate.PartySize(string(body.PartySize), s.cfg.Booking.MinPartySize, s.cfg.Booking.MaxPartySize)
	if err != nil {
		return nil, err
	}
	name, err := validate.NonEmpty(body.Name, validate.CodeInvalidName)
	if err != nil {
		return nil, err
	}
	email, err := validate.Email(body.Email)
	if err != nil {
		return nil, err
	}
	phone, err := validate.NonEmpty(body.Phone, validate.CodeInvalidPhone)
	if err != nil {
		return nil, err
	}
	idemKey, err := validate.NonEmpty(body.IdempotencyKey, validate.CodeInvalidIdempotencyKey)
	if err != nil {
		return nil, err
	}

	return &booking.Request{
		DateISO:        dateISO,
		Time24h:        time24h,
		PartySize:      partySize,
		Name:           name,
		Email:          email,
		Phone:          phone,
		Comments:       body.Comments,
		IdempotencyKey: idemKey,
	}, nil
}
