// Package validate converts raw request fields into canonical values or
// fails fast with a typed, field-specific failure code. All functions are
// pure; no external calls happen here.
package validate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Failure codes surfaced verbatim in API error bodies.
const (
	CodeInvalidDateFormat     = "INVALID_DATE_FORMAT"
	CodeInvalidTimeFormat     = "INVALID_TIME_FORMAT"
	CodeInvalidPartySize      = "INVALID_PARTY_SIZE"
	CodeInvalidRestaurant     = "INVALID_RESTAURANT"
	CodeInvalidName           = "INVALID_NAME"
	CodeInvalidEmail          = "INVALID_EMAIL"
	CodeInvalidPhone          = "INVALID_PHONE"
	CodeInvalidIdempotencyKey = "INVALID_IDEMPOTENCY_KEY"
)

// Default party-size bounds; overridable through configuration.
const (
	DefaultMinPartySize = 1
	DefaultMaxPartySize = 12

	// DefaultPartySize applies to availability reads when the caller
	// omitted the value. Booking writes never default.
	DefaultPartySize = 2
)

// Failure is a client-input validation error carrying the wire code.
type Failure struct {
	Code string
	Msg  string
}

func (f *Failure) Error() string {
	if f.Msg != "" {
		return f.Code + ": " + f.Msg
	}
	return f.Code
}

func fail(code, msg string) error {
	return &Failure{Code: code, Msg: msg}
}

var (
	isoDatePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	frenchDatePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	time24hPattern    = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d$`)
	looseEmailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// DateISO accepts YYYY-MM-DD or DD/MM/YYYY and returns the canonical ISO
// form. The value must be a real calendar day, not just shape-valid.
func DateISO(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fail(CodeInvalidDateFormat, "date is required")
	}

	switch {
	case isoDatePattern.MatchString(s):
		// keep as is
	case frenchDatePattern.MatchString(s):
		parts := strings.Split(s, "/")
		s = parts[2] + "-" + parts[1] + "-" + parts[0]
	default:
		return "", fail(CodeInvalidDateFormat, "expected YYYY-MM-DD or DD/MM/YYYY")
	}

	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", fail(CodeInvalidDateFormat, "not a valid calendar date")
	}
	return s, nil
}

// DateISOOrToday is DateISO with an empty input defaulting to today in
// the given zone. Only availability reads use this; booking writes must
// always carry an explicit date.
func DateISOOrToday(input string, loc *time.Location) (string, error) {
	if strings.TrimSpace(input) == "" {
		if loc == nil {
			loc = time.UTC
		}
		return time.Now().In(loc).Format("2006-01-02"), nil
	}
	return DateISO(input)
}

// Time24h validates a 24-hour HH:MM value.
func Time24h(input string) (string, error) {
	s := strings.TrimSpace(input)
	if !time24hPattern.MatchString(s) {
		return "", fail(CodeInvalidTimeFormat, "expected HH:MM in 24-hour format")
	}
	return s, nil
}

// PartySize parses a required party size within [min, max].
func PartySize(raw string, min, max int) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fail(CodeInvalidPartySize, "party size is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fail(CodeInvalidPartySize, "party size must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return n, nil
}

// PartySizeOrDefault is PartySize with an omitted value defaulting to
// DefaultPartySize. Used by availability reads only.
func PartySizeOrDefault(raw string, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultPartySize, nil
	}
	return PartySize(raw, min, max)
}

// NonEmpty trims the value and fails with the given code when nothing is
// left.
func NonEmpty(v, code string) (string, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return "", fail(code, "value is required")
	}
	return s, nil
}

// Email checks non-emptiness plus a deliberately loose shape (something
// before an @, something after, a domain-like suffix). Strict RFC
// validation rejects real addresses and is not attempted.
func Email(v string) (string, error) {
	s, err := NonEmpty(v, CodeInvalidEmail)
	if err != nil {
		return "", err
	}
	if !looseEmailPattern.MatchString(s) {
		return "", fail(CodeInvalidEmail, "does not look like an email address")
	}
	return s, nil
}
