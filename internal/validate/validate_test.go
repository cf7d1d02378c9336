package validate

import (
	"errors"
	"testing"
	"time"
)

func failureCode(t *testing.T, err error) string {
	t.Helper()
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *Failure, got %T (%v)", err, err)
	}
	return f.Code
}

func TestDateISO(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantCode string
	}{
		{
			name:     "iso passes through",
			input:    "2025-01-15",
			expected: "2025-01-15",
		},
		{
			name:     "french converts to iso",
			input:    "15/01/2025",
			expected: "2025-01-15",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  2025-01-15 ",
			expected: "2025-01-15",
		},
		{
			name:     "empty date fails",
			input:    "",
			wantCode: CodeInvalidDateFormat,
		},
		{
			name:     "invalid month rejected",
			input:    "2025-13-01",
			wantCode: CodeInvalidDateFormat,
		},
		{
			name:     "invalid day rejected",
			input:    "31/02/2025",
			wantCode: CodeInvalidDateFormat,
		},
		{
			name:     "wrong shape rejected",
			input:    "15-01-2025",
			wantCode: CodeInvalidDateFormat,
		},
		{
			name:     "garbage rejected",
			input:    "tomorrow",
			wantCode: CodeInvalidDateFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DateISO(tt.input)
			if tt.wantCode != "" {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if code := failureCode(t, err); code != tt.wantCode {
					t.Errorf("code = %q, want %q", code, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("date = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDateISO_FormatsAgree(t *testing.T) {
	// DD/MM/YYYY must land on the identical calendar day as YYYY-MM-DD.
	iso, err := DateISO("2025-03-07")
	if err != nil {
		t.Fatal(err)
	}
	french, err := DateISO("07/03/2025")
	if err != nil {
		t.Fatal(err)
	}
	if iso != french {
		t.Errorf("formats disagree: %q vs %q", iso, french)
	}
}

func TestDateISOOrToday(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Brussels")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	got, err := DateISOOrToday("", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Now().In(loc).Format("2006-01-02")
	if got != want {
		t.Errorf("today = %q, want %q", got, want)
	}

	// Explicit value still validated.
	if _, err := DateISOOrToday("not-a-date", loc); err == nil {
		t.Error("expected error for invalid explicit date")
	}
}

func TestTime24h(t *testing.T) {
	valid := []string{"00:00", "09:30", "17:00", "23:59"}
	for _, v := range valid {
		if _, err := Time24h(v); err != nil {
			t.Errorf("Time24h(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{"", "24:00", "17:60", "7:30", "17h30", "17:3", "midnight"}
	for _, v := range invalid {
		_, err := Time24h(v)
		if err == nil {
			t.Errorf("Time24h(%q) expected error", v)
			continue
		}
		if code := failureCode(t, err); code != CodeInvalidTimeFormat {
			t.Errorf("Time24h(%q) code = %q", v, code)
		}
	}
}

func TestPartySize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected int
		wantErr  bool
	}{
		{name: "minimum", raw: "1", expected: 1},
		{name: "maximum", raw: "12", expected: 12},
		{name: "typical", raw: "4", expected: 4},
		{name: "below minimum", raw: "0", wantErr: true},
		{name: "above maximum", raw: "13", wantErr: true},
		{name: "non numeric", raw: "two", wantErr: true},
		{name: "empty required", raw: "", wantErr: true},
		{name: "negative", raw: "-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PartySize(tt.raw, DefaultMinPartySize, DefaultMaxPartySize)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				if code := failureCode(t, err); code != CodeInvalidPartySize {
					t.Errorf("code = %q", code)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("party size = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestPartySizeOrDefault(t *testing.T) {
	got, err := PartySizeOrDefault("", DefaultMinPartySize, DefaultMaxPartySize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DefaultPartySize {
		t.Errorf("default = %d, want %d", got, DefaultPartySize)
	}

	if _, err := PartySizeOrDefault("99", DefaultMinPartySize, DefaultMaxPartySize); err == nil {
		t.Error("out-of-range explicit value must still fail")
	}
}

func TestNonEmpty(t *testing.T) {
	got, err := NonEmpty("  Alice ", CodeInvalidName)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Alice" {
		t.Errorf("value = %q", got)
	}

	_, err = NonEmpty("   ", CodeInvalidName)
	if err == nil {
		t.Fatal("expected error for blank value")
	}
	if code := failureCode(t, err); code != CodeInvalidName {
		t.Errorf("code = %q", code)
	}
}

func TestEmail(t *testing.T) {
	valid := []string{"a@b.co", "alice.smith@example.org", "x+y@sub.domain.be"}
	for _, v := range valid {
		if _, err := Email(v); err != nil {
			t.Errorf("Email(%q) unexpected error: %v", v, err)
		}
	}

	invalid := []string{"", "alice", "alice@", "@example.org", "a@b", "a b@c.d"}
	for _, v := range invalid {
		_, err := Email(v)
		if err == nil {
			t.Errorf("Email(%q) expected error", v)
			continue
		}
		if code := failureCode(t, err); code != CodeInvalidEmail {
			t.Errorf("Email(%q) code = %q", v, code)
		}
	}
}
