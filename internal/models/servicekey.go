package models

import (
	"regexp"
	"strconv"
	"strings"
)

// Service bucket types.
const (
	ServiceMidi = "midi"
	ServiceSoir = "soir"
)

// DefaultServiceBucketHour is the first hour that counts as the evening
// service when no override is configured.
const DefaultServiceBucketHour = 17

var spaceRun = regexp.MustCompile(`\s+`)

// NormalizeName collapses whitespace runs and trims the restaurant name
// so the composite service key matches however staff typed it.
func NormalizeName(name string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(name, " "))
}

// ServiceTypeFor buckets an HH:MM time into midi or soir using the given
// hour threshold.
func ServiceTypeFor(time24h string, bucketHour int) string {
	h, _, _ := strings.Cut(time24h, ":")
	hour, err := strconv.Atoi(h)
	if err != nil {
		hour = 0
	}
	if hour < bucketHour {
		return ServiceMidi
	}
	return ServiceSoir
}

// ServiceKeyLower builds the lower-cased composite lookup key for a
// service record: "<name> | <YYYY-MM-DD> | <type>".
func ServiceKeyLower(restaurantName, dateISO, serviceType string) string {
	return strings.ToLower(NormalizeName(restaurantName) + " | " + dateISO + " | " + serviceType)
}

// NormalizeDateISO strips any time component from an ISO timestamp,
// keeping just YYYY-MM-DD.
func NormalizeDateISO(dateISO string) string {
	d, _, _ := strings.Cut(dateISO, "T")
	return d
}

var recordIDPattern = regexp.MustCompile(`^rec[a-zA-Z0-9]{14}$`)

// IsRecordID reports whether the value looks like an Airtable record id
// rather than a display name.
func IsRecordID(v string) bool {
	return recordIDPattern.MatchString(v)
}
