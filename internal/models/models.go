package models

import "strings"

// Booking statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Slot represents one bookable time unit (exact clock time) for one
// restaurant on one date. The record is owned by the external store;
// RecordID is the store's opaque record identifier needed for updates.
type Slot struct {
	RecordID       string `json:"record_id"`
	RestaurantSlug string `json:"restaurant_slug"`
	DateISO        string `json:"date_iso"` // YYYY-MM-DD
	Time24h        string `json:"time_24h"` // HH:MM
	IsOpen         bool   `json:"is_open"`
	CapacityTotal  int    `json:"capacity_total"`
	CapacityUsed   int    `json:"capacity_used"`
}

// Remaining returns the free capacity, never negative.
func (s *Slot) Remaining() int {
	left := s.CapacityTotal - s.CapacityUsed
	if left < 0 {
		return 0
	}
	return left
}

// Bookable reports whether a party of the given size fits in the slot.
func (s *Slot) Bookable(partySize int) bool {
	return s.Remaining() >= partySize
}

// Service represents a coarse bookable unit (midday or evening service)
// aggregating capacity across the time slots of that bucket.
type Service struct {
	RecordID           string `json:"record_id"`
	RestaurantName     string `json:"restaurant_name"`
	RestaurantRecordID string `json:"restaurant_record_id,omitempty"`
	DateISO            string `json:"date_iso"`
	Type               string `json:"service_type"` // midi | soir
	KeyLower           string `json:"service_key_lower"`
	CapacityTotal      int    `json:"capacity_total"`
	CapacityUsed       int    `json:"capacity_used"`
	IsFull             bool   `json:"is_full"` // staff override, independent of the counters
}

// Remaining returns the free capacity, never negative.
func (s *Service) Remaining() int {
	left := s.CapacityTotal - s.CapacityUsed
	if left < 0 {
		return 0
	}
	return left
}

// Bookable reports whether a party fits. A service flagged full by staff
// is never bookable, whatever the counters say.
func (s *Service) Bookable(partySize int) bool {
	if s.IsFull {
		return false
	}
	return s.Remaining() >= partySize
}

// Booking represents one customer's reservation against exactly one
// slot or service.
type Booking struct {
	RecordID       string `json:"record_id"`
	BookingID      string `json:"booking_id"`
	BookingCode    string `json:"booking_code"`
	RestaurantSlug string `json:"restaurant_slug"`
	SlotKey        string `json:"slot_id"` // <date>|<restaurant>|<time>
	DateISO        string `json:"date_iso"`
	Time24h        string `json:"time_24h"`
	PartySize      int    `json:"party_size"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Comments       string `json:"comments,omitempty"`
	Status         string `json:"status"`
	IdempotencyKey string `json:"idempotency_key"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// SlotKey builds the human-readable slot reference stored on a booking.
func SlotKey(dateISO, restaurantSlug, time24h string) string {
	return dateISO + "|" + restaurantSlug + "|" + time24h
}

// BookingCode derives the human-shareable code from a booking id and its
// date: a date-stamped prefix plus a short upper-case suffix of the id.
// "2025-01-15" + "6f1a2b3c-..." -> "R20250115-6F1A2B".
func BookingCode(dateISO, bookingID string) string {
	stamp := strings.ReplaceAll(dateISO, "-", "")
	suffix := strings.ReplaceAll(bookingID, "-", "")
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return "R" + stamp + "-" + strings.ToUpper(suffix)
}

// Restaurant holds the display metadata served to the presentation layer.
type Restaurant struct {
	RecordID     string `json:"record_id,omitempty"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	BrandHex     string `json:"brand_hex,omitempty"`
	HeroImageURL string `json:"hero_image_url,omitempty"`
}
