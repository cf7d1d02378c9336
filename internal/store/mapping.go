package store

import (
	"strconv"
	"strings"

	"reserva/internal/airtable"
	"reserva/internal/models"
)

// Field accessors tolerant of Airtable's typing: numbers arrive as
// float64, checkboxes as bool or 1/0, and absent fields as nil.

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intField(fields map[string]any, key string) (int, bool) {
	switch v := fields[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func boolField(fields map[string]any, key string, fallback bool) bool {
	switch v := fields[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return fallback
	}
}

func slotFromRecord(rec *airtable.Record, defaultSlug string) models.Slot {
	f := rec.Fields

	dateISO := stringField(f, "date_iso")
	if dateISO == "" {
		if startAt := stringField(f, "start_at"); startAt != "" {
			dateISO = models.NormalizeDateISO(startAt)
		}
	}

	slug := stringField(f, "restaurant_slug")
	if slug == "" {
		slug = defaultSlug
	}

	total, ok := intField(f, "capacity_total")
	if !ok {
		total, _ = intField(f, "capacity")
	}

	used, ok := intField(f, "capacity_used")
	if !ok {
		// Some views expose remaining_capacity instead of the used
		// counter; recover used = total - remaining.
		if remaining, ok := intField(f, "remaining_capacity"); ok {
			used = total - remaining
		}
	}

	time24h := stringField(f, "time_24h")
	if len(time24h) == 4 {
		// "9:30" -> "09:30"; the canonical form is fixed-width.
		time24h = "0" + time24h
	}

	return models.Slot{
		RecordID:       rec.ID,
		RestaurantSlug: slug,
		DateISO:        models.NormalizeDateISO(dateISO),
		Time24h:        time24h,
		IsOpen:         boolField(f, "is_open", true),
		CapacityTotal:  total,
		CapacityUsed:   used,
	}
}

func bookingFromRecord(rec *airtable.Record) models.Booking {
	f := rec.Fields
	partySize, _ := intField(f, "party_size")
	return models.Booking{
		RecordID:       rec.ID,
		BookingID:      stringField(f, "booking_id"),
		BookingCode:    stringField(f, "booking_code"),
		RestaurantSlug: stringField(f, "restaurant_slug"),
		SlotKey:        stringField(f, "slot_id"),
		DateISO:        models.NormalizeDateISO(stringField(f, "date_iso")),
		Time24h:        stringField(f, "time_24h"),
		PartySize:      partySize,
		Name:           stringField(f, "name"),
		Email:          stringField(f, "email"),
		Phone:          stringField(f, "phone"),
		Comments:       stringField(f, "comments"),
		Status:         stringField(f, "status"),
		IdempotencyKey: stringField(f, "idempotency_key"),
		CreatedAt:      rec.CreatedTime,
	}
}

func serviceFromRecord(rec *airtable.Record) models.Service {
	f := rec.Fields
	total, _ := intField(f, "capacity_total")
	used, _ := intField(f, "capacity_used")
	return models.Service{
		RecordID:           rec.ID,
		RestaurantName:     stringField(f, "restaurant_name"),
		RestaurantRecordID: stringField(f, "restaurant_record_id"),
		DateISO:            models.NormalizeDateISO(stringField(f, "date_iso")),
		Type:               stringField(f, "service_type"),
		KeyLower:           stringField(f, "service_key_lower"),
		CapacityTotal:      total,
		CapacityUsed:       used,
		IsFull:             boolField(f, "is_full", false),
	}
}

func servicesFromRecords(records []airtable.Record) []models.Service {
	services := make([]models.Service, 0, len(records))
	for i := range records {
		services = append(services, serviceFromRecord(&records[i]))
	}
	return services
}
