// Package store exposes domain-level operations over the Airtable
// client. It is the single place where Airtable's loose field maps are
// normalized into typed entities; nothing above this package touches a
// raw record.
package store

import (
	"context"
	"fmt"
	"strings"

	"reserva/internal/airtable"
	"reserva/internal/models"
)

// Tables names the Airtable tables backing each entity.
type Tables struct {
	Timeslots   string
	Services    string
	Bookings    string
	Restaurants string
}

// Client is the subset of the Airtable client the store needs. Tests
// swap in a fake.
type Client interface {
	List(ctx context.Context, table string, params airtable.ListParams) ([]airtable.Record, string, error)
	ListAll(ctx context.Context, table string, params airtable.ListParams) ([]airtable.Record, error)
	FindOne(ctx context.Context, table, formula string) (*airtable.Record, error)
	Get(ctx context.Context, table, recordID string) (*airtable.Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (*airtable.Record, error)
	Update(ctx context.Context, table, recordID string, fields map[string]any) (*airtable.Record, error)
	Delete(ctx context.Context, table, recordID string) error
}

// Store reads and writes reservation data in the external spreadsheet
// store. It owns no durable state of its own; every read is a live call.
type Store struct {
	client Client
	tables Tables
}

// New constructs a store over the given client and table names.
func New(client Client, tables Tables) *Store {
	return &Store{client: client, tables: tables}
}

// escape makes a value safe to embed in a filterByFormula single-quoted
// literal.
func escape(v string) string {
	return strings.ReplaceAll(v, "'", "\\'")
}

// FindSlot returns the open slot for (restaurant, date, time), or nil
// when none is configured.
func (s *Store) FindSlot(ctx context.Context, slug, dateISO, time24h string) (*models.Slot, error) {
	formula := fmt.Sprintf(
		"AND({restaurant_slug}='%s', IS_SAME({date_iso}, '%s', 'day'), {time_24h}='%s', {is_open}=1)",
		escape(slug), escape(dateISO), escape(time24h),
	)
	rec, err := s.client.FindOne(ctx, s.tables.Timeslots, formula)
	if err != nil {
		return nil, fmt.Errorf("find slot: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	slot := slotFromRecord(rec, slug)
	return &slot, nil
}

// GetSlot re-reads a slot by its record id.
func (s *Store) GetSlot(ctx context.Context, recordID string) (*models.Slot, error) {
	rec, err := s.client.Get(ctx, s.tables.Timeslots, recordID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	slot := slotFromRecord(rec, "")
	return &slot, nil
}

// ListOpenSlots returns every open slot for the restaurant on the date.
func (s *Store) ListOpenSlots(ctx context.Context, slug, dateISO string) ([]models.Slot, error) {
	formula := fmt.Sprintf(
		"AND({restaurant_slug}='%s', IS_SAME({date_iso}, '%s', 'day'), {is_open}=1)",
		escape(slug), escape(dateISO),
	)
	records, err := s.client.ListAll(ctx, s.tables.Timeslots, airtable.ListParams{
		FilterByFormula: formula,
		Fields:          []string{"time_24h", "capacity_total", "capacity_used"},
	})
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}

	slots := make([]models.Slot, 0, len(records))
	for i := range records {
		slots = append(slots, slotFromRecord(&records[i], slug))
	}
	return slots, nil
}

// ListSlotsInView returns every slot record of the named Airtable view
// for the restaurant, following pagination to the end.
func (s *Store) ListSlotsInView(ctx context.Context, slug, view string) ([]models.Slot, error) {
	formula := fmt.Sprintf("{restaurant_slug}='%s'", escape(slug))
	records, err := s.client.ListAll(ctx, s.tables.Timeslots, airtable.ListParams{
		FilterByFormula: formula,
		View:            view,
	})
	if err != nil {
		return nil, fmt.Errorf("list slots in view: %w", err)
	}

	slots := make([]models.Slot, 0, len(records))
	for i := range records {
		slots = append(slots, slotFromRecord(&records[i], slug))
	}
	return slots, nil
}

// FindBookingByIdempotencyKey looks up a prior booking by its exact,
// case-sensitive idempotency key. Returns nil when no booking carries
// the key.
func (s *Store) FindBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	formula := fmt.Sprintf("({idempotency_key}='%s')", escape(key))
	rec, err := s.client.FindOne(ctx, s.tables.Bookings, formula)
	if err != nil {
		return nil, fmt.Errorf("find booking by idempotency key: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	booking := bookingFromRecord(rec)
	return &booking, nil
}

// CreateBooking writes a new booking record and returns the store's
// record id. Only fields the store schema accepts are sent.
func (s *Store) CreateBooking(ctx context.Context, b *models.Booking) (string, error) {
	fields := map[string]any{
		"booking_id":      b.BookingID,
		"booking_code":    b.BookingCode,
		"restaurant_slug": b.RestaurantSlug,
		"slot_id":         b.SlotKey,
		"date_iso":        b.DateISO,
		"time_24h":        b.Time24h,
		"party_size":      b.PartySize,
		"name":            b.Name,
		"email":           b.Email,
		"phone":           b.Phone,
		"status":          b.Status,
		"idempotency_key": b.IdempotencyKey,
	}
	if b.Comments != "" {
		fields["comments"] = b.Comments
	}

	rec, err := s.client.Create(ctx, s.tables.Bookings, fields)
	if err != nil {
		return "", fmt.Errorf("create booking: %w", err)
	}
	return rec.ID, nil
}

// UpdateSlotCapacityUsed writes the new committed-seats counter on a
// slot record.
func (s *Store) UpdateSlotCapacityUsed(ctx context.Context, recordID string, used int) error {
	if _, err := s.client.Update(ctx, s.tables.Timeslots, recordID, map[string]any{"capacity_used": used}); err != nil {
		return fmt.Errorf("update slot capacity: %w", err)
	}
	return nil
}

// CancelBooking marks a booking cancelled.
func (s *Store) CancelBooking(ctx context.Context, recordID string) error {
	if _, err := s.client.Update(ctx, s.tables.Bookings, recordID, map[string]any{"status": models.StatusCancelled}); err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	return nil
}

// DeleteBooking removes a booking record outright.
func (s *Store) DeleteBooking(ctx context.Context, recordID string) error {
	if err := s.client.Delete(ctx, s.tables.Bookings, recordID); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return nil
}

// FindServicesByKey returns every service record matching the composite
// lower-cased key. More than one match means ambiguous configuration;
// the caller decides how to treat it.
func (s *Store) FindServicesByKey(ctx context.Context, keyLower string) ([]models.Service, error) {
	formula := fmt.Sprintf(`{service_key_lower} = "%s"`, strings.ReplaceAll(keyLower, `"`, `\"`))
	records, err := s.client.ListAll(ctx, s.tables.Services, airtable.ListParams{FilterByFormula: formula})
	if err != nil {
		return nil, fmt.Errorf("find services by key: %w", err)
	}
	return servicesFromRecords(records), nil
}

// FindServicesByRestaurantID is the fallback lookup by internal record
// id + date + bucket, used when the restaurant reference was an opaque
// record id.
func (s *Store) FindServicesByRestaurantID(ctx context.Context, restaurantRecordID, dateISO, serviceType string) ([]models.Service, error) {
	formula := fmt.Sprintf(
		"AND({restaurant_record_id}='%s', {date_iso}='%s', {service_type}='%s')",
		escape(restaurantRecordID), escape(dateISO), escape(serviceType),
	)
	records, err := s.client.ListAll(ctx, s.tables.Services, airtable.ListParams{FilterByFormula: formula})
	if err != nil {
		return nil, fmt.Errorf("find services by restaurant id: %w", err)
	}
	return servicesFromRecords(records), nil
}

// GetService re-reads a service by its record id.
func (s *Store) GetService(ctx context.Context, recordID string) (*models.Service, error) {
	rec, err := s.client.Get(ctx, s.tables.Services, recordID)
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	svc := serviceFromRecord(rec)
	return &svc, nil
}

// UpdateServiceCapacityUsed writes the new committed-seats counter on a
// service record.
func (s *Store) UpdateServiceCapacityUsed(ctx context.Context, recordID string, used int) error {
	if _, err := s.client.Update(ctx, s.tables.Services, recordID, map[string]any{"capacity_used": used}); err != nil {
		return fmt.Errorf("update service capacity: %w", err)
	}
	return nil
}

// ResolveRestaurant turns a restaurant reference (a display name or an
// opaque record id) into a normalized name plus, when known, the record
// id.
func (s *Store) ResolveRestaurant(ctx context.Context, ref string) (name, recordID string, err error) {
	if !models.IsRecordID(ref) {
		return models.NormalizeName(ref), "", nil
	}

	rec, err := s.client.Get(ctx, s.tables.Restaurants, ref)
	if err != nil {
		// Keep the opaque reference; the fallback lookup can still use it.
		return models.NormalizeName(ref), ref, nil
	}

	n := stringField(rec.Fields, "name")
	if n == "" {
		n = stringField(rec.Fields, "restaurant_name")
	}
	if n == "" {
		n = stringField(rec.Fields, "slug")
	}
	if n == "" {
		n = ref
	}
	return models.NormalizeName(n), rec.ID, nil
}

// GetRestaurantBySlug fetches display metadata for the presentation
// layer. Returns nil when the slug is unknown.
func (s *Store) GetRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	formula := fmt.Sprintf("{slug}='%s'", escape(slug))
	rec, err := s.client.FindOne(ctx, s.tables.Restaurants, formula)
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	r := models.Restaurant{
		RecordID:     rec.ID,
		Slug:         stringField(rec.Fields, "slug"),
		Name:         stringField(rec.Fields, "name"),
		DisplayName:  stringField(rec.Fields, "display_name"),
		BrandHex:     stringField(rec.Fields, "brand_hex"),
		HeroImageURL: stringField(rec.Fields, "hero_image_url"),
	}
	if r.DisplayName == "" {
		r.DisplayName = r.Name
	}
	return &r, nil
}

// ListBookings returns bookings in [from, to) by date, for export.
// Empty bounds are open-ended.
func (s *Store) ListBookings(ctx context.Context, slug, fromISO, toISO string) ([]models.Booking, error) {
	formula := fmt.Sprintf("{restaurant_slug}='%s'", escape(slug))
	records, err := s.client.ListAll(ctx, s.tables.Bookings, airtable.ListParams{FilterByFormula: formula})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	bookings := make([]models.Booking, 0, len(records))
	for i := range records {
		b := bookingFromRecord(&records[i])
		if fromISO != "" && b.DateISO < fromISO {
			continue
		}
		if toISO != "" && b.DateISO >= toISO {
			continue
		}
		bookings = append(bookings, b)
	}
	return bookings, nil
}
