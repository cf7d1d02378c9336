// Package availability reads bookable time slots for display. It has
// no side effects; booking writes live in the booking package.
package availability

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"reserva/internal/metrics"
	"reserva/internal/models"
)

// Store is the read surface the availability paths need.
type Store interface {
	ListOpenSlots(ctx context.Context, slug, dateISO string) ([]models.Slot, error)
	ListSlotsInView(ctx context.Context, slug, view string) ([]models.Slot, error)
	ResolveRestaurant(ctx context.Context, ref string) (name, recordID string, err error)
	FindServicesByKey(ctx context.Context, keyLower string) ([]models.Service, error)
	FindServicesByRestaurantID(ctx context.Context, restaurantRecordID, dateISO, serviceType string) ([]models.Service, error)
}

// Options configures the reader.
type Options struct {
	RestaurantSlug string
	// ServiceMode makes the midi/soir bucket record authoritative for
	// the capacity shown on each slot.
	ServiceMode       bool
	ServiceBucketHour int
}

// Entry is one displayable time slot.
type Entry struct {
	Time         string `json:"time"`
	CapacityLeft int    `json:"capacityLeft"`
	IsBookable   bool   `json:"isBookable"`
}

// Timeslot is the raw range-listing shape.
type Timeslot struct {
	ID                string `json:"id"`
	DateISO           string `json:"date_iso"`
	Time24h           string `json:"time_24h"`
	IsOpen            bool   `json:"is_open"`
	Capacity          int    `json:"capacity"`
	RemainingCapacity int    `json:"remaining_capacity"`
}

// Reader serves availability and timeslot queries.
type Reader struct {
	store Store
	opts  Options
	log   *zerolog.Logger
}

func New(store Store, opts Options, log *zerolog.Logger) *Reader {
	if opts.ServiceBucketHour <= 0 {
		opts.ServiceBucketHour = models.DefaultServiceBucketHour
	}
	return &Reader{store: store, opts: opts, log: log}
}

// Slots returns every open slot for the date, sorted by time, with the
// remaining capacity and a bookability flag for the given party size.
func (r *Reader) Slots(ctx context.Context, dateISO string, partySize int) ([]Entry, error) {
	slots, err := r.store.ListOpenSlots(ctx, r.opts.RestaurantSlug, dateISO)
	if err != nil {
		metrics.IncStoreError("list_open_slots")
		return nil, err
	}

	slots = usable(slots)
	sortSlots(slots)

	var buckets *bucketCache
	if r.opts.ServiceMode {
		buckets = r.newBucketCache(ctx, dateISO)
	}

	entries := make([]Entry, 0, len(slots))
	for _, s := range slots {
		left := s.Remaining()
		bookable := s.Bookable(partySize)

		if buckets != nil {
			if svc, ok := buckets.lookup(s.Time24h); ok {
				// The bucket record is authoritative in service mode.
				left = svc.Remaining()
				bookable = svc.Bookable(partySize)
			} else {
				// Conservative fallback to the raw record's values; the
				// slot must not silently claim unlimited capacity.
				r.log.Warn().
					Str("date", dateISO).
					Str("time", s.Time24h).
					Msg("service bucket lookup failed, using raw slot capacity")
			}
		}

		entries = append(entries, Entry{Time: s.Time24h, CapacityLeft: left, IsBookable: bookable})
	}
	return entries, nil
}

// Timeslots lists the slot records of a view, optionally windowed by
// date. from is inclusive, to exclusive; lexicographic comparison is
// correct for fixed-width ISO dates.
func (r *Reader) Timeslots(ctx context.Context, slug, view, fromISO, toISO string) ([]Timeslot, error) {
	slots, err := r.store.ListSlotsInView(ctx, slug, view)
	if err != nil {
		metrics.IncStoreError("list_slots_in_view")
		return nil, err
	}

	slots = usable(slots)
	sortSlots(slots)

	out := make([]Timeslot, 0, len(slots))
	for _, s := range slots {
		if fromISO != "" && s.DateISO < fromISO {
			continue
		}
		if toISO != "" && s.DateISO >= toISO {
			continue
		}
		out = append(out, Timeslot{
			ID:                s.RecordID,
			DateISO:           s.DateISO,
			Time24h:           s.Time24h,
			IsOpen:            s.IsOpen,
			Capacity:          s.CapacityTotal,
			RemainingCapacity: s.Remaining(),
		})
	}
	return out, nil
}

func usable(slots []models.Slot) []models.Slot {
	kept := slots[:0]
	for _, s := range slots {
		if s.Time24h == "" {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

func sortSlots(slots []models.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].DateISO != slots[j].DateISO {
			return slots[i].DateISO < slots[j].DateISO
		}
		return slots[i].Time24h < slots[j].Time24h
	})
}

// bucketCache resolves each midi/soir service record at most once per
// query.
type bucketCache struct {
	reader  *Reader
	ctx     context.Context
	dateISO string
	cached  map[string]*models.Service
}

func (r *Reader) newBucketCache(ctx context.Context, dateISO string) *bucketCache {
	return &bucketCache{
		reader:  r,
		ctx:     ctx,
		dateISO: models.NormalizeDateISO(dateISO),
		cached:  make(map[string]*models.Service),
	}
}

// lookup returns the bucket service for a slot time. A negative result
// (lookup error, zero or ambiguous matches) is cached as absent.
func (c *bucketCache) lookup(time24h string) (*models.Service, bool) {
	serviceType := models.ServiceTypeFor(time24h, c.reader.opts.ServiceBucketHour)
	if svc, ok := c.cached[serviceType]; ok {
		return svc, svc != nil
	}

	svc := c.resolve(serviceType)
	c.cached[serviceType] = svc
	return svc, svc != nil
}

func (c *bucketCache) resolve(serviceType string) *models.Service {
	r := c.reader

	name, recordID, err := r.store.ResolveRestaurant(c.ctx, r.opts.RestaurantSlug)
	if err != nil {
		metrics.IncStoreError("resolve_restaurant")
		r.log.Warn().Err(err).Msg("restaurant resolution failed during enrichment")
		return nil
	}

	keyLower := models.ServiceKeyLower(name, c.dateISO, serviceType)
	services, err := r.store.FindServicesByKey(c.ctx, keyLower)
	if err != nil {
		metrics.IncStoreError("find_service")
		r.log.Warn().Err(err).Str("service_key", keyLower).Msg("service lookup failed during enrichment")
		return nil
	}
	if len(services) == 0 && recordID != "" {
		services, err = r.store.FindServicesByRestaurantID(c.ctx, recordID, c.dateISO, serviceType)
		if err != nil {
			metrics.IncStoreError("find_service_fallback")
			r.log.Warn().Err(err).Str("service_key", keyLower).Msg("service fallback lookup failed during enrichment")
			return nil
		}
	}
	if len(services) != 1 {
		return nil
	}
	return &services[0]
}
