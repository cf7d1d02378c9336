// Package booking implements the capacity-management core: idempotent
// booking creation, the capacity check and commit, and best-effort
// compensation when the commit fails after the booking was written.
package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reserva/internal/metrics"
	"reserva/internal/models"
)

// Store is the subset of store operations the booking core needs. Tests
// swap in a fake.
type Store interface {
	FindBookingByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error)
	FindSlot(ctx context.Context, slug, dateISO, time24h string) (*models.Slot, error)
	GetSlot(ctx context.Context, recordID string) (*models.Slot, error)
	UpdateSlotCapacityUsed(ctx context.Context, recordID string, used int) error
	CreateBooking(ctx context.Context, b *models.Booking) (string, error)
	CancelBooking(ctx context.Context, recordID string) error
	DeleteBooking(ctx context.Context, recordID string) error

	ResolveRestaurant(ctx context.Context, ref string) (name, recordID string, err error)
	FindServicesByKey(ctx context.Context, keyLower string) ([]models.Service, error)
	FindServicesByRestaurantID(ctx context.Context, restaurantRecordID, dateISO, serviceType string) ([]models.Service, error)
	GetService(ctx context.Context, recordID string) (*models.Service, error)
	UpdateServiceCapacityUsed(ctx context.Context, recordID string, used int) error
}

// Notifier tells restaurant staff about confirmed bookings. Best-effort;
// failures never affect the booking outcome.
type Notifier interface {
	NotifyBookingConfirmed(ctx context.Context, b *models.Booking)
}

// Options configures the booking core.
type Options struct {
	// RestaurantSlug is the trusted server-side restaurant identity.
	// Bookings are always written against it, never against a
	// client-supplied reference.
	RestaurantSlug string
	// ServiceMode switches capacity accounting from per-slot records
	// to per-service (midi/soir) records.
	ServiceMode bool
	// ServiceBucketHour is the first hour counted as the evening
	// service.
	ServiceBucketHour int
}

// Request is a fully validated booking request. The validate package
// produces these fields; nothing here re-checks shapes.
type Request struct {
	DateISO        string
	Time24h        string
	PartySize      int
	Name           string
	Email          string
	Phone          string
	Comments       string
	IdempotencyKey string
}

// Result is the successful outcome of a booking operation.
type Result struct {
	BookingID   string
	BookingCode string
	// Replayed is true when the idempotency ledger answered the
	// request without a new write.
	Replayed bool
}

// Booker runs the booking state machine.
type Booker struct {
	store    Store
	outbox   *Outbox
	notifier Notifier
	opts     Options
	locks    *keyLock
	log      *zerolog.Logger
}

// New constructs a Booker. The outbox and notifier are optional; a nil
// outbox disables durable intents (tests), a nil notifier disables
// staff notifications.
func New(store Store, outbox *Outbox, notifier Notifier, opts Options, log *zerolog.Logger) *Booker {
	if opts.ServiceBucketHour <= 0 {
		opts.ServiceBucketHour = models.DefaultServiceBucketHour
	}
	return &Booker{
		store:    store,
		outbox:   outbox,
		notifier: notifier,
		opts:     opts,
		locks:    newKeyLock(),
		log:      log,
	}
}

// Book executes validate-free booking flow: ledger lookup, capacity
// check, booking create, capacity commit, compensation on partial
// failure. Requests carrying the same idempotency key, and requests
// against the same slot/service, serialize through per-key mutexes so
// the read-check-write sequence cannot interleave within this process.
func (bk *Booker) Book(ctx context.Context, req Request) (*Result, error) {
	idemKey := "idem:" + req.IdempotencyKey
	bk.locks.Lock(idemKey)
	defer bk.locks.Unlock(idemKey)

	// Idempotency ledger: an exact, case-sensitive hit short-circuits
	// the whole operation with the prior result.
	prior, err := bk.store.FindBookingByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		metrics.IncStoreError("idempotency_lookup")
		return nil, failStore("idempotency lookup failed")
	}
	if prior != nil {
		metrics.IncIdempotentReplay()
		bk.log.Info().
			Str("idempotency_key", req.IdempotencyKey).
			Str("booking_id", prior.BookingID).
			Msg("idempotency hit, replaying prior result")
		return &Result{BookingID: prior.BookingID, BookingCode: prior.BookingCode, Replayed: true}, nil
	}

	if bk.opts.ServiceMode {
		return bk.bookAgainstService(ctx, req)
	}
	return bk.bookAgainstSlot(ctx, req)
}

func (bk *Booker) bookAgainstSlot(ctx context.Context, req Request) (*Result, error) {
	slotKey := "slot:" + models.SlotKey(req.DateISO, bk.opts.RestaurantSlug, req.Time24h)
	bk.locks.Lock(slotKey)
	defer bk.locks.Unlock(slotKey)

	slot, err := bk.store.FindSlot(ctx, bk.opts.RestaurantSlug, req.DateISO, req.Time24h)
	if err != nil {
		metrics.IncStoreError("find_slot")
		metrics.IncBookingOutcome(CodeStoreError)
		return nil, failStore("slot lookup failed")
	}
	if slot == nil {
		metrics.IncBookingOutcome(CodeSlotNotFound)
		return nil, failSlotNotFound()
	}
	if !slot.Bookable(req.PartySize) {
		metrics.IncBookingOutcome(CodeSlotFull)
		return nil, failSlotFull()
	}

	commit := func(ctx context.Context) (int, applyFunc, error) {
		// Re-read under the lock and refuse to overcommit: the write
		// is "set used to old+p only while old+p <= total".
		fresh, err := bk.store.GetSlot(ctx, slot.RecordID)
		if err != nil {
			return 0, nil, err
		}
		newUsed := fresh.CapacityUsed + req.PartySize
		if newUsed > fresh.CapacityTotal {
			return 0, nil, failSlotFull()
		}
		apply := func(ctx context.Context) error {
			return bk.store.UpdateSlotCapacityUsed(ctx, slot.RecordID, newUsed)
		}
		return newUsed, apply, nil
	}

	return bk.createAndCommit(ctx, req, slot.RecordID, TargetSlot, commit)
}

func (bk *Booker) bookAgainstService(ctx context.Context, req Request) (*Result, error) {
	svc, err := bk.resolveService(ctx, bk.opts.RestaurantSlug, req.DateISO, req.Time24h)
	if err != nil {
		return nil, err
	}

	svcKey := "service:" + svc.RecordID
	bk.locks.Lock(svcKey)
	defer bk.locks.Unlock(svcKey)

	if svc.IsFull {
		metrics.IncBookingOutcome(CodeServiceFull)
		return nil, failServiceFull()
	}
	if svc.Remaining() < req.PartySize {
		metrics.IncBookingOutcome(CodeServiceFull)
		return nil, failServiceFull()
	}

	commit := func(ctx context.Context) (int, applyFunc, error) {
		fresh, err := bk.store.GetService(ctx, svc.RecordID)
		if err != nil {
			return 0, nil, err
		}
		if fresh.IsFull {
			return 0, nil, failServiceFull()
		}
		newUsed := fresh.CapacityUsed + req.PartySize
		if newUsed > fresh.CapacityTotal {
			return 0, nil, failServiceFull()
		}
		apply := func(ctx context.Context) error {
			return bk.store.UpdateServiceCapacityUsed(ctx, svc.RecordID, newUsed)
		}
		return newUsed, apply, nil
	}

	return bk.createAndCommit(ctx, req, svc.RecordID, TargetService, commit)
}

// resolveService maps (restaurant, date, time) to exactly one service
// record: primary lookup by composite key, fallback by restaurant
// record id. Zero matches and multiple matches are both errors;
// ambiguity is never resolved by picking one.
func (bk *Booker) resolveService(ctx context.Context, restaurantRef, dateISO, time24h string) (*models.Service, error) {
	serviceType := models.ServiceTypeFor(time24h, bk.opts.ServiceBucketHour)
	date := models.NormalizeDateISO(dateISO)

	name, recordID, err := bk.store.ResolveRestaurant(ctx, restaurantRef)
	if err != nil {
		metrics.IncStoreError("resolve_restaurant")
		return nil, failStore("restaurant resolution failed")
	}

	keyLower := models.ServiceKeyLower(name, date, serviceType)
	services, err := bk.store.FindServicesByKey(ctx, keyLower)
	if err != nil {
		metrics.IncStoreError("find_service")
		return nil, failStore("service lookup failed")
	}

	if len(services) == 0 && recordID != "" {
		services, err = bk.store.FindServicesByRestaurantID(ctx, recordID, date, serviceType)
		if err != nil {
			metrics.IncStoreError("find_service_fallback")
			return nil, failStore("service lookup failed")
		}
	}

	switch len(services) {
	case 0:
		metrics.IncBookingOutcome(CodeServiceNotFound)
		bk.log.Warn().
			Str("service_key", keyLower).
			Str("date", date).
			Str("service_type", serviceType).
			Msg("no service record found")
		return nil, failServiceNotFound()
	case 1:
		return &services[0], nil
	default:
		metrics.IncBookingOutcome(CodeServiceDuplicate)
		bk.log.Error().
			Str("service_key", keyLower).
			Int("matches", len(services)).
			Msg("ambiguous service configuration")
		return nil, failServiceDuplicate()
	}
}

// applyFunc performs the capacity write a commit planned.
type applyFunc func(context.Context) error

// commitFunc re-reads the target record under the lock, refuses to
// overcommit, and returns the planned counter plus the write that
// applies it. The planned counter is persisted on the intent before the
// write runs so the reconciler can tell a landed commit from a lost one.
type commitFunc func(context.Context) (int, applyFunc, error)

// createAndCommit writes the booking record, then runs the capacity
// commit, compensating (cancel, then delete, both best-effort) when the
// commit fails after the booking exists.
func (bk *Booker) createAndCommit(ctx context.Context, req Request, targetRecordID, targetKind string, commit commitFunc) (*Result, error) {
	bookingID := uuid.New().String()
	b := &models.Booking{
		BookingID:      bookingID,
		BookingCode:    models.BookingCode(req.DateISO, bookingID),
		RestaurantSlug: bk.opts.RestaurantSlug,
		SlotKey:        models.SlotKey(req.DateISO, bk.opts.RestaurantSlug, req.Time24h),
		DateISO:        req.DateISO,
		Time24h:        req.Time24h,
		PartySize:      req.PartySize,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Comments:       req.Comments,
		Status:         models.StatusConfirmed,
		IdempotencyKey: req.IdempotencyKey,
	}

	intent := &Intent{
		ID:             uuid.New().String(),
		IdempotencyKey: req.IdempotencyKey,
		TargetRecordID: targetRecordID,
		TargetKind:     targetKind,
		PartySize:      req.PartySize,
	}
	if bk.outbox != nil {
		if err := bk.outbox.Begin(ctx, intent); err == ErrDuplicateIntent {
			// A live intent with this key is still in flight (or
			// committed without a visible ledger booking yet); Begin
			// already reclaims terminal rows, so surface the conflict
			// and let the client retry later.
			bk.log.Warn().
				Str("idempotency_key", req.IdempotencyKey).
				Msg("duplicate outbox intent without a ledger booking")
			metrics.IncBookingOutcome(CodeInternal)
			return nil, failStore("conflicting in-flight request")
		} else if err != nil {
			bk.log.Error().Err(err).Msg("outbox begin failed")
			metrics.IncBookingOutcome(CodeInternal)
			return nil, failStore("intent ledger unavailable")
		}
	}

	recordID, err := bk.store.CreateBooking(ctx, b)
	if err != nil {
		bk.log.Error().Err(err).
			Str("booking_id", bookingID).
			Msg("booking create failed")
		metrics.IncStoreError("create_booking")
		metrics.IncBookingOutcome(CodeCreateFailed)
		bk.markOutbox(ctx, intent.ID, IntentFailed)
		return nil, failCreate()
	}
	b.RecordID = recordID
	if bk.outbox != nil {
		if err := bk.outbox.MarkCreated(ctx, intent.ID, recordID); err != nil {
			bk.log.Error().Err(err).Msg("outbox mark created failed")
		}
	}

	failCommit := func(err error) (*Result, error) {
		if f, ok := err.(*Failure); ok {
			// Capacity vanished between check and commit; undo the
			// booking and surface the conflict.
			bk.compensate(ctx, recordID)
			bk.markOutbox(ctx, intent.ID, IntentCompensated)
			metrics.IncBookingOutcome(f.Code)
			return nil, f
		}

		bk.log.Error().Err(err).
			Str("booking_id", bookingID).
			Str("target_record_id", targetRecordID).
			Msg("capacity commit failed, compensating")
		metrics.IncStoreError("capacity_commit")
		metrics.IncBookingOutcome(CodeCapacityUpdateFailed)
		bk.compensate(ctx, recordID)
		bk.markOutbox(ctx, intent.ID, IntentCompensated)
		return nil, failCapacityUpdate()
	}

	newUsed, apply, err := commit(ctx)
	if err != nil {
		return failCommit(err)
	}
	if bk.outbox != nil {
		if err := bk.outbox.MarkPlanned(ctx, intent.ID, newUsed); err != nil {
			bk.log.Error().Err(err).Msg("outbox mark planned failed")
		}
	}
	if err := apply(ctx); err != nil {
		return failCommit(err)
	}

	bk.markOutbox(ctx, intent.ID, IntentCommitted)
	metrics.IncBookingOutcome("ok")
	bk.log.Info().
		Str("booking_id", bookingID).
		Str("booking_code", b.BookingCode).
		Str("date", req.DateISO).
		Str("time", req.Time24h).
		Int("party_size", req.PartySize).
		Int("new_used", newUsed).
		Msg("booking confirmed")

	if bk.notifier != nil {
		go bk.notifier.NotifyBookingConfirmed(context.WithoutCancel(ctx), b)
	}

	return &Result{BookingID: bookingID, BookingCode: b.BookingCode}, nil
}

// compensate tries to cancel, then delete, the booking record. Both
// attempts are best-effort: failures are logged and swallowed, and the
// caller still reports the operation as failed.
func (bk *Booker) compensate(ctx context.Context, bookingRecordID string) {
	if err := bk.store.CancelBooking(ctx, bookingRecordID); err != nil {
		metrics.IncCompensation("cancel", "error")
		bk.log.Error().Err(err).
			Str("booking_record_id", bookingRecordID).
			Msg("compensating cancel failed")
	} else {
		metrics.IncCompensation("cancel", "ok")
	}

	if err := bk.store.DeleteBooking(ctx, bookingRecordID); err != nil {
		metrics.IncCompensation("delete", "error")
		bk.log.Error().Err(err).
			Str("booking_record_id", bookingRecordID).
			Msg("compensating delete failed; manual reconciliation needed")
	} else {
		metrics.IncCompensation("delete", "ok")
	}
}

func (bk *Booker) markOutbox(ctx context.Context, intentID, state string) {
	if bk.outbox == nil {
		return
	}
	var err error
	switch state {
	case IntentFailed:
		err = bk.outbox.MarkFailed(ctx, intentID)
	case IntentCommitted:
		err = bk.outbox.MarkCommitted(ctx, intentID)
	case IntentCompensated:
		err = bk.outbox.MarkCompensated(ctx, intentID)
	}
	if err != nil {
		bk.log.Error().Err(err).Str("state", state).Msg("outbox state update failed")
	}
}
