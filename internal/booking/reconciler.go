package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"reserva/internal/metrics"
)

// Reconciler sweeps the outbox for intents abandoned between the
// booking create and the capacity commit (process crash, timeout). It
// completes the intent when the capacity write reached the target
// record and rolls the booking back otherwise, so no booking stays
// confirmed without its seats accounted for and no guest loses a
// reservation whose seats were already committed.
type Reconciler struct {
	booker     *Booker
	outbox     *Outbox
	staleAfter time.Duration
	log        *zerolog.Logger
}

// NewReconciler builds a reconciler over the booker's store and outbox.
func NewReconciler(booker *Booker, outbox *Outbox, staleAfter time.Duration, log *zerolog.Logger) *Reconciler {
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &Reconciler{booker: booker, outbox: outbox, staleAfter: staleAfter, log: log}
}

// Run sweeps on the given interval until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.SweepOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce resolves every currently stale intent. Returns the number
// of intents it acted on.
func (r *Reconciler) SweepOnce(ctx context.Context) int {
	stale, err := r.outbox.Stale(ctx, r.staleAfter)
	if err != nil {
		r.log.Error().Err(err).Msg("outbox stale scan failed")
		return 0
	}

	resolved := 0
	for _, intent := range stale {
		switch intent.State {
		case IntentPending:
			// No booking was ever written; nothing external to undo.
			if err := r.outbox.MarkAbandoned(ctx, intent.ID); err != nil {
				r.log.Error().Err(err).Str("intent_id", intent.ID).Msg("mark abandoned failed")
				continue
			}
			metrics.IncOutboxReconciled("abandoned")
			resolved++

		case IntentCreated:
			// The booking exists but the intent never reached
			// committed. The process may have died right after the
			// capacity write; re-read the target record to tell a
			// landed commit from a lost one before touching anything.
			landed, err := r.commitLanded(ctx, intent)
			if err != nil {
				r.log.Error().Err(err).
					Str("intent_id", intent.ID).
					Msg("target re-read failed, leaving intent for next sweep")
				continue
			}

			if landed {
				r.log.Warn().
					Str("intent_id", intent.ID).
					Str("booking_record_id", intent.BookingRecordID).
					Str("idempotency_key", intent.IdempotencyKey).
					Msg("capacity commit landed, completing interrupted booking")
				if err := r.outbox.MarkCommitted(ctx, intent.ID); err != nil {
					r.log.Error().Err(err).Str("intent_id", intent.ID).Msg("mark committed failed")
					continue
				}
				metrics.IncOutboxReconciled("completed")
				resolved++
				continue
			}

			r.log.Warn().
				Str("intent_id", intent.ID).
				Str("booking_record_id", intent.BookingRecordID).
				Str("idempotency_key", intent.IdempotencyKey).
				Msg("reconciling interrupted booking")
			r.booker.compensate(ctx, intent.BookingRecordID)
			if err := r.outbox.MarkCompensated(ctx, intent.ID); err != nil {
				r.log.Error().Err(err).Str("intent_id", intent.ID).Msg("mark compensated failed")
				continue
			}
			metrics.IncOutboxReconciled("compensated")
			resolved++
		}
	}

	if resolved > 0 {
		r.log.Info().Int("resolved", resolved).Msg("outbox sweep resolved stale intents")
	}
	return resolved
}

// commitLanded reports whether the intent's capacity write reached the
// target record. The planned counter is persisted just before the
// write, so a zero counter means the write never started; otherwise the
// live counter having reached the planned value means the write landed
// and the booking must be kept, not rolled back.
func (r *Reconciler) commitLanded(ctx context.Context, intent Intent) (bool, error) {
	if intent.NewUsed <= 0 {
		return false, nil
	}

	var used int
	switch intent.TargetKind {
	case TargetSlot:
		slot, err := r.booker.store.GetSlot(ctx, intent.TargetRecordID)
		if err != nil {
			return false, err
		}
		used = slot.CapacityUsed
	case TargetService:
		svc, err := r.booker.store.GetService(ctx, intent.TargetRecordID)
		if err != nil {
			return false, err
		}
		used = svc.CapacityUsed
	default:
		return false, nil
	}
	return used >= intent.NewUsed, nil
}
