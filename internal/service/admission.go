package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ysakura/event-campaign-backend/internal/logger"
	"github.com/ysakura/event-campaign-backend/internal/repository"
)

// OccurrenceStore is the slice of the occurrence repository the
// admission controller depends on.
type OccurrenceStore interface {
	GetByID(ctx context.Context, id uint64) (*repository.OccurrenceRecord, error)
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*repository.OccurrenceRecord, error)
	LiveUnitsTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64, groupBooking bool) (uint32, error)
	ListSeedRows(ctx context.Context, now time.Time) ([]repository.SeedRow, error)
}

// RegistrationStore is the slice of the registration repository the
// admission controller writes through.
type RegistrationStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, rec *repository.RegistrationRecord) error
	CancelTx(ctx context.Context, tx *sql.Tx, registrationID uint64) (occurrenceID uint64, units uint32, err error)
}

// CapacityGate is the fast-path counter interface.  The Redis-backed
// implementation lives in internal/capacity; it degrades to a no-op
// when the counter store is unreachable.
type CapacityGate interface {
	TryReserve(ctx context.Context, occurrenceID uint64, units, maxAttendee uint32) (allowed, reserved bool)
	Release(ctx context.Context, occurrenceID uint64, units uint32)
	Set(ctx context.Context, occurrenceID uint64, units uint32) error
	Drop(ctx context.Context, occurrenceID uint64) error
}

// AdmissionService gates every write into the registration store so
// occurrence capacity is never oversold.  It combines a cheap
// counter check against the capacity gate with the authoritative
// re-check inside a transaction holding the occurrence row lock.
type AdmissionService struct {
	occurrences   OccurrenceStore
	registrations RegistrationStore
	gate          CapacityGate
	runTx         txRunner
	now           func() time.Time
}

// NewAdmissionService wires the admission controller.  gate may be
// backed by a nil Redis client, in which case only the authoritative
// path decides.
func NewAdmissionService(db *sql.DB, occurrences OccurrenceStore, registrations RegistrationStore, gate CapacityGate) *AdmissionService {
	return &AdmissionService{
		occurrences:   occurrences,
		registrations: registrations,
		gate:          gate,
		runTx:         newTxRunner(db),
		now:           time.Now,
	}
}

// RegisterInput carries one admission attempt.  Expected applies to
// ordinary occurrences; ParticipantCount and CompanionCount apply to
// occurrences of group-booking occasions.
type RegisterInput struct {
	OccurrenceID     uint64
	MemberID         *uint64
	Expected         uint32
	ParticipantCount uint32
	CompanionCount   uint32
}

// units resolves how many capacity units the attempt consumes for the
// given occurrence.  Ordinary bookings default to one attendee when
// the caller sends nothing.
func (in *RegisterInput) units(occ *repository.OccurrenceRecord) uint32 {
	if occ.GroupBooking {
		return in.ParticipantCount + in.CompanionCount
	}
	if in.Expected == 0 {
		return 1
	}
	return in.Expected
}

// Register admits or rejects one registration attempt.
//
// The counter is incremented optimistically before the authoritative
// transaction runs; when the transaction fails, the units are
// credited back unless the failure is ErrResourceGone, which is
// terminal: no reservation should be compensated for a resource that
// no longer exists.  A full counter rejects the attempt immediately
// with ErrCapacityExceeded, but admission is only ever granted by the
// re-check under the occurrence row lock.
func (s *AdmissionService) Register(ctx context.Context, in RegisterInput) (*repository.RegistrationRecord, error) {
	occ, err := s.occurrences.GetByID(ctx, in.OccurrenceID)
	if err != nil {
		return nil, err
	}
	if occ.Ended(s.now()) {
		return nil, repository.ErrValidation
	}
	units := in.units(occ)
	if units == 0 || units > occ.MaxAttendee {
		return nil, repository.ErrValidation
	}

	allowed, reserved := s.gate.TryReserve(ctx, occ.ID, units, occ.MaxAttendee)
	if !allowed {
		return nil, repository.ErrCapacityExceeded
	}

	rec := &repository.RegistrationRecord{
		Code:             uuid.NewString(),
		OccurrenceID:     occ.ID,
		MemberID:         in.MemberID,
		Expected:         in.Expected,
		ParticipantCount: in.ParticipantCount,
		CompanionCount:   in.CompanionCount,
	}
	if !occ.GroupBooking && rec.Expected == 0 {
		rec.Expected = units
	}

	err = s.runTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.occurrences.GetForUpdateTx(ctx, tx, occ.ID)
		if err != nil {
			return err
		}
		committedUnits, err := s.occurrences.LiveUnitsTx(ctx, tx, locked.ID, locked.GroupBooking)
		if err != nil {
			return err
		}
		if committedUnits+units > locked.MaxAttendee {
			return repository.ErrCapacityExceeded
		}
		return s.registrations.CreateTx(ctx, tx, rec)
	})
	if err != nil {
		if reserved && !errors.Is(err, repository.ErrResourceGone) {
			s.gate.Release(ctx, occ.ID, units)
		}
		return nil, err
	}
	return rec, nil
}

// Cancel marks a registration cancelled and returns its units to the
// capacity pool.  The counter release happens only after the
// transaction commits, so a rolled-back cancellation never
// under-counts.
func (s *AdmissionService) Cancel(ctx context.Context, registrationID uint64) error {
	var occurrenceID uint64
	var units uint32
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		var err error
		occurrenceID, units, err = s.registrations.CancelTx(ctx, tx, registrationID)
		return err
	})
	if err != nil {
		return err
	}
	s.gate.Release(ctx, occurrenceID, units)
	return nil
}

// Reserve is the raw reserve operation exposed to collaborating
// controllers that run their own registration write.  It reports
// whether the fast path admitted the units; the caller still owns the
// authoritative check.
func (s *AdmissionService) Reserve(ctx context.Context, occurrenceID uint64, units uint32) (bool, error) {
	occ, err := s.occurrences.GetByID(ctx, occurrenceID)
	if err != nil {
		return false, err
	}
	allowed, _ := s.gate.TryReserve(ctx, occ.ID, units, occ.MaxAttendee)
	return allowed, nil
}

// Release is the raw release operation exposed to collaborating
// controllers.
func (s *AdmissionService) Release(ctx context.Context, occurrenceID uint64, units uint32) {
	s.gate.Release(ctx, occurrenceID, units)
}

// Seed runs the full recovery scan at startup.  Every live occurrence
// whose end time has not passed gets its counter set to the summed
// live units, unless it is already at or past capacity, in which case
// any stale counter is dropped so the occurrence stays untracked.
// The scan is idempotent and safe to re-run at any time.
func (s *AdmissionService) Seed(ctx context.Context) error {
	rows, err := s.occurrences.ListSeedRows(ctx, s.now())
	if err != nil {
		return err
	}
	seeded, dropped := 0, 0
	for _, row := range rows {
		if row.LiveUnits < row.MaxAttendee {
			if err := s.gate.Set(ctx, row.OccurrenceID, row.LiveUnits); err != nil {
				logger.Warn("counter seed failed",
					zap.Uint64("occurrence_id", row.OccurrenceID), zap.Error(err))
				continue
			}
			seeded++
		} else {
			if err := s.gate.Drop(ctx, row.OccurrenceID); err != nil {
				logger.Warn("counter drop failed",
					zap.Uint64("occurrence_id", row.OccurrenceID), zap.Error(err))
				continue
			}
			dropped++
		}
	}
	logger.Info("capacity counters seeded", zap.Int("seeded", seeded), zap.Int("dropped", dropped))
	return nil
}
