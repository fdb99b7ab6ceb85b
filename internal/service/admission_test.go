package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/ysakura/event-campaign-backend/internal/repository"
)

// passthroughTx runs the transactional body directly; the fakes below
// ignore the nil *sql.Tx they receive.
func passthroughTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

type fakeOccurrenceStore struct {
	occ       *repository.OccurrenceRecord
	getErr    error
	lockErr   error
	liveUnits uint32
	unitsErr  error
	seedRows  []repository.SeedRow
}

func (f *fakeOccurrenceStore) GetByID(ctx context.Context, id uint64) (*repository.OccurrenceRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.occ, nil
}

func (f *fakeOccurrenceStore) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*repository.OccurrenceRecord, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return f.occ, nil
}

func (f *fakeOccurrenceStore) LiveUnitsTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64, groupBooking bool) (uint32, error) {
	return f.liveUnits, f.unitsErr
}

func (f *fakeOccurrenceStore) ListSeedRows(ctx context.Context, now time.Time) ([]repository.SeedRow, error) {
	return f.seedRows, nil
}

type fakeRegistrationStore struct {
	created      []*repository.RegistrationRecord
	createErr    error
	cancelOccID  uint64
	cancelUnits  uint32
	cancelErr    error
	cancelCalled bool
}

func (f *fakeRegistrationStore) CreateTx(ctx context.Context, tx *sql.Tx, rec *repository.RegistrationRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	rec.ID = uint64(len(f.created) + 1)
	f.created = append(f.created, rec)
	return nil
}

func (f *fakeRegistrationStore) CancelTx(ctx context.Context, tx *sql.Tx, registrationID uint64) (uint64, uint32, error) {
	f.cancelCalled = true
	if f.cancelErr != nil {
		return 0, 0, f.cancelErr
	}
	return f.cancelOccID, f.cancelUnits, nil
}

type gateCall struct {
	occurrenceID uint64
	units        uint32
}

type fakeGate struct {
	allowed  bool
	reserved bool
	reserves []gateCall
	releases []gateCall
	sets     []gateCall
	drops    []uint64
}

func (f *fakeGate) TryReserve(ctx context.Context, occurrenceID uint64, units, maxAttendee uint32) (bool, bool) {
	f.reserves = append(f.reserves, gateCall{occurrenceID, units})
	return f.allowed, f.reserved
}

func (f *fakeGate) Release(ctx context.Context, occurrenceID uint64, units uint32) {
	f.releases = append(f.releases, gateCall{occurrenceID, units})
}

func (f *fakeGate) Set(ctx context.Context, occurrenceID uint64, units uint32) error {
	f.sets = append(f.sets, gateCall{occurrenceID, units})
	return nil
}

func (f *fakeGate) Drop(ctx context.Context, occurrenceID uint64) error {
	f.drops = append(f.drops, occurrenceID)
	return nil
}

func futureOccurrence(groupBooking bool, maxAttendee uint32) *repository.OccurrenceRecord {
	return &repository.OccurrenceRecord{
		ID:           7,
		CampaignID:   1,
		StartsAt:     time.Now().Add(time.Hour),
		EndsAt:       time.Now().Add(2 * time.Hour),
		MaxAttendee:  maxAttendee,
		GroupBooking: groupBooking,
	}
}

func newTestAdmission(occ *fakeOccurrenceStore, reg *fakeRegistrationStore, gate *fakeGate) *AdmissionService {
	return &AdmissionService{
		occurrences:   occ,
		registrations: reg,
		gate:          gate,
		runTx:         passthroughTx,
		now:           time.Now,
	}
}

func TestRegister_AdmitsWithinCapacity(t *testing.T) {
	occ := &fakeOccurrenceStore{occ: futureOccurrence(false, 10), liveUnits: 3}
	reg := &fakeRegistrationStore{}
	gate := &fakeGate{allowed: true, reserved: true}
	svc := newTestAdmission(occ, reg, gate)

	rec, err := svc.Register(context.Background(), RegisterInput{OccurrenceID: 7, Expected: 2})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if rec.Code == "" {
		t.Fatalf("registration code not assigned")
	}
	if len(reg.created) != 1 {
		t.Fatalf("registration not persisted")
	}
	if len(gate.reserves) != 1 || gate.reserves[0].units != 2 {
		t.Fatalf("unexpected reserve calls: %+v", gate.reserves)
	}
	if len(gate.releases) != 0 {
		t.Fatalf("successful admission must not release: %+v", gate.releases)
	}
}

func TestRegister_FastPathRejectsWhenCounterFull(t *testing.T) {
	occ := &fakeOccurrenceStore{occ: futureOccurrence(false, 2), liveUnits: 2}
	reg := &fakeRegistrationStore{}
	gate := &fakeGate{allowed: false}
	svc := newTestAdmission(occ, reg, gate)

	_, err := svc.Register(context.Background(), RegisterInput{OccurrenceID: 7, Expected: 1})
	if !errors.Is(err, repository.ErrCapacityExceeded) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.created) != 0 {
		t.Fatalf("fast-path rejection must not write")
	}
	if len(gate.releases) != 0 {
		t.Fatalf("rejected reserve must not be released: %+v", gate.releases)
	}
}

func TestRegister_AuthoritativeCheckReleasesReservedUnits(t *testing.T) {
	occ := &fakeOccurrenceStore{occ: futureOccurrence(false, 2), liveUnits: 2}
	reg := &fakeRegistrationStore{}
	gate := &fakeGate{allowed: true, reserved: true}
	svc := newTestAdmission(occ, reg, gate)

	_, err := svc.Register(context.Background(), RegisterInput{OccurrenceID: 7, Expected: 1})
	if !errors.Is(err, repository.ErrCapacityExceeded) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gate.releases) != 1 || gate.releases[0].units != 1 {
		t.Fatalf("reserved units must be credited back: %+v", gate.releases)
	}
}

func TestRegister_ResourceGoneIsNotCompensated(t *testing.T) {
	occ := &fakeOccurrenceStore{occ: futureOccurrence(false, 5), lockErr: repository.ErrResourceGone}
	reg := &fakeRegistrationStore{}
	gate := &fakeGate{allowed: true, reserved: true}
	svc := newTestAdmission(occ, reg, gate)

	_, err := svc.Register(context.Background(), RegisterInput{OccurrenceID: 7, Expected: 1})
	if !errors.Is(err, repository.ErrResourceGone) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gate.releases) != 0 {
		t.Fatalf("gone resources must not be credited back: %+v", gate.releases)
	}
}

func TestRegister_CounterUnavailableFallsBackToAuthoritative(t *testing.T) {
	occ := &fakeOccurrenceStore{occ: futureOccurrence(false, 4), liveUnits: 1}
	reg := &fakeRegistrationStore{}
	// allowed but not reserved: the counter store answered nothing.
	gate := &fakeGate{allowed: true, reserved: false}
	svc := newTestAdmission(occ, reg, gate)

	if _, err := svc.Register(context.Background(), RegisterInput{OccurrenceID: 7, Expected: 1}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if len(reg.created) != 1 {
		t.Fatalf("authoritative path must decide alone when counter is down")
	}
}

func TestRegister_UntrackedFailureDoesNotRelease(t *testing.T) {
	occ := &fakeOccurrenceStore{occ: futureOccurrence(false, 4), liveUnits: 4}
	reg := &fakeRegistrationStore{}
	gate := &fakeGate{allowed: true, reserved: false}
	svc := newTestAdmission(occ, reg, gate)

	_, err := svc.Register(context.Background(), RegisterInput{OccurrenceID: 7, Expected: 1})
	if !errors.Is(err, repository.ErrCapacityExceeded) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gate.releases) != 0 {
		t.Fatalf("nothing was reserved, nothing must be released: %+v", gate.releases)
	}
}

func TestRegister_GroupBookingConsumesParticipantAndCompanionUnits(t *testing.T) {
	occ := &fakeOccurrenceStore{occ: futureOccurrence(true, 10), liveUnits: 0}
	reg := &fakeRegistrationStore{}
	gate := &fakeGate{allowed: true, reserved: true}
	svc := newTestAdmission(occ, reg, gate)

	_, err := svc.Register(context.Background(), RegisterInput{
		OccurrenceID:     7,
		ParticipantCount: 2,
		CompanionCount:   3,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if gate.reserves[0].units != 5 {
		t.Fatalf("group booking units: got=%d want=5", gate.reserves[0].units)
	}
}

func TestRegister_RejectsEndedOccurrence(t *testing.T) {
	ended := futureOccurrence(false, 5)
	ended.EndsAt = time.Now().Add(-time.Hour)
	occ := &fakeOccurrenceStore{occ: ended}
	svc := newTestAdmission(occ, &fakeRegistrationStore{}, &fakeGate{allowed: true})

	_, err := svc.Register(context.Background(), RegisterInput{OccurrenceID: 7, Expected: 1})
	if !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCancel_ReleasesUnitsAfterCommit(t *testing.T) {
	reg := &fakeRegistrationStore{cancelOccID: 7, cancelUnits: 3}
	gate := &fakeGate{}
	svc := newTestAdmission(&fakeOccurrenceStore{}, reg, gate)

	if err := svc.Cancel(context.Background(), 42); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(gate.releases) != 1 || gate.releases[0] != (gateCall{7, 3}) {
		t.Fatalf("cancelled units not returned to the pool: %+v", gate.releases)
	}
}

func TestCancel_FailedTransactionDoesNotRelease(t *testing.T) {
	reg := &fakeRegistrationStore{cancelErr: repository.ErrConflict}
	gate := &fakeGate{}
	svc := newTestAdmission(&fakeOccurrenceStore{}, reg, gate)

	if err := svc.Cancel(context.Background(), 42); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gate.releases) != 0 {
		t.Fatalf("rolled-back cancellation must not release: %+v", gate.releases)
	}
}

func TestSeed_SeedsOpenAndDropsFullOccurrences(t *testing.T) {
	occ := &fakeOccurrenceStore{seedRows: []repository.SeedRow{
		{OccurrenceID: 1, MaxAttendee: 10, LiveUnits: 4},
		{OccurrenceID: 2, MaxAttendee: 5, LiveUnits: 5},
		{OccurrenceID: 3, MaxAttendee: 5, LiveUnits: 7},
		{OccurrenceID: 4, MaxAttendee: 8, LiveUnits: 0},
	}}
	gate := &fakeGate{}
	svc := newTestAdmission(occ, &fakeRegistrationStore{}, gate)

	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if len(gate.sets) != 2 {
		t.Fatalf("unexpected seed count: %+v", gate.sets)
	}
	if gate.sets[0] != (gateCall{1, 4}) || gate.sets[1] != (gateCall{4, 0}) {
		t.Fatalf("unexpected seeded values: %+v", gate.sets)
	}
	if len(gate.drops) != 2 || gate.drops[0] != 2 || gate.drops[1] != 3 {
		t.Fatalf("full occurrences must be left untracked: %+v", gate.drops)
	}
}
