package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ysakura/event-campaign-backend/internal/model"
)

// OccurrenceRepo provides read access to occurrences for the
// admission path.  Occurrence rows are created and mutated by the
// administrative surface, which lives outside this core; here they
// are only loaded, locked and aggregated.  All timestamps are UTC.
type OccurrenceRepo struct {
	db *sql.DB
}

// NewOccurrenceRepo returns a new OccurrenceRepo bound to the given database.
func NewOccurrenceRepo(db *sql.DB) *OccurrenceRepo { return &OccurrenceRepo{db: db} }

// OccurrenceRecord mirrors the columns of the occurrences table that
// the admission controller needs.
type OccurrenceRecord struct {
	ID           uint64
	OccasionID   uint64
	CampaignID   uint64
	StartsAt     time.Time
	EndsAt       time.Time
	MaxAttendee  uint32
	GroupBooking bool
	IsDisplay    bool
}

// Ended reports whether the slot's end time has already passed at the
// given instant.  Ended occurrences reject new admissions.
func (o *OccurrenceRecord) Ended(now time.Time) bool {
	return !o.EndsAt.After(now)
}

const occurrenceColumns = `id, occasion_id, campaign_id, starts_at, ends_at, max_attendee, group_booking, is_display`

func scanOccurrence(row *sql.Row) (*OccurrenceRecord, error) {
	var o OccurrenceRecord
	err := row.Scan(&o.ID, &o.OccasionID, &o.CampaignID, &o.StartsAt, &o.EndsAt,
		&o.MaxAttendee, &o.GroupBooking, &o.IsDisplay)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResourceGone
		}
		return nil, err
	}
	return &o, nil
}

// GetByID loads a live occurrence outside any transaction.  It is
// used by the fast path, which only needs max_attendee and the
// group-booking flag before the authoritative transaction starts.
// Missing or soft-deleted occurrences yield ErrResourceGone.
func (r *OccurrenceRepo) GetByID(ctx context.Context, id uint64) (*OccurrenceRecord, error) {
	const q = `SELECT ` + occurrenceColumns + ` FROM occurrences WHERE id = ? AND deleted_at IS NULL`
	return scanOccurrence(r.db.QueryRowContext(ctx, q, id))
}

// GetForUpdateTx loads a live occurrence under a row lock inside the
// provided transaction.  Concurrent admissions against the same
// occurrence serialize on this lock, which is what makes the
// capacity re-check authoritative.  Missing or soft-deleted rows
// yield ErrResourceGone.
func (r *OccurrenceRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*OccurrenceRecord, error) {
	const q = `SELECT ` + occurrenceColumns + ` FROM occurrences WHERE id = ? AND deleted_at IS NULL FOR UPDATE`
	return scanOccurrence(tx.QueryRowContext(ctx, q, id))
}

// GetDetail loads the full occurrence row for the public browse
// surface.  Hidden, missing and soft-deleted occurrences all yield
// ErrResourceGone so clients cannot distinguish them.
func (r *OccurrenceRepo) GetDetail(ctx context.Context, id uint64) (*model.Occurrence, error) {
	const q = `SELECT id, occasion_id, campaign_id, starts_at, ends_at, max_attendee,
	                  group_booking, is_display, deleted_at, created_at, updated_at
	           FROM occurrences
	           WHERE id = ? AND deleted_at IS NULL AND is_display = 1`
	var o model.Occurrence
	err := r.db.QueryRowContext(ctx, q, id).Scan(&o.ID, &o.OccasionID, &o.CampaignID,
		&o.StartsAt, &o.EndsAt, &o.MaxAttendee, &o.GroupBooking, &o.IsDisplay,
		&o.DeletedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResourceGone
		}
		return nil, err
	}
	return &o, nil
}

// liveUnitsExpr sums attendee units of live registrations.  Group
// bookings consume participant plus companion units, everything else
// consumes the expected count.
const liveUnitsExpr = `COALESCE(SUM(CASE WHEN ? THEN r.participant_count + r.companion_count ELSE r.expected END), 0)`

// LiveUnitsTx returns the sum of attendee units currently committed
// against an occurrence, counting only registrations that are neither
// cancelled nor soft-deleted.  It must run inside the same
// transaction that holds the occurrence row lock so the value is
// stable for the duration of the capacity check.
func (r *OccurrenceRepo) LiveUnitsTx(ctx context.Context, tx *sql.Tx, occurrenceID uint64, groupBooking bool) (uint32, error) {
	const q = `SELECT ` + liveUnitsExpr + `
	           FROM registrations r
	           WHERE r.occurrence_id = ? AND r.cancelled_at IS NULL AND r.deleted_at IS NULL`
	var units uint32
	if err := tx.QueryRowContext(ctx, q, groupBooking, occurrenceID).Scan(&units); err != nil {
		return 0, err
	}
	return units, nil
}

// LiveUnits is the non-transactional variant of LiveUnitsTx, used by
// the advisory availability read.  The value may be stale by the time
// the caller sees it; admissions never rely on it.
func (r *OccurrenceRepo) LiveUnits(ctx context.Context, occurrenceID uint64, groupBooking bool) (uint32, error) {
	const q = `SELECT ` + liveUnitsExpr + `
	           FROM registrations r
	           WHERE r.occurrence_id = ? AND r.cancelled_at IS NULL AND r.deleted_at IS NULL`
	var units uint32
	if err := r.db.QueryRowContext(ctx, q, groupBooking, occurrenceID).Scan(&units); err != nil {
		return 0, err
	}
	return units, nil
}

// SeedRow is one row of the startup recovery scan: an occurrence that
// has not ended yet together with its capacity ceiling and the summed
// live attendee units.
type SeedRow struct {
	OccurrenceID uint64
	MaxAttendee  uint32
	LiveUnits    uint32
}

// ListSeedRows returns every live occurrence whose end time is after
// the given instant, with its aggregated live units.  The admission
// controller seeds the fast-path counter from these rows at startup;
// the decision which rows actually get a counter is made by the
// caller, not here.
func (r *OccurrenceRepo) ListSeedRows(ctx context.Context, now time.Time) ([]SeedRow, error) {
	const q = `SELECT o.id, o.max_attendee,
	                  COALESCE(SUM(CASE WHEN o.group_booking THEN r.participant_count + r.companion_count ELSE r.expected END), 0)
	           FROM occurrences o
	           LEFT JOIN registrations r
	             ON r.occurrence_id = o.id AND r.cancelled_at IS NULL AND r.deleted_at IS NULL
	           WHERE o.deleted_at IS NULL AND o.ends_at > ?
	           GROUP BY o.id, o.max_attendee`
	rows, err := r.db.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SeedRow
	for rows.Next() {
		var s SeedRow
		if err := rows.Scan(&s.OccurrenceID, &s.MaxAttendee, &s.LiveUnits); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
