package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/ysakura/event-campaign-backend/internal/model"
)

// RegistrationRepo provides CRUD operations for registrations.  The
// write path is owned exclusively by the admission controller; the
// allocation engine only reads registrations as candidates.  All
// timestamp fields are stored in UTC.
type RegistrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepo returns a new RegistrationRepo bound to the given database.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

// RegistrationRecord mirrors the schema of the registrations table.
// It is used internally by the repository when constructing or
// scanning rows.  Business logic should use model.Registration.
type RegistrationRecord struct {
	ID               uint64
	Code             string
	OccurrenceID     uint64
	MemberID         *uint64
	Expected         uint32
	ParticipantCount uint32
	CompanionCount   uint32
	Attended         bool
	IsWin            bool
	CancelledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateTx inserts a new registration within the scope of an existing
// transaction.  It populates the generated ID and timestamps on the
// provided record.  The caller holds the occurrence row lock and has
// already re-validated capacity; this method performs no checks of
// its own.  The caller must commit or roll back the transaction.
func (r *RegistrationRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec *RegistrationRecord) error {
	const q = `INSERT INTO registrations
	           (code, occurrence_id, member_id, expected, participant_count, companion_count)
	           VALUES (?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, rec.Code, rec.OccurrenceID, rec.MemberID,
		rec.Expected, rec.ParticipantCount, rec.CompanionCount)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	// Query back the row to populate defaults set by the database.
	const sel = `SELECT created_at, updated_at FROM registrations WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, rec.ID).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

// GetByCode loads a registration by its opaque public code for the
// browse surface.  Missing and soft-deleted registrations yield
// ErrResourceGone; cancelled ones are returned with CancelledAt set.
func (r *RegistrationRepo) GetByCode(ctx context.Context, code string) (*model.Registration, error) {
	const q = `SELECT id, code, occurrence_id, member_id, expected, participant_count,
	                  companion_count, attended, is_win, cancelled_at, deleted_at,
	                  created_at, updated_at
	           FROM registrations
	           WHERE code = ? AND deleted_at IS NULL`
	var reg model.Registration
	var memberID sql.NullInt64
	err := r.db.QueryRowContext(ctx, q, code).Scan(&reg.ID, &reg.Code, &reg.OccurrenceID,
		&memberID, &reg.Expected, &reg.ParticipantCount, &reg.CompanionCount,
		&reg.Attended, &reg.IsWin, &reg.CancelledAt, &reg.DeletedAt,
		&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResourceGone
		}
		return nil, err
	}
	if memberID.Valid {
		mid := uint64(memberID.Int64)
		reg.MemberID = &mid
	}
	return &reg, nil
}

// CancelTx marks a registration cancelled inside the provided
// transaction and reports which occurrence it belonged to and how
// many attendee units it was holding, so the caller can credit the
// units back to the fast-path counter after commit.  It returns
// ErrResourceGone when the registration does not exist or is
// soft-deleted and ErrConflict when it is already cancelled.
func (r *RegistrationRepo) CancelTx(ctx context.Context, tx *sql.Tx, registrationID uint64) (occurrenceID uint64, units uint32, err error) {
	const q = `SELECT r.occurrence_id, r.cancelled_at,
	                  CASE WHEN o.group_booking THEN r.participant_count + r.companion_count ELSE r.expected END
	           FROM registrations r
	           JOIN occurrences o ON o.id = r.occurrence_id
	           WHERE r.id = ? AND r.deleted_at IS NULL
	           FOR UPDATE`
	var cancelledAt sql.NullTime
	err = tx.QueryRowContext(ctx, q, registrationID).Scan(&occurrenceID, &cancelledAt, &units)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrResourceGone
		}
		return 0, 0, err
	}
	if cancelledAt.Valid {
		return 0, 0, ErrConflict
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE registrations SET cancelled_at = UTC_TIMESTAMP() WHERE id = ?`, registrationID); err != nil {
		return 0, 0, err
	}
	return occurrenceID, units, nil
}

// WinnerRow is the slice of a registration the allocation engine
// needs: its identifier and the member holding it.
type WinnerRow struct {
	RegistrationID uint64
	MemberID       *uint64
}

// GetWinnersTx loads the given registrations, verifying inside the
// transaction that each one is live and belongs to the campaign.  Any
// identifier that cannot be resolved that way yields ErrValidation,
// which aborts the whole allocation batch before a single write.
func (r *RegistrationRepo) GetWinnersTx(ctx context.Context, tx *sql.Tx, campaignID uint64, registrationIDs []uint64) ([]WinnerRow, error) {
	if len(registrationIDs) == 0 {
		return []WinnerRow{}, nil
	}
	placeholders := make([]string, 0, len(registrationIDs))
	args := []interface{}{campaignID}
	for _, id := range registrationIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT r.id, r.member_id
	      FROM registrations r
	      JOIN occurrences o ON o.id = r.occurrence_id
	      WHERE o.campaign_id = ? AND r.cancelled_at IS NULL AND r.deleted_at IS NULL
	        AND r.id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[uint64]WinnerRow, len(registrationIDs))
	for rows.Next() {
		var w WinnerRow
		var memberID sql.NullInt64
		if err := rows.Scan(&w.RegistrationID, &memberID); err != nil {
			return nil, err
		}
		if memberID.Valid {
			mid := uint64(memberID.Int64)
			w.MemberID = &mid
		}
		found[w.RegistrationID] = w
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Preserve input order and reject unknown identifiers.
	out := make([]WinnerRow, 0, len(registrationIDs))
	for _, id := range registrationIDs {
		w, ok := found[id]
		if !ok {
			return nil, ErrValidation
		}
		out = append(out, w)
	}
	return out, nil
}

// ListCandidatesTx returns the registrations in a campaign that are
// eligible for automatic winner selection: live, held by a member,
// not yet flagged as winners, not yet granted any gift, and not in
// the excluded identifier list.  Runs inside the allocation
// transaction so the eligible set is consistent with the locked gift
// pools.
func (r *RegistrationRepo) ListCandidatesTx(ctx context.Context, tx *sql.Tx, campaignID uint64, excludeIDs []uint64) ([]WinnerRow, error) {
	q := `SELECT r.id, r.member_id
	      FROM registrations r
	      JOIN occurrences o ON o.id = r.occurrence_id
	      WHERE o.campaign_id = ?
	        AND r.cancelled_at IS NULL AND r.deleted_at IS NULL
	        AND r.member_id IS NOT NULL
	        AND r.is_win = 0
	        AND NOT EXISTS (
	              SELECT 1 FROM member_gifts mg
	              WHERE mg.registration_id = r.id AND mg.deleted_at IS NULL)`
	args := []interface{}{campaignID}
	if len(excludeIDs) > 0 {
		placeholders := make([]string, 0, len(excludeIDs))
		for _, id := range excludeIDs {
			placeholders = append(placeholders, "?")
			args = append(args, id)
		}
		q += ` AND r.id NOT IN (` + strings.Join(placeholders, ",") + `)`
	}
	q += ` ORDER BY r.id`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]WinnerRow, 0)
	for rows.Next() {
		var w WinnerRow
		var memberID sql.NullInt64
		if err := rows.Scan(&w.RegistrationID, &memberID); err != nil {
			return nil, err
		}
		if memberID.Valid {
			mid := uint64(memberID.Int64)
			w.MemberID = &mid
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
