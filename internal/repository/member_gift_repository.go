package repository

import (
	"context"
	"database/sql"

	"github.com/ysakura/event-campaign-backend/internal/model"
)

// MemberGiftRepo persists reward grants.  Rows are inserted in bulk
// inside the allocation transaction and never updated afterwards.
type MemberGiftRepo struct {
	db *sql.DB
}

// NewMemberGiftRepo returns a new MemberGiftRepo bound to the given database.
func NewMemberGiftRepo(db *sql.DB) *MemberGiftRepo { return &MemberGiftRepo{db: db} }

// GrantRecord mirrors the member_gifts columns written during
// allocation.
type GrantRecord struct {
	MemberID       uint64
	RegistrationID uint64
	GiftID         uint64
	CampaignID     uint64
}

// BulkCreateTx inserts all grants of an allocation batch in a single
// statement within the provided transaction.  This is the only write
// the allocation engine performs; any failure here rolls back the
// whole batch.  Passing an empty slice has no effect and returns nil.
func (r *MemberGiftRepo) BulkCreateTx(ctx context.Context, tx *sql.Tx, grants []GrantRecord) error {
	if len(grants) == 0 {
		return nil
	}
	query := `INSERT INTO member_gifts (member_id, registration_id, gift_id, campaign_id) VALUES `
	args := make([]interface{}, 0, len(grants)*4)
	for i, g := range grants {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, g.MemberID, g.RegistrationID, g.GiftID, g.CampaignID)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListByMember returns every live grant held by a member, newest
// first, for the public browse surface.
func (r *MemberGiftRepo) ListByMember(ctx context.Context, memberID uint64) ([]model.MemberGift, error) {
	const q = `SELECT id, member_id, registration_id, gift_id, campaign_id, deleted_at, created_at
	           FROM member_gifts
	           WHERE member_id = ? AND deleted_at IS NULL
	           ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.MemberGift
	for rows.Next() {
		var g model.MemberGift
		if err := rows.Scan(&g.ID, &g.MemberID, &g.RegistrationID, &g.GiftID,
			&g.CampaignID, &g.DeletedAt, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WinningMembersTx returns the set of members that already hold at
// least one live grant in the campaign.  The single-win validation
// checks every targeted member against this set before any write.
func (r *MemberGiftRepo) WinningMembersTx(ctx context.Context, tx *sql.Tx, campaignID uint64) (map[uint64]struct{}, error) {
	const q = `SELECT DISTINCT member_id FROM member_gifts WHERE campaign_id = ? AND deleted_at IS NULL`
	rows, err := tx.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	members := make(map[uint64]struct{})
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return members, nil
}
