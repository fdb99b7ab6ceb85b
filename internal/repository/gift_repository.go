package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ysakura/event-campaign-backend/internal/model"
)

// GiftRepo provides read access to gift pools.  Remaining inventory
// is never stored on the gift row; it is recomputed on demand as
// total minus the count of live member_gifts rows.
type GiftRepo struct {
	db *sql.DB
}

// NewGiftRepo returns a new GiftRepo bound to the given database.
func NewGiftRepo(db *sql.DB) *GiftRepo { return &GiftRepo{db: db} }

// GiftPool is one prize pool as seen by the allocation engine: the
// inventory ceiling, how many units were already granted, and the
// notification attributes evaluated after commit.
type GiftPool struct {
	GiftID            uint64
	Name              string
	Total             uint32
	Granted           uint32
	ImageNotification bool
	ImageURL          *string
}

// Remaining returns how many units the pool can still issue.
func (p *GiftPool) Remaining() int {
	return int(p.Total) - int(p.Granted)
}

// PoolsForUpdateTx loads the requested gift pools under row locks and
// attaches their granted counts.  Locking the gift rows serializes
// concurrent allocation batches for the same pools, so two batches
// cannot act on the same remaining-inventory snapshot.  A requested
// identifier that does not resolve to a live gift of the campaign
// yields ErrValidation.
func (r *GiftRepo) PoolsForUpdateTx(ctx context.Context, tx *sql.Tx, campaignID uint64, giftIDs []uint64) ([]GiftPool, error) {
	if len(giftIDs) == 0 {
		return nil, ErrValidation
	}
	placeholders := make([]string, 0, len(giftIDs))
	args := []interface{}{campaignID}
	for _, id := range giftIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT id, name, total, image_notification, image_url
	      FROM gifts
	      WHERE campaign_id = ? AND deleted_at IS NULL
	        AND id IN (` + strings.Join(placeholders, ",") + `)
	      FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	pools := make([]GiftPool, 0, len(giftIDs))
	index := make(map[uint64]int, len(giftIDs))
	for rows.Next() {
		var p GiftPool
		var imageURL sql.NullString
		if err := rows.Scan(&p.GiftID, &p.Name, &p.Total, &p.ImageNotification, &imageURL); err != nil {
			rows.Close()
			return nil, err
		}
		if imageURL.Valid {
			u := imageURL.String
			p.ImageURL = &u
		}
		index[p.GiftID] = len(pools)
		pools = append(pools, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(pools) != len(index) || len(index) != countUnique(giftIDs) {
		return nil, ErrValidation
	}
	for _, id := range giftIDs {
		if _, ok := index[id]; !ok {
			return nil, ErrValidation
		}
	}
	// Attach granted counts in one aggregate query.
	countQ := `SELECT gift_id, COUNT(*)
	           FROM member_gifts
	           WHERE deleted_at IS NULL AND gift_id IN (` + strings.Join(placeholders, ",") + `)
	           GROUP BY gift_id`
	crows, err := tx.QueryContext(ctx, countQ, args[1:]...)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var giftID uint64
		var granted uint32
		if err := crows.Scan(&giftID, &granted); err != nil {
			return nil, err
		}
		if i, ok := index[giftID]; ok {
			pools[i].Granted = granted
		}
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}
	return pools, nil
}

// ListByCampaign returns every live gift of a campaign for the public
// browse surface, ordered by identifier.
func (r *GiftRepo) ListByCampaign(ctx context.Context, campaignID uint64) ([]model.Gift, error) {
	const q = `SELECT id, campaign_id, name, total, image_notification, image_url,
	                  deleted_at, created_at, updated_at
	           FROM gifts
	           WHERE campaign_id = ? AND deleted_at IS NULL
	           ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Gift
	for rows.Next() {
		var g model.Gift
		var imageURL sql.NullString
		if err := rows.Scan(&g.ID, &g.CampaignID, &g.Name, &g.Total, &g.ImageNotification,
			&imageURL, &g.DeletedAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		if imageURL.Valid {
			u := imageURL.String
			g.ImageURL = &u
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GrantedCounts returns how many units each of the campaign's gifts
// has already issued.  Gifts with no grants are absent from the map.
// The value is advisory; allocation recomputes it under row locks.
func (r *GiftRepo) GrantedCounts(ctx context.Context, campaignID uint64) (map[uint64]uint32, error) {
	const q = `SELECT gift_id, COUNT(*)
	           FROM member_gifts
	           WHERE campaign_id = ? AND deleted_at IS NULL
	           GROUP BY gift_id`
	rows, err := r.db.QueryContext(ctx, q, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[uint64]uint32)
	for rows.Next() {
		var giftID uint64
		var granted uint32
		if err := rows.Scan(&giftID, &granted); err != nil {
			return nil, err
		}
		counts[giftID] = granted
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func countUnique(ids []uint64) int {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
