package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ysakura/event-campaign-backend/internal/model"
)

// CampaignRepo provides read access to campaigns.  The allocation
// engine only needs the single-win configuration; campaign CRUD is
// owned by the administrative surface outside this core.
type CampaignRepo struct {
	db *sql.DB
}

// NewCampaignRepo returns a new CampaignRepo bound to the given database.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

// CampaignRecord mirrors the campaign columns the allocation engine
// depends on.
type CampaignRecord struct {
	ID                uint64
	Name              string
	IsMultipleWinners bool
}

// Get loads the full campaign row for the public browse surface.
// Missing or soft-deleted campaigns yield ErrResourceGone.
func (r *CampaignRepo) Get(ctx context.Context, id uint64) (*model.Campaign, error) {
	const q = `SELECT id, name, is_multiple_winners, deleted_at, created_at, updated_at
	           FROM campaigns WHERE id = ? AND deleted_at IS NULL`
	var c model.Campaign
	err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.IsMultipleWinners,
		&c.DeletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResourceGone
		}
		return nil, err
	}
	return &c, nil
}

// GetTx loads a live campaign inside the provided transaction.
// Missing or soft-deleted campaigns yield ErrResourceGone.
func (r *CampaignRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*CampaignRecord, error) {
	const q = `SELECT id, name, is_multiple_winners FROM campaigns WHERE id = ? AND deleted_at IS NULL`
	var c CampaignRecord
	err := tx.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.Name, &c.IsMultipleWinners)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResourceGone
		}
		return nil, err
	}
	return &c, nil
}
