package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ysakura/event-campaign-backend/internal/allocation"
	"github.com/ysakura/event-campaign-backend/internal/logger"
	"github.com/ysakura/event-campaign-backend/internal/queue"
	"github.com/ysakura/event-campaign-backend/internal/repository"
)

// CampaignStore is the slice of the campaign repository the
// allocation engine depends on.
type CampaignStore interface {
	GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*repository.CampaignRecord, error)
}

// GiftStore loads gift pools under row locks.
type GiftStore interface {
	PoolsForUpdateTx(ctx context.Context, tx *sql.Tx, campaignID uint64, giftIDs []uint64) ([]repository.GiftPool, error)
}

// GrantStore persists reward grants and answers the single-win check.
type GrantStore interface {
	BulkCreateTx(ctx context.Context, tx *sql.Tx, grants []repository.GrantRecord) error
	WinningMembersTx(ctx context.Context, tx *sql.Tx, campaignID uint64) (map[uint64]struct{}, error)
}

// CandidateStore resolves winner registrations and lists eligible
// candidates for automatic selection.
type CandidateStore interface {
	GetWinnersTx(ctx context.Context, tx *sql.Tx, campaignID uint64, registrationIDs []uint64) ([]repository.WinnerRow, error)
	ListCandidatesTx(ctx context.Context, tx *sql.Tx, campaignID uint64, excludeIDs []uint64) ([]repository.WinnerRow, error)
}

// winnerPublisher dispatches one winner notification event.  Swapped
// for a recorder in tests.
type winnerPublisher func(ctx context.Context, event queue.WinnerNotifiedEvent) error

// AllocationService assigns prizes from finite gift pools to winning
// registrations.  All grants of a batch are written in one bulk
// insert inside one transaction; the gift rows are locked for the
// duration so concurrent batches for the same pools serialize instead
// of double-spending a remaining-inventory snapshot.  Winner
// notification is dispatched only after the transaction commits.
type AllocationService struct {
	campaigns  CampaignStore
	gifts      GiftStore
	grants     GrantStore
	candidates CandidateStore
	runTx      txRunner
	publish    winnerPublisher
	now        func() time.Time
}

// NewAllocationService wires the prize allocation engine.
func NewAllocationService(db *sql.DB, campaigns CampaignStore, gifts GiftStore, grants GrantStore, candidates CandidateStore) *AllocationService {
	return &AllocationService{
		campaigns:  campaigns,
		gifts:      gifts,
		grants:     grants,
		candidates: candidates,
		runTx:      newTxRunner(db),
		publish:    queue.PublishWinnerNotified,
		now:        time.Now,
	}
}

// Grant is one persisted assignment returned to the caller.
type Grant struct {
	MemberID       uint64 `json:"member_id"`
	RegistrationID uint64 `json:"registration_id"`
	GiftID         uint64 `json:"gift_id"`
}

// AllocatePrizes assigns exactly one prize to each winning
// registration, drawn uniformly from the campaign's still-open pools.
//
// Validation fails the whole batch before any write: every gift must
// belong to the campaign, every winner must resolve to a live
// registration of the campaign held by a member, and on a single-win
// campaign no targeted member may already hold a grant (or appear
// twice in the batch).  When inventory runs out mid-batch the
// remaining winners receive nothing and the batch still commits.
func (s *AllocationService) AllocatePrizes(ctx context.Context, campaignID uint64, winnerIDs, giftIDs []uint64) ([]Grant, error) {
	if len(winnerIDs) == 0 {
		return nil, repository.ErrValidation
	}
	var assignments []allocation.Assignment
	var pools []repository.GiftPool
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		campaign, err := s.campaigns.GetTx(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		winners, err := s.resolveWinners(ctx, tx, campaign, winnerIDs)
		if err != nil {
			return err
		}
		pools, err = s.gifts.PoolsForUpdateTx(ctx, tx, campaignID, giftIDs)
		if err != nil {
			return err
		}
		assignments, err = allocation.AssignPrizes(openPools(pools), winners)
		if err != nil {
			return err
		}
		return s.grants.BulkCreateTx(ctx, tx, grantRecords(campaignID, assignments))
	})
	if err != nil {
		return nil, err
	}

	s.notifyWinners(ctx, campaignID, pools, assignments)

	out := make([]Grant, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, Grant{MemberID: a.MemberID, RegistrationID: a.RegistrationID, GiftID: a.GiftID})
	}
	return out, nil
}

// SelectAutomaticWinners recruits additional eligible registrations
// up to the open inventory minus the explicit winner count, drawn
// uniformly without replacement.  It is a preview: the chosen
// registration identifiers are returned and nothing is persisted;
// granting them is a separate AllocatePrizes call.
func (s *AllocationService) SelectAutomaticWinners(ctx context.Context, campaignID uint64, explicitIDs, giftIDs []uint64) ([]uint64, error) {
	var chosen []allocation.Winner
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		campaign, err := s.campaigns.GetTx(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		pools, err := s.gifts.PoolsForUpdateTx(ctx, tx, campaignID, giftIDs)
		if err != nil {
			return err
		}
		budget := allocation.TotalRemaining(openPools(pools)) - len(explicitIDs)
		if budget <= 0 {
			chosen = nil
			return nil
		}
		rows, err := s.candidates.ListCandidatesTx(ctx, tx, campaignID, explicitIDs)
		if err != nil {
			return err
		}
		candidates, err := s.eligibleCandidates(ctx, tx, campaign, rows)
		if err != nil {
			return err
		}
		chosen, err = allocation.SelectExtra(candidates, budget)
		return err
	})
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(chosen))
	for _, w := range chosen {
		ids = append(ids, w.RegistrationID)
	}
	return ids, nil
}

// resolveWinners loads the explicit winner registrations and enforces
// the campaign-level win constraints before any write happens.
func (s *AllocationService) resolveWinners(ctx context.Context, tx *sql.Tx, campaign *repository.CampaignRecord, winnerIDs []uint64) ([]allocation.Winner, error) {
	rows, err := s.candidates.GetWinnersTx(ctx, tx, campaign.ID, winnerIDs)
	if err != nil {
		return nil, err
	}
	var alreadyWon map[uint64]struct{}
	if !campaign.IsMultipleWinners {
		alreadyWon, err = s.grants.WinningMembersTx(ctx, tx, campaign.ID)
		if err != nil {
			return nil, err
		}
	}
	winners := make([]allocation.Winner, 0, len(rows))
	inBatch := make(map[uint64]struct{}, len(rows))
	for _, row := range rows {
		if row.MemberID == nil {
			return nil, repository.ErrValidation
		}
		if !campaign.IsMultipleWinners {
			if _, won := alreadyWon[*row.MemberID]; won {
				return nil, repository.ErrConflict
			}
			if _, dup := inBatch[*row.MemberID]; dup {
				return nil, repository.ErrConflict
			}
			inBatch[*row.MemberID] = struct{}{}
		}
		winners = append(winners, allocation.Winner{RegistrationID: row.RegistrationID, MemberID: *row.MemberID})
	}
	return winners, nil
}

// eligibleCandidates narrows the candidate rows for automatic
// selection.  On a single-win campaign, members that already hold a
// grant are filtered out even when the specific registration has
// none.
func (s *AllocationService) eligibleCandidates(ctx context.Context, tx *sql.Tx, campaign *repository.CampaignRecord, rows []repository.WinnerRow) ([]allocation.Winner, error) {
	var alreadyWon map[uint64]struct{}
	if !campaign.IsMultipleWinners {
		var err error
		alreadyWon, err = s.grants.WinningMembersTx(ctx, tx, campaign.ID)
		if err != nil {
			return nil, err
		}
	}
	candidates := make([]allocation.Winner, 0, len(rows))
	for _, row := range rows {
		if row.MemberID == nil {
			continue
		}
		if _, won := alreadyWon[*row.MemberID]; won {
			continue
		}
		candidates = append(candidates, allocation.Winner{RegistrationID: row.RegistrationID, MemberID: *row.MemberID})
	}
	return candidates, nil
}

// notifyWinners dispatches one best-effort notification per grant
// whose gift has image notification enabled and an image attached.
// The grants are already durable here, so publish errors are logged
// by the publisher and dropped; there is no retry.
func (s *AllocationService) notifyWinners(ctx context.Context, campaignID uint64, pools []repository.GiftPool, assignments []allocation.Assignment) {
	byGift := make(map[uint64]repository.GiftPool, len(pools))
	for _, p := range pools {
		byGift[p.GiftID] = p
	}
	grantedAt := s.now().UTC().Format(time.RFC3339)
	for _, a := range assignments {
		pool, ok := byGift[a.GiftID]
		if !ok || !pool.ImageNotification || pool.ImageURL == nil {
			continue
		}
		event := queue.WinnerNotifiedEvent{
			EventID:        uuid.NewString(),
			CampaignID:     campaignID,
			GiftID:         a.GiftID,
			GiftName:       pool.Name,
			MemberID:       a.MemberID,
			RegistrationID: a.RegistrationID,
			ImageURL:       *pool.ImageURL,
			GrantedAt:      grantedAt,
		}
		if err := s.publish(ctx, event); err != nil {
			logger.Warn("winner notification publish skipped",
				zap.Uint64("registration_id", a.RegistrationID), zap.Error(err))
		}
	}
}

func openPools(pools []repository.GiftPool) []allocation.Pool {
	out := make([]allocation.Pool, 0, len(pools))
	for _, p := range pools {
		out = append(out, allocation.Pool{GiftID: p.GiftID, Remaining: p.Remaining()})
	}
	return out
}

func grantRecords(campaignID uint64, assignments []allocation.Assignment) []repository.GrantRecord {
	records := make([]repository.GrantRecord, 0, len(assignments))
	for _, a := range assignments {
		records = append(records, repository.GrantRecord{
			MemberID:       a.MemberID,
			RegistrationID: a.RegistrationID,
			GiftID:         a.GiftID,
			CampaignID:     campaignID,
		})
	}
	return records
}
