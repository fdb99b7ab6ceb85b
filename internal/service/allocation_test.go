package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/ysakura/event-campaign-backend/internal/queue"
	"github.com/ysakura/event-campaign-backend/internal/repository"
)

type fakeCampaignStore struct {
	campaign *repository.CampaignRecord
	err      error
}

func (f *fakeCampaignStore) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*repository.CampaignRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.campaign, nil
}

type fakeGiftStore struct {
	pools []repository.GiftPool
	err   error
}

func (f *fakeGiftStore) PoolsForUpdateTx(ctx context.Context, tx *sql.Tx, campaignID uint64, giftIDs []uint64) ([]repository.GiftPool, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pools, nil
}

type fakeGrantStore struct {
	winningMembers map[uint64]struct{}
	inserted       []repository.GrantRecord
	insertErr      error
}

func (f *fakeGrantStore) BulkCreateTx(ctx context.Context, tx *sql.Tx, grants []repository.GrantRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, grants...)
	return nil
}

func (f *fakeGrantStore) WinningMembersTx(ctx context.Context, tx *sql.Tx, campaignID uint64) (map[uint64]struct{}, error) {
	if f.winningMembers == nil {
		return map[uint64]struct{}{}, nil
	}
	return f.winningMembers, nil
}

type fakeCandidateStore struct {
	winners      []repository.WinnerRow
	winnersErr   error
	candidates   []repository.WinnerRow
	listedWith   []uint64
	listCalled   bool
	candidateErr error
}

func (f *fakeCandidateStore) GetWinnersTx(ctx context.Context, tx *sql.Tx, campaignID uint64, registrationIDs []uint64) ([]repository.WinnerRow, error) {
	if f.winnersErr != nil {
		return nil, f.winnersErr
	}
	return f.winners, nil
}

func (f *fakeCandidateStore) ListCandidatesTx(ctx context.Context, tx *sql.Tx, campaignID uint64, excludeIDs []uint64) ([]repository.WinnerRow, error) {
	f.listCalled = true
	f.listedWith = excludeIDs
	if f.candidateErr != nil {
		return nil, f.candidateErr
	}
	return f.candidates, nil
}

func member(id uint64) *uint64 { return &id }

func newTestAllocation(c *fakeCampaignStore, g *fakeGiftStore, gr *fakeGrantStore, cand *fakeCandidateStore) (*AllocationService, *[]queue.WinnerNotifiedEvent) {
	published := []queue.WinnerNotifiedEvent{}
	svc := &AllocationService{
		campaigns:  c,
		gifts:      g,
		grants:     gr,
		candidates: cand,
		runTx:      passthroughTx,
		publish: func(ctx context.Context, ev queue.WinnerNotifiedEvent) error {
			published = append(published, ev)
			return nil
		},
		now: time.Now,
	}
	return svc, &published
}

func singleWinCampaign() *fakeCampaignStore {
	return &fakeCampaignStore{campaign: &repository.CampaignRecord{ID: 1, Name: "spring", IsMultipleWinners: false}}
}

func multiWinCampaign() *fakeCampaignStore {
	return &fakeCampaignStore{campaign: &repository.CampaignRecord{ID: 1, Name: "spring", IsMultipleWinners: true}}
}

func TestAllocatePrizes_ExhaustionDegradesGracefully(t *testing.T) {
	gifts := &fakeGiftStore{pools: []repository.GiftPool{
		{GiftID: 10, Name: "a", Total: 1},
		{GiftID: 20, Name: "b", Total: 1},
	}}
	grants := &fakeGrantStore{}
	cands := &fakeCandidateStore{winners: []repository.WinnerRow{
		{RegistrationID: 1, MemberID: member(100)},
		{RegistrationID: 2, MemberID: member(200)},
		{RegistrationID: 3, MemberID: member(300)},
	}}
	svc, _ := newTestAllocation(singleWinCampaign(), gifts, grants, cands)

	out, err := svc.AllocatePrizes(context.Background(), 1, []uint64{1, 2, 3}, []uint64{10, 20})
	if err != nil {
		t.Fatalf("AllocatePrizes failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("two units of inventory must yield two grants: got=%d", len(out))
	}
	if len(grants.inserted) != 2 {
		t.Fatalf("persisted grants mismatch: %d", len(grants.inserted))
	}
	issued := map[uint64]int{}
	for _, g := range grants.inserted {
		issued[g.GiftID]++
		if g.CampaignID != 1 {
			t.Fatalf("grant missing campaign reference: %+v", g)
		}
	}
	for giftID, n := range issued {
		if n > 1 {
			t.Fatalf("pool %d exceeded its total: issued=%d", giftID, n)
		}
	}
}

func TestAllocatePrizes_SingleWinViolationRejectsWholeBatch(t *testing.T) {
	gifts := &fakeGiftStore{pools: []repository.GiftPool{{GiftID: 10, Name: "a", Total: 5}}}
	grants := &fakeGrantStore{winningMembers: map[uint64]struct{}{200: {}}}
	cands := &fakeCandidateStore{winners: []repository.WinnerRow{
		{RegistrationID: 1, MemberID: member(100)},
		{RegistrationID: 2, MemberID: member(200)},
	}}
	svc, published := newTestAllocation(singleWinCampaign(), gifts, grants, cands)

	_, err := svc.AllocatePrizes(context.Background(), 1, []uint64{1, 2}, []uint64{10})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grants.inserted) != 0 {
		t.Fatalf("rejected batch must persist zero grants: %d", len(grants.inserted))
	}
	if len(*published) != 0 {
		t.Fatalf("rejected batch must notify nobody")
	}
}

func TestAllocatePrizes_DuplicateMemberInBatchRejectedOnSingleWin(t *testing.T) {
	gifts := &fakeGiftStore{pools: []repository.GiftPool{{GiftID: 10, Name: "a", Total: 5}}}
	grants := &fakeGrantStore{}
	cands := &fakeCandidateStore{winners: []repository.WinnerRow{
		{RegistrationID: 1, MemberID: member(100)},
		{RegistrationID: 2, MemberID: member(100)},
	}}
	svc, _ := newTestAllocation(singleWinCampaign(), gifts, grants, cands)

	_, err := svc.AllocatePrizes(context.Background(), 1, []uint64{1, 2}, []uint64{10})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAllocatePrizes_MultipleWinnersCampaignAllowsRepeatMember(t *testing.T) {
	gifts := &fakeGiftStore{pools: []repository.GiftPool{{GiftID: 10, Name: "a", Total: 5}}}
	grants := &fakeGrantStore{winningMembers: map[uint64]struct{}{100: {}}}
	cands := &fakeCandidateStore{winners: []repository.WinnerRow{
		{RegistrationID: 1, MemberID: member(100)},
		{RegistrationID: 2, MemberID: member(100)},
	}}
	svc, _ := newTestAllocation(multiWinCampaign(), gifts, grants, cands)

	out, err := svc.AllocatePrizes(context.Background(), 1, []uint64{1, 2}, []uint64{10})
	if err != nil {
		t.Fatalf("AllocatePrizes failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("repeat member must receive both grants: got=%d", len(out))
	}
}

func TestAllocatePrizes_ForeignGiftFailsValidation(t *testing.T) {
	gifts := &fakeGiftStore{err: repository.ErrValidation}
	grants := &fakeGrantStore{}
	cands := &fakeCandidateStore{winners: []repository.WinnerRow{{RegistrationID: 1, MemberID: member(100)}}}
	svc, _ := newTestAllocation(singleWinCampaign(), gifts, grants, cands)

	_, err := svc.AllocatePrizes(context.Background(), 1, []uint64{1}, []uint64{99})
	if !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grants.inserted) != 0 {
		t.Fatalf("validation failure must persist nothing")
	}
}

func TestAllocatePrizes_WinnerWithoutMemberFailsValidation(t *testing.T) {
	gifts := &fakeGiftStore{pools: []repository.GiftPool{{GiftID: 10, Name: "a", Total: 5}}}
	cands := &fakeCandidateStore{winners: []repository.WinnerRow{{RegistrationID: 1, MemberID: nil}}}
	svc, _ := newTestAllocation(singleWinCampaign(), gifts, &fakeGrantStore{}, cands)

	_, err := svc.AllocatePrizes(context.Background(), 1, []uint64{1}, []uint64{10})
	if !errors.Is(err, repository.ErrValidation) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAllocatePrizes_NotifiesOnlyImageEnabledGifts(t *testing.T) {
	url := "https://cdn.example.com/win.png"
	gifts := &fakeGiftStore{pools: []repository.GiftPool{
		{GiftID: 10, Name: "with image", Total: 5, ImageNotification: true, ImageURL: &url},
	}}
	grants := &fakeGrantStore{}
	cands := &fakeCandidateStore{winners: []repository.WinnerRow{{RegistrationID: 1, MemberID: member(100)}}}
	svc, published := newTestAllocation(multiWinCampaign(), gifts, grants, cands)

	if _, err := svc.AllocatePrizes(context.Background(), 1, []uint64{1}, []uint64{10}); err != nil {
		t.Fatalf("AllocatePrizes failed: %v", err)
	}
	if len(*published) != 1 {
		t.Fatalf("expected one notification, got %d", len(*published))
	}
	ev := (*published)[0]
	if ev.MemberID != 100 || ev.GiftID != 10 || ev.ImageURL != url {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.EventID == "" {
		t.Fatalf("event id not assigned")
	}
}

func TestAllocatePrizes_SilentGiftsProduceNoNotification(t *testing.T) {
	gifts := &fakeGiftStore{pools: []repository.GiftPool{
		{GiftID: 10, Name: "no image", Total: 5, ImageNotification: true, ImageURL: nil},
		{GiftID: 20, Name: "disabled", Total: 5, ImageNotification: false},
	}}
	cands := &fakeCandidateStore{winners: []repository.WinnerRow{
		{RegistrationID: 1, MemberID: member(100)},
		{RegistrationID: 2, MemberID: member(200)},
	}}
	svc, published := newTestAllocation(multiWinCampaign(), gifts, &fakeGrantStore{}, cands)

	if _, err := svc.AllocatePrizes(context.Background(), 1, []uint64{1, 2}, []uint64{10, 20}); err != nil {
		t.Fatalf("AllocatePrizes failed: %v", err)
	}
	if len(*published) != 0 {
		t.Fatalf("no gift qualifies for notification, got %d events", len(*published))
	}
}

func TestAllocatePrizes_PublishFailureDoesNotAffectResult(t *testing.T) {
	url := "https://cdn.example.com/win.png"
	gifts := &fakeGiftStore{pools: []repository.GiftPool{
		{GiftID: 10, Name: "a", Total: 5, ImageNotification: true, ImageURL: &url},
	}}
	grants := &fakeGrantStore{}
	cands := &fakeCandidateStore{winners: []repository.WinnerRow{{RegistrationID: 1, MemberID: member(100)}}}
	svc, _ := newTestAllocation(multiWinCampaign(), gifts, grants, cands)
	svc.publish = func(ctx context.Context, ev queue.WinnerNotifiedEvent) error {
		return errors.New("broker down")
	}

	out, err := svc.AllocatePrizes(context.Background(), 1, []uint64{1}, []uint64{10})
	if err != nil {
		t.Fatalf("notification failure must not fail the batch: %v", err)
	}
	if len(out) != 1 || len(grants.inserted) != 1 {
		t.Fatalf("grant must stay durable despite publish failure")
	}
}

func TestSelectAutomaticWinners_RespectsInventoryBudget(t *testing.T) {
	gifts := &fakeGiftStore{pools: []repository.GiftPool{
		{GiftID: 10, Name: "a", Total: 3, Granted: 1}, // remaining 2
		{GiftID: 20, Name: "b", Total: 1},             // remaining 1
	}}
	grants := &fakeGrantStore{}
	cands := &fakeCandidateStore{candidates: []repository.WinnerRow{
		{RegistrationID: 11, MemberID: member(1)},
		{RegistrationID: 12, MemberID: member(2)},
		{RegistrationID: 13, MemberID: member(3)},
		{RegistrationID: 14, MemberID: member(4)},
	}}
	svc, _ := newTestAllocation(singleWinCampaign(), gifts, grants, cands)

	// Remaining inventory 3, one explicit winner: budget 2.
	ids, err := svc.SelectAutomaticWinners(context.Background(), 1, []uint64{99}, []uint64{10, 20})
	if err != nil {
		t.Fatalf("SelectAutomaticWinners failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("selection must respect the inventory budget: got=%d want=2", len(ids))
	}
	seen := map[uint64]bool{}
	for _, id := range ids {
		if id == 99 {
			t.Fatalf("explicit winner leaked into the selection")
		}
		if seen[id] {
			t.Fatalf("registration %d selected twice", id)
		}
		seen[id] = true
	}
	if len(grants.inserted) != 0 {
		t.Fatalf("automatic selection is preview only, persisted %d grants", len(grants.inserted))
	}
	if len(cands.listedWith) != 1 || cands.listedWith[0] != 99 {
		t.Fatalf("explicit winners must be excluded from the candidate query: %v", cands.listedWith)
	}
}

func TestSelectAutomaticWinners_NoBudgetSkipsCandidateQuery(t *testing.T) {
	gifts := &fakeGiftStore{pools: []repository.GiftPool{{GiftID: 10, Name: "a", Total: 2}}}
	cands := &fakeCandidateStore{}
	svc, _ := newTestAllocation(singleWinCampaign(), gifts, &fakeGrantStore{}, cands)

	ids, err := svc.SelectAutomaticWinners(context.Background(), 1, []uint64{1, 2}, []uint64{10})
	if err != nil {
		t.Fatalf("SelectAutomaticWinners failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("exhausted budget must select nobody: %v", ids)
	}
	if cands.listCalled {
		t.Fatalf("candidate query must be skipped when the budget is zero")
	}
}

func TestSelectAutomaticWinners_FiltersMembersWithExistingGrantOnSingleWin(t *testing.T) {
	gifts := &fakeGiftStore{pools: []repository.GiftPool{{GiftID: 10, Name: "a", Total: 10}}}
	grants := &fakeGrantStore{winningMembers: map[uint64]struct{}{2: {}}}
	cands := &fakeCandidateStore{candidates: []repository.WinnerRow{
		{RegistrationID: 11, MemberID: member(1)},
		{RegistrationID: 12, MemberID: member(2)},
	}}
	svc, _ := newTestAllocation(singleWinCampaign(), gifts, grants, cands)

	ids, err := svc.SelectAutomaticWinners(context.Background(), 1, nil, []uint64{10})
	if err != nil {
		t.Fatalf("SelectAutomaticWinners failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 11 {
		t.Fatalf("member with existing grant must be filtered: %v", ids)
	}
}
