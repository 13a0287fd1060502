package app

import (
	"context"
	"sync"
	"time"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/domain"
)

// captureSink records delivered lifecycle events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func (s *captureSink) Deliver(_ context.Context, ev domain.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) kinds() []domain.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventKind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

// fakeBidStore holds one auction and honors the conditional-write contract,
// so races between concurrent PlaceBid calls resolve the same way they
// would against Postgres.
type fakeBidStore struct {
	mu           sync.Mutex
	auction      domain.Auction
	bids         []domain.Bid
	conflictOnce bool
}

func newFakeBidStore(a domain.Auction) *fakeBidStore {
	return &fakeBidStore{auction: a}
}

func (f *fakeBidStore) GetAuction(_ context.Context, id string) (domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.auction.ID {
		return domain.Auction{}, domain.ErrAuctionNotFound
	}
	return f.auction, nil
}

func (f *fakeBidStore) ApplyBid(_ context.Context, auctionID string, expectedVersion int64, bid domain.Bid) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictOnce {
		f.conflictOnce = false
		return 0, domain.ErrStaleVersion
	}
	if auctionID != f.auction.ID {
		return 0, domain.ErrAuctionNotFound
	}
	if expectedVersion != f.auction.Version {
		return 0, domain.ErrStaleVersion
	}
	f.auction.CurrentBid = bid.Amount
	f.auction.HighestBidderID = bid.BidderID
	f.auction.BidCount++
	f.auction.Version++
	f.bids = append(f.bids, bid)
	return f.auction.Version, nil
}

// fakeReconcilerStore keeps a set of auctions and answers the due-auction
// scans the way the Postgres queries do.
type fakeReconcilerStore struct {
	mu       sync.Mutex
	auctions map[string]*domain.Auction

	pingErr  error
	scanErr  error
	writeErr map[string]error

	// blockPing lets a test hold a pass open to observe single-flight;
	// pingEntered reports that a pass reached the probe.
	blockPing   chan struct{}
	pingEntered chan struct{}
}

func newFakeReconcilerStore(auctions ...domain.Auction) *fakeReconcilerStore {
	m := make(map[string]*domain.Auction, len(auctions))
	for i := range auctions {
		a := auctions[i]
		m[a.ID] = &a
	}
	return &fakeReconcilerStore{auctions: m, writeErr: make(map[string]error)}
}

func (f *fakeReconcilerStore) Ping(_ context.Context) error {
	if f.blockPing != nil {
		if f.pingEntered != nil {
			f.pingEntered <- struct{}{}
		}
		<-f.blockPing
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeReconcilerStore) DueForActivation(_ context.Context, now time.Time) ([]domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var due []domain.Auction
	for _, a := range f.auctions {
		if a.State == domain.AuctionStateScheduled && !now.Before(a.StartTime) {
			due = append(due, *a)
		}
	}
	return due, nil
}

func (f *fakeReconcilerStore) DueForExpiry(_ context.Context, now time.Time) ([]domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var due []domain.Auction
	for _, a := range f.auctions {
		if a.State == domain.AuctionStateActive && !now.Before(a.EndTime) {
			due = append(due, *a)
		}
	}
	return due, nil
}

func (f *fakeReconcilerStore) DueForEndingSoon(_ context.Context, now, cutoff time.Time) ([]domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []domain.Auction
	for _, a := range f.auctions {
		if a.State != domain.AuctionStateActive || a.EndingSoonNotified {
			continue
		}
		if a.EndTime.After(now) && !a.EndTime.After(cutoff) {
			due = append(due, *a)
		}
	}
	return due, nil
}

func (f *fakeReconcilerStore) TransitionState(_ context.Context, id string, expectedVersion int64, newState domain.AuctionState, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr[id]; err != nil {
		return 0, err
	}
	a, ok := f.auctions[id]
	if !ok {
		return 0, domain.ErrAuctionNotFound
	}
	if a.Version != expectedVersion {
		return 0, domain.ErrStaleVersion
	}
	a.State = newState
	a.Version++
	a.UpdatedAt = now
	return a.Version, nil
}

func (f *fakeReconcilerStore) MarkEndingSoonNotified(_ context.Context, id string, expectedVersion int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return 0, domain.ErrAuctionNotFound
	}
	if a.Version != expectedVersion {
		return 0, domain.ErrStaleVersion
	}
	a.EndingSoonNotified = true
	a.Version++
	return a.Version, nil
}

func (f *fakeReconcilerStore) get(id string) domain.Auction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.auctions[id]
}
